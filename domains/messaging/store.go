package messaging

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateMsg = errors.New("message with source id already exists")
)

// Store is the narrow persistence contract the ingestion engine depends on.
// Implementations live in the repository package (gorm and in-memory).
type Store interface {
	// MessageBySourceID returns ErrNotFound when no message matches. The
	// unique index on (channel_id, source_id) is the final dedup backstop.
	MessageBySourceID(ctx context.Context, channelID, sourceID string) (*Message, error)
	CreateMessage(ctx context.Context, msg *Message) error
	UpdateMessage(ctx context.Context, msg *Message) error

	ContactByPhone(ctx context.Context, inboxID, phoneNumber string) (*Contact, error)
	ContactByID(ctx context.Context, id string) (*Contact, error)
	CreateContact(ctx context.Context, contact *Contact) error
	UpdateContact(ctx context.Context, contact *Contact) error

	// ConversationFor returns the conversation for a (inbox, contact) pair,
	// or ErrNotFound so callers can create one lazily.
	ConversationFor(ctx context.Context, inboxID, contactID string) (*Conversation, error)
	ConversationByID(ctx context.Context, id string) (*Conversation, error)
	CreateConversation(ctx context.Context, conv *Conversation) error
	UpdateConversation(ctx context.Context, conv *Conversation) error
}
