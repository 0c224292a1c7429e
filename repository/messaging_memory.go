package repository

import (
	"context"
	"sync"

	"github.com/evobridge/evobridge/domains/messaging"
)

// MemoryMessagingStore is an in-memory messaging.Store used in tests. It
// enforces the same (channel, source id) uniqueness as the gorm store.
type MemoryMessagingStore struct {
	mu            sync.Mutex
	messages      map[string]*messaging.Message // channelID|sourceID
	contacts      map[string]*messaging.Contact // inboxID|phone
	conversations map[string]*messaging.Conversation
}

func NewMemoryMessagingStore() *MemoryMessagingStore {
	return &MemoryMessagingStore{
		messages:      make(map[string]*messaging.Message),
		contacts:      make(map[string]*messaging.Contact),
		conversations: make(map[string]*messaging.Conversation),
	}
}

func msgKey(channelID, sourceID string) string { return channelID + "|" + sourceID }

func pairKey(a, b string) string { return a + "|" + b }

func (s *MemoryMessagingStore) MessageBySourceID(_ context.Context, channelID, sourceID string) (*messaging.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[msgKey(channelID, sourceID)]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (s *MemoryMessagingStore) CreateMessage(_ context.Context, msg *messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msgKey(msg.ChannelID, msg.SourceID)
	if _, exists := s.messages[key]; exists {
		return messaging.ErrDuplicateMsg
	}
	clone := *msg
	s.messages[key] = &clone
	return nil
}

func (s *MemoryMessagingStore) UpdateMessage(_ context.Context, msg *messaging.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Delivery rewrites SourceID from the provisional id to the gateway one,
	// so drop any entry still stored under the old key.
	for key, existing := range s.messages {
		if existing.ID == msg.ID && key != msgKey(msg.ChannelID, msg.SourceID) {
			delete(s.messages, key)
		}
	}
	clone := *msg
	s.messages[msgKey(msg.ChannelID, msg.SourceID)] = &clone
	return nil
}

func (s *MemoryMessagingStore) ContactByPhone(_ context.Context, inboxID, phoneNumber string) (*messaging.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.contacts[pairKey(inboxID, phoneNumber)]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	clone := *contact
	return &clone, nil
}

func (s *MemoryMessagingStore) ContactByID(_ context.Context, id string) (*messaging.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.ID == id {
			clone := *contact
			return &clone, nil
		}
	}
	return nil, messaging.ErrNotFound
}

func (s *MemoryMessagingStore) CreateContact(_ context.Context, contact *messaging.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *contact
	s.contacts[pairKey(contact.InboxID, contact.PhoneNumber)] = &clone
	return nil
}

func (s *MemoryMessagingStore) UpdateContact(_ context.Context, contact *messaging.Contact) error {
	return s.CreateContact(nil, contact)
}

func (s *MemoryMessagingStore) ConversationFor(_ context.Context, inboxID, contactID string) (*messaging.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[pairKey(inboxID, contactID)]
	if !ok {
		return nil, messaging.ErrNotFound
	}
	clone := *conv
	return &clone, nil
}

func (s *MemoryMessagingStore) ConversationByID(_ context.Context, id string) (*messaging.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.ID == id {
			clone := *conv
			return &clone, nil
		}
	}
	return nil, messaging.ErrNotFound
}

func (s *MemoryMessagingStore) CreateConversation(_ context.Context, conv *messaging.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *conv
	s.conversations[pairKey(conv.InboxID, conv.ContactID)] = &clone
	return nil
}

func (s *MemoryMessagingStore) UpdateConversation(_ context.Context, conv *messaging.Conversation) error {
	return s.CreateConversation(nil, conv)
}
