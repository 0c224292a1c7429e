package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/evobridge/evobridge/domains/messaging"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type contactModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	InboxID        string         `gorm:"column:inbox_id;not null;uniqueIndex:idx_inbox_phone"`
	PhoneNumber    string         `gorm:"column:phone_number;not null;uniqueIndex:idx_inbox_phone"`
	Name           string         `gorm:"column:name"`
	AvatarURL      sql.NullString `gorm:"column:avatar_url"`
	Additional     sql.NullString `gorm:"column:additional_attributes"` // JSON
	LastActivityAt *time.Time     `gorm:"column:last_activity_at"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (contactModel) TableName() string { return "contacts" }

type conversationModel struct {
	ID                string     `gorm:"primaryKey;column:id"`
	InboxID           string     `gorm:"column:inbox_id;not null;uniqueIndex:idx_inbox_contact"`
	ContactID         string     `gorm:"column:contact_id;not null;uniqueIndex:idx_inbox_contact"`
	ContactLastSeenAt *time.Time `gorm:"column:contact_last_seen_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null"`
}

func (conversationModel) TableName() string { return "conversations" }

type messageModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	ChannelID      string         `gorm:"column:channel_id;not null;uniqueIndex:idx_channel_source"`
	ConversationID string         `gorm:"column:conversation_id;not null;index"`
	SourceID       string         `gorm:"column:source_id;not null;uniqueIndex:idx_channel_source"`
	Direction      string         `gorm:"column:direction;not null"`
	Kind           string         `gorm:"column:kind;not null"`
	Content        string         `gorm:"column:content"`
	Attributes     sql.NullString `gorm:"column:content_attributes"` // JSON
	Status         string         `gorm:"column:status"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

type attachmentModel struct {
	ID            string         `gorm:"primaryKey;column:id"`
	MessageID     string         `gorm:"column:message_id;not null;index"`
	Kind          string         `gorm:"column:kind;not null"`
	Data          []byte         `gorm:"column:data"`
	ExternalURL   sql.NullString `gorm:"column:external_url"`
	ContentType   sql.NullString `gorm:"column:content_type"`
	Filename      sql.NullString `gorm:"column:filename"`
	CoordsLat     float64        `gorm:"column:coordinates_lat"`
	CoordsLong    float64        `gorm:"column:coordinates_long"`
	FallbackTitle sql.NullString `gorm:"column:fallback_title"`
	Meta          sql.NullString `gorm:"column:meta"` // JSON
}

func (attachmentModel) TableName() string { return "attachments" }

// --- Store Implementation ---

type MessagingGormStore struct {
	db *gorm.DB
}

func NewMessagingGormStore(db *gorm.DB) *MessagingGormStore {
	return &MessagingGormStore{db: db}
}

func (s *MessagingGormStore) Init(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&contactModel{},
		&conversationModel{},
		&messageModel{},
		&attachmentModel{},
	)
}

func (s *MessagingGormStore) MessageBySourceID(ctx context.Context, channelID, sourceID string) (*messaging.Message, error) {
	var m messageModel
	err := s.db.WithContext(ctx).First(&m, "channel_id = ? AND source_id = ?", channelID, sourceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, err
	}

	var attachments []attachmentModel
	if err := s.db.WithContext(ctx).Find(&attachments, "message_id = ?", m.ID).Error; err != nil {
		return nil, err
	}

	msg := fromMessageModel(m)
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, fromAttachmentModel(a))
	}
	return &msg, nil
}

// CreateMessage persists the message and its attachments in one transaction.
// The unique index on (channel_id, source_id) makes this the final dedup
// backstop under concurrent delivery.
func (s *MessagingGormStore) CreateMessage(ctx context.Context, msg *messaging.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := toMessageModel(msg)
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return messaging.ErrDuplicateMsg
			}
			return err
		}
		for i := range msg.Attachments {
			att := toAttachmentModel(&msg.Attachments[i], msg.ID)
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MessagingGormStore) UpdateMessage(ctx context.Context, msg *messaging.Message) error {
	model := toMessageModel(msg)
	model.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *MessagingGormStore) ContactByPhone(ctx context.Context, inboxID, phoneNumber string) (*messaging.Contact, error) {
	var m contactModel
	err := s.db.WithContext(ctx).First(&m, "inbox_id = ? AND phone_number = ?", inboxID, phoneNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, err
	}
	contact := fromContactModel(m)
	return &contact, nil
}

func (s *MessagingGormStore) ContactByID(ctx context.Context, id string) (*messaging.Contact, error) {
	var m contactModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, err
	}
	contact := fromContactModel(m)
	return &contact, nil
}

func (s *MessagingGormStore) CreateContact(ctx context.Context, contact *messaging.Contact) error {
	model := toContactModel(contact)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *MessagingGormStore) UpdateContact(ctx context.Context, contact *messaging.Contact) error {
	model := toContactModel(contact)
	model.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(&model).Error
}

func (s *MessagingGormStore) ConversationFor(ctx context.Context, inboxID, contactID string) (*messaging.Conversation, error) {
	var m conversationModel
	err := s.db.WithContext(ctx).First(&m, "inbox_id = ? AND contact_id = ?", inboxID, contactID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, err
	}
	conv := fromConversationModel(m)
	return &conv, nil
}

func (s *MessagingGormStore) ConversationByID(ctx context.Context, id string) (*messaging.Conversation, error) {
	var m conversationModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, messaging.ErrNotFound
		}
		return nil, err
	}
	conv := fromConversationModel(m)
	return &conv, nil
}

func (s *MessagingGormStore) CreateConversation(ctx context.Context, conv *messaging.Conversation) error {
	model := toConversationModel(conv)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *MessagingGormStore) UpdateConversation(ctx context.Context, conv *messaging.Conversation) error {
	model := toConversationModel(conv)
	model.UpdatedAt = time.Now().UTC()
	return s.db.WithContext(ctx).Save(&model).Error
}

// --- Mapping ---

func marshalJSON(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func toContactModel(c *messaging.Contact) contactModel {
	m := contactModel{
		ID:             c.ID,
		InboxID:        c.InboxID,
		PhoneNumber:    c.PhoneNumber,
		Name:           c.Name,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.AvatarURL != "" {
		m.AvatarURL = sql.NullString{String: c.AvatarURL, Valid: true}
	}
	if len(c.AdditionalAttributes) > 0 {
		m.Additional = marshalJSON(c.AdditionalAttributes)
	}
	return m
}

func fromContactModel(m contactModel) messaging.Contact {
	c := messaging.Contact{
		ID:             m.ID,
		InboxID:        m.InboxID,
		PhoneNumber:    m.PhoneNumber,
		Name:           m.Name,
		AvatarURL:      m.AvatarURL.String,
		LastActivityAt: m.LastActivityAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Additional.Valid {
		_ = json.Unmarshal([]byte(m.Additional.String), &c.AdditionalAttributes)
	}
	return c
}

func toConversationModel(c *messaging.Conversation) conversationModel {
	return conversationModel{
		ID:                c.ID,
		InboxID:           c.InboxID,
		ContactID:         c.ContactID,
		ContactLastSeenAt: c.ContactLastSeenAt,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func fromConversationModel(m conversationModel) messaging.Conversation {
	return messaging.Conversation{
		ID:                m.ID,
		InboxID:           m.InboxID,
		ContactID:         m.ContactID,
		ContactLastSeenAt: m.ContactLastSeenAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toMessageModel(msg *messaging.Message) messageModel {
	m := messageModel{
		ID:             msg.ID,
		ChannelID:      msg.ChannelID,
		ConversationID: msg.ConversationID,
		SourceID:       msg.SourceID,
		Direction:      string(msg.Direction),
		Kind:           string(msg.Kind),
		Content:        msg.Content,
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.UpdatedAt,
	}
	if len(msg.ContentAttributes) > 0 {
		m.Attributes = marshalJSON(msg.ContentAttributes)
	}
	return m
}

func fromMessageModel(m messageModel) messaging.Message {
	msg := messaging.Message{
		ID:             m.ID,
		ChannelID:      m.ChannelID,
		ConversationID: m.ConversationID,
		SourceID:       m.SourceID,
		Direction:      messaging.Direction(m.Direction),
		Kind:           messaging.MessageKind(m.Kind),
		Content:        m.Content,
		Status:         messaging.Status(m.Status),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Attributes.Valid {
		_ = json.Unmarshal([]byte(m.Attributes.String), &msg.ContentAttributes)
	}
	return msg
}

func toAttachmentModel(a *messaging.Attachment, messageID string) attachmentModel {
	m := attachmentModel{
		ID:         a.ID,
		MessageID:  messageID,
		Kind:       string(a.Kind),
		Data:       a.Data,
		CoordsLat:  a.CoordsLat,
		CoordsLong: a.CoordsLong,
	}
	if a.ExternalURL != "" {
		m.ExternalURL = sql.NullString{String: a.ExternalURL, Valid: true}
	}
	if a.ContentType != "" {
		m.ContentType = sql.NullString{String: a.ContentType, Valid: true}
	}
	if a.Filename != "" {
		m.Filename = sql.NullString{String: a.Filename, Valid: true}
	}
	if a.FallbackTitle != "" {
		m.FallbackTitle = sql.NullString{String: a.FallbackTitle, Valid: true}
	}
	if len(a.Meta) > 0 {
		m.Meta = marshalJSON(a.Meta)
	}
	return m
}

func fromAttachmentModel(m attachmentModel) messaging.Attachment {
	a := messaging.Attachment{
		ID:            m.ID,
		MessageID:     m.MessageID,
		Kind:          messaging.AttachmentKind(m.Kind),
		Data:          m.Data,
		ExternalURL:   m.ExternalURL.String,
		ContentType:   m.ContentType.String,
		Filename:      m.Filename.String,
		CoordsLat:     m.CoordsLat,
		CoordsLong:    m.CoordsLong,
		FallbackTitle: m.FallbackTitle.String,
	}
	if m.Meta.Valid {
		_ = json.Unmarshal([]byte(m.Meta.String), &a.Meta)
	}
	return a
}
