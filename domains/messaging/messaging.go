package messaging

import "time"

// SendRequest is the API payload for dispatching an outgoing message through
// a channel's gateway instance. Either Content or TemplateName must be set;
// templates render to text with {{n}} placeholders replaced positionally.
type SendRequest struct {
	InstanceName   string   `json:"instance_name" form:"instance_name"`
	Number         string   `json:"number" form:"number"`
	Content        string   `json:"content" form:"content"`
	ReplyToID      string   `json:"reply_to_id,omitempty" form:"reply_to_id"`
	TemplateName   string   `json:"template_name,omitempty" form:"template_name"`
	TemplateParams []string `json:"template_params,omitempty" form:"template_params"`
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MessageKind classifies the provider payload. The order of classification
// lives in the evolution package; this is just the closed set of outcomes.
type MessageKind string

const (
	KindText        MessageKind = "text"
	KindImage       MessageKind = "image"
	KindAudio       MessageKind = "audio"
	KindVideo       MessageKind = "video"
	KindFile        MessageKind = "file"
	KindSticker     MessageKind = "sticker"
	KindReaction    MessageKind = "reaction"
	KindLocation    MessageKind = "location"
	KindContacts    MessageKind = "contacts"
	KindProtocol    MessageKind = "protocol"
	KindUnsupported MessageKind = "unsupported"
)

// HasMedia reports whether this kind carries downloadable or inline media.
func (k MessageKind) HasMedia() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindFile, KindSticker, KindLocation:
		return true
	}
	return false
}

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentFile     AttachmentKind = "file"
	AttachmentSticker  AttachmentKind = "sticker"
	AttachmentLocation AttachmentKind = "location"
	AttachmentContact  AttachmentKind = "contact"
)

// Contact is a counterparty identified primarily by phone number, scoped to
// an inbox. AdditionalAttributes stores provider metadata such as the last
// cached profile picture URL.
type Contact struct {
	ID                   string            `json:"id"`
	InboxID              string            `json:"inbox_id"`
	PhoneNumber          string            `json:"phone_number"`
	Name                 string            `json:"name"`
	AvatarURL            string            `json:"avatar_url,omitempty"`
	AdditionalAttributes map[string]string `json:"additional_attributes,omitempty"`
	LastActivityAt       *time.Time        `json:"last_activity_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Conversation groups messages between a contact and an inbox. It is created
// lazily on the first inbound message for the pair.
type Conversation struct {
	ID                string     `json:"id"`
	InboxID           string     `json:"inbox_id"`
	ContactID         string     `json:"contact_id"`
	ContactLastSeenAt *time.Time `json:"contact_last_seen_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Message is the canonical unit. SourceID is the provider-assigned id and the
// dedup key: at most one message per (channel, source id).
type Message struct {
	ID                string         `json:"id"`
	ChannelID         string         `json:"channel_id"`
	ConversationID    string         `json:"conversation_id"`
	SourceID          string         `json:"source_id"`
	Direction         Direction      `json:"direction"`
	Kind              MessageKind    `json:"kind"`
	Content           string         `json:"content"`
	ContentAttributes map[string]any `json:"content_attributes,omitempty"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// SetContentAttribute initializes the bag on demand.
func (m *Message) SetContentAttribute(key string, value any) {
	if m.ContentAttributes == nil {
		m.ContentAttributes = make(map[string]any)
	}
	m.ContentAttributes[key] = value
}

// Attachment belongs to exactly one message and is destroyed with it.
type Attachment struct {
	ID            string         `json:"id"`
	MessageID     string         `json:"message_id"`
	Kind          AttachmentKind `json:"kind"`
	Data          []byte         `json:"-"`
	ExternalURL   string         `json:"external_url,omitempty"`
	ContentType   string         `json:"content_type,omitempty"`
	Filename      string         `json:"filename,omitempty"`
	CoordsLat     float64        `json:"coordinates_lat,omitempty"`
	CoordsLong    float64        `json:"coordinates_long,omitempty"`
	FallbackTitle string         `json:"fallback_title,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}
