package event

import "strings"

// Type is the webhook event discriminator sent by the gateway.
type Type string

const (
	TypeMessagesUpsert   Type = "messages.upsert"
	TypeMessagesUpdate   Type = "messages.update"
	TypeContactsUpdate   Type = "contacts.update"
	TypeQRCodeUpdated    Type = "qrcode.updated"
	TypeConnectionUpdate Type = "connection.update"
)

// ChatEvents are chat-level events the gateway delivers but the pipeline
// deliberately skips.
var ChatEvents = map[Type]bool{
	"chats.update": true,
	"chats.upsert": true,
}

// Payload is one raw webhook event as delivered, untyped. The gateway's
// shapes are too loose for struct decoding; accessors dig with fallbacks.
type Payload map[string]any

func (p Payload) Type() Type {
	return Type(p.String("event"))
}

// Data returns the event-type dependent data object, nil when absent or not
// an object.
func (p Payload) Data() map[string]any {
	m, _ := p["data"].(map[string]any)
	return m
}

// DataItems normalizes the data field to a slice: update events may carry a
// single object or an array of them.
func (p Payload) DataItems() []map[string]any {
	switch v := p["data"].(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, el := range v {
			if m, ok := el.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	}
	return nil
}

func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

func (p Payload) Instance() string { return p.String("instance") }

func (p Payload) ServerURL() string { return p.String("server_url") }

func (p Payload) DateTime() string { return p.String("date_time") }
