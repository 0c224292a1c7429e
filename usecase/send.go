package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/evobridge/evobridge/pkg/guard"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OutboundService delivers locally created messages through the gateway and
// records the resulting external id.
type OutboundService struct {
	store   messaging.Store
	guard   *guard.Guard
	gateway GatewayFactory

	// PublicMediaURLs marks attachment URLs as directly fetchable by the
	// gateway, with access-token query parameters stripped.
	PublicMediaURLs bool
}

func NewOutboundService(store messaging.Store, g *guard.Guard, gateway GatewayFactory) *OutboundService {
	return &OutboundService{store: store, guard: g, gateway: gateway}
}

// Template is a pre-approved outbound message with positional parameters.
type Template struct {
	Name       string
	Parameters []string
}

// RenderText substitutes {{1}}-style placeholders with the parameters.
func (t Template) RenderText() string {
	text := t.Name
	if text == "" {
		text = "Template Message"
	}
	for i, param := range t.Parameters {
		text = strings.ReplaceAll(text, fmt.Sprintf("{{%d}}", i+1), param)
	}
	return text
}

// ComposeAndSend builds and persists a new outgoing text message for the
// given destination, then delivers it. The message is stored first under a
// provisional source id so the delivery outcome is recorded even when the
// gateway call fails.
func (s *OutboundService) ComposeAndSend(ctx context.Context, ch *channel.Channel, number, content, replyTo string) (*messaging.Message, error) {
	attrs := map[string]any{}
	if replyTo != "" {
		attrs["in_reply_to_external_id"] = replyTo
	}
	return s.compose(ctx, ch, number, content, attrs)
}

// ComposeAndSendTemplate renders the template to plain text and delivers it
// through the text endpoint. The gateway has no native template messages.
func (s *OutboundService) ComposeAndSendTemplate(ctx context.Context, ch *channel.Channel, number string, tpl Template) (*messaging.Message, error) {
	logrus.Warnf("[OUTBOUND] gateway has no template messages, sending %q as text", tpl.Name)
	return s.compose(ctx, ch, number, tpl.RenderText(), map[string]any{
		"template_params": map[string]any{
			"name":       tpl.Name,
			"parameters": tpl.Parameters,
		},
	})
}

func (s *OutboundService) compose(ctx context.Context, ch *channel.Channel, number, content string, attrs map[string]any) (*messaging.Message, error) {
	contact, err := s.ensureContact(ctx, ch, number)
	if err != nil {
		return nil, fmt.Errorf("ensure contact: %w", err)
	}
	conv, err := s.ensureConversation(ctx, ch, contact)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	msg := &messaging.Message{
		ID:             uuid.NewString(),
		ChannelID:      ch.ID,
		ConversationID: conv.ID,
		Direction:      messaging.DirectionOutgoing,
		Kind:           messaging.KindText,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	// Provisional source id; delivery replaces it with the gateway's.
	msg.SourceID = msg.ID
	for key, value := range attrs {
		msg.SetContentAttribute(key, value)
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store outgoing message: %w", err)
	}

	if err := s.Send(ctx, ch, number, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func (s *OutboundService) ensureContact(ctx context.Context, ch *channel.Channel, number string) (*messaging.Contact, error) {
	phone := "+" + strings.TrimPrefix(number, "+")
	contact, err := s.store.ContactByPhone(ctx, ch.InboxID, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, messaging.ErrNotFound) {
		return nil, err
	}
	contact = &messaging.Contact{
		ID:          uuid.NewString(),
		InboxID:     ch.InboxID,
		PhoneNumber: phone,
		Name:        strings.TrimPrefix(phone, "+"),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *OutboundService) ensureConversation(ctx context.Context, ch *channel.Channel, contact *messaging.Contact) (*messaging.Conversation, error) {
	conv, err := s.store.ConversationFor(ctx, ch.InboxID, contact.ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, messaging.ErrNotFound) {
		return nil, err
	}
	conv = &messaging.Conversation{
		ID:        uuid.NewString(),
		InboxID:   ch.InboxID,
		ContactID: contact.ID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Send delivers one message to number under the channel lock so the gateway
// echo of this very message cannot be ingested as a duplicate mid-send.
func (s *OutboundService) Send(ctx context.Context, ch *channel.Channel, number string, msg *messaging.Message) error {
	return s.guard.WithChannelLock(ctx, ch.ID, func() error {
		return s.deliver(ctx, ch, number, msg)
	})
}

func (s *OutboundService) deliver(ctx context.Context, ch *channel.Channel, number string, msg *messaging.Message) error {
	client, err := s.gateway(ch)
	if err != nil {
		s.markFailed(ctx, msg)
		return fmt.Errorf("gateway client for %s: %w", ch.InstanceName, err)
	}
	replyTo, _ := msg.ContentAttributes["in_reply_to_external_id"].(string)

	var externalID string
	switch {
	case len(msg.Attachments) > 0:
		externalID, err = s.sendAttachment(ctx, client, number, msg, replyTo)
	case msg.Content != "":
		externalID, err = client.SendText(ctx, number, msg.Content, replyTo)
	default:
		msg.SetContentAttribute("is_unsupported", true)
		logrus.Warnf("[OUTBOUND] message %s has nothing deliverable", msg.ID)
		return s.store.UpdateMessage(ctx, msg)
	}

	if err != nil {
		s.markFailed(ctx, msg)
		return fmt.Errorf("deliver message %s: %w", msg.ID, err)
	}
	if externalID == "" {
		s.markFailed(ctx, msg)
		return fmt.Errorf("deliver message %s: gateway returned no id", msg.ID)
	}

	msg.SourceID = externalID
	msg.Status = messaging.StatusSent
	return s.store.UpdateMessage(ctx, msg)
}

// sendAttachment dispatches on the first attachment's kind. Audio is tried
// by public URL first and falls back to inline base64, which some gateway
// versions require for voice notes.
func (s *OutboundService) sendAttachment(ctx context.Context, client GatewayClient, number string, msg *messaging.Message, replyTo string) (string, error) {
	att := &msg.Attachments[0]

	switch att.Kind {
	case messaging.AttachmentImage, messaging.AttachmentVideo:
		return client.SendMedia(ctx, number, string(att.Kind), s.mediaURL(att), msg.Content, att.Filename, replyTo)
	case messaging.AttachmentFile:
		return client.SendMedia(ctx, number, "document", s.mediaURL(att), msg.Content, att.Filename, replyTo)
	case messaging.AttachmentAudio:
		return s.sendAudio(ctx, client, number, att, replyTo)
	default:
		if msg.Content == "" {
			return "", fmt.Errorf("unsendable attachment kind %s", att.Kind)
		}
		return client.SendText(ctx, number, msg.Content, replyTo)
	}
}

func (s *OutboundService) sendAudio(ctx context.Context, client GatewayClient, number string, att *messaging.Attachment, replyTo string) (string, error) {
	if mediaURL := s.mediaURL(att); mediaURL != "" {
		id, err := client.SendAudioURL(ctx, number, mediaURL, replyTo)
		if err == nil && id != "" {
			return id, nil
		}
		if err != nil {
			logrus.WithError(err).Warn("[OUTBOUND] audio url delivery failed, retrying inline")
		}
	}
	if len(att.Data) == 0 {
		return "", fmt.Errorf("audio attachment has no url and no data")
	}
	return client.SendAudioBase64(ctx, number, base64.StdEncoding.EncodeToString(att.Data), replyTo)
}

// mediaURL returns the gateway-fetchable location of an attachment; with
// public media storage the signing query parameters are dropped.
func (s *OutboundService) mediaURL(att *messaging.Attachment) string {
	if att.ExternalURL == "" {
		return ""
	}
	if !s.PublicMediaURLs {
		return att.ExternalURL
	}
	u, err := url.Parse(att.ExternalURL)
	if err != nil {
		return att.ExternalURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (s *OutboundService) markFailed(ctx context.Context, msg *messaging.Message) {
	msg.Status = messaging.StatusFailed
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		logrus.WithError(err).Warnf("[OUTBOUND] failed to mark message %s failed", msg.ID)
	}
}
