package usecase

import (
	"context"
	"errors"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/event"
	"github.com/sirupsen/logrus"
)

// ChannelResolver maps an inbound webhook payload to the owning channel. The
// gateway delivers every event to all configured webhooks, so an unresolved
// event is a normal outcome, not an error.
type ChannelResolver struct {
	channels channel.Repository
}

func NewChannelResolver(channels channel.Repository) *ChannelResolver {
	return &ChannelResolver{channels: channels}
}

// Resolve tries each lookup strategy in order until one matches, then rejects
// channels that require reauthorization or belong to inactive accounts.
func (r *ChannelResolver) Resolve(ctx context.Context, p event.Payload) (*channel.Channel, error) {
	strategies := []func(context.Context, event.Payload) (*channel.Channel, error){
		r.fromBusinessPayload,
		r.fromPhoneNumberID,
		r.fromInstance,
		r.fromPhoneNumber,
	}

	for _, strategy := range strategies {
		ch, err := strategy(ctx, p)
		if err != nil && !errors.Is(err, channel.ErrChannelNotFound) {
			return nil, err
		}
		if ch == nil {
			continue
		}
		if ch.Inactive() {
			logrus.Warnf("[RESOLVER] inactive channel %s, dropping event", ch.PhoneNumber)
			return nil, channel.ErrChannelNotFound
		}
		return ch, nil
	}

	logrus.Infof("[RESOLVER] no channel found for event=%s instance=%s", p.Type(), p.Instance())
	return nil, channel.ErrChannelNotFound
}

// fromBusinessPayload handles the business-account envelope: find by display
// phone number and verify the stored phone-number-id matches; on mismatch
// fall back to a lookup by phone-number-id alone.
func (r *ChannelResolver) fromBusinessPayload(ctx context.Context, p event.Payload) (*channel.Channel, error) {
	if p.String("object") != "whatsapp_business_account" {
		return nil, nil
	}

	metadata := businessMetadata(p)
	if metadata == nil {
		return nil, nil
	}
	phoneNumber := "+" + stringAt(metadata, "display_phone_number")
	phoneNumberID := stringAt(metadata, "phone_number_id")

	if ch, err := r.channels.ByPhoneNumber(ctx, phoneNumber); err == nil {
		if ch.PhoneNumberID == phoneNumberID {
			return ch, nil
		}
	}
	if phoneNumberID == "" {
		return nil, nil
	}
	return r.channels.ByPhoneNumberID(ctx, phoneNumberID)
}

// phoneNumberIDExtractors covers the three payload shapes that may carry a
// phone-number-id, tried in order.
var phoneNumberIDExtractors = []func(p event.Payload) string{
	func(p event.Payload) string {
		return stringAt(businessMetadata(p), "phone_number_id")
	},
	func(p event.Payload) string {
		metadata, _ := p["metadata"].(map[string]any)
		return stringAt(metadata, "phone_number_id")
	},
	func(p event.Payload) string {
		messages, _ := p["messages"].([]any)
		if len(messages) == 0 {
			return ""
		}
		first, _ := messages[0].(map[string]any)
		metadata, _ := first["metadata"].(map[string]any)
		return stringAt(metadata, "phone_number_id")
	},
}

func (r *ChannelResolver) fromPhoneNumberID(ctx context.Context, p event.Payload) (*channel.Channel, error) {
	for _, extract := range phoneNumberIDExtractors {
		if id := extract(p); id != "" {
			return r.channels.ByPhoneNumberID(ctx, id)
		}
	}
	return nil, nil
}

// fromInstance resolves gateway events by (instance name, server url) first,
// then by instance name alone to tolerate server URL drift after redeploys.
func (r *ChannelResolver) fromInstance(ctx context.Context, p event.Payload) (*channel.Channel, error) {
	instance := p.Instance()
	if instance == "" || p.String("event") == "" {
		return nil, nil
	}

	if serverURL := p.ServerURL(); serverURL != "" {
		if ch, err := r.channels.ByInstance(ctx, instance, serverURL); err == nil {
			return ch, nil
		}
	}
	return r.channels.ByInstance(ctx, instance, "")
}

func (r *ChannelResolver) fromPhoneNumber(ctx context.Context, p event.Payload) (*channel.Channel, error) {
	phoneNumber := p.String("phone_number")
	if phoneNumber == "" {
		return nil, nil
	}
	return r.channels.ByPhoneNumber(ctx, phoneNumber)
}

func businessMetadata(p event.Payload) map[string]any {
	entries, _ := p["entry"].([]any)
	if len(entries) == 0 {
		return nil
	}
	entry, _ := entries[0].(map[string]any)
	changes, _ := entry["changes"].([]any)
	if len(changes) == 0 {
		return nil
	}
	change, _ := changes[0].(map[string]any)
	value, _ := change["value"].(map[string]any)
	metadata, _ := value["metadata"].(map[string]any)
	return metadata
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
