package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/event"
	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/evobridge/evobridge/infrastructure/evolution"
	"github.com/evobridge/evobridge/pkg/guard"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const avatarURLAttribute = "whatsapp_profile_pic_url"

// IngestService turns webhook events into messages, contacts, conversations
// and status transitions for one resolved channel.
type IngestService struct {
	store    messaging.Store
	channels channel.Repository
	guard    *guard.Guard
	gateway  GatewayFactory
	notifier Notifier
}

func NewIngestService(store messaging.Store, channels channel.Repository, g *guard.Guard, gateway GatewayFactory, notifier Notifier) *IngestService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &IngestService{
		store:    store,
		channels: channels,
		guard:    g,
		gateway:  gateway,
		notifier: notifier,
	}
}

var eventHandlers = map[event.Type]func(*IngestService, context.Context, *channel.Channel, event.Payload) error{
	event.TypeMessagesUpsert:   (*IngestService).handleMessagesUpsert,
	event.TypeMessagesUpdate:   (*IngestService).handleMessagesUpdate,
	event.TypeContactsUpdate:   (*IngestService).handleContactsUpdate,
	event.TypeQRCodeUpdated:    (*IngestService).handleQRCodeUpdated,
	event.TypeConnectionUpdate: (*IngestService).handleConnectionUpdate,
}

// Process dispatches one webhook event. Unknown event types are a no-op so
// new gateway versions cannot break ingestion.
func (s *IngestService) Process(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	eventType := p.Type()
	if event.ChatEvents[eventType] {
		logrus.Debugf("[INGEST] skipping chat event %s for %s", eventType, ch.InstanceName)
		return nil
	}
	handler, ok := eventHandlers[eventType]
	if !ok {
		logrus.Debugf("[INGEST] no handler for event %s", eventType)
		return nil
	}
	return handler(s, ctx, ch, p)
}

// handleMessagesUpsert ingests a new message. Outgoing messages run under the
// channel lock so a locally sent message wins the race against its own echo.
func (s *IngestService) handleMessagesUpsert(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	data := p.Data()
	if data == nil {
		logrus.Warnf("[INGEST] upsert without data for %s", ch.InstanceName)
		return nil
	}
	raw := evolution.RawMessage(data)

	if raw.Incoming() {
		return s.ingestMessage(ctx, ch, raw)
	}
	return s.guard.WithChannelLock(ctx, ch.ID, func() error {
		return s.ingestMessage(ctx, ch, raw)
	})
}

func (s *IngestService) ingestMessage(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage) error {
	if kind := raw.JIDKind(); kind != evolution.JIDUser {
		logrus.Debugf("[INGEST] dropping %s message on %s", kind, ch.InstanceName)
		return nil
	}
	if raw.Ignorable() {
		return nil
	}

	sourceID := raw.ExternalID()
	if sourceID == "" {
		logrus.Warnf("[INGEST] message without id on %s", ch.InstanceName)
		return nil
	}
	if _, err := s.store.MessageBySourceID(ctx, ch.ID, sourceID); err == nil {
		logrus.Debugf("[INGEST] message %s already ingested", sourceID)
		return nil
	} else if !errors.Is(err, messaging.ErrNotFound) {
		return fmt.Errorf("dedup lookup for %s: %w", sourceID, err)
	}
	if s.guard.MessageInFlight(ctx, sourceID) {
		logrus.Debugf("[INGEST] message %s already in flight", sourceID)
		return nil
	}
	s.guard.MarkMessageInFlight(ctx, sourceID)
	defer s.guard.ClearMessage(ctx, sourceID)

	contact, err := s.ensureContact(ctx, ch, raw)
	if err != nil {
		return fmt.Errorf("ensure contact: %w", err)
	}
	conv, err := s.ensureConversation(ctx, ch, contact)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	direction := messaging.DirectionIncoming
	status := messaging.StatusUnset
	if !raw.Incoming() {
		direction = messaging.DirectionOutgoing
		status = messaging.StatusSent
	}

	msg := &messaging.Message{
		ID:             uuid.NewString(),
		ChannelID:      ch.ID,
		ConversationID: conv.ID,
		SourceID:       sourceID,
		Direction:      direction,
		Kind:           raw.Kind(),
		Content:        raw.Content(),
		Status:         status,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	msg.SetContentAttribute("external_created_at", raw.Timestamp())
	if replyTo := raw.ReplyToID(); replyTo != "" {
		msg.SetContentAttribute("in_reply_to_external_id", replyTo)
	}
	if msg.Kind == messaging.KindReaction {
		msg.SetContentAttribute("is_reaction", true)
		if target := raw.ReactionTargetID(); target != "" {
			msg.SetContentAttribute("in_reply_to_external_id", target)
		}
	}

	switch {
	case msg.Kind == messaging.KindLocation:
		s.attachLocation(raw, msg)
	case msg.Kind == messaging.KindContacts:
		s.attachContactCards(raw, msg)
	case msg.Kind.HasMedia():
		s.attachMedia(ctx, ch, raw, msg)
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, messaging.ErrDuplicateMsg) {
			logrus.Debugf("[INGEST] message %s lost the insert race", sourceID)
			return nil
		}
		return fmt.Errorf("create message %s: %w", sourceID, err)
	}

	logrus.Infof("[INGEST] stored %s %s message %s on %s", msg.Direction, msg.Kind, sourceID, ch.InstanceName)
	return nil
}

// ensureContact finds or creates the contact for the counterparty. A
// placeholder name equal to the phone number is upgraded once a push name
// arrives.
func (s *IngestService) ensureContact(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage) (*messaging.Contact, error) {
	phone := raw.PhoneNumber()
	if phone == "" {
		return nil, fmt.Errorf("message without a routable phone number")
	}
	name := raw.DisplayName()

	contact, err := s.store.ContactByPhone(ctx, ch.InboxID, "+"+phone)
	if errors.Is(err, messaging.ErrNotFound) {
		contact = &messaging.Contact{
			ID:          uuid.NewString(),
			InboxID:     ch.InboxID,
			PhoneNumber: "+" + phone,
			Name:        name,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		if contact.Name == "" {
			contact.Name = phone
		}
		if err := s.store.CreateContact(ctx, contact); err != nil {
			return nil, err
		}
		s.refreshAvatar(ctx, contact, raw.ProfilePicURL())
		return contact, nil
	}
	if err != nil {
		return nil, err
	}

	if name != "" && name != phone && (contact.Name == phone || contact.Name == "+"+phone) {
		contact.Name = name
		if err := s.store.UpdateContact(ctx, contact); err != nil {
			logrus.WithError(err).Warnf("[INGEST] failed to upgrade name for %s", contact.ID)
		}
	}
	s.refreshAvatar(ctx, contact, raw.ProfilePicURL())
	return contact, nil
}

// refreshAvatar stores a newly seen profile picture URL and schedules the
// download. The last fetched URL is cached on the contact so equal URLs do
// not trigger repeated downloads.
func (s *IngestService) refreshAvatar(ctx context.Context, contact *messaging.Contact, url string) {
	if url == "" {
		return
	}
	if contact.AdditionalAttributes[avatarURLAttribute] == url && contact.AvatarURL != "" {
		return
	}
	if contact.AdditionalAttributes == nil {
		contact.AdditionalAttributes = make(map[string]string)
	}
	contact.AdditionalAttributes[avatarURLAttribute] = url
	contact.AvatarURL = url
	if err := s.store.UpdateContact(ctx, contact); err != nil {
		logrus.WithError(err).Warnf("[INGEST] failed to store avatar url for %s", contact.ID)
		return
	}
	s.notifier.AvatarRefresh(ctx, contact, url)
}

func (s *IngestService) ensureConversation(ctx context.Context, ch *channel.Channel, contact *messaging.Contact) (*messaging.Conversation, error) {
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

// handleMessagesUpdate applies status transitions and edits. Items are
// processed independently so one malformed item cannot poison the batch.
func (s *IngestService) handleMessagesUpdate(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	for _, item := range p.DataItems() {
		if err := s.applyMessageUpdate(ctx, ch, evolution.RawMessage(item), p); err != nil {
			logrus.WithError(err).Warnf("[INGEST] update failed on %s", ch.InstanceName)
		}
	}
	return nil
}

func (s *IngestService) applyMessageUpdate(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage, p event.Payload) error {
	sourceID := raw.ExternalID()
	if sourceID == "" {
		return nil
	}
	msg, err := s.store.MessageBySourceID(ctx, ch.ID, sourceID)
	if errors.Is(err, messaging.ErrNotFound) {
		logrus.Debugf("[INGEST] update for unknown message %s", sourceID)
		return nil
	}
	if err != nil {
		return err
	}

	if rawStatus, ok := raw.RawStatus(); ok {
		if err := s.applyStatus(ctx, msg, rawStatus, raw, p); err != nil {
			return err
		}
	}
	if msg.Direction == messaging.DirectionIncoming && raw.HasMessageBody() {
		return s.applyEdit(ctx, msg, raw)
	}
	return nil
}

// applyStatus advances the delivery state machine. Reaching delivered or
// read also makes the contact observably active, whether or not the
// transition itself is allowed.
func (s *IngestService) applyStatus(ctx context.Context, msg *messaging.Message, rawStatus any, raw evolution.RawMessage, p event.Payload) error {
	status := evolution.MapStatus(rawStatus)
	if status == messaging.StatusUnset {
		return nil
	}

	at := s.eventTime(raw, p)
	if status == messaging.StatusRead || status == messaging.StatusDelivered {
		s.touchActivity(ctx, msg, status, at)
	}

	if !msg.Status.CanTransitionTo(status) {
		logrus.Warnf("[INGEST] ignoring %s -> %s for message %s", msg.Status, status, msg.SourceID)
		return nil
	}
	msg.Status = status
	return s.store.UpdateMessage(ctx, msg)
}

// touchActivity records contact presence implied by a read or delivery ack.
func (s *IngestService) touchActivity(ctx context.Context, msg *messaging.Message, status messaging.Status, at time.Time) {
	conv, err := s.store.ConversationByID(ctx, msg.ConversationID)
	if err != nil {
		logrus.WithError(err).Warnf("[INGEST] missing conversation for message %s", msg.SourceID)
		return
	}
	conv.ContactLastSeenAt = &at
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		logrus.WithError(err).Warnf("[INGEST] failed to update last seen for %s", conv.ID)
	}
	s.notifier.StatusChanged(ctx, conv, status, at)

	contact, err := s.store.ContactByID(ctx, conv.ContactID)
	if err != nil {
		return
	}
	contact.LastActivityAt = &at
	if err := s.store.UpdateContact(ctx, contact); err != nil {
		logrus.WithError(err).Warnf("[INGEST] failed to update activity for %s", contact.ID)
	}
}

// eventTime prefers the per-item timestamp, then the envelope date, then now.
func (s *IngestService) eventTime(raw evolution.RawMessage, p event.Payload) time.Time {
	if _, ok := raw["messageTimestamp"]; ok {
		return time.Unix(raw.Timestamp(), 0).UTC()
	}
	if dt := p.DateTime(); dt != "" {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// applyEdit replaces the content of an edited message, keeping the original
// text in the attribute bag.
func (s *IngestService) applyEdit(ctx context.Context, msg *messaging.Message, raw evolution.RawMessage) error {
	content := raw.EditedContent()
	if content == "" || content == msg.Content {
		return nil
	}
	msg.SetContentAttribute("edited", true)
	msg.SetContentAttribute("edit_timestamp", time.Now().UTC().Unix())
	msg.SetContentAttribute("original_content", msg.Content)
	msg.Content = content
	logrus.Infof("[INGEST] applied edit to message %s", msg.SourceID)
	return s.store.UpdateMessage(ctx, msg)
}

// handleContactsUpdate refreshes names and avatars, and doubles as a
// connection-state signal on gateway versions that fold it into this event.
func (s *IngestService) handleContactsUpdate(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	items := p.DataItems()
	for _, item := range items {
		if err := s.updateContactInfo(ctx, ch, evolution.RawMessage(item)); err != nil {
			logrus.WithError(err).Warnf("[INGEST] contact update failed on %s", ch.InstanceName)
		}
	}
	// Contact events only carry connection state on some gateway versions;
	// when absent it means nothing, unlike on connection.update.
	if len(items) > 0 {
		if state, ok := evolution.LookupConnectionState(items[0]); ok {
			s.updateConnection(ctx, ch, state)
		}
	}
	return nil
}

func (s *IngestService) updateContactInfo(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage) error {
	phone := raw.PhoneNumber()
	if phone == "" {
		return nil
	}
	contact, err := s.store.ContactByPhone(ctx, ch.InboxID, "+"+phone)
	if errors.Is(err, messaging.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if name := raw.PushName(); name != "" && name != contact.Name {
		contact.Name = name
		if err := s.store.UpdateContact(ctx, contact); err != nil {
			return err
		}
	}
	s.refreshAvatar(ctx, contact, raw.ProfilePicURL())
	return nil
}

func (s *IngestService) handleQRCodeUpdated(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	encoded := evolution.QRCodeBase64(p.Data())
	if encoded == "" {
		logrus.Warnf("[INGEST] qr event without code for %s", ch.InstanceName)
		return nil
	}
	s.notifier.QRCodeUpdated(ctx, ch, encoded)
	return nil
}

func (s *IngestService) handleConnectionUpdate(ctx context.Context, ch *channel.Channel, p event.Payload) error {
	s.updateConnection(ctx, ch, evolution.ConnectionState(p.Data()))
	return nil
}

func (s *IngestService) updateConnection(ctx context.Context, ch *channel.Channel, state string) {
	next := channel.ConnectionState(state)
	switch next {
	case channel.ConnectionOpen, channel.ConnectionConnecting, channel.ConnectionClose:
	default:
		next = channel.ConnectionClose
	}
	if ch.Connection == next {
		return
	}
	if err := s.channels.UpdateConnectionState(ctx, ch.ID, next); err != nil {
		logrus.WithError(err).Warnf("[INGEST] failed to store connection state for %s", ch.InstanceName)
		return
	}
	ch.Connection = next
	s.notifier.ConnectionUpdated(ctx, ch, next)
}
