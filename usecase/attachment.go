package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/evobridge/evobridge/infrastructure/evolution"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var dataURIPrefix = regexp.MustCompile(`^data:[^;]*;base64,`)

// attachMedia resolves the media bytes and appends the attachment. A failed
// fetch degrades the message to unsupported instead of dropping it.
func (s *IngestService) attachMedia(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage, msg *messaging.Message) {
	data, err := s.fetchMedia(ctx, ch, raw)
	if err != nil {
		logrus.WithError(err).Warnf("[INGEST] media fetch failed for %s", msg.SourceID)
	}
	if len(data) == 0 {
		msg.SetContentAttribute("is_unsupported", true)
		return
	}

	att := messaging.Attachment{
		ID:          uuid.NewString(),
		Kind:        raw.AttachmentKind(),
		Data:        data,
		ContentType: raw.ContentType(),
		Filename:    raw.Filename(time.Now()),
	}
	if raw.Kind() == messaging.KindAudio && raw.IsVoiceNote() {
		att.Meta = map[string]any{"is_recorded_audio": true}
	}
	msg.Attachments = append(msg.Attachments, att)

	logrus.Debugf("[INGEST] attached %s %s (%s)", att.Kind, att.Filename, humanize.Bytes(uint64(len(data))))
}

// fetchMedia prefers inline base64 and falls back to downloading from the
// gateway media URL with the channel's credentials.
func (s *IngestService) fetchMedia(ctx context.Context, ch *channel.Channel, raw evolution.RawMessage) ([]byte, error) {
	if encoded := raw.Base64Media(); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(dataURIPrefix.ReplaceAllString(encoded, ""))
		if err != nil {
			return nil, fmt.Errorf("decode inline media: %w", err)
		}
		return data, nil
	}

	mediaURL := raw.MediaURL()
	if mediaURL == "" {
		return nil, nil
	}
	client, err := s.gateway(ch)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	data, err := client.DownloadMedia(ctx, mediaURL)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return data, nil
}

// attachLocation stores the coordinates both as a structured attribute and
// as an attachment with a human-readable fallback title.
func (s *IngestService) attachLocation(raw evolution.RawMessage, msg *messaging.Message) {
	loc := raw.Location()
	if loc == nil {
		return
	}
	lat, _ := loc["degreesLatitude"].(float64)
	long, _ := loc["degreesLongitude"].(float64)
	name, _ := loc["name"].(string)
	address, _ := loc["address"].(string)
	locURL, _ := loc["url"].(string)

	msg.SetContentAttribute("location", map[string]any{
		"latitude":  lat,
		"longitude": long,
		"name":      name,
		"address":   address,
	})

	title := name
	if address != "" {
		if title != "" {
			title += ", "
		}
		title += address
	}
	msg.Attachments = append(msg.Attachments, messaging.Attachment{
		ID:            uuid.NewString(),
		Kind:          messaging.AttachmentLocation,
		CoordsLat:     lat,
		CoordsLong:    long,
		FallbackTitle: title,
		ExternalURL:   locURL,
	})
}

// attachContactCards stores shared contacts, one attachment per phone number
// so each can become its own contact downstream.
func (s *IngestService) attachContactCards(raw evolution.RawMessage, msg *messaging.Message) {
	cards := raw.ContactCards()
	if len(cards) == 0 {
		return
	}

	shared := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		shared = append(shared, map[string]any{
			"display_name": card.DisplayName,
			"vcard":        card.VCard,
		})
		phones := card.Phones
		if len(phones) == 0 {
			phones = []string{"Phone number is not available"}
		}
		for _, phone := range phones {
			msg.Attachments = append(msg.Attachments, messaging.Attachment{
				ID:            uuid.NewString(),
				Kind:          messaging.AttachmentContact,
				FallbackTitle: phone,
				Meta:          map[string]any{"display_name": card.DisplayName},
			})
		}
	}
	msg.SetContentAttribute("contacts", shared)
}
