package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/evobridge/evobridge/pkg/guard"
	"github.com/evobridge/evobridge/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboundFixture struct {
	service *OutboundService
	store   *repository.MemoryMessagingStore
	channel *channel.Channel
	gateway *fakeGateway
}

func newOutboundFixture(t *testing.T) *outboundFixture {
	t.Helper()

	store := repository.NewMemoryMessagingStore()
	gateway := &fakeGateway{}
	factory := func(*channel.Channel) (GatewayClient, error) { return gateway, nil }

	return &outboundFixture{
		service: NewOutboundService(store, guard.New(guard.NewMemoryStore()), factory),
		store:   store,
		channel: &channel.Channel{
			ID:            "ch1",
			InboxID:       "inbox1",
			Provider:      channel.ProviderEvolution,
			InstanceName:  "main",
			AccountActive: true,
		},
		gateway: gateway,
	}
}

func TestComposeAndSend(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.textID = "GW-ID-1"
	ctx := context.Background()

	msg, err := f.service.ComposeAndSend(ctx, f.channel, "5511999999999", "hello there", "")
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, "GW-ID-1", msg.SourceID)
	assert.Equal(t, messaging.StatusSent, msg.Status)
	assert.Equal(t, messaging.DirectionOutgoing, msg.Direction)
	assert.Equal(t, "5511999999999", f.gateway.lastNumber)

	// The stored copy carries the gateway id, not the provisional one.
	stored, err := f.store.MessageBySourceID(ctx, "ch1", "GW-ID-1")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, stored.ID)
	_, err = f.store.MessageBySourceID(ctx, "ch1", msg.ID)
	assert.ErrorIs(t, err, messaging.ErrNotFound)

	contact, err := f.store.ContactByPhone(ctx, "inbox1", "+5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", contact.Name)
}

func TestComposeAndSendReply(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.textID = "GW-ID-2"

	msg, err := f.service.ComposeAndSend(context.Background(), f.channel, "+5511999999999", "replying", "ORIG1")
	require.NoError(t, err)
	assert.Equal(t, "ORIG1", msg.ContentAttributes["in_reply_to_external_id"])
	assert.Equal(t, "ORIG1", f.gateway.lastReplyTo)
}

func TestTemplateRenderText(t *testing.T) {
	tests := []struct {
		name     string
		template Template
		want     string
	}{
		{
			name:     "positional parameters",
			template: Template{Name: "Order {{1}} ships on {{2}}", Parameters: []string{"#42", "Monday"}},
			want:     "Order #42 ships on Monday",
		},
		{
			name:     "no parameters",
			template: Template{Name: "Welcome aboard"},
			want:     "Welcome aboard",
		},
		{
			name:     "empty name falls back",
			template: Template{Parameters: []string{"unused"}},
			want:     "Template Message",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.template.RenderText())
		})
	}
}

func TestComposeAndSendTemplate(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.textID = "GW-TPL-1"
	ctx := context.Background()

	msg, err := f.service.ComposeAndSendTemplate(ctx, f.channel, "5511999999999", Template{
		Name:       "Hello {{1}}",
		Parameters: []string{"Maria"},
	})
	require.NoError(t, err)

	// Rendered text goes through the plain text endpoint.
	assert.Equal(t, 1, f.gateway.textCalls)
	assert.Equal(t, "Hello Maria", msg.Content)
	assert.Equal(t, "GW-TPL-1", msg.SourceID)
	assert.Equal(t, messaging.StatusSent, msg.Status)

	stored, err := f.store.MessageBySourceID(ctx, "ch1", "GW-TPL-1")
	require.NoError(t, err)
	params, _ := stored.ContentAttributes["template_params"].(map[string]any)
	require.NotNil(t, params)
	assert.Equal(t, "Hello {{1}}", params["name"])
}

func TestComposeAndSendGatewayError(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.textErr = errors.New("instance disconnected")
	ctx := context.Background()

	msg, err := f.service.ComposeAndSend(ctx, f.channel, "5511999999999", "hello", "")
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, messaging.StatusFailed, msg.Status)

	// The failure is persisted so the message is not silently lost.
	stored, err := f.store.MessageBySourceID(ctx, "ch1", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusFailed, stored.Status)
}

func TestComposeAndSendEmptyGatewayID(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.textID = ""

	msg, err := f.service.ComposeAndSend(context.Background(), f.channel, "5511999999999", "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway returned no id")
	assert.Equal(t, messaging.StatusFailed, msg.Status)
}

func TestSendWithoutContentOrAttachment(t *testing.T) {
	f := newOutboundFixture(t)
	ctx := context.Background()

	msg := &messaging.Message{
		ID:        "m1",
		SourceID:  "m1",
		ChannelID: "ch1",
		Direction: messaging.DirectionOutgoing,
		Kind:      messaging.KindText,
	}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	require.NoError(t, f.service.Send(ctx, f.channel, "5511999999999", msg))
	assert.Equal(t, true, msg.ContentAttributes["is_unsupported"])
	assert.Equal(t, 0, f.gateway.textCalls)
	assert.Equal(t, 0, f.gateway.mediaCalls)
}

func TestSendFileAsDocument(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.mediaID = "GW-DOC-1"
	ctx := context.Background()

	msg := &messaging.Message{
		ID:        "m1",
		SourceID:  "m1",
		ChannelID: "ch1",
		Direction: messaging.DirectionOutgoing,
		Kind:      messaging.KindFile,
		Attachments: []messaging.Attachment{{
			ID:          "a1",
			Kind:        messaging.AttachmentFile,
			ExternalURL: "https://files.local/report.pdf",
			Filename:    "report.pdf",
		}},
	}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	require.NoError(t, f.service.Send(ctx, f.channel, "5511999999999", msg))
	assert.Equal(t, "document", f.gateway.lastMediaType)
	assert.Equal(t, "https://files.local/report.pdf", f.gateway.lastMediaURL)
	assert.Equal(t, "GW-DOC-1", msg.SourceID)
}

func TestSendAudioFallsBackToInline(t *testing.T) {
	f := newOutboundFixture(t)
	f.gateway.audioURLErr = errors.New("url fetch rejected")
	f.gateway.audioB64ID = "GW-AUDIO-1"
	ctx := context.Background()

	raw := []byte("voice-note-bytes")
	msg := &messaging.Message{
		ID:        "m1",
		SourceID:  "m1",
		ChannelID: "ch1",
		Direction: messaging.DirectionOutgoing,
		Kind:      messaging.KindAudio,
		Attachments: []messaging.Attachment{{
			ID:          "a1",
			Kind:        messaging.AttachmentAudio,
			ExternalURL: "https://files.local/note.ogg",
			Data:        raw,
		}},
	}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	require.NoError(t, f.service.Send(ctx, f.channel, "5511999999999", msg))
	assert.Equal(t, 1, f.gateway.audioURLCalls)
	assert.Equal(t, 1, f.gateway.audioB64Calls)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), f.gateway.lastAudioData)
	assert.Equal(t, "GW-AUDIO-1", msg.SourceID)
}

func TestSendAudioWithoutURLOrData(t *testing.T) {
	f := newOutboundFixture(t)
	ctx := context.Background()

	msg := &messaging.Message{
		ID:        "m1",
		SourceID:  "m1",
		ChannelID: "ch1",
		Direction: messaging.DirectionOutgoing,
		Kind:      messaging.KindAudio,
		Attachments: []messaging.Attachment{{
			ID:   "a1",
			Kind: messaging.AttachmentAudio,
		}},
	}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	err := f.service.Send(ctx, f.channel, "5511999999999", msg)
	require.Error(t, err)
	assert.Equal(t, messaging.StatusFailed, msg.Status)
	assert.Equal(t, 0, f.gateway.audioURLCalls)
}

func TestSendStripsSignedQueryWithPublicMedia(t *testing.T) {
	f := newOutboundFixture(t)
	f.service.PublicMediaURLs = true
	f.gateway.mediaID = "GW-IMG-1"
	ctx := context.Background()

	msg := &messaging.Message{
		ID:        "m1",
		SourceID:  "m1",
		ChannelID: "ch1",
		Direction: messaging.DirectionOutgoing,
		Kind:      messaging.KindImage,
		Attachments: []messaging.Attachment{{
			ID:          "a1",
			Kind:        messaging.AttachmentImage,
			ExternalURL: "https://files.local/pic.jpg?X-Amz-Signature=abc#frag",
		}},
	}
	require.NoError(t, f.store.CreateMessage(ctx, msg))

	require.NoError(t, f.service.Send(ctx, f.channel, "5511999999999", msg))
	assert.Equal(t, "https://files.local/pic.jpg", f.gateway.lastMediaURL)
	assert.Equal(t, "image", f.gateway.lastMediaType)
}
