package evolution

import (
	"testing"
	"time"

	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsertMessage(body map[string]any) RawMessage {
	return RawMessage{
		"key": map[string]any{
			"id":        "MSGID1",
			"remoteJid": "5511999999999@s.whatsapp.net",
			"fromMe":    false,
		},
		"pushName":         "Maria",
		"messageTimestamp": float64(1700000000),
		"message":          body,
	}
}

func TestExternalIDPrecedence(t *testing.T) {
	raw := RawMessage{
		"keyId":     "FROM_KEYID",
		"messageId": "FROM_MESSAGEID",
		"key":       map[string]any{"id": "FROM_KEY"},
	}
	assert.Equal(t, "FROM_KEYID", raw.ExternalID())

	delete(raw, "keyId")
	assert.Equal(t, "FROM_MESSAGEID", raw.ExternalID())

	delete(raw, "messageId")
	assert.Equal(t, "FROM_KEY", raw.ExternalID())

	delete(raw, "key")
	assert.Equal(t, "", raw.ExternalID())
}

func TestIncomingDirection(t *testing.T) {
	raw := RawMessage{"key": map[string]any{"fromMe": true}}
	assert.False(t, raw.Incoming())

	// Root-level fromMe wins over the key object.
	raw["fromMe"] = false
	assert.True(t, raw.Incoming())

	// Absent everywhere defaults to incoming.
	assert.True(t, RawMessage{}.Incoming())
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want messaging.MessageKind
	}{
		{"conversation", map[string]any{"conversation": "hi"}, messaging.KindText},
		{"extended text", map[string]any{"extendedTextMessage": map[string]any{"text": "hi"}}, messaging.KindText},
		{"image", map[string]any{"imageMessage": map[string]any{"caption": "pic"}}, messaging.KindImage},
		{"audio", map[string]any{"audioMessage": map[string]any{"ptt": true}}, messaging.KindAudio},
		{"video", map[string]any{"videoMessage": map[string]any{}}, messaging.KindVideo},
		{"document", map[string]any{"documentMessage": map[string]any{"fileName": "a.pdf"}}, messaging.KindFile},
		{"sticker", map[string]any{"stickerMessage": map[string]any{}}, messaging.KindSticker},
		{"reaction", map[string]any{"reactionMessage": map[string]any{"text": "👍"}}, messaging.KindReaction},
		{"location", map[string]any{"locationMessage": map[string]any{}}, messaging.KindLocation},
		{"contact", map[string]any{"contactMessage": map[string]any{}}, messaging.KindContacts},
		{"protocol", map[string]any{"protocolMessage": map[string]any{}}, messaging.KindProtocol},
		{"unknown body", map[string]any{"somethingNew": map[string]any{}}, messaging.KindUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, upsertMessage(tc.body).Kind())
		})
	}

	// A message with both an image and a document classifies by priority
	// order, not by map iteration luck.
	both := upsertMessage(map[string]any{
		"documentMessage": map[string]any{"fileName": "a.pdf"},
		"imageMessage":    map[string]any{"caption": "pic"},
	})
	assert.Equal(t, messaging.KindImage, both.Kind())

	// No message body at all still reads as text.
	assert.Equal(t, messaging.KindText, RawMessage{"key": map[string]any{"id": "x"}}.Kind())
}

func TestContentExtraction(t *testing.T) {
	assert.Equal(t, "hello", upsertMessage(map[string]any{"conversation": "hello"}).Content())
	assert.Equal(t, "ext", upsertMessage(map[string]any{
		"extendedTextMessage": map[string]any{"text": "ext"},
	}).Content())
	assert.Equal(t, "caption", upsertMessage(map[string]any{
		"imageMessage": map[string]any{"caption": "caption"},
	}).Content())
	assert.Equal(t, "👍", upsertMessage(map[string]any{
		"reactionMessage": map[string]any{"text": "👍", "key": map[string]any{"id": "T1"}},
	}).Content())
	assert.Equal(t, "", upsertMessage(map[string]any{
		"audioMessage": map[string]any{"ptt": true},
	}).Content())
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, int64(1700000000), NormalizeTimestamp(float64(1700000000), now))
	// Milliseconds are scaled down to seconds.
	assert.Equal(t, int64(1700000000), NormalizeTimestamp(float64(1700000000000), now))
	assert.Equal(t, int64(1700000000), NormalizeTimestamp("1700000000", now))
	assert.Equal(t, int64(1700000000), NormalizeTimestamp(int64(1700000000), now))

	// Garbage and absence both fall back to now, never an error.
	assert.Equal(t, now.Unix(), NormalizeTimestamp("not-a-number", now))
	assert.Equal(t, now.Unix(), NormalizeTimestamp(nil, now))
}

func TestReplyToIDFallbackChain(t *testing.T) {
	shapes := []RawMessage{
		{"context": map[string]any{"id": "R1"}},
		{"quoted": map[string]any{"key": map[string]any{"id": "R1"}}},
		{"quotedMsgId": "R1"},
		{"contextInfo": map[string]any{"stanzaId": "R1"}},
		{"contextInfo": map[string]any{"quotedMessage": map[string]any{"key": map[string]any{"id": "R1"}}}},
		{"message": map[string]any{"extendedTextMessage": map[string]any{"contextInfo": map[string]any{"stanzaId": "R1"}}}},
		{"message": map[string]any{"extendedTextMessage": map[string]any{"contextInfo": map[string]any{"quotedMessage": map[string]any{"key": map[string]any{"id": "R1"}}}}}},
	}
	for i, raw := range shapes {
		assert.Equal(t, "R1", raw.ReplyToID(), "shape %d", i)
	}
	assert.Equal(t, "", RawMessage{}.ReplyToID())
}

func TestIgnorable(t *testing.T) {
	assert.True(t, upsertMessage(map[string]any{"protocolMessage": map[string]any{}}).Ignorable())
	assert.True(t, upsertMessage(map[string]any{"somethingNew": map[string]any{}}).Ignorable())
	// Empty text with no media carries nothing worth storing.
	assert.True(t, upsertMessage(map[string]any{"conversation": ""}).Ignorable())

	assert.False(t, upsertMessage(map[string]any{"conversation": "hi"}).Ignorable())
	// Media messages survive without a caption.
	assert.False(t, upsertMessage(map[string]any{"imageMessage": map[string]any{}}).Ignorable())
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  any
		want messaging.Status
	}{
		{float64(0), messaging.StatusSent},
		{"PENDING", messaging.StatusSent},
		{float64(1), messaging.StatusFailed},
		{"ERROR", messaging.StatusFailed},
		{"FAILED", messaging.StatusFailed},
		{float64(2), messaging.StatusSent},
		{"SERVER_ACK", messaging.StatusSent},
		{"SENT", messaging.StatusSent},
		{float64(3), messaging.StatusDelivered},
		{"DELIVERY_ACK", messaging.StatusDelivered},
		{"delivered", messaging.StatusDelivered},
		{float64(4), messaging.StatusRead},
		{"READ", messaging.StatusRead},
		{float64(5), messaging.StatusRead},
		{"PLAYED", messaging.StatusRead},
		{"SOMETHING_ELSE", messaging.StatusUnset},
		{nil, messaging.StatusUnset},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapStatus(tc.raw), "status %v", tc.raw)
	}
}

func TestFilenameAndExtension(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	image := upsertMessage(map[string]any{
		"imageMessage": map[string]any{"mimetype": "image/jpeg"},
	})
	assert.Equal(t, "image_MSGID1_20240315.jpg", image.Filename(now))

	voice := upsertMessage(map[string]any{
		"audioMessage": map[string]any{"mimetype": "audio/ogg; codecs=opus", "ptt": true},
	})
	assert.Equal(t, "audio_MSGID1_20240315.ogg", voice.Filename(now))
	assert.True(t, voice.IsVoiceNote())

	// A provided document filename wins over the synthesized one.
	doc := upsertMessage(map[string]any{
		"documentMessage": map[string]any{"fileName": "report.pdf", "mimetype": "application/pdf"},
	})
	assert.Equal(t, "report.pdf", doc.Filename(now))
}

func TestContentType(t *testing.T) {
	image := upsertMessage(map[string]any{"imageMessage": map[string]any{"mimetype": "image/png"}})
	assert.Equal(t, "image/png", image.ContentType())

	// Parameters are stripped.
	audio := upsertMessage(map[string]any{"audioMessage": map[string]any{"mimetype": "audio/ogg; codecs=opus"}})
	assert.Equal(t, "audio/ogg", audio.ContentType())

	// Missing mime types fall back per kind.
	bareImage := upsertMessage(map[string]any{"imageMessage": map[string]any{}})
	assert.Equal(t, "image/jpeg", bareImage.ContentType())
}

func TestEditedContent(t *testing.T) {
	edit := RawMessage{
		"key":     map[string]any{"id": "MSGID1"},
		"message": map[string]any{"conversation": "new text"},
	}
	assert.Equal(t, "new text", edit.EditedContent())

	extended := RawMessage{
		"message": map[string]any{"extendedTextMessage": map[string]any{"text": "new ext"}},
	}
	assert.Equal(t, "new ext", extended.EditedContent())

	assert.Equal(t, "", RawMessage{}.EditedContent())
}

func TestContactCards(t *testing.T) {
	vcard := "BEGIN:VCARD\nVERSION:3.0\nFN:Jane Doe\nTEL;type=CELL:+55 11 98888-7777\nEND:VCARD"
	single := upsertMessage(map[string]any{
		"contactMessage": map[string]any{"displayName": "Jane", "vcard": vcard},
	})
	cards := single.ContactCards()
	require.Len(t, cards, 1)
	assert.Equal(t, "Jane", cards[0].DisplayName)
	assert.Equal(t, []string{"+55 11 98888-7777"}, cards[0].Phones)

	// Display name falls back to the vCard FN field.
	anon := upsertMessage(map[string]any{
		"contactMessage": map[string]any{"vcard": vcard},
	})
	cards = anon.ContactCards()
	require.Len(t, cards, 1)
	assert.Equal(t, "Jane Doe", cards[0].DisplayName)
}

func TestDisplayName(t *testing.T) {
	incoming := upsertMessage(map[string]any{"conversation": "hi"})
	assert.Equal(t, "Maria", incoming.DisplayName())

	outgoing := upsertMessage(map[string]any{"conversation": "hi"})
	outgoing["key"].(map[string]any)["fromMe"] = true
	assert.Equal(t, "5511999999999", outgoing.DisplayName())
}
