package evolution

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/evobridge/evobridge/domains/messaging"
	"github.com/sirupsen/logrus"
)

// RawMessage is one message-level object from a gateway event (the data
// object of messages.upsert, or a single item of messages.update). Accessors
// tolerate every missing-key combination the gateway is known to produce.
type RawMessage map[string]any

func (r RawMessage) messageBody() map[string]any {
	return digMap(r, "message")
}

// ExternalID resolves the provider message id: the gateway sometimes sends
// both keyId and messageId, and the message is stored under the key id.
func (r RawMessage) ExternalID() string {
	if id := digString(r, "keyId"); id != "" {
		return id
	}
	if id := digString(r, "messageId"); id != "" {
		return id
	}
	return digString(r, "key", "id")
}

// Incoming resolves message direction. An undetermined direction defaults to
// incoming so the message is never dropped.
func (r RawMessage) Incoming() bool {
	if fromMe, ok := digBool(r, "fromMe"); ok {
		return !fromMe
	}
	if fromMe, ok := digBool(r, "key", "fromMe"); ok {
		return !fromMe
	}
	logrus.Warn("[EVOLUTION] unable to determine message direction, assuming incoming")
	return true
}

// kindRules is the classification priority list. Payloads may carry several
// sub-keys at once; the first match wins and drives content and media
// extraction. Order is a hard contract.
var kindRules = []struct {
	kind  messaging.MessageKind
	match func(msg map[string]any) bool
}{
	{messaging.KindText, func(m map[string]any) bool {
		return hasKey(m, "conversation") || digString(m, "extendedTextMessage", "text") != ""
	}},
	{messaging.KindImage, func(m map[string]any) bool { return hasKey(m, "imageMessage") }},
	{messaging.KindAudio, func(m map[string]any) bool { return hasKey(m, "audioMessage") }},
	{messaging.KindVideo, func(m map[string]any) bool { return hasKey(m, "videoMessage") }},
	{messaging.KindFile, func(m map[string]any) bool {
		return hasKey(m, "documentMessage") || hasKey(m, "documentWithCaptionMessage")
	}},
	{messaging.KindSticker, func(m map[string]any) bool { return hasKey(m, "stickerMessage") }},
	{messaging.KindReaction, func(m map[string]any) bool { return hasKey(m, "reactionMessage") }},
	{messaging.KindLocation, func(m map[string]any) bool {
		return hasKey(m, "locationMessage") || hasKey(m, "liveLocationMessage")
	}},
	{messaging.KindContacts, func(m map[string]any) bool {
		return hasKey(m, "contactMessage") || hasKey(m, "contactsArrayMessage")
	}},
	{messaging.KindProtocol, func(m map[string]any) bool { return hasKey(m, "protocolMessage") }},
}

// Kind classifies the message body. A missing body classifies as text, which
// matches update events that only carry status.
func (r RawMessage) Kind() messaging.MessageKind {
	msg := r.messageBody()
	if msg == nil {
		return messaging.KindText
	}
	for _, rule := range kindRules {
		if rule.match(msg) {
			return rule.kind
		}
	}
	return messaging.KindUnsupported
}

// Content extracts the textual content for the classified kind.
func (r RawMessage) Content() string {
	msg := r.messageBody()
	switch r.Kind() {
	case messaging.KindText:
		if c := digString(msg, "conversation"); c != "" {
			return c
		}
		return digString(msg, "extendedTextMessage", "text")
	case messaging.KindImage:
		return digString(msg, "imageMessage", "caption")
	case messaging.KindVideo:
		return digString(msg, "videoMessage", "caption")
	case messaging.KindFile:
		if c := digString(msg, "documentMessage", "caption"); c != "" {
			return c
		}
		return digString(msg, "documentWithCaptionMessage", "message", "documentMessage", "caption")
	case messaging.KindReaction:
		return digString(msg, "reactionMessage", "text")
	case messaging.KindContacts:
		return r.contactsContent()
	}
	// Location renders from the attachment, no textual content.
	return ""
}

func (r RawMessage) contactsContent() string {
	cards := r.ContactCards()
	if len(cards) == 0 {
		return "Contact"
	}
	card := cards[0]
	name := card.DisplayName
	if name == "" {
		name = "Contact"
	}
	if len(card.Phones) == 0 {
		return name
	}
	return name + "\n" + strings.Join(card.Phones, "\n")
}

// MimeType returns the provider-reported mimetype for media kinds.
func (r RawMessage) MimeType() string {
	msg := r.messageBody()
	switch r.Kind() {
	case messaging.KindImage:
		return digString(msg, "imageMessage", "mimetype")
	case messaging.KindSticker:
		return digString(msg, "stickerMessage", "mimetype")
	case messaging.KindVideo:
		return digString(msg, "videoMessage", "mimetype")
	case messaging.KindAudio:
		return digString(msg, "audioMessage", "mimetype")
	case messaging.KindFile:
		if mt := digString(msg, "documentMessage", "mimetype"); mt != "" {
			return mt
		}
		return digString(msg, "documentWithCaptionMessage", "message", "documentMessage", "mimetype")
	}
	return ""
}

// NormalizeTimestamp converts a gateway timestamp (seconds or milliseconds,
// numeric or string) to unix seconds. Values above 10^12 are treated as
// milliseconds. Extraction never fails: anything unparseable becomes now.
func NormalizeTimestamp(v any, now time.Time) int64 {
	var ts int64
	switch t := v.(type) {
	case float64:
		ts = int64(t)
	case int64:
		ts = t
	case int:
		ts = int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return now.Unix()
		}
		ts = n
	default:
		return now.Unix()
	}
	if ts > 1_000_000_000_000 {
		ts /= 1000
	}
	return ts
}

// Timestamp returns the message timestamp in unix seconds.
func (r RawMessage) Timestamp() int64 {
	return NormalizeTimestamp(r["messageTimestamp"], time.Now())
}

// RemoteJID resolves the counterparty JID; update events carry it at the
// root, upsert events inside the key object.
func (r RawMessage) RemoteJID() string {
	if jid := digString(r, "remoteJid"); jid != "" {
		return jid
	}
	return digString(r, "key", "remoteJid")
}

// PhoneNumber is the routable number extracted from the remote JID.
func (r RawMessage) PhoneNumber() string {
	number, _ := ParseJID(r.RemoteJID())
	return number
}

// JIDKind classifies the counterparty; empty JIDs are unknown.
func (r RawMessage) JIDKind() JIDKind {
	jid := r.RemoteJID()
	if jid == "" {
		return JIDUnknown
	}
	_, kind := ParseJID(jid)
	return kind
}

// DisplayName is the gateway push name for incoming messages, the phone
// number otherwise.
func (r RawMessage) DisplayName() string {
	if name := digString(r, "pushName"); name != "" && r.Incoming() {
		return name
	}
	return r.PhoneNumber()
}

func (r RawMessage) ProfilePicURL() string {
	return digString(r, "profilePicUrl")
}

// replyToExtractors is the ordered fallback chain over the reply-encoding
// shapes different gateway versions emit. First non-empty result wins.
var replyToExtractors = []func(m map[string]any) string{
	func(m map[string]any) string { return digString(m, "context", "id") },
	func(m map[string]any) string { return digString(m, "quoted", "key", "id") },
	func(m map[string]any) string { return digString(m, "quotedMsgId") },
	func(m map[string]any) string { return digString(m, "contextInfo", "stanzaId") },
	func(m map[string]any) string { return digString(m, "contextInfo", "quotedMessage", "key", "id") },
	func(m map[string]any) string {
		return digString(m, "message", "extendedTextMessage", "contextInfo", "stanzaId")
	},
	func(m map[string]any) string {
		return digString(m, "message", "extendedTextMessage", "contextInfo", "quotedMessage", "key", "id")
	},
}

// ReplyToID extracts the quoted message id, if any shape signals one.
func (r RawMessage) ReplyToID() string {
	for _, extract := range replyToExtractors {
		if id := extract(r); id != "" {
			return id
		}
	}
	return ""
}

// ReactionTargetID is the id of the message a reaction refers to.
func (r RawMessage) ReactionTargetID() string {
	return digString(r.messageBody(), "reactionMessage", "key", "id")
}

// Base64Media returns the inline-encoded media payload, if present.
func (r RawMessage) Base64Media() string {
	return digString(r.messageBody(), "base64")
}

// MediaURL returns the remote media location, if present.
func (r RawMessage) MediaURL() string {
	return digString(r.messageBody(), "mediaUrl")
}

// IsVoiceNote reports the push-to-talk flag on audio messages.
func (r RawMessage) IsVoiceNote() bool {
	ptt, _ := digBool(r.messageBody(), "audioMessage", "ptt")
	return ptt
}

// Ignorable reports whether the message is noise: unsupported kinds, or no
// content and no media.
func (r RawMessage) Ignorable() bool {
	kind := r.Kind()
	if kind == messaging.KindProtocol || kind == messaging.KindUnsupported {
		return true
	}
	return r.Content() == "" && !kind.HasMedia()
}

// AttachmentKind maps the message kind to the stored file kind. Stickers are
// stored as images.
func (r RawMessage) AttachmentKind() messaging.AttachmentKind {
	switch r.Kind() {
	case messaging.KindImage, messaging.KindSticker:
		return messaging.AttachmentImage
	case messaging.KindVideo:
		return messaging.AttachmentVideo
	case messaging.KindAudio:
		return messaging.AttachmentAudio
	case messaging.KindLocation:
		return messaging.AttachmentLocation
	case messaging.KindContacts:
		return messaging.AttachmentContact
	default:
		return messaging.AttachmentFile
	}
}

// ProvidedFilename returns the document filename the gateway supplied.
func (r RawMessage) ProvidedFilename() string {
	msg := r.messageBody()
	if name := digString(msg, "documentMessage", "fileName"); name != "" {
		return name
	}
	return digString(msg, "documentWithCaptionMessage", "message", "documentMessage", "fileName")
}

// Filename prefers the provider filename and otherwise synthesizes
// <kind>_<externalId>_<date> with an inferred extension.
func (r RawMessage) Filename(now time.Time) string {
	if name := r.ProvidedFilename(); name != "" {
		if strings.Contains(name, ".") {
			return name
		}
		return name + r.FileExtension()
	}
	return fmt.Sprintf("%s_%s_%s%s", r.AttachmentKind(), r.ExternalID(), now.Format("20060102"), r.FileExtension())
}

// extension tables, keyed by mimetype substring per kind
var (
	imageExts = []struct{ match, ext string }{
		{"jpeg", ".jpg"}, {"png", ".png"}, {"gif", ".gif"}, {"webp", ".webp"},
	}
	videoExts = []struct{ match, ext string }{
		{"mp4", ".mp4"}, {"webm", ".webm"}, {"avi", ".avi"},
	}
	audioExts = []struct{ match, ext string }{
		{"mp3", ".mp3"}, {"wav", ".wav"}, {"ogg", ".ogg"}, {"aac", ".aac"}, {"opus", ".opus"},
	}
	fileExts = []struct{ match, ext string }{
		{"pdf", ".pdf"}, {"doc", ".doc"}, {"zip", ".zip"},
	}
)

func extFromTable(mime string, table []struct{ match, ext string }, fallback string) string {
	for _, e := range table {
		if strings.Contains(mime, e.match) {
			return e.ext
		}
	}
	return fallback
}

// FileExtension derives an extension from the mimetype per kind, with a
// default extension per kind when the mimetype is unrecognized.
func (r RawMessage) FileExtension() string {
	mime := r.MimeType()
	switch r.Kind() {
	case messaging.KindImage:
		return extFromTable(mime, imageExts, ".jpg")
	case messaging.KindVideo:
		return extFromTable(mime, videoExts, ".mp4")
	case messaging.KindAudio:
		return extFromTable(mime, audioExts, ".mp3")
	case messaging.KindFile:
		if name := r.ProvidedFilename(); name != "" {
			if i := strings.LastIndex(name, "."); i >= 0 {
				return name[i:]
			}
		}
		return extFromTable(mime, fileExts, ".bin")
	case messaging.KindSticker:
		return ".webp"
	default:
		return ".bin"
	}
}

// ContentType returns the provider mimetype or a fixed default per kind.
func (r RawMessage) ContentType() string {
	if mime := r.MimeType(); mime != "" {
		return strings.TrimSpace(strings.Split(mime, ";")[0])
	}
	switch r.Kind() {
	case messaging.KindImage:
		return "image/jpeg"
	case messaging.KindVideo:
		return "video/mp4"
	case messaging.KindAudio:
		return "audio/mpeg"
	case messaging.KindSticker:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Location returns the location body for location kinds.
func (r RawMessage) Location() map[string]any {
	msg := r.messageBody()
	if loc := digMap(msg, "locationMessage"); loc != nil {
		return loc
	}
	return digMap(msg, "liveLocationMessage")
}

// ContactCard is one shared contact from a contact or contacts-array message.
type ContactCard struct {
	DisplayName string
	VCard       string
	Phones      []string
}

var (
	vcardFN  = regexp.MustCompile(`(?i)FN:(.+)`)
	vcardTEL = regexp.MustCompile(`(?i)TEL[^:]*:([^\n]+)`)
)

// ContactCards extracts shared contacts, falling back to vCard FN/TEL fields
// when structured fields are absent.
func (r RawMessage) ContactCards() []ContactCard {
	msg := r.messageBody()

	var raw []map[string]any
	if c := digMap(msg, "contactMessage"); c != nil {
		raw = append(raw, c)
	} else {
		for _, el := range digSlice(msg, "contactsArrayMessage", "contacts") {
			if m, ok := el.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	}

	cards := make([]ContactCard, 0, len(raw))
	for _, c := range raw {
		card := ContactCard{
			DisplayName: digString(c, "displayName"),
			VCard:       digString(c, "vcard"),
		}
		if card.DisplayName == "" && card.VCard != "" {
			if m := vcardFN.FindStringSubmatch(card.VCard); m != nil {
				card.DisplayName = strings.TrimSpace(m[1])
			}
		}
		for _, m := range vcardTEL.FindAllStringSubmatch(card.VCard, -1) {
			if phone := strings.TrimSpace(m[1]); phone != "" {
				card.Phones = append(card.Phones, phone)
			}
		}
		cards = append(cards, card)
	}
	return cards
}

// EditedContent extracts replacement text from an update that carries a new
// message body, using the same fallback chain as initial content extraction.
func (r RawMessage) EditedContent() string {
	msg := r.messageBody()
	if msg == nil {
		return ""
	}
	for _, path := range [][]string{
		{"conversation"},
		{"extendedTextMessage", "text"},
		{"imageMessage", "caption"},
		{"videoMessage", "caption"},
		{"documentMessage", "caption"},
	} {
		if c := digString(msg, path...); c != "" {
			return c
		}
	}
	return ""
}

// MapStatus translates a provider status code (numeric or symbolic,
// case-insensitive) to the internal delivery status. Unknown codes map to
// StatusUnset and are dropped by the caller. PLAYED has no distinct internal
// state and maps to read.
func MapStatus(raw any) messaging.Status {
	var code string
	switch v := raw.(type) {
	case float64:
		code = strconv.Itoa(int(v))
	case int:
		code = strconv.Itoa(v)
	case string:
		code = strings.ToUpper(strings.TrimSpace(v))
	default:
		return messaging.StatusUnset
	}

	switch code {
	case "0", "PENDING":
		return messaging.StatusSent
	case "1", "ERROR", "FAILED":
		return messaging.StatusFailed
	case "2", "SERVER_ACK", "SENT":
		return messaging.StatusSent
	case "3", "DELIVERY_ACK", "DELIVERED":
		return messaging.StatusDelivered
	case "4", "READ":
		return messaging.StatusRead
	case "5", "PLAYED":
		return messaging.StatusRead
	default:
		logrus.Warnf("[EVOLUTION] unknown message status: %s", code)
		return messaging.StatusUnset
	}
}
