package evolution

// PushName is the display name the gateway attaches to message and contact
// events.
func (r RawMessage) PushName() string {
	return digString(r, "pushName")
}

// RawStatus returns the uninterpreted status field and whether it is present.
func (r RawMessage) RawStatus() (any, bool) {
	v, ok := r["status"]
	return v, ok
}

// HasMessageBody reports whether the event carries a message object, which on
// update events signals an edit.
func (r RawMessage) HasMessageBody() bool {
	return digMap(r, "message") != nil
}

// connectionStateKeys are the field names different gateway versions use for
// the connection state, tried in order.
var connectionStateKeys = []string{"state", "connection_status", "connectionStatus", "status"}

// LookupConnectionState extracts the socket state from an event payload and
// reports whether any state key was present at all.
func LookupConnectionState(data map[string]any) (string, bool) {
	for _, key := range connectionStateKeys {
		if s := digString(data, key); s != "" {
			return s, true
		}
	}
	return "", false
}

// ConnectionState extracts the socket state from a connection event. Absent
// state reads as closed.
func ConnectionState(data map[string]any) string {
	if s, ok := LookupConnectionState(data); ok {
		return s
	}
	return "close"
}

// QRCodeBase64 extracts the encoded QR image from a qrcode event.
func QRCodeBase64(data map[string]any) string {
	if qr := digString(data, "qrcode", "base64"); qr != "" {
		return qr
	}
	return digString(data, "base64")
}
