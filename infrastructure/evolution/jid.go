package evolution

import "strings"

// JIDKind classifies the conversation participant behind a JID. Only user
// JIDs are ingested as messages.
type JIDKind string

const (
	JIDUser       JIDKind = "user"
	JIDGroup      JIDKind = "group"
	JIDLid        JIDKind = "lid"
	JIDBroadcast  JIDKind = "broadcast"
	JIDStatus     JIDKind = "status"
	JIDNewsletter JIDKind = "newsletter"
	JIDCall       JIDKind = "call"
	JIDUnknown    JIDKind = "unknown"
)

// ParseJID splits a gateway identifier of the form
// <number>[:suffix][_suffix]@<domain> into the routable phone number and the
// participant kind. The number is the numeric prefix before the first ':' or
// '_'; the domain decides the kind.
func ParseJID(jid string) (string, JIDKind) {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return "", JIDUnknown
	}

	local, server, found := strings.Cut(jid, "@")
	if !found {
		return local, JIDUnknown
	}

	number := local
	if i := strings.IndexAny(number, ":_"); i >= 0 {
		number = number[:i]
	}

	switch server {
	case "s.whatsapp.net", "c.us":
		return number, JIDUser
	case "g.us":
		return number, JIDGroup
	case "lid":
		return number, JIDLid
	case "broadcast":
		if strings.HasPrefix(jid, "status@") {
			return number, JIDStatus
		}
		return number, JIDBroadcast
	case "newsletter":
		return number, JIDNewsletter
	case "call":
		return number, JIDCall
	default:
		return number, JIDUnknown
	}
}
