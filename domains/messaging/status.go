package messaging

// Status is the delivery status of a message. The zero value means no status
// has been recorded yet.
type Status string

const (
	StatusUnset     Status = ""
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// allowedTransitions keeps the progression monotonic: read and failed are
// terminal, delivered can only advance to read.
var allowedTransitions = map[Status][]Status{
	StatusUnset:     {StatusSent, StatusDelivered, StatusRead, StatusFailed},
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
	StatusRead:      {},
	StatusFailed:    {},
}

// CanTransitionTo reports whether next is reachable from the current status.
// Unknown current statuses allow any transition, matching StatusUnset.
func (s Status) CanTransitionTo(next Status) bool {
	allowed, ok := allowedTransitions[s]
	if !ok {
		return true
	}
	for _, st := range allowed {
		if st == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusFailed
}
