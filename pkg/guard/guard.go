// Package guard provides the short-lived distributed markers that protect
// the ingestion pipeline: an in-flight marker per message id and an advisory
// per-channel lock for the outgoing-message path.
package guard

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ChannelLockTimeout bounds how long a local send and a gateway echo
	// webhook may race.
	ChannelLockTimeout = 15 * time.Second
	lockPollInterval   = 100 * time.Millisecond

	// messageMarkerTTL covers the processing window of one message; the
	// marker is cleared explicitly on completion.
	messageMarkerTTL = 5 * time.Minute
)

// MarkerStore is the key-value capability behind the markers. Implemented on
// Valkey in production and in memory for tests.
type MarkerStore interface {
	// SetIfAbsent stores the key only when absent and reports whether it
	// was stored.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type Guard struct {
	store MarkerStore
}

func New(store MarkerStore) *Guard {
	return &Guard{store: store}
}

func messageKey(sourceID string) string { return "marker:message:" + sourceID }

func channelKey(channelID string) string { return "lock:outgoing:" + channelID }

// MessageInFlight reports whether another delivery of the same message id is
// currently being processed. Store failures read as not-in-flight so a
// marker outage never drops messages.
func (g *Guard) MessageInFlight(ctx context.Context, sourceID string) bool {
	set, err := g.store.Get(ctx, messageKey(sourceID))
	if err != nil {
		logrus.WithError(err).Warn("[GUARD] in-flight check failed")
		return false
	}
	return set
}

// MarkMessageInFlight sets the processing marker for a message id.
func (g *Guard) MarkMessageInFlight(ctx context.Context, sourceID string) {
	if _, err := g.store.SetIfAbsent(ctx, messageKey(sourceID), messageMarkerTTL); err != nil {
		logrus.WithError(err).Warn("[GUARD] failed to set in-flight marker")
	}
}

// ClearMessage removes the processing marker, on success or failure.
func (g *Guard) ClearMessage(ctx context.Context, sourceID string) {
	if err := g.store.Delete(ctx, messageKey(sourceID)); err != nil {
		logrus.WithError(err).Warn("[GUARD] failed to clear in-flight marker")
	}
}

// WithChannelLock runs fn under the advisory per-channel outbound lock. It
// polls for the lock up to ChannelLockTimeout and then proceeds regardless
// of acquisition: losing the lock must never cause message loss, so callers
// get bounded-wait best effort, not guaranteed exclusion. The lock is always
// released afterwards.
func (g *Guard) WithChannelLock(ctx context.Context, channelID string, fn func() error) error {
	key := channelKey(channelID)
	deadline := time.Now().Add(ChannelLockTimeout)

	for time.Now().Before(deadline) {
		acquired, err := g.store.SetIfAbsent(ctx, key, ChannelLockTimeout)
		if err != nil {
			logrus.WithError(err).Warn("[GUARD] channel lock acquisition failed")
			break
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	defer func() {
		if err := g.store.Delete(ctx, key); err != nil {
			logrus.WithError(err).Warn("[GUARD] failed to release channel lock")
		}
	}()

	return fn()
}
