package guard

import (
	"context"
	"time"

	"github.com/evobridge/evobridge/infrastructure/valkey"
)

// ValkeyStore implements MarkerStore on the shared Valkey instance, so
// markers are visible across processes.
type ValkeyStore struct {
	client *valkey.Client
}

func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	inner := s.client.Inner()
	cmd := inner.B().Set().Key(s.client.Key(key)).Value("1").Nx().Ex(ttl).Build()

	if err := inner.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsNil(err) {
			// NX miss: key already present.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (bool, error) {
	inner := s.client.Inner()
	cmd := inner.B().Get().Key(s.client.Key(key)).Build()

	if err := inner.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	inner := s.client.Inner()
	cmd := inner.B().Del().Key(s.client.Key(key)).Build()
	return inner.Do(ctx, cmd).Error()
}
