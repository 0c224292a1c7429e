package repository

import (
	"context"
	"sync"

	"github.com/evobridge/evobridge/domains/channel"
)

// MemoryChannelRepository is an in-memory channel.Repository used in tests.
type MemoryChannelRepository struct {
	mu       sync.RWMutex
	channels map[string]*channel.Channel
}

func NewMemoryChannelRepository() *MemoryChannelRepository {
	return &MemoryChannelRepository{channels: make(map[string]*channel.Channel)}
}

func (r *MemoryChannelRepository) Create(_ context.Context, ch *channel.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *ch
	r.channels[ch.ID] = &clone
	return nil
}

func (r *MemoryChannelRepository) ByPhoneNumber(_ context.Context, phoneNumber string) (*channel.Channel, error) {
	return r.find(func(ch *channel.Channel) bool {
		return ch.PhoneNumber == phoneNumber
	})
}

func (r *MemoryChannelRepository) ByPhoneNumberID(_ context.Context, phoneNumberID string) (*channel.Channel, error) {
	return r.find(func(ch *channel.Channel) bool {
		return ch.PhoneNumberID != "" && ch.PhoneNumberID == phoneNumberID
	})
}

func (r *MemoryChannelRepository) ByInstance(_ context.Context, instanceName, serverURL string) (*channel.Channel, error) {
	return r.find(func(ch *channel.Channel) bool {
		if ch.Provider != channel.ProviderEvolution || ch.InstanceName != instanceName {
			return false
		}
		return serverURL == "" || ch.APIURL == serverURL
	})
}

func (r *MemoryChannelRepository) UpdateConnectionState(_ context.Context, channelID string, state channel.ConnectionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[channelID]
	if !ok {
		return channel.ErrChannelNotFound
	}
	ch.Connection = state
	return nil
}

func (r *MemoryChannelRepository) find(match func(*channel.Channel) bool) (*channel.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.channels {
		if match(ch) {
			clone := *ch
			return &clone, nil
		}
	}
	return nil, channel.ErrChannelNotFound
}
