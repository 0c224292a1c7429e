package usecase

import (
	"context"
	"testing"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/domains/event"
	"github.com/evobridge/evobridge/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedChannel(t *testing.T, repo *repository.MemoryChannelRepository, ch channel.Channel) *channel.Channel {
	t.Helper()
	if ch.Provider == "" {
		ch.Provider = channel.ProviderEvolution
	}
	ch.AccountActive = true
	require.NoError(t, repo.Create(context.Background(), &ch))
	return &ch
}

func TestResolveByInstance(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	seedChannel(t, repo, channel.Channel{
		ID: "ch1", InstanceName: "sales", APIURL: "https://gw-a.local", PhoneNumber: "+551111111111",
	})
	seedChannel(t, repo, channel.Channel{
		ID: "ch2", InstanceName: "sales", APIURL: "https://gw-b.local", PhoneNumber: "+552222222222",
	})
	resolver := NewChannelResolver(repo)

	// Server URL narrows the match when two channels share an instance name.
	ch, err := resolver.Resolve(context.Background(), event.Payload{
		"event":      "messages.upsert",
		"instance":   "sales",
		"server_url": "https://gw-b.local",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch2", ch.ID)

	// Without a server URL the instance name alone still resolves.
	ch, err = resolver.Resolve(context.Background(), event.Payload{
		"event":    "messages.upsert",
		"instance": "sales",
	})
	require.NoError(t, err)
	assert.NotNil(t, ch)
}

func TestResolveInstanceURLDrift(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	seedChannel(t, repo, channel.Channel{
		ID: "ch1", InstanceName: "support", APIURL: "https://old-gw.local", PhoneNumber: "+551111111111",
	})
	resolver := NewChannelResolver(repo)

	// The gateway moved hosts; instance-only fallback still finds it.
	ch, err := resolver.Resolve(context.Background(), event.Payload{
		"event":      "messages.upsert",
		"instance":   "support",
		"server_url": "https://new-gw.local",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch1", ch.ID)
}

func TestResolveByPhoneNumber(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	seedChannel(t, repo, channel.Channel{
		ID: "ch1", InstanceName: "main", PhoneNumber: "+5511999999999",
	})
	resolver := NewChannelResolver(repo)

	ch, err := resolver.Resolve(context.Background(), event.Payload{
		"phone_number": "+5511999999999",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch1", ch.ID)
}

func TestResolveBusinessPayload(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	seedChannel(t, repo, channel.Channel{
		ID: "ch1", InstanceName: "biz", PhoneNumber: "+5511999999999", PhoneNumberID: "PNID1",
	})
	resolver := NewChannelResolver(repo)

	payload := event.Payload{
		"object": "whatsapp_business_account",
		"entry": []any{map[string]any{
			"changes": []any{map[string]any{
				"value": map[string]any{
					"metadata": map[string]any{
						"display_phone_number": "5511999999999",
						"phone_number_id":      "PNID1",
					},
				},
			}},
		}},
	}
	ch, err := resolver.Resolve(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "ch1", ch.ID)

	// A mismatched stored id falls back to the phone-number-id lookup.
	seedChannel(t, repo, channel.Channel{
		ID: "ch2", InstanceName: "biz2", PhoneNumber: "+5522888888888", PhoneNumberID: "PNID2",
	})
	payload2 := event.Payload{
		"object": "whatsapp_business_account",
		"entry": []any{map[string]any{
			"changes": []any{map[string]any{
				"value": map[string]any{
					"metadata": map[string]any{
						"display_phone_number": "5511999999999",
						"phone_number_id":      "PNID2",
					},
				},
			}},
		}},
	}
	ch, err = resolver.Resolve(context.Background(), payload2)
	require.NoError(t, err)
	assert.Equal(t, "ch2", ch.ID)
}

func TestResolveInactiveChannelRejected(t *testing.T) {
	repo := repository.NewMemoryChannelRepository()
	ch := channel.Channel{
		ID: "ch1", Provider: channel.ProviderEvolution, InstanceName: "main",
		PhoneNumber: "+5511999999999", AccountActive: true, ReauthRequired: true,
	}
	require.NoError(t, repo.Create(context.Background(), &ch))
	resolver := NewChannelResolver(repo)

	_, err := resolver.Resolve(context.Background(), event.Payload{
		"event":    "messages.upsert",
		"instance": "main",
	})
	assert.ErrorIs(t, err, channel.ErrChannelNotFound)
}

func TestResolveNothingMatches(t *testing.T) {
	resolver := NewChannelResolver(repository.NewMemoryChannelRepository())

	_, err := resolver.Resolve(context.Background(), event.Payload{
		"event":    "messages.upsert",
		"instance": "ghost",
	})
	assert.ErrorIs(t, err, channel.ErrChannelNotFound)
}
