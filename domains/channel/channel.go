package channel

import (
	"context"
	"errors"
	"time"
)

type Provider string

const (
	ProviderEvolution     Provider = "evolution"
	ProviderWhatsAppCloud Provider = "whatsapp_cloud"
)

type ConnectionState string

const (
	ConnectionOpen       ConnectionState = "open"
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionClose      ConnectionState = "close"
)

// Channel represents one provider-backed messaging line, bound 1:1 to an
// inbox. (InstanceName, APIURL) is unique among channels of the same
// provider; PhoneNumber is globally unique.
type Channel struct {
	ID             string          `json:"id"`
	InboxID        string          `json:"inbox_id"`
	Provider       Provider        `json:"provider"`
	PhoneNumber    string          `json:"phone_number"`
	InstanceName   string          `json:"instance_name"`
	APIURL         string          `json:"api_url"`
	AdminToken     string          `json:"-"`
	PhoneNumberID  string          `json:"phone_number_id,omitempty"`
	Connection     ConnectionState `json:"connection"`
	ReauthRequired bool            `json:"reauth_required"`
	AccountActive  bool            `json:"account_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Inactive reports whether webhook events for this channel must be dropped.
func (c *Channel) Inactive() bool {
	return c == nil || c.ReauthRequired || !c.AccountActive
}

// APIHeaders returns the authentication headers for media downloads and
// provider API calls.
func (c *Channel) APIHeaders() map[string]string {
	return map[string]string{
		"apikey":       c.AdminToken,
		"Content-Type": "application/json",
	}
}

var ErrChannelNotFound = errors.New("channel not found")

// ProvisionRequest carries the parameters for creating a gateway instance
// and its channel in one step.
type ProvisionRequest struct {
	InboxID      string `json:"inbox_id"`
	InstanceName string `json:"instance_name"`
	APIURL       string `json:"api_url"`
	AdminToken   string `json:"admin_token"`
	PhoneNumber  string `json:"phone_number"`
}

// Repository is the channel lookup contract used by the resolver.
type Repository interface {
	ByPhoneNumber(ctx context.Context, phoneNumber string) (*Channel, error)
	ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Channel, error)
	// ByInstance matches (instance name, server url); an empty serverURL
	// matches on instance name alone.
	ByInstance(ctx context.Context, instanceName, serverURL string) (*Channel, error)
	Create(ctx context.Context, ch *Channel) error
	UpdateConnectionState(ctx context.Context, channelID string, state ConnectionState) error
}
