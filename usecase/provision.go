package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/infrastructure/evolution"
	"github.com/evobridge/evobridge/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProvisionService creates gateway instances and their channel records. A
// stale instance with the same name is deleted first so re-provisioning a
// broken channel always starts from a clean pairing.
type ProvisionService struct {
	channels   channel.Repository
	webhookURL string
}

func NewProvisionService(channels channel.Repository, webhookURL string) *ProvisionService {
	return &ProvisionService{channels: channels, webhookURL: webhookURL}
}

// ProvisionResult is returned to the caller so pairing can start right away.
type ProvisionResult struct {
	Channel *channel.Channel `json:"channel"`
	QRCode  map[string]any   `json:"qrcode,omitempty"`
}

func (s *ProvisionService) Provision(ctx context.Context, req channel.ProvisionRequest) (*ProvisionResult, error) {
	if err := validations.ValidateProvisionChannel(ctx, req); err != nil {
		return nil, err
	}

	client, err := evolution.NewClient(req.APIURL, req.AdminToken, req.InstanceName)
	if err != nil {
		return nil, err
	}

	if existing, err := client.FetchInstances(ctx); err == nil && len(existing) > 0 {
		logrus.Infof("[PROVISION] instance %s already exists, recreating", req.InstanceName)
		if err := client.DeleteInstance(ctx); err != nil {
			return nil, fmt.Errorf("delete stale instance %s: %w", req.InstanceName, err)
		}
	}

	if _, err := client.CreateInstance(ctx, evolution.CreateInstanceRequest{
		PhoneNumber: req.PhoneNumber,
		WebhookURL:  s.webhookURL,
	}); err != nil {
		return nil, fmt.Errorf("create instance %s: %w", req.InstanceName, err)
	}

	ch := &channel.Channel{
		ID:            uuid.NewString(),
		InboxID:       req.InboxID,
		Provider:      channel.ProviderEvolution,
		PhoneNumber:   req.PhoneNumber,
		InstanceName:  req.InstanceName,
		APIURL:        req.APIURL,
		AdminToken:    req.AdminToken,
		Connection:    channel.ConnectionClose,
		AccountActive: true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.channels.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("store channel for %s: %w", req.InstanceName, err)
	}

	result := &ProvisionResult{Channel: ch}
	if qr, err := client.ConnectQR(ctx); err == nil {
		result.QRCode = qr
	} else {
		logrus.WithError(err).Warnf("[PROVISION] qr fetch failed for %s", req.InstanceName)
	}
	return result, nil
}
