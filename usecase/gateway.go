package usecase

import (
	"context"

	"github.com/evobridge/evobridge/domains/channel"
	"github.com/evobridge/evobridge/infrastructure/evolution"
)

// GatewayClient is the provider surface the pipeline needs: sending on the
// outbound path and media download on the inbound one.
type GatewayClient interface {
	SendText(ctx context.Context, number, text, replyTo string) (string, error)
	SendMedia(ctx context.Context, number, mediaType, mediaURL, caption, fileName, replyTo string) (string, error)
	SendAudioURL(ctx context.Context, number, audioURL, replyTo string) (string, error)
	SendAudioBase64(ctx context.Context, number, encoded, replyTo string) (string, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// GatewayFactory builds a client bound to one channel's instance and token.
type GatewayFactory func(ch *channel.Channel) (GatewayClient, error)

// EvolutionGateway is the production factory.
func EvolutionGateway(ch *channel.Channel) (GatewayClient, error) {
	return evolution.NewClient(ch.APIURL, ch.AdminToken, ch.InstanceName)
}
