package rest

import (
	"context"
	"encoding/json"

	"github.com/evobridge/evobridge/domains/event"
	"github.com/evobridge/evobridge/pkg/msgworker"
	"github.com/evobridge/evobridge/pkg/utils"
	"github.com/evobridge/evobridge/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Webhook struct {
	Resolver *usecase.ChannelResolver
	Ingest   *usecase.IngestService
	Pool     *msgworker.Pool
}

func InitRestWebhook(app fiber.Router, resolver *usecase.ChannelResolver, ingest *usecase.IngestService, pool *msgworker.Pool) Webhook {
	handler := Webhook{Resolver: resolver, Ingest: ingest, Pool: pool}

	app.Post("/webhooks/evolution", handler.Receive)

	return handler
}

// Receive acknowledges every delivery with 200. The gateway retries non-2xx
// responses, and a retry storm over an unparseable payload helps nobody.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	var payload event.Payload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		logrus.WithError(err).Warn("[WEBHOOK] unparseable payload")
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "IGNORED",
			Message: "Payload could not be parsed",
		})
	}

	ch, err := h.Resolver.Resolve(c.UserContext(), payload)
	if err != nil {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "IGNORED",
			Message: "No channel for this event",
		})
	}

	accepted := h.Pool.TryDispatch(msgworker.EventJob{
		ChannelID: ch.ID,
		EventType: string(payload.Type()),
		Handler: func(ctx context.Context) error {
			return h.Ingest.Process(ctx, ch, payload)
		},
	})
	if !accepted {
		logrus.Warnf("[WEBHOOK] dropped %s for channel %s, queue full", payload.Type(), ch.ID)
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "DROPPED",
			Message: "Processing queue is full",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Event accepted",
	})
}
