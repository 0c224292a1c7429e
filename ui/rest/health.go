package rest

import (
	"github.com/evobridge/evobridge/pkg/msgworker"
	"github.com/evobridge/evobridge/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Health struct {
	Pool *msgworker.Pool
}

func InitRestHealth(app fiber.Router, pool *msgworker.Pool) Health {
	handler := Health{Pool: pool}

	group := app.Group("/api/health")
	group.Get("/status", handler.GetStatus)

	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Service is up",
		Results: h.Pool.Stats(),
	})
}
