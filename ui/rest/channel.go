package rest

import (
	"errors"

	domainChannel "github.com/evobridge/evobridge/domains/channel"
	pkgError "github.com/evobridge/evobridge/pkg/error"
	"github.com/evobridge/evobridge/pkg/utils"
	"github.com/evobridge/evobridge/usecase"
	"github.com/gofiber/fiber/v2"
)

type Channel struct {
	Service *usecase.ProvisionService
}

func InitRestChannel(app fiber.Router, service *usecase.ProvisionService) Channel {
	handler := Channel{Service: service}

	group := app.Group("/api/channels")
	group.Post("/", handler.Provision)

	return handler
}

// Provision creates the gateway instance and its channel, returning the
// pairing QR code when the gateway supplies one.
func (h *Channel) Provision(c *fiber.Ctx) error {
	var request domainChannel.ProvisionRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	}

	result, err := h.Service.Provision(c.UserContext(), request)
	if err != nil {
		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return c.Status(generic.StatusCode()).JSON(utils.ResponseData{
				Status:  generic.StatusCode(),
				Code:    generic.ErrCode(),
				Message: generic.Error(),
			})
		}
		internal := pkgError.InternalServerError(err.Error())
		return c.Status(internal.StatusCode()).JSON(utils.ResponseData{
			Status:  internal.StatusCode(),
			Code:    internal.ErrCode(),
			Message: internal.Error(),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Channel provisioned",
		Results: result,
	})
}
