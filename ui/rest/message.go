package rest

import (
	"errors"

	domainChannel "github.com/evobridge/evobridge/domains/channel"
	domainMessaging "github.com/evobridge/evobridge/domains/messaging"
	pkgError "github.com/evobridge/evobridge/pkg/error"
	"github.com/evobridge/evobridge/pkg/utils"
	"github.com/evobridge/evobridge/usecase"
	"github.com/evobridge/evobridge/validations"
	"github.com/gofiber/fiber/v2"
)

type Message struct {
	Outbound *usecase.OutboundService
	Channels domainChannel.Repository
}

func InitRestMessage(app fiber.Router, outbound *usecase.OutboundService, channels domainChannel.Repository) Message {
	handler := Message{Outbound: outbound, Channels: channels}

	group := app.Group("/api/messages")
	group.Post("/", handler.Send)

	return handler
}

func (h *Message) Send(c *fiber.Ctx) error {
	var request domainMessaging.SendRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	}
	if err := validations.ValidateSendMessage(c.UserContext(), request); err != nil {
		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return c.Status(generic.StatusCode()).JSON(utils.ResponseData{
				Status:  generic.StatusCode(),
				Code:    generic.ErrCode(),
				Message: generic.Error(),
			})
		}
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
	}

	ch, err := h.Channels.ByInstance(c.UserContext(), request.InstanceName, "")
	if err != nil {
		notFound := pkgError.NotFoundError("No channel for instance " + request.InstanceName)
		return c.Status(notFound.StatusCode()).JSON(utils.ResponseData{
			Status:  notFound.StatusCode(),
			Code:    notFound.ErrCode(),
			Message: notFound.Error(),
		})
	}

	var msg *domainMessaging.Message
	if request.TemplateName != "" {
		msg, err = h.Outbound.ComposeAndSendTemplate(c.UserContext(), ch, request.Number, usecase.Template{
			Name:       request.TemplateName,
			Parameters: request.TemplateParams,
		})
	} else {
		msg, err = h.Outbound.ComposeAndSend(c.UserContext(), ch, request.Number, request.Content, request.ReplyToID)
	}
	if err != nil {
		return c.Status(502).JSON(utils.ResponseData{
			Status:  502,
			Code:    "DELIVERY_FAILED",
			Message: err.Error(),
			Results: msg,
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Message sent",
		Results: msg,
	})
}
