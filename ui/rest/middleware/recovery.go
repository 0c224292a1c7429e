package middleware

import (
	"fmt"

	pkgError "github.com/evobridge/evobridge/pkg/error"
	"github.com/evobridge/evobridge/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				logrus.Errorf("Panic recovered in middleware: %v", err)

				errGeneric, isGenericError := err.(pkgError.GenericError)
				if isGenericError {
					res.Status = errGeneric.StatusCode()
					res.Code = errGeneric.ErrCode()
					res.Message = errGeneric.Error()
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
