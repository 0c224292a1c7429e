package validations

import (
	"context"

	domainMessaging "github.com/evobridge/evobridge/domains/messaging"
	pkgError "github.com/evobridge/evobridge/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func ValidateSendMessage(ctx context.Context, request domainMessaging.SendRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.InstanceName, validation.Required),
		validation.Field(&request.Number, validation.Required, validation.Length(5, 20)),
		validation.Field(&request.Content, validation.Required.When(request.TemplateName == "")),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
