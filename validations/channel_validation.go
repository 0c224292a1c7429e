package validations

import (
	"context"

	domainChannel "github.com/evobridge/evobridge/domains/channel"
	pkgError "github.com/evobridge/evobridge/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func ValidateProvisionChannel(ctx context.Context, request domainChannel.ProvisionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.InboxID, validation.Required),
		validation.Field(&request.InstanceName, validation.Required, validation.Length(1, 100)),
		validation.Field(&request.APIURL, validation.Required, is.URL),
		validation.Field(&request.AdminToken, validation.Required),
		validation.Field(&request.PhoneNumber, validation.Required),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
