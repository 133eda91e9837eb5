package session

import "storefront/internal/api"

var (
	ErrEmailRequired    = api.NewError(api.ErrValidation, "email is required")
	ErrInvalidEmail     = api.NewError(api.ErrValidation, "email is not valid")
	ErrPasswordRequired = api.NewError(api.ErrValidation, "password is required")
	ErrPasswordTooShort = api.NewError(api.ErrValidation, "password must be at least 6 characters")
	ErrNameRequired     = api.NewError(api.ErrValidation, "name is required")
	ErrInvalidPhone     = api.NewError(api.ErrValidation, "phone must have 10 to 15 digits")
	ErrCodeRequired     = api.NewError(api.ErrValidation, "verification code is required")
	ErrNoToken          = api.NewError(api.ErrServer, "no access token received")

	// used, expired and wrong codes all surface as this one error
	errInvalidCode = api.NewError(api.ErrInvalidCode, "Invalid or expired verification code")
)
