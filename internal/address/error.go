package address

import "storefront/internal/api"

var (
	ErrNameRequired    = api.NewError(api.ErrValidation, "name is required")
	ErrStreetRequired  = api.NewError(api.ErrValidation, "street is required")
	ErrCityRequired    = api.NewError(api.ErrValidation, "city is required")
	ErrStateRequired   = api.NewError(api.ErrValidation, "state is required")
	ErrInvalidPhone    = api.NewError(api.ErrValidation, "phone must have 10 to 15 digits")
	ErrInvalidPincode  = api.NewError(api.ErrValidation, "postal code must be 4 to 10 letters or digits")
	ErrAddressNotFound = api.NewError(api.ErrNotFound, "address not found")
	ErrIDRequired      = api.NewError(api.ErrValidation, "address id is required")
)
