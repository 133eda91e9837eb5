package cart

import (
	"errors"

	"storefront/internal/api"
)

var (
	// -- Authentication --
	ErrLoginRequired = api.NewError(api.ErrNotAuthenticated, "Please login to modify your cart")

	// -- Validation & Input --
	ErrInvalidQuantity   = api.NewError(api.ErrValidation, "quantity must be at least 1")
	ErrVariantRequired   = api.NewError(api.ErrValidation, "variant is required")
	ErrSizeRequired      = api.NewError(api.ErrValidation, "size is required")
	ErrInsufficientStock = api.NewError(api.ErrOutOfStock, "not enough stock for the requested quantity")

	// -- Backend capability --
	errUpdateUnsupported = errors.New("backend has no atomic cart update")
)
