package order

import "storefront/internal/api"

var (
	ErrOrderNotFound  = api.NewError(api.ErrNotFound, "order not found")
	ErrNoItems        = api.NewError(api.ErrValidation, "order has no items")
	ErrNoAddress      = api.NewError(api.ErrValidation, "delivery address is required")
	ErrIDRequired     = api.NewError(api.ErrValidation, "order id is required")
	ErrNotCancellable = api.NewError(api.ErrValidation, "order can no longer be cancelled")
	ErrRejected       = api.NewError(api.ErrServer, "order was not accepted")
)
