package catalog

import "storefront/internal/api"

var (
	ErrProductIDRequired = api.NewError(api.ErrValidation, "product id is required")
	ErrQueryRequired     = api.NewError(api.ErrValidation, "search text is required")
	ErrInvalidRating     = api.NewError(api.ErrValidation, "rating must be between 1 and 5")
	ErrCommentRequired   = api.NewError(api.ErrValidation, "review comment is required")
	ErrProductNotFound   = api.NewError(api.ErrNotFound, "product not found")
)
