package checkout

import "storefront/internal/api"

var (
	// -- Guards --
	ErrLoginRequired = api.NewError(api.ErrNotAuthenticated, "please log in to check out")
	ErrCartEmpty     = api.NewError(api.ErrValidation, "your cart is empty")

	// -- Flow --
	ErrBusy            = api.NewError(api.ErrValidation, "please wait for the current step to finish")
	ErrInvalidState    = api.NewError(api.ErrValidation, "this step is not available right now")
	ErrAddressRequired = api.NewError(api.ErrValidation, "please select a delivery address")
	ErrPaymentRequired = api.NewError(api.ErrValidation, "please choose a payment method")
	ErrCardRequired    = api.NewError(api.ErrValidation, "please fill in all card details")

	// -- Payment confirmation --
	ErrInvalidOtpFormat    = api.NewError(api.ErrValidation, "please enter the 6-digit code")
	ErrOtpRateLimited      = api.NewError(api.ErrValidation, "too many attempts, please wait a moment")
	ErrTooManyAttempts     = api.NewError(api.ErrInvalidCode, "too many invalid codes, payment cancelled")
	ErrPaymentNotConfirmed = api.NewError(api.ErrValidation, "payment has not been received yet")
)
