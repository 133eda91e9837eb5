package checkout

type State string

const (
	StateIdle                         State = "IDLE"
	StateAddressSelection             State = "ADDRESS_SELECTION"
	StatePaymentSelection             State = "PAYMENT_SELECTION"
	StateOrderSubmitting              State = "ORDER_SUBMITTING"
	StateAwaitingOtp                  State = "AWAITING_OTP"
	StateAwaitingExternalConfirmation State = "AWAITING_EXTERNAL_CONFIRMATION"
	StateCompleted                    State = "COMPLETED"
	StateFailed                       State = "FAILED"
)

// Every state may fall back to Idle when the shopper leaves the flow.
var validNext = map[State]map[State]bool{
	StateIdle:             {StateAddressSelection: true},
	StateAddressSelection: {StatePaymentSelection: true, StateIdle: true},
	StatePaymentSelection: {StateOrderSubmitting: true, StateAddressSelection: true, StateIdle: true},
	StateOrderSubmitting: {
		StateCompleted:                    true,
		StateAwaitingOtp:                  true,
		StateAwaitingExternalConfirmation: true,
		StatePaymentSelection:             true,
		StateIdle:                         true,
	},
	StateAwaitingOtp:                  {StateCompleted: true, StateFailed: true, StateIdle: true},
	StateAwaitingExternalConfirmation: {StateCompleted: true, StateFailed: true, StateIdle: true},
	StateCompleted:                    {StateIdle: true, StateAddressSelection: true},
	StateFailed:                       {StateIdle: true, StateAddressSelection: true},
}

func canTransition(from, to State) bool {
	return validNext[from][to]
}

// Terminal reports whether the flow has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
