package payment

import (
	"strings"

	"storefront/internal/api"
)

type Method string

const (
	MethodCOD    Method = "COD"
	MethodCard   Method = "CARD"
	MethodWallet Method = "WALLET"
)

var ErrUnsupportedMethod = api.NewError(api.ErrValidation, "unsupported payment method")

// ParseMethod accepts the method names used by the backend as well.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COD", "CASH":
		return MethodCOD, nil
	case "CARD", "CREDIT_CARD":
		return MethodCard, nil
	case "WALLET", "UPI":
		return MethodWallet, nil
	}
	return "", ErrUnsupportedMethod
}

// WireName is the payment method as the orders endpoints spell it.
func (m Method) WireName() string {
	switch m {
	case MethodCOD:
		return "cod"
	case MethodCard:
		return "card"
	case MethodWallet:
		return "upi"
	}
	return strings.ToLower(string(m))
}

// NeedsConfirmation reports whether an order paid this way stays unpaid until
// a second step succeeds.
func (m Method) NeedsConfirmation() bool {
	return m == MethodCard || m == MethodWallet
}
