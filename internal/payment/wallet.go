package payment

import (
	"fmt"
	"net/url"
)

const merchantName = "ShoeStopper"

// Target is what a shopper needs to pay an order from an external wallet.
type Target struct {
	Amount  int64
	Payee   string
	OrderID string
	URI     string
}

// WalletTarget builds the payment URI rendered as a QR code. Amounts are in
// minor units.
func WalletTarget(amount int64, payee, orderID string) Target {
	q := url.Values{}
	q.Set("pa", payee)
	q.Set("pn", merchantName)
	q.Set("am", FormatAmount(amount))
	q.Set("cu", "INR")
	q.Set("tn", "Order "+orderID)

	return Target{
		Amount:  amount,
		Payee:   payee,
		OrderID: orderID,
		URI:     "upi://pay?" + q.Encode(),
	}
}

// FormatAmount renders minor units with two decimals.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
