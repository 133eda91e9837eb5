package payment

import (
	"strconv"
	"strings"
	"time"

	"storefront/internal/api"
)

var (
	ErrCardholderRequired = api.NewError(api.ErrValidation, "cardholder name is required")
	ErrInvalidCardNumber  = api.NewError(api.ErrValidation, "card number must be 16 digits")
	ErrInvalidExpiry      = api.NewError(api.ErrValidation, "expiry must be a valid MM/YY date")
	ErrCardExpired        = api.NewError(api.ErrValidation, "card has expired")
	ErrInvalidCVV         = api.NewError(api.ErrValidation, "CVV must be 3 or 4 digits")
)

// CardDetails are held in memory for one checkout and never persisted.
type CardDetails struct {
	Holder string
	Number string
	Expiry string // MM/YY
	CVV    string
}

// ValidateCard checks the card before any network call is made.
func ValidateCard(c CardDetails) error {
	return validateCardAt(c, time.Now())
}

func validateCardAt(c CardDetails, now time.Time) error {
	if strings.TrimSpace(c.Holder) == "" {
		return ErrCardholderRequired
	}

	number := strings.ReplaceAll(c.Number, " ", "")
	if len(number) != 16 || !allDigits(number) {
		return ErrInvalidCardNumber
	}

	if err := validateExpiry(strings.TrimSpace(c.Expiry), now); err != nil {
		return err
	}

	cvv := strings.TrimSpace(c.CVV)
	if (len(cvv) != 3 && len(cvv) != 4) || !allDigits(cvv) {
		return ErrInvalidCVV
	}
	return nil
}

// A card is valid through the last day of its expiry month.
func validateExpiry(expiry string, now time.Time) error {
	mm, yy, ok := strings.Cut(expiry, "/")
	if !ok || len(mm) != 2 || len(yy) != 2 || !allDigits(mm) || !allDigits(yy) {
		return ErrInvalidExpiry
	}

	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yy)
	if month < 1 || month > 12 {
		return ErrInvalidExpiry
	}

	firstInvalid := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(firstInvalid) {
		return ErrCardExpired
	}
	return nil
}

// MaskCard keeps only the last four digits.
func MaskCard(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
