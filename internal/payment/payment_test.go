package payment

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"storefront/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"cod", MethodCOD},
		{" CARD ", MethodCard},
		{"credit_card", MethodCard},
		{"upi", MethodWallet},
		{"wallet", MethodWallet},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseMethod("bitcoin")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestMethod_WireName(t *testing.T) {
	assert.Equal(t, "cod", MethodCOD.WireName())
	assert.Equal(t, "card", MethodCard.WireName())
	assert.Equal(t, "upi", MethodWallet.WireName())
	assert.False(t, MethodCOD.NeedsConfirmation())
	assert.True(t, MethodWallet.NeedsConfirmation())
}

func TestValidateCard(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	valid := CardDetails{Holder: "Asha Rao", Number: "4111 1111 1111 1111", Expiry: "03/26", CVV: "123"}

	tests := []struct {
		name   string
		mutate func(*CardDetails)
		want   error
	}{
		{"Valid", func(c *CardDetails) {}, nil},
		{"Four digit CVV", func(c *CardDetails) { c.CVV = "1234" }, nil},
		{"No holder", func(c *CardDetails) { c.Holder = " " }, ErrCardholderRequired},
		{"Fifteen digits", func(c *CardDetails) { c.Number = "4111 1111 1111 111" }, ErrInvalidCardNumber},
		{"Seventeen digits", func(c *CardDetails) { c.Number = "41111111111111111" }, ErrInvalidCardNumber},
		{"Letters", func(c *CardDetails) { c.Number = "4111 1111 1111 111a" }, ErrInvalidCardNumber},
		{"Bad month", func(c *CardDetails) { c.Expiry = "13/27" }, ErrInvalidExpiry},
		{"Bad format", func(c *CardDetails) { c.Expiry = "0327" }, ErrInvalidExpiry},
		{"Expired last month", func(c *CardDetails) { c.Expiry = "02/26" }, ErrCardExpired},
		{"Short CVV", func(c *CardDetails) { c.CVV = "12" }, ErrInvalidCVV},
		{"CVV letters", func(c *CardDetails) { c.CVV = "12a" }, ErrInvalidCVV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := validateCardAt(c, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "************1111", MaskCard("4111 1111 1111 1111"))
	assert.Equal(t, "***", MaskCard("123"))
}

func TestWalletTarget(t *testing.T) {
	target := WalletTarget(349950, "shop@upi", "ORD-7")

	assert.Equal(t, int64(349950), target.Amount)
	assert.Equal(t, "shop@upi", target.Payee)
	require.True(t, strings.HasPrefix(target.URI, "upi://pay?"))

	q, err := url.ParseQuery(strings.TrimPrefix(target.URI, "upi://pay?"))
	require.NoError(t, err)
	assert.Equal(t, "shop@upi", q.Get("pa"))
	assert.Equal(t, "3499.50", q.Get("am"))
	assert.Equal(t, "Order ORD-7", q.Get("tn"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "12.00", FormatAmount(1200))
	assert.Equal(t, "-1.50", FormatAmount(-150))
}
