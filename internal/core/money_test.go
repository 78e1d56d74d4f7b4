package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},
		{" 2.50 ", "2.5", true},
		{"-40", "-40", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"1,23", "", false},
		{"1,500", "", false},
		{"12,345", "", false},
		{"1,234.56", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "got %s", got)
		})
	}
}

func TestParsePositiveAmount(t *testing.T) {
	_, err := ParsePositiveAmount("0")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParsePositiveAmount("-3")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParsePositiveAmount("45,50")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	got, err := ParsePositiveAmount("45.5")
	require.NoError(t, err)
	assert.Equal(t, "45.50", got.StringFixed(2))
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"5454.5", "USD", "$5,454.50"},
		{"0", "USD", "$0.00"},
		{"-12", "EUR", "-€12.00"},
		{"1234567.891", "GBP", "£1,234,567.89"},
		{"999", "CHF", "CHF 999.00"},
		{"100", "", "100.00"},
	}
	for _, tc := range cases {
		got := FormatMoney(decimal.RequireFromString(tc.amount), tc.currency)
		assert.Equal(t, tc.want, got)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "99.1%", FormatPercent(decimal.RequireFromString("99.0909")))
	assert.Equal(t, "0.0%", FormatPercent(decimal.Zero))
}
