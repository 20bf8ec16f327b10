package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RoundsHalfUp(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"90.125", "90.13"},
		{"90.124", "90.12"},
		{"90.135", "90.14"},
		{"-90.125", "-90.13"},
		{"-90.124", "-90.12"},
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"2.675", "2.68"},
		{"100", "100.00"},
		{"100.1", "100.10"},
		{"007.5", "7.50"},
		{"+3.14159", "3.14"},
		{"1.005e2", "100.50"},
		{"1e-3", "0.00"},
		{"0", "0.00"},
		{"-0.001", "0.00"},
	}

	for _, tc := range cases {
		got, err := Normalize(tc.raw)
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, String2dp(got), "raw=%q", tc.raw)
	}
}

func TestNormalize_RejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"   ",
		"abc",
		"12,5",
		"1.2.3",
		"NaN",
		"nan",
		"Inf",
		"-Infinity",
		"$10",
		"10 USD",
	}

	for _, raw := range invalid {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrInvalidFormat, "raw=%q", raw)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first, err := Normalize("10.987654321")
	require.NoError(t, err)

	second, err := Normalize(first.String())
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(decimal.RequireFromString("10.99")))
}
