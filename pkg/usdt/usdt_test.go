package usdt

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUnitsFromUnitsRoundTrip(t *testing.T) {
	cases := []string{
		"99.97",
		"30",
		"20000",
		"100.00000001",
		"0.00000001",
		"1234.56789012",
	}

	for _, c := range cases {
		amount := decimal.RequireFromString(c)
		units, err := ToUnits(amount)
		require.NoError(t, err, c)
		assert.True(t, FromUnits(units).Equal(amount), "round trip failed for %s", c)
	}
}

func TestToUnitsRejectsExcessPrecision(t *testing.T) {
	_, err := ToUnits(decimal.RequireFromString("100.000000001"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	got := Normalize(decimal.RequireFromString("100.000000004"))
	assert.True(t, got.Equal(decimal.RequireFromString("100.00000000")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100.00000000", Format(decimal.RequireFromString("100")))
	assert.Equal(t, "99.97000000", Format(decimal.RequireFromString("99.97")))
}
