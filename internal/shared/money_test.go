package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundAmount(t *testing.T) {
	v := decimal.RequireFromString("37.505")
	require.Equal(t, "37.51", RoundAmount(v, RoundCents).StringFixed(2))
	require.Equal(t, "38", RoundAmount(v, RoundWhole).String())

	neg := decimal.RequireFromString("-2.345")
	require.Equal(t, "-2.35", RoundAmount(neg, RoundCents).StringFixed(2))
}

func TestWithinCent(t *testing.T) {
	a := decimal.RequireFromString("2500.00")
	require.True(t, WithinCent(a, decimal.RequireFromString("2500.01")))
	require.False(t, WithinCent(a, decimal.RequireFromString("2500.02")))
}
