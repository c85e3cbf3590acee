package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundBankers(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   string
	}{
		{"0.125", 2, "0.12"},
		{"0.135", 2, "0.14"},
		{"0.145", 2, "0.14"},
		{"0.155", 2, "0.16"},
		{"1.005", 2, "1.00"},
		{"1.015", 2, "1.02"},
		{"-0.125", 2, "-0.12"},
		{"10.00", 2, "10.00"},
		{"47.5", 2, "47.50"},
	}

	for _, c := range cases {
		got := RoundBankers(decimal.RequireFromString(c.in), c.places)
		require.Truef(t, got.Equal(decimal.RequireFromString(c.want)),
			"RoundBankers(%s, %d) = %s, want %s", c.in, c.places, got.String(), c.want)
	}
}
