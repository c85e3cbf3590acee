package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCompute_HappyPath(t *testing.T) {
	items := []LineItem{
		{ProductID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: "2", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
	}

	b, err := Compute(items, Options{})
	require.NoError(t, err)

	require.True(t, b.Subtotal.Equal(decimal.RequireFromString("30")), "subtotal = %s", b.Subtotal)
	require.True(t, b.TaxAmount.Equal(decimal.RequireFromString("1.5")), "taxAmount = %s", b.TaxAmount)
	require.True(t, b.ShippingCost.Equal(decimal.RequireFromString("16")), "shippingCost = %s", b.ShippingCost)
	require.True(t, b.Total.Equal(decimal.RequireFromString("47.5")), "total = %s", b.Total)
	require.Len(t, b.Signature, 64)
}

func TestCompute_Deterministic(t *testing.T) {
	a := []LineItem{
		{ProductID: "2", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
	}
	b := []LineItem{
		{ProductID: "1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: "2", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
	}

	ba, err := Compute(a, Options{})
	require.NoError(t, err)
	bb, err := Compute(b, Options{})
	require.NoError(t, err)

	require.Equal(t, ba.Signature, bb.Signature, "signature must not depend on request item order")
}

func TestCompute_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := Compute([]LineItem{{ProductID: "1", Quantity: 0, UnitPrice: decimal.NewFromInt(5)}}, Options{})
	require.Error(t, err)
}

func TestCompute_CustomShipping(t *testing.T) {
	shipping := decimal.RequireFromString("3.33")
	items := []LineItem{{ProductID: "1", Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")}}

	b, err := Compute(items, Options{ShippingCost: &shipping})
	require.NoError(t, err)
	require.True(t, b.ShippingCost.Equal(decimal.RequireFromString("3.33")), "shippingCost = %s", b.ShippingCost)
}
