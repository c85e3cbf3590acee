// Package totals computes order monetary breakdowns and the tamper-evident
// signature the orchestrator stores alongside each order.
package totals

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/ordercore/order-platform/internal/money"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	DefaultTaxRate        = decimal.NewFromFloat(0.05)
	defaultShippingBase    = decimal.RequireFromString("10.00")
	defaultShippingPerUnit = decimal.RequireFromString("2.00")
)

// LineItem is the calculator's view of an order line: quantity and the
// catalog-sourced unit price, prior to rounding.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Options controls the non-item inputs to a totals computation. A nil
// ShippingCost means "compute the default shipping formula"; a nil TaxRate
// means "use DefaultTaxRate" — an explicit zero rate (TAX_RATE=0) is a
// distinct, legitimate configuration and must not collapse to the default,
// so unset is tracked by the pointer being nil rather than by IsZero().
type Options struct {
	TaxRate      *decimal.Decimal
	ShippingCost *decimal.Decimal
}

// Breakdown is the persisted, signed totals result.
type Breakdown struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"taxRate"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
	Signature    string          `json:"signature"`
}

type signatureItem struct {
	ProductID string `json:"productId"`
}

type signaturePayload struct {
	Items        []signatureItem `json:"items"`
	Subtotal     string          `json:"subtotal"`
	TaxRate      string          `json:"taxRate"`
	TaxAmount    string          `json:"taxAmount"`
	ShippingCost string          `json:"shippingCost"`
	Total        string          `json:"total"`
}

// Compute implements §4.5: subtotal, tax, shipping, and total, all rounded
// half-to-even to 2 decimal places, plus a SHA-256 signature over the
// canonical breakdown.
func Compute(items []LineItem, opts Options) (Breakdown, error) {
	if len(items) == 0 {
		return Breakdown{}, errors.New("totals: no items")
	}

	taxRate := DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}

	subtotal := decimal.Zero
	qtySum := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			return Breakdown{}, errors.Errorf("totals: non-positive quantity for product %s", it.ProductID)
		}
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		qtySum += it.Quantity
	}

	shipping := defaultShippingBase.Add(defaultShippingPerUnit.Mul(decimal.NewFromInt(int64(qtySum))))
	if opts.ShippingCost != nil {
		shipping = *opts.ShippingCost
	}

	subtotalR := money.RoundBankers(subtotal, 2)
	taxAmountR := money.RoundBankers(subtotal.Mul(taxRate), 2)
	shippingR := money.RoundBankers(shipping, 2)
	total := money.RoundBankers(subtotalR.Add(taxAmountR).Add(shippingR), 2)

	sig, err := signature(items, subtotalR, taxRate, taxAmountR, shippingR, total)
	if err != nil {
		return Breakdown{}, errors.Wrap(err, "totals: signature")
	}

	return Breakdown{
		Subtotal:     subtotalR,
		TaxRate:      taxRate,
		TaxAmount:    taxAmountR,
		ShippingCost: shippingR,
		Total:        total,
		Signature:    sig,
	}, nil
}

func signature(items []LineItem, subtotal, taxRate, taxAmount, shipping, total decimal.Decimal) (string, error) {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	sigItems := make([]signatureItem, 0, len(sorted))
	for _, it := range sorted {
		sigItems = append(sigItems, signatureItem{ProductID: it.ProductID})
	}

	payload := signaturePayload{
		Items:        sigItems,
		Subtotal:     subtotal.StringFixed(2),
		TaxRate:      taxRate.String(),
		TaxAmount:    taxAmount.StringFixed(2),
		ShippingCost: shipping.StringFixed(2),
		Total:        total.StringFixed(2),
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
