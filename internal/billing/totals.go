// Package billing computes quotation amounts. All arithmetic runs on decimals;
// rounding to whole currency units happens only on the VAT and grand total.
package billing

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// LineItem is a billable unit.
type LineItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	LineTotal   float64 `json:"lineTotal"`
}

// Group is one independent category of line items (lab tests, field tests,
// mobilization, reporting).
type Group struct {
	Name  string     `json:"name"`
	Items []LineItem `json:"items"`
}

// GroupTotal is the unrounded sum of one group.
type GroupTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// Totals is the result of ComputeTotals.
type Totals struct {
	Subtotal     float64 `json:"subtotal"`
	VATAmount    float64 `json:"vatAmount"`
	TotalWithVAT float64 `json:"totalWithVat"`
}

// finite returns v as a decimal, or zero when v is NaN or infinite.
func finite(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Round rounds half up to a whole unit, matching floor(x + 0.5).
func Round(v float64) float64 {
	return roundDecimal(finite(v)).InexactFloat64()
}

func roundDecimal(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

func lineTotal(price, quantity float64) decimal.Decimal {
	return finite(price).Mul(finite(quantity))
}

// LineTotal returns price × quantity, treating non-finite inputs as zero.
func LineTotal(price, quantity float64) float64 {
	return lineTotal(price, quantity).InexactFloat64()
}

// WithLineTotals returns a copy of items with LineTotal recomputed from price
// and quantity.
func WithLineTotals(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.LineTotal = LineTotal(item.Price, item.Quantity)
		out[i] = item
	}
	return out
}

func groupSum(g Group) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range g.Items {
		sum = sum.Add(lineTotal(item.Price, item.Quantity))
	}
	return sum
}

// GroupTotals returns per-group sums in input order.
func GroupTotals(groups []Group) []GroupTotal {
	out := make([]GroupTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupTotal{Name: g.Name, Total: groupSum(g).InexactFloat64()})
	}
	return out
}

// ComputeTotals sums every group into the subtotal and derives VAT and the
// grand total. The stored LineTotal fields are ignored; line totals are always
// recomputed from price and quantity.
func ComputeTotals(groups []Group, vatPercentage float64) Totals {
	subtotal := decimal.Zero
	for _, g := range groups {
		subtotal = subtotal.Add(groupSum(g))
	}
	vat := finite(vatPercentage)
	vatAmount := roundDecimal(subtotal.Mul(vat).Div(hundred))
	total := roundDecimal(subtotal.Add(vatAmount))
	return Totals{
		Subtotal:     subtotal.InexactFloat64(),
		VATAmount:    vatAmount.InexactFloat64(),
		TotalWithVAT: total.InexactFloat64(),
	}
}
