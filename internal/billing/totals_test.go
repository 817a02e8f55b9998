package billing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsEmpty(t *testing.T) {
	require.Equal(t, Totals{}, ComputeTotals(nil, 0))
	require.Equal(t, Totals{}, ComputeTotals([]Group{{Name: "lab"}, {Name: "field"}}, 18))
}

func TestComputeTotalsScenario(t *testing.T) {
	groups := []Group{{
		Name: "lab",
		Items: []LineItem{
			{Description: "Compressive strength", Price: 100, Quantity: 2},
			{Description: "Slump", Price: 50, Quantity: 1},
		},
	}}
	got := ComputeTotals(groups, 18)
	assert.Equal(t, 250.0, got.Subtotal)
	assert.Equal(t, 45.0, got.VATAmount)
	assert.Equal(t, 295.0, got.TotalWithVAT)
}

func TestComputeTotalsNonFiniteInputsContributeZero(t *testing.T) {
	groups := []Group{{
		Name: "field",
		Items: []LineItem{
			{Price: math.NaN(), Quantity: 3},
			{Price: 10, Quantity: math.Inf(1)},
			{Price: 20, Quantity: 2},
		},
	}}
	got := ComputeTotals(groups, math.NaN())
	assert.Equal(t, Totals{Subtotal: 40, VATAmount: 0, TotalWithVAT: 40}, got)
}

func TestComputeTotalsRoundsOnlyAggregates(t *testing.T) {
	groups := []Group{
		{Name: "lab", Items: []LineItem{{Price: 0.1, Quantity: 3}}},
		{Name: "reporting", Items: []LineItem{{Price: 10.25, Quantity: 1}}},
	}
	got := ComputeTotals(groups, 10)
	assert.Equal(t, 10.55, got.Subtotal)
	assert.Equal(t, 1.0, got.VATAmount)
	assert.Equal(t, 12.0, got.TotalWithVAT)
}

func TestComputeTotalsOrderIndependent(t *testing.T) {
	a := Group{Name: "lab", Items: []LineItem{{Price: 12.5, Quantity: 3}}}
	b := Group{Name: "mobilization", Items: []LineItem{{Price: 400, Quantity: 1}, {Price: 7, Quantity: 0.5}}}
	require.Equal(t, ComputeTotals([]Group{a, b}, 16), ComputeTotals([]Group{b, a}, 16))
}

func TestTotalWithVATIsRoundedSumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		var groups []Group
		for g := 0; g < rng.Intn(4); g++ {
			group := Group{Name: "g"}
			for n := 0; n < rng.Intn(6); n++ {
				group.Items = append(group.Items, LineItem{
					Price:    math.Round(rng.Float64()*100000) / 100,
					Quantity: float64(rng.Intn(20)),
				})
			}
			groups = append(groups, group)
		}
		vat := float64(rng.Intn(101))
		got := ComputeTotals(groups, vat)
		require.Equal(t, Round(got.Subtotal+got.VATAmount), got.TotalWithVAT, "iteration %d", i)
		require.Equal(t, got, ComputeTotals(groups, vat))
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5))
	assert.Equal(t, 2.0, Round(2.49))
	assert.Equal(t, -2.0, Round(-2.5))
	assert.Equal(t, 0.0, Round(math.Inf(-1)))
}

func TestWithLineTotals(t *testing.T) {
	items := WithLineTotals([]LineItem{{Price: 19.99, Quantity: 3, LineTotal: 1}})
	require.Len(t, items, 1)
	assert.Equal(t, 59.97, items[0].LineTotal)
	assert.Nil(t, WithLineTotals(nil))
}
