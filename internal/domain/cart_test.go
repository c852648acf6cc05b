package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumLines(c *Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal)
	}
	return total
}

// Property 2: cart total always equals the sum of its line totals
func TestProperty_CartTotalMatchesLineItems(t *testing.T) {
	properties := gopter.NewProperties(nil)

	products := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	properties.Property("total bill is recomputed after every mutation", prop.ForAll(
		func(ops []int, quantities []int, cents []int) bool {
			cart := NewCart(Anonymous("guest"), testNow)
			for i, op := range ops {
				productID := products[op%len(products)]
				qty := quantities[i%len(quantities)]
				price := decimal.New(int64(cents[i%len(cents)]), -2)

				switch op % 3 {
				case 0:
					cart.Add(productID, qty, price)
				case 1:
					_, _ = cart.Decrement(productID)
				case 2:
					_, _ = cart.Remove(productID)
				}

				if !cart.TotalBill.Equal(sumLines(cart)) {
					t.Logf("FAIL: total %s != sum %s", cart.TotalBill, sumLines(cart))
					return false
				}
				for _, item := range cart.Items {
					if item.Quantity <= 0 {
						t.Logf("FAIL: non-positive quantity kept in cart")
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(30, gen.IntRange(0, 100)),
		gen.SliceOfN(30, gen.IntRange(1, 10)),
		gen.SliceOfN(30, gen.IntRange(1, 10000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCart_AddAccumulatesAndRepricesLine(t *testing.T) {
	productID := uuid.New()
	cart := NewCart(Authenticated(uuid.New(), RoleBuyer), testNow)

	cart.Add(productID, 2, decimal.RequireFromString("1.50"))
	cart.Add(productID, 3, decimal.RequireFromString("2.00"))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].LineTotal.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, cart.TotalBill.Equal(decimal.RequireFromString("10.00")))
}

func TestCart_DecrementToZeroRemovesLine(t *testing.T) {
	productID := uuid.New()
	cart := NewCart(Anonymous("tok"), testNow)
	cart.Add(productID, 1, decimal.NewFromInt(4))

	removed, err := cart.Decrement(productID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalBill.IsZero())

	_, err = cart.Decrement(productID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCart_DrainReturnsItems(t *testing.T) {
	cart := NewCart(Anonymous("tok"), testNow)
	cart.Add(uuid.New(), 2, decimal.NewFromInt(3))
	cart.Add(uuid.New(), 1, decimal.NewFromInt(5))

	drained := cart.Drain()
	assert.Len(t, drained, 2)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.TotalBill.IsZero())
}

func TestCart_OwnerRoundTrip(t *testing.T) {
	accountID := uuid.New()
	cart := NewCart(Authenticated(accountID, RoleBuyer), testNow)
	assert.Equal(t, OwnerAuthenticated, cart.Owner().Kind)
	assert.Equal(t, accountID, cart.Owner().AccountID)
	assert.Nil(t, cart.GuestToken)

	guest := NewCart(Anonymous("abc"), testNow)
	assert.Equal(t, "abc", guest.Owner().Token)
	assert.Nil(t, guest.AccountID)
}
