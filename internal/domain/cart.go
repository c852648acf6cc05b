package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLineItem is one product entry in a cart. It has no identity outside its cart.
type CartLineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Cart is the transient working state a buyer accumulates before checkout.
type Cart struct {
	ID         uuid.UUID       `json:"id"`
	AccountID  *uuid.UUID      `json:"account_id,omitempty"`
	GuestToken *string         `json:"guest_token,omitempty"`
	Items      []CartLineItem  `json:"items"`
	TotalBill  decimal.Decimal `json:"total_bill"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewCart creates an empty cart keyed by owner.
func NewCart(owner Owner, now time.Time) *Cart {
	c := &Cart{
		ID:        uuid.New(),
		Items:     []CartLineItem{},
		TotalBill: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch owner.Kind {
	case OwnerAuthenticated:
		id := owner.AccountID
		c.AccountID = &id
	case OwnerAnonymous:
		token := owner.Token
		c.GuestToken = &token
	}
	return c
}

// EmptyCartView is returned for owners that have not created a cart yet.
func EmptyCartView(owner Owner) *Cart {
	c := NewCart(owner, time.Time{})
	c.ID = uuid.Nil
	return c
}

// Owner reconstructs the owner key the cart is stored under.
func (c *Cart) Owner() Owner {
	if c.AccountID != nil {
		return Authenticated(*c.AccountID, "")
	}
	if c.GuestToken != nil {
		return Anonymous(*c.GuestToken)
	}
	return Owner{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Item returns the line item for productID.
func (c *Cart) Item(productID uuid.UUID) (CartLineItem, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return CartLineItem{}, false
	}
	return c.Items[i], true
}

// Add accumulates quantity for a product, refreshing the unit price to the one just captured.
func (c *Cart) Add(productID uuid.UUID, quantity int, unitPrice decimal.Decimal) {
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].UnitPrice = unitPrice
		c.Items[i].LineTotal = lineTotal(c.Items[i].Quantity, unitPrice)
	} else {
		c.Items = append(c.Items, CartLineItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal(quantity, unitPrice),
		})
	}
	c.Recalculate()
}

// Decrement lowers a line item by one unit, dropping the line when it reaches zero.
// It reports whether the line was removed.
func (c *Cart) Decrement(productID uuid.UUID) (bool, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return false, ErrItemNotInCart
	}
	c.Items[i].Quantity--
	removed := c.Items[i].Quantity <= 0
	if removed {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].LineTotal = lineTotal(c.Items[i].Quantity, c.Items[i].UnitPrice)
	}
	c.Recalculate()
	return removed, nil
}

// Remove drops a whole line item and returns it.
func (c *Cart) Remove(productID uuid.UUID) (CartLineItem, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return CartLineItem{}, ErrItemNotInCart
	}
	item := c.Items[i]
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Recalculate()
	return item, nil
}

// Drain empties the cart and returns the line items it held.
func (c *Cart) Drain() []CartLineItem {
	items := c.Items
	c.Items = []CartLineItem{}
	c.Recalculate()
	return items
}

// Recalculate rebuilds TotalBill from the line items. It never adjusts the total incrementally.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal)
	}
	c.TotalBill = total
}

func lineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}
