package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultCancelWindow = 24 * time.Hour
	DefaultReturnWindow = 7 * 24 * time.Hour
)

// OrderLineItem is an immutable snapshot of a product at checkout time.
// Only the return markers change after the order is created.
type OrderLineItem struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	IsReturned bool            `json:"is_returned"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
}

// Order is the durable record produced by checkout.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       *uuid.UUID      `json:"account_id,omitempty"`
	GuestToken      *string         `json:"-"`
	ContactEmail    string          `json:"contact_email,omitempty"`
	Items           []OrderLineItem `json:"items"`
	ShippingAddress string          `json:"shipping_address"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaidBy          *uuid.UUID      `json:"paid_by,omitempty"`
	IsShipped       bool            `json:"is_shipped"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	IsCancelled     bool            `json:"is_cancelled"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID      `json:"cancelled_by,omitempty"`
	IsReturned      bool            `json:"is_returned"`
	ReturnedAt      *time.Time      `json:"returned_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// LifecyclePolicy holds the time windows that gate post-checkout transitions.
type LifecyclePolicy struct {
	CancelWindow time.Duration
	ReturnWindow time.Duration
}

func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{CancelWindow: DefaultCancelWindow, ReturnWindow: DefaultReturnWindow}
}

// NewOrder builds an order for owner from snapshot line items. The total is the sum of line totals.
func NewOrder(owner Owner, shippingAddress, contactEmail string, items []OrderLineItem, now time.Time) *Order {
	o := &Order{
		ID:              uuid.New(),
		ContactEmail:    contactEmail,
		Items:           items,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	switch owner.Kind {
	case OwnerAuthenticated:
		id := owner.AccountID
		o.AccountID = &id
	case OwnerAnonymous:
		token := owner.Token
		o.GuestToken = &token
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	o.TotalPrice = total
	return o
}

// VisibleTo reports whether owner may read or act on the order.
func (o *Order) VisibleTo(owner Owner) bool {
	if owner.IsAdmin() {
		return true
	}
	if owner.IsAuthenticated() {
		return o.AccountID != nil && *o.AccountID == owner.AccountID
	}
	if owner.IsAnonymous() {
		return o.GuestToken != nil && *o.GuestToken == owner.Token
	}
	return false
}

// Cancel marks the order cancelled and returns the line items whose stock must be released.
// Items that were already returned individually have been released before and are skipped.
func (o *Order) Cancel(by *uuid.UUID, now time.Time, policy LifecyclePolicy) ([]OrderLineItem, error) {
	switch {
	case o.IsCancelled:
		return nil, ErrAlreadyCancelled
	case o.IsReturned:
		return nil, ErrAlreadyReturned
	case o.IsShipped:
		return nil, ErrAlreadyShipped
	case now.Sub(o.CreatedAt) > policy.CancelWindow:
		return nil, ErrCancelWindowExpired
	}

	o.IsCancelled = true
	o.CancelledAt = &now
	o.CancelledBy = by
	o.UpdatedAt = now

	release := make([]OrderLineItem, 0, len(o.Items))
	for _, item := range o.Items {
		if !item.IsReturned {
			release = append(release, item)
		}
	}
	return release, nil
}

// ReturnItem marks one line item returned and deducts its value from the order total.
// When every item has been returned the whole order becomes returned.
func (o *Order) ReturnItem(itemID uuid.UUID, now time.Time, policy LifecyclePolicy) (OrderLineItem, error) {
	idx := -1
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return OrderLineItem{}, ErrOrderItemAbsent
	}

	switch {
	case o.IsCancelled:
		return OrderLineItem{}, ErrOrderCancelled
	case o.IsReturned:
		return OrderLineItem{}, ErrAlreadyReturned
	case o.Items[idx].IsReturned:
		return OrderLineItem{}, ErrItemAlreadyReturned
	case now.Sub(o.CreatedAt) > policy.ReturnWindow:
		return OrderLineItem{}, ErrReturnWindowExpired
	}

	o.Items[idx].IsReturned = true
	o.Items[idx].ReturnedAt = &now
	o.TotalPrice = o.TotalPrice.Sub(o.Items[idx].LineTotal)
	o.UpdatedAt = now

	if o.allReturned() {
		o.IsReturned = true
		o.ReturnedAt = &now
	}
	return o.Items[idx], nil
}

func (o *Order) allReturned() bool {
	for _, item := range o.Items {
		if !item.IsReturned {
			return false
		}
	}
	return true
}

// MarkPaid records payment confirmation from the payment collaborator.
func (o *Order) MarkPaid(by *uuid.UUID, now time.Time) error {
	switch {
	case o.IsCancelled:
		return ErrOrderCancelled
	case o.IsPaid:
		return ErrAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &now
	o.PaidBy = by
	o.UpdatedAt = now
	return nil
}

// MarkShipped records dispatch from the fulfillment collaborator.
func (o *Order) MarkShipped(now time.Time) error {
	switch {
	case o.IsCancelled:
		return ErrOrderCancelled
	case o.IsReturned:
		return ErrAlreadyReturned
	case o.IsShipped:
		return ErrShipmentRecorded
	}
	o.IsShipped = true
	o.ShippedAt = &now
	o.UpdatedAt = now
	return nil
}
