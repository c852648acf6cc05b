package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error taxonomy. Every error returned by the services wraps exactly one of these,
// so callers classify with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrOutOfStock    = errors.New("out of stock")
	ErrStateConflict = errors.New("state conflict")
	ErrTransaction   = errors.New("transaction failed")
	ErrForbidden     = errors.New("forbidden")
)

var (
	ErrProductNotFound = wrap(ErrNotFound, "product not found")
	ErrCartNotFound    = wrap(ErrNotFound, "cart not found")
	ErrItemNotInCart   = wrap(ErrNotFound, "product not found in cart")
	ErrOrderNotFound   = wrap(ErrNotFound, "order not found")
	ErrOrderItemAbsent = wrap(ErrNotFound, "order item not found")
	ErrCategoryMissing = wrap(ErrNotFound, "category not found")

	ErrEmptyCart         = wrap(ErrValidation, "cart is empty")
	ErrOwnerRequired     = wrap(ErrValidation, "owner key is required")
	ErrAccountRequired   = wrap(ErrValidation, "an authenticated account is required")
	ErrGuestToken        = wrap(ErrValidation, "anonymous cart token is required")
	ErrShippingAddress   = wrap(ErrValidation, "shipping address is required")
	ErrNoItemsRequested  = wrap(ErrValidation, "at least one item is required")
	ErrInvalidQuantity   = wrap(ErrValidation, "quantity must be greater than zero")
	ErrInvalidProductRef = wrap(ErrValidation, "product id is required")
	ErrInvalidPrice      = wrap(ErrValidation, "price must be greater than zero")
	ErrInvalidStock      = wrap(ErrValidation, "quantity available cannot be negative")
	ErrNameRequired      = wrap(ErrValidation, "name is required")

	ErrAlreadyCancelled    = wrap(ErrStateConflict, "order has already been cancelled")
	ErrAlreadyReturned     = wrap(ErrStateConflict, "order has already been returned")
	ErrItemAlreadyReturned = wrap(ErrStateConflict, "order item has already been returned")
	ErrAlreadyShipped      = wrap(ErrStateConflict, "shipped orders cannot be cancelled")
	ErrAlreadyPaid         = wrap(ErrStateConflict, "order has already been paid")
	ErrShipmentRecorded    = wrap(ErrStateConflict, "order has already been shipped")
	ErrOrderCancelled      = wrap(ErrStateConflict, "order is cancelled")
	ErrCancelWindowExpired = wrap(ErrStateConflict, "cancellation window has expired")
	ErrReturnWindowExpired = wrap(ErrStateConflict, "return window has expired")
	ErrCategoryExists      = wrap(ErrStateConflict, "category with this name already exists")
	ErrCategoryInUse       = wrap(ErrStateConflict, "category still has products")

	ErrNotProductOwner = wrap(ErrForbidden, "only the farmer who listed the product may change it")
)

type taxonomyError struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error {
	return &taxonomyError{kind: kind, msg: msg}
}

func (e *taxonomyError) Error() string { return e.msg }

func (e *taxonomyError) Unwrap() error { return e.kind }

// ItemFailure explains why one product in a batch could not be reserved or converted.
type ItemFailure struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
	Err       error     `json:"-"`
}

func (f *ItemFailure) Error() string {
	if errors.Is(f.Err, ErrOutOfStock) {
		return fmt.Sprintf("product %s: requested %d, available %d", f.ProductID, f.Requested, f.Available)
	}
	return fmt.Sprintf("product %s: %v", f.ProductID, f.Err)
}

func (f *ItemFailure) Unwrap() error { return f.Err }

// BatchError carries every item failure of a multi-item operation that was rolled back as a whole.
type BatchError struct {
	Failures []*ItemFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return "batch rejected: " + strings.Join(parts, "; ")
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
