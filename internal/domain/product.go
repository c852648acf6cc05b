package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a farm product in the catalog
type Product struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Description       string          `json:"description" db:"description"`
	Store             string          `json:"store" db:"store"`
	Location          string          `json:"location" db:"location"`
	Price             decimal.Decimal `json:"price" db:"price"`
	CategoryID        uuid.UUID       `json:"category_id" db:"category_id"`
	FarmerID          *uuid.UUID      `json:"farmer_id,omitempty" db:"farmer_id"`
	QuantityAvailable int             `json:"quantity_available" db:"quantity_available"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Account is the read-only view of a marketplace account used to address notifications.
type Account struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Email string    `json:"email" db:"email"`
	Name  string    `json:"name" db:"name"`
	Role  string    `json:"role" db:"role"`
}

// EditableBy reports whether owner may change or delete the product. Admins may edit
// any product, farmers only the ones listed under their account.
func (p *Product) EditableBy(owner Owner) bool {
	if owner.IsAdmin() {
		return true
	}
	return owner.IsAuthenticated() && owner.Role == RoleFarmer &&
		p.FarmerID != nil && *p.FarmerID == owner.AccountID
}
