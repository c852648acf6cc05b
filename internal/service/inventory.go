package service

import (
	"context"
	"errors"
	"fmt"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Inventory is the only path through which cart and order quantities touch product stock.
// Both operations must be given repositories bound to the caller's transaction.
type Inventory struct {
	logger *zap.Logger
}

// NewInventory creates an Inventory. A nil logger discards warnings.
func NewInventory(logger *zap.Logger) Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Inventory{logger: logger}
}

// Reserve debits quantity from the product and returns the product as it stands after the debit,
// so the caller captures the unit price at reservation time.
func (i Inventory) Reserve(ctx context.Context, products repository.ProductRepository, productID uuid.UUID, quantity int) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := products.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &domain.ItemFailure{ProductID: productID, Requested: quantity, Err: domain.ErrProductNotFound}
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	if quantity > product.QuantityAvailable {
		return nil, stockFailure(productID, quantity, product.QuantityAvailable)
	}

	updated, err := products.AdjustStock(ctx, productID, -quantity)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, stockFailure(productID, quantity, product.QuantityAvailable)
		}
		return nil, fmt.Errorf("failed to debit stock: %w", err)
	}

	return updated, nil
}

// Release credits quantity back to the product. It does not detect double release.
// Line items only reference products weakly, so releasing to a deleted product drops the units.
func (i Inventory) Release(ctx context.Context, products repository.ProductRepository, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	if _, err := products.AdjustStock(ctx, productID, quantity); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			if i.logger != nil {
				i.logger.Warn("Released stock for a deleted product",
					zap.String("product_id", productID.String()),
					zap.Int("quantity", quantity),
				)
			}
			return nil
		}
		return fmt.Errorf("failed to credit stock: %w", err)
	}
	return nil
}

func stockFailure(productID uuid.UUID, requested, available int) *domain.ItemFailure {
	return &domain.ItemFailure{
		ProductID: productID,
		Requested: requested,
		Available: available,
		Err:       domain.ErrOutOfStock,
	}
}
