package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ItemRequest asks for quantity units of a product to be added to a cart
type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartService defines the interface for cart business logic
type CartService interface {
	Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	AddItems(ctx context.Context, owner domain.Owner, items []ItemRequest) (*domain.Cart, error)
	DecrementItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error)
	Clear(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	MergeGuestIntoUser(ctx context.Context, guestToken string, owner domain.Owner) (*domain.Cart, error)
	ListCarts(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error)
}

// Clock returns the current time. Tests replace it to move across time windows.
type Clock func() time.Time

type cartService struct {
	store     repository.Store
	inventory Inventory
	now       Clock
	logger    *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(store repository.Store, clock Clock, logger *zap.Logger) CartService {
	if clock == nil {
		clock = time.Now
	}
	return &cartService{
		store:     store,
		inventory: NewInventory(logger),
		now:       clock,
		logger:    logger,
	}
}

// Get returns the owner's cart, or an empty view when none has been created yet
func (s *cartService) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.store.Carts().FindByOwner(ctx, owner, false)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.EmptyCartView(owner), nil
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

// AddItems reserves stock for every requested item and adds them to the cart in one transaction.
// The batch is all-or-nothing: when any item is unknown or short on stock nothing is committed and
// the returned *domain.BatchError lists every failing item.
func (s *cartService) AddItems(ctx context.Context, owner domain.Owner, items []ItemRequest) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	requested, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		cart, err = s.lockOrCreate(ctx, tx, owner)
		if err != nil {
			return err
		}

		// Lock products in a stable order so concurrent batches cannot deadlock each other.
		ordered := make([]ItemRequest, len(requested))
		copy(ordered, requested)
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].ProductID.String() < ordered[j].ProductID.String()
		})

		prices := make(map[uuid.UUID]decimal.Decimal, len(ordered))
		var failures []*domain.ItemFailure
		for _, item := range ordered {
			product, err := s.inventory.Reserve(ctx, tx.Products(), item.ProductID, item.Quantity)
			if err != nil {
				var failure *domain.ItemFailure
				if errors.As(err, &failure) {
					failures = append(failures, failure)
					continue
				}
				return err
			}
			prices[item.ProductID] = product.Price
		}
		if len(failures) > 0 {
			return &domain.BatchError{Failures: failures}
		}

		for _, item := range requested {
			cart.Add(item.ProductID, item.Quantity, prices[item.ProductID])
		}
		cart.UpdatedAt = s.now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Items added to cart",
		zap.String("cart_id", cart.ID.String()),
		zap.Int("items", len(requested)),
	)
	return cart, nil
}

// DecrementItem removes one unit of a product from the cart and gives it back to stock
func (s *cartService) DecrementItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(tx repository.Store, cart *domain.Cart) error {
		if _, err := cart.Decrement(productID); err != nil {
			return err
		}
		return s.inventory.Release(ctx, tx.Products(), productID, 1)
	})
}

// RemoveItem drops a product line from the cart and gives its whole quantity back to stock
func (s *cartService) RemoveItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, owner, func(tx repository.Store, cart *domain.Cart) error {
		item, err := cart.Remove(productID)
		if err != nil {
			return err
		}
		return s.inventory.Release(ctx, tx.Products(), productID, item.Quantity)
	})
}

// Clear empties the cart and releases every reserved unit. Clearing a cart that does not exist is a no-op.
func (s *cartService) Clear(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	cart, err := s.mutate(ctx, owner, func(tx repository.Store, cart *domain.Cart) error {
		for _, item := range sortedLines(cart.Drain()) {
			if err := s.inventory.Release(ctx, tx.Products(), item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.EmptyCartView(owner), nil
	}
	return cart, err
}

// MergeGuestIntoUser folds an anonymous cart into the account's cart and deletes the anonymous cart.
// Stock is untouched because the guest lines already hold their reservations.
func (s *cartService) MergeGuestIntoUser(ctx context.Context, guestToken string, owner domain.Owner) (*domain.Cart, error) {
	if !owner.IsAuthenticated() {
		return nil, domain.ErrAccountRequired
	}
	guestToken = strings.TrimSpace(guestToken)
	if guestToken == "" {
		return nil, domain.ErrGuestToken
	}

	var cart *domain.Cart
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		guest, err := tx.Carts().FindByOwner(ctx, domain.Anonymous(guestToken), true)
		if err != nil {
			if errors.Is(err, repository.ErrCartNotFound) {
				return domain.ErrCartNotFound
			}
			return fmt.Errorf("failed to load guest cart: %w", err)
		}

		cart, err = s.lockOrCreate(ctx, tx, owner)
		if err != nil {
			return err
		}

		for _, line := range guest.Items {
			price := line.UnitPrice
			product, err := tx.Products().FindByID(ctx, line.ProductID)
			switch {
			case err == nil:
				price = product.Price
			case !errors.Is(err, repository.ErrProductNotFound):
				return fmt.Errorf("failed to load product: %w", err)
			}
			cart.Add(line.ProductID, line.Quantity, price)
		}
		cart.UpdatedAt = s.now()

		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		return tx.Carts().Delete(ctx, guest.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Guest cart merged",
		zap.String("cart_id", cart.ID.String()),
		zap.String("account_id", owner.AccountID.String()),
	)
	return cart, nil
}

// ListCarts returns every cart, newest first
func (s *cartService) ListCarts(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error) {
	carts, total, err := s.store.Carts().List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list carts: %w", err)
	}
	return carts, total, nil
}

// mutate locks an existing cart, applies fn and saves the result in one transaction
func (s *cartService) mutate(ctx context.Context, owner domain.Owner, fn func(tx repository.Store, cart *domain.Cart) error) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		cart, err = tx.Carts().FindByOwner(ctx, owner, true)
		if err != nil {
			if errors.Is(err, repository.ErrCartNotFound) {
				return domain.ErrCartNotFound
			}
			return fmt.Errorf("failed to load cart: %w", err)
		}

		if err := fn(tx, cart); err != nil {
			return err
		}
		cart.UpdatedAt = s.now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) lockOrCreate(ctx context.Context, tx repository.Store, owner domain.Owner) (*domain.Cart, error) {
	cart, err := tx.Carts().FindByOwner(ctx, owner, true)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if err := tx.Carts().Insert(ctx, domain.NewCart(owner, s.now())); err != nil {
		return nil, err
	}

	// Re-read so a cart created concurrently by another request is picked up instead of ours.
	cart, err = tx.Carts().FindByOwner(ctx, owner, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load created cart: %w", err)
	}
	return cart, nil
}

// normalizeItems rejects malformed requests before any mutation and folds duplicate product ids together
func normalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoItemsRequested
	}

	index := make(map[uuid.UUID]int, len(items))
	out := make([]ItemRequest, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, domain.ErrInvalidProductRef
		}
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func sortedLines(lines []domain.CartLineItem) []domain.CartLineItem {
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	return lines
}
