package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest carries the buyer supplied part of a new order
type CheckoutRequest struct {
	ShippingAddress string
	ContactEmail    string
}

// OrderNotifier is told about committed orders. Implementations must not block the caller.
type OrderNotifier interface {
	OrderPlaced(order *domain.Order)
}

type noopNotifier struct{}

func (noopNotifier) OrderPlaced(*domain.Order) {}

// OrderService defines the interface for order business logic
type OrderService interface {
	Checkout(ctx context.Context, owner domain.Owner, req CheckoutRequest) (*domain.Order, error)
	Cancel(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error)
	ReturnItem(ctx context.Context, owner domain.Owner, orderID, itemID uuid.UUID) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidBy *uuid.UUID) (*domain.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrder(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error)
	ListOwnOrders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error)
}

type orderService struct {
	store     repository.Store
	inventory Inventory
	policy    domain.LifecyclePolicy
	notifier  OrderNotifier
	now       Clock
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService. A nil notifier disables notifications.
func NewOrderService(store repository.Store, policy domain.LifecyclePolicy, notifier OrderNotifier, clock Clock, logger *zap.Logger) OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &orderService{
		store:     store,
		inventory: NewInventory(logger),
		policy:    policy,
		notifier:  notifier,
		now:       clock,
		logger:    logger,
	}
}

// Checkout converts the owner's cart into an order in one transaction.
// Stock was debited when items entered the cart, so it is only checked for drift here and never debited again.
func (s *orderService) Checkout(ctx context.Context, owner domain.Owner, req CheckoutRequest) (*domain.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, domain.ErrShippingAddress
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().FindByOwner(ctx, owner, true)
		if err != nil {
			if errors.Is(err, repository.ErrCartNotFound) {
				return domain.ErrEmptyCart
			}
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		names := make(map[uuid.UUID]string, len(cart.Items))
		var failures []*domain.ItemFailure
		for _, line := range sortedLines(append([]domain.CartLineItem(nil), cart.Items...)) {
			product, err := tx.Products().FindByIDForUpdate(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					failures = append(failures, &domain.ItemFailure{
						ProductID: line.ProductID,
						Requested: line.Quantity,
						Err:       domain.ErrProductNotFound,
					})
					continue
				}
				return fmt.Errorf("failed to load product: %w", err)
			}
			if product.QuantityAvailable < 0 {
				failures = append(failures, stockFailure(line.ProductID, line.Quantity, product.QuantityAvailable))
				continue
			}
			names[line.ProductID] = product.Name
		}
		if len(failures) > 0 {
			return &domain.BatchError{Failures: failures}
		}

		items := make([]domain.OrderLineItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			items = append(items, domain.OrderLineItem{
				ID:        uuid.New(),
				ProductID: line.ProductID,
				Name:      names[line.ProductID],
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}

		now := s.now()
		order = domain.NewOrder(owner, address, strings.TrimSpace(req.ContactEmail), items, now)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// The reserved quantities now belong to the order, so the cart is emptied without a release.
		cart.Drain()
		cart.UpdatedAt = now
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.Bool("guest", owner.IsAnonymous()),
		zap.String("total", order.TotalPrice.String()),
	)
	s.notifier.OrderPlaced(order)
	return order, nil
}

// Cancel cancels an order inside its cancellation window and gives every unreturned item back to stock
func (s *orderService) Cancel(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error) {
	var by *uuid.UUID
	if owner.IsAuthenticated() {
		id := owner.AccountID
		by = &id
	}

	return s.transition(ctx, &owner, orderID, func(tx repository.Store, order *domain.Order) error {
		release, err := order.Cancel(by, s.now(), s.policy)
		if err != nil {
			return err
		}
		for _, item := range release {
			if err := s.inventory.Release(ctx, tx.Products(), item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReturnItem returns one order item inside the return window and gives its quantity back to stock
func (s *orderService) ReturnItem(ctx context.Context, owner domain.Owner, orderID, itemID uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, &owner, orderID, func(tx repository.Store, order *domain.Order) error {
		item, err := order.ReturnItem(itemID, s.now(), s.policy)
		if err != nil {
			return err
		}
		return s.inventory.Release(ctx, tx.Products(), item.ProductID, item.Quantity)
	})
}

// MarkPaid records a payment confirmation. It is driven by the payment collaborator or an admin.
func (s *orderService) MarkPaid(ctx context.Context, orderID uuid.UUID, paidBy *uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, nil, orderID, func(_ repository.Store, order *domain.Order) error {
		return order.MarkPaid(paidBy, s.now())
	})
}

// MarkShipped records a dispatch. It is driven by the fulfillment collaborator or an admin.
func (s *orderService) MarkShipped(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.transition(ctx, nil, orderID, func(_ repository.Store, order *domain.Order) error {
		return order.MarkShipped(s.now())
	})
}

// GetOrder returns an order the owner is allowed to see. Orders of other owners look absent.
func (s *orderService) GetOrder(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	order, err := s.store.Orders().FindByID(ctx, orderID, false)
	if err != nil {
		return nil, mapOrderErr(err)
	}
	if !order.VisibleTo(owner) {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListOwnOrders lists the orders of an authenticated account
func (s *orderService) ListOwnOrders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	if !owner.IsAuthenticated() {
		return nil, domain.ErrAccountRequired
	}
	return s.ListByAccount(ctx, owner.AccountID)
}

func (s *orderService) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error) {
	orders, err := s.store.Orders().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error) {
	orders, total, err := s.store.Orders().List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// transition locks the order, applies fn and persists the result in one transaction.
// A nil owner is used by collaborators that may act on any order.
func (s *orderService) transition(ctx context.Context, owner *domain.Owner, orderID uuid.UUID, fn func(tx repository.Store, order *domain.Order) error) (*domain.Order, error) {
	if owner != nil {
		if err := owner.Validate(); err != nil {
			return nil, err
		}
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().FindByID(ctx, orderID, true)
		if err != nil {
			return mapOrderErr(err)
		}
		if owner != nil && !order.VisibleTo(*owner) {
			return domain.ErrOrderNotFound
		}

		if err := fn(tx, order); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order updated",
		zap.String("order_id", order.ID.String()),
		zap.Bool("paid", order.IsPaid),
		zap.Bool("shipped", order.IsShipped),
		zap.Bool("cancelled", order.IsCancelled),
		zap.Bool("returned", order.IsReturned),
	)
	return order, nil
}

func mapOrderErr(err error) error {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return domain.ErrOrderNotFound
	}
	return fmt.Errorf("failed to load order: %w", err)
}
