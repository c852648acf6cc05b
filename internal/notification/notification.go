package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender delivers one message to one recipient
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes notifications to the log instead of delivering them
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	s.Logger.Info("Notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

// Dispatcher sends order confirmations to the buyer and a sale notice to each farmer whose stock was sold.
// Every notification runs in its own goroutine; failures are logged and never reach the caller.
type Dispatcher struct {
	sender  Sender
	store   repository.Store
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A non-positive timeout defaults to ten seconds.
func NewDispatcher(sender Sender, store repository.Store, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, store: store, timeout: timeout, logger: logger}
}

// OrderPlaced schedules the notifications for a committed order and returns immediately
func (d *Dispatcher) OrderPlaced(order *domain.Order) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifyOrder(ctx, order); err != nil {
			d.logger.Warn("Order notification failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every scheduled notification has finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) notifyOrder(ctx context.Context, order *domain.Order) error {
	var errs []error

	buyer, err := d.buyerAddress(ctx, order)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("resolve buyer: %w", err))
	case buyer != "":
		subject := fmt.Sprintf("Order %s confirmed", order.ID)
		if err := d.sender.Send(ctx, buyer, subject, buyerBody(order)); err != nil {
			errs = append(errs, fmt.Errorf("notify buyer: %w", err))
		}
	}

	byFarmer, err := d.itemsByFarmer(ctx, order)
	if err != nil {
		errs = append(errs, err)
	}
	for farmerID, items := range byFarmer {
		account, err := d.store.Accounts().FindByID(ctx, farmerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve farmer %s: %w", farmerID, err))
			continue
		}
		subject := fmt.Sprintf("You sold %d item(s) in order %s", len(items), order.ID)
		if err := d.sender.Send(ctx, account.Email, subject, farmerBody(order, items)); err != nil {
			errs = append(errs, fmt.Errorf("notify farmer %s: %w", farmerID, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) buyerAddress(ctx context.Context, order *domain.Order) (string, error) {
	if order.ContactEmail != "" {
		return order.ContactEmail, nil
	}
	if order.AccountID == nil {
		return "", nil
	}
	account, err := d.store.Accounts().FindByID(ctx, *order.AccountID)
	if err != nil {
		return "", err
	}
	return account.Email, nil
}

// itemsByFarmer groups the order's items by the account that listed the product
func (d *Dispatcher) itemsByFarmer(ctx context.Context, order *domain.Order) (map[uuid.UUID][]domain.OrderLineItem, error) {
	out := make(map[uuid.UUID][]domain.OrderLineItem)
	var errs []error
	for _, item := range order.Items {
		product, err := d.store.Products().FindByID(ctx, item.ProductID)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve product %s: %w", item.ProductID, err))
			continue
		}
		if product.FarmerID == nil {
			continue
		}
		out[*product.FarmerID] = append(out[*product.FarmerID], item)
	}
	return out, errors.Join(errs...)
}

func buyerBody(order *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", order.ID)
	writeItems(&b, order.Items)
	fmt.Fprintf(&b, "\nTotal: %s\nShipping to: %s\n", order.TotalPrice.StringFixed(2), order.ShippingAddress)
	return b.String()
}

func farmerBody(order *domain.Order, items []domain.OrderLineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following items were sold from your stock in order %s:\n\n", order.ID)
	writeItems(&b, items)
	return b.String()
}

func writeItems(b *strings.Builder, items []domain.OrderLineItem) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s x%d @ %s = %s\n", item.Name, item.Quantity, item.UnitPrice.StringFixed(2), item.LineTotal.StringFixed(2))
	}
}
