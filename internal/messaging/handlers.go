package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderUpdater is the part of the order service driven by payment and fulfillment events
type OrderUpdater interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, paidBy *uuid.UUID) (*domain.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// PaymentHandler returns a consumer handler that marks orders paid.
// Business rejections are logged and dropped so the message is not redelivered forever.
func PaymentHandler(orders OrderUpdater, logger *zap.Logger) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var event PaymentConfirmed
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Warn("Dropping malformed payment event", zap.Error(err))
			return nil
		}
		if event.OrderID == uuid.Nil {
			logger.Warn("Dropping payment event without order id")
			return nil
		}

		_, err := orders.MarkPaid(ctx, event.OrderID, event.PaidBy)
		return settle(logger, "payment", event.OrderID, err)
	}
}

// FulfillmentHandler returns a consumer handler that marks orders shipped
func FulfillmentHandler(orders OrderUpdater, logger *zap.Logger) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var event ShipmentDispatched
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Warn("Dropping malformed fulfillment event", zap.Error(err))
			return nil
		}
		if event.OrderID == uuid.Nil {
			logger.Warn("Dropping fulfillment event without order id")
			return nil
		}

		_, err := orders.MarkShipped(ctx, event.OrderID)
		return settle(logger, "fulfillment", event.OrderID, err)
	}
}

func settle(logger *zap.Logger, kind string, orderID uuid.UUID, err error) error {
	switch {
	case err == nil:
		logger.Info("Order event applied", zap.String("kind", kind), zap.String("order_id", orderID.String()))
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrStateConflict):
		logger.Warn("Order event rejected",
			zap.String("kind", kind),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return nil
	default:
		return fmt.Errorf("%s event for order %s: %w", kind, orderID, err)
	}
}
