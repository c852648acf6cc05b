package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrders struct {
	paid    []uuid.UUID
	paidBy  []*uuid.UUID
	shipped []uuid.UUID
	err     error
}

func (s *stubOrders) MarkPaid(ctx context.Context, orderID uuid.UUID, paidBy *uuid.UUID) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.paid = append(s.paid, orderID)
	s.paidBy = append(s.paidBy, paidBy)
	return &domain.Order{ID: orderID, IsPaid: true}, nil
}

func (s *stubOrders) MarkShipped(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.shipped = append(s.shipped, orderID)
	return &domain.Order{ID: orderID, IsShipped: true}, nil
}

func TestPaymentHandler(t *testing.T) {
	orders := &stubOrders{}
	handle := PaymentHandler(orders, zap.NewNop())
	orderID := uuid.New()
	payer := uuid.New()

	err := handle(context.Background(), []byte(`{"order_id":"`+orderID.String()+`","paid_by":"`+payer.String()+`"}`))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{orderID}, orders.paid)
	require.NotNil(t, orders.paidBy[0])
	assert.Equal(t, payer, *orders.paidBy[0])
}

func TestFulfillmentHandler(t *testing.T) {
	orders := &stubOrders{}
	handle := FulfillmentHandler(orders, zap.NewNop())
	orderID := uuid.New()

	require.NoError(t, handle(context.Background(), []byte(`{"order_id":"`+orderID.String()+`"}`)))
	assert.Equal(t, []uuid.UUID{orderID}, orders.shipped)
}

func TestHandlers_DropBadPayloads(t *testing.T) {
	orders := &stubOrders{}
	payment := PaymentHandler(orders, zap.NewNop())
	fulfillment := FulfillmentHandler(orders, zap.NewNop())

	for _, payload := range []string{`not json`, `{}`, `{"order_id":"00000000-0000-0000-0000-000000000000"}`} {
		assert.NoError(t, payment(context.Background(), []byte(payload)))
		assert.NoError(t, fulfillment(context.Background(), []byte(payload)))
	}
	assert.Empty(t, orders.paid)
	assert.Empty(t, orders.shipped)
}

func TestHandlers_BusinessRejectionsAreSettled(t *testing.T) {
	for _, rejection := range []error{domain.ErrOrderNotFound, domain.ErrAlreadyPaid, domain.ErrOrderCancelled} {
		orders := &stubOrders{err: rejection}
		handle := PaymentHandler(orders, zap.NewNop())
		assert.NoError(t, handle(context.Background(), []byte(`{"order_id":"`+uuid.NewString()+`"}`)))
	}
}

func TestHandlers_InfrastructureErrorsPropagate(t *testing.T) {
	orders := &stubOrders{err: errors.New("connection reset")}
	handle := FulfillmentHandler(orders, zap.NewNop())

	err := handle(context.Background(), []byte(`{"order_id":"`+uuid.NewString()+`"}`))
	assert.Error(t, err)

	orders.err = fmt.Errorf("%w: serialization failure", domain.ErrTransaction)
	err = PaymentHandler(orders, zap.NewNop())(context.Background(), []byte(`{"order_id":"`+uuid.NewString()+`"}`))
	assert.ErrorIs(t, err, domain.ErrTransaction)
}

type capturePublisher struct {
	topic string
	key   string
	event any
	err   error
}

func (p *capturePublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.topic, p.key, p.event = topic, key, event
	return p.err
}

func TestEmailSender(t *testing.T) {
	pub := &capturePublisher{}
	sender := NewEmailSender(pub, "notifications.email", "shop@example.com")

	require.NoError(t, sender.Send(context.Background(), "buyer@example.com", "Hello", "Body"))
	assert.Equal(t, "notifications.email", pub.topic)
	assert.Equal(t, "buyer@example.com", pub.key)

	msg, ok := pub.event.(EmailMessage)
	require.True(t, ok)
	assert.Equal(t, "shop@example.com", msg.From)
	assert.Equal(t, "Hello", msg.Subject)

	pub.err = errors.New("broker down")
	assert.Error(t, sender.Send(context.Background(), "x@example.com", "s", "b"))
}
