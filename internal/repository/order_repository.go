package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository persists orders with their line items
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Order, error)
	// Update writes the status flags, the total and each item's return markers. Snapshot fields never change.
	Update(ctx context.Context, order *domain.Order) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error)
}

type orderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db DBTX) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, account_id, guest_token, contact_email, shipping_address, total_price,
	is_paid, paid_at, paid_by, is_shipped, shipped_at, is_cancelled, cancelled_at, cancelled_by,
	is_returned, returned_at, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.AccountID,
		&order.GuestToken,
		&order.ContactEmail,
		&order.ShippingAddress,
		&order.TotalPrice,
		&order.IsPaid,
		&order.PaidAt,
		&order.PaidBy,
		&order.IsShipped,
		&order.ShippedAt,
		&order.IsCancelled,
		&order.CancelledAt,
		&order.CancelledBy,
		&order.IsReturned,
		&order.ReturnedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.AccountID,
		order.GuestToken,
		order.ContactEmail,
		order.ShippingAddress,
		order.TotalPrice,
		order.IsPaid,
		order.PaidAt,
		order.PaidBy,
		order.IsShipped,
		order.ShippedAt,
		order.IsCancelled,
		order.CancelledAt,
		order.CancelledBy,
		order.IsReturned,
		order.ReturnedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i, item := range order.Items {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, name, quantity, unit_price, line_total, is_returned, returned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, item.ID, order.ID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal, item.IsReturned, item.ReturnedAt)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1` + lockClause(forUpdate)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, name, quantity, unit_price, line_total, is_returned, returned_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	order.Items = []domain.OrderLineItem{}
	for rows.Next() {
		var item domain.OrderLineItem
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Name,
			&item.Quantity,
			&item.UnitPrice,
			&item.LineTotal,
			&item.IsReturned,
			&item.ReturnedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET total_price = $2, is_paid = $3, paid_at = $4, paid_by = $5,
		    is_shipped = $6, shipped_at = $7, is_cancelled = $8, cancelled_at = $9,
		    cancelled_by = $10, is_returned = $11, returned_at = $12, updated_at = $13
		WHERE id = $1
	`,
		order.ID,
		order.TotalPrice,
		order.IsPaid,
		order.PaidAt,
		order.PaidBy,
		order.IsShipped,
		order.ShippedAt,
		order.IsCancelled,
		order.CancelledAt,
		order.CancelledBy,
		order.IsReturned,
		order.ReturnedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	for _, item := range order.Items {
		_, err := r.db.ExecContext(ctx,
			`UPDATE order_items SET is_returned = $2, returned_at = $3 WHERE id = $1`,
			item.ID, item.IsReturned, item.ReturnedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders, err := r.collect(ctx, rows)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders, err := r.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// collect drains the header rows before loading items so only one result set is open at a time.
func (r *orderRepository) collect(ctx context.Context, rows *sql.Rows) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for _, order := range orders {
		if err := r.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}
