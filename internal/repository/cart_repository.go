package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository loads and saves carts as whole aggregates
type CartRepository interface {
	// FindByOwner loads the owner's cart. With forUpdate the cart row stays locked until the transaction ends.
	FindByOwner(ctx context.Context, owner domain.Owner, forUpdate bool) (*domain.Cart, error)
	// Insert stores a new empty cart unless the owner already has one.
	Insert(ctx context.Context, cart *domain.Cart) error
	// Save overwrites the cart total and its line items.
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error)
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

const cartColumns = `id, account_id, guest_token, total_bill, created_at, updated_at`

func scanCart(row rowScanner) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := row.Scan(
		&cart.ID,
		&cart.AccountID,
		&cart.GuestToken,
		&cart.TotalBill,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	return cart, err
}

func (r *cartRepository) FindByOwner(ctx context.Context, owner domain.Owner, forUpdate bool) (*domain.Cart, error) {
	var (
		where string
		arg   any
	)
	switch {
	case owner.IsAuthenticated():
		where, arg = "account_id = $1", owner.AccountID
	case owner.IsAnonymous():
		where, arg = "guest_token = $1", owner.Token
	default:
		return nil, ErrCartNotFound
	}

	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + where + lockClause(forUpdate)

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	if err := r.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cart *domain.Cart) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, line_total
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position ASC
	`, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []domain.CartLineItem{}
	for rows.Next() {
		var item domain.CartLineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating cart items: %w", err)
	}
	return nil
}

func (r *cartRepository) Insert(ctx context.Context, cart *domain.Cart) error {
	query := `
		INSERT INTO carts (` + cartColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		cart.ID,
		cart.AccountID,
		cart.GuestToken,
		cart.TotalBill,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE carts SET total_bill = $2, updated_at = $3 WHERE id = $1`,
		cart.ID, cart.TotalBill, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCartNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	for i, item := range cart.Items {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, position, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, cart.ID, item.ProductID, i, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert cart item: %w", err)
		}
	}

	return nil
}

func (r *cartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM carts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count carts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cartColumns+` FROM carts ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list carts: %w", err)
	}

	carts := []*domain.Cart{}
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan cart: %w", err)
		}
		carts = append(carts, cart)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating carts: %w", err)
	}

	for _, cart := range carts {
		if err := r.loadItems(ctx, cart); err != nil {
			return nil, 0, err
		}
	}

	return carts, total, nil
}
