package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"farmmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	CategoryID *uuid.UUID
	FarmerID   *uuid.UUID
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Location   string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  SortOrder
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, store, location, price, category_id, farmer_id, quantity_available, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Store,
		&product.Location,
		&product.Price,
		&product.CategoryID,
		&product.FarmerID,
		&product.QuantityAvailable,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Store,
		product.Location,
		product.Price,
		product.CategoryID,
		product.FarmerID,
		product.QuantityAvailable,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.find(ctx, id, false)
}

// FindByIDForUpdate retrieves a product and holds its row lock until the surrounding transaction ends
func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.find(ctx, id, true)
}

func (r *productRepository) find(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + lockClause(forUpdate)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// Update overwrites the editable columns of a product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, store = $4, location = $5, price = $6,
			category_id = $7, farmer_id = $8, quantity_available = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Store,
		product.Location,
		product.Price,
		product.CategoryID,
		product.FarmerID,
		product.QuantityAvailable,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	return requireAffected(result, ErrProductNotFound)
}

// Delete removes a product. Cart and order lines keep their copy of the product id.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return requireAffected(result, ErrProductNotFound)
}

// AdjustStock applies delta to quantity_available in one statement. The guard in the WHERE
// clause keeps the stock non-negative even when two transactions race for the last units.
func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET quantity_available = quantity_available + $2, updated_at = NOW()
		WHERE id = $1 AND quantity_available + $2 >= 0
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, delta))
	if err == nil {
		return product, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrInsufficientStock
}

// List retrieves products with optional filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":               true,
		"price":              true,
		"created_at":         true,
		"quantity_available": true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	conditions := []string{}
	args := []any{}
	next := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CategoryID != nil {
		next("category_id = $%d", *filter.CategoryID)
	}
	if filter.FarmerID != nil {
		next("farmer_id = $%d", *filter.FarmerID)
	}
	if filter.MinPrice != nil {
		next("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		next("price <= $%d", *filter.MaxPrice)
	}
	if strings.TrimSpace(filter.Location) != "" {
		next("lower(location) = lower($%d)", strings.TrimSpace(filter.Location))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortBy, sortOrder, len(args)+1, len(args)+2)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
