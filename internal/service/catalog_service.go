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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductUpdate lists the product fields to change. Nil fields are left as they are.
type ProductUpdate struct {
	Name              *string
	Description       *string
	Store             *string
	Location          *string
	Price             *decimal.Decimal
	CategoryID        *uuid.UUID
	QuantityAvailable *int
}

// CatalogService serves the product and category read surface and the seller and admin writes behind it
type CatalogService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Owner, id uuid.UUID, update ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor domain.Owner, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name, description *string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	store  repository.Store
	now    Clock
	logger *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(store repository.Store, clock Clock, logger *zap.Logger) CatalogService {
	if clock == nil {
		clock = time.Now
	}
	return &catalogService{store: store, now: clock, logger: logger}
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, 0, fmt.Errorf("%w: minPrice is greater than maxPrice", domain.ErrValidation)
	}
	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// ListByFarmer lists the products a farmer has listed, newest first
func (s *catalogService) ListByFarmer(ctx context.Context, farmerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	return s.ListProducts(ctx, repository.ProductFilter{
		FarmerID:  &farmerID,
		Page:      page,
		PageSize:  pageSize,
		SortBy:    "created_at",
		SortOrder: repository.SortOrderDesc,
	})
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// CreateProduct validates and stores a new product. The category must exist.
func (s *catalogService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, s.store, product.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	product.ID = uuid.New()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.Int("quantity_available", product.QuantityAvailable),
	)
	return product, nil
}

// UpdateProduct applies a partial update under the product's row lock, so a concurrent
// reservation never sees a half-written stock level. Order snapshots are not touched.
func (s *catalogService) UpdateProduct(ctx context.Context, actor domain.Owner, id uuid.UUID, update ProductUpdate) (*domain.Product, error) {
	var product *domain.Product
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		product, err = s.editable(ctx, tx, actor, id)
		if err != nil {
			return err
		}

		if update.Name != nil {
			product.Name = strings.TrimSpace(*update.Name)
		}
		if update.Description != nil {
			product.Description = strings.TrimSpace(*update.Description)
		}
		if update.Store != nil {
			product.Store = strings.TrimSpace(*update.Store)
		}
		if update.Location != nil {
			product.Location = strings.TrimSpace(*update.Location)
		}
		if update.Price != nil {
			product.Price = *update.Price
		}
		if update.QuantityAvailable != nil {
			product.QuantityAvailable = *update.QuantityAvailable
		}
		if err := validateProduct(product); err != nil {
			return err
		}
		if update.CategoryID != nil && *update.CategoryID != product.CategoryID {
			if err := s.requireCategory(ctx, tx, *update.CategoryID); err != nil {
				return err
			}
			product.CategoryID = *update.CategoryID
		}

		product.UpdatedAt = s.now()
		if err := tx.Products().Update(ctx, product); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return domain.ErrProductNotFound
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product updated",
		zap.String("product_id", product.ID.String()),
		zap.String("price", product.Price.String()),
		zap.Int("quantity_available", product.QuantityAvailable),
	)
	return product, nil
}

// DeleteProduct removes a product from the catalog. Carts and orders holding it keep their lines.
func (s *catalogService) DeleteProduct(ctx context.Context, actor domain.Owner, id uuid.UUID) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := s.editable(ctx, tx, actor, id); err != nil {
			return err
		}
		if err := tx.Products().Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return domain.ErrProductNotFound
			}
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *catalogService) editable(ctx context.Context, tx repository.Store, actor domain.Owner, id uuid.UUID) (*domain.Product, error) {
	product, err := tx.Products().FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !product.EditableBy(actor) {
		return nil, domain.ErrNotProductOwner
	}
	return product, nil
}

func (s *catalogService) requireCategory(ctx context.Context, store repository.Store, id uuid.UUID) error {
	if _, err := store.Categories().FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return domain.ErrCategoryMissing
		}
		return fmt.Errorf("failed to get category: %w", err)
	}
	return nil
}

func validateProduct(product *domain.Product) error {
	switch {
	case product.Name == "":
		return domain.ErrNameRequired
	case !product.Price.IsPositive():
		return domain.ErrInvalidPrice
	case product.QuantityAvailable < 0:
		return domain.ErrInvalidStock
	}
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.store.Categories().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	}
	if err := s.store.Categories().Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, domain.ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.store.Categories().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, domain.ErrCategoryMissing
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// UpdateCategory renames a category or replaces its description. Nil arguments are left as they are.
func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name, description *string) (*domain.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		category.Name = strings.TrimSpace(*name)
		if category.Name == "" {
			return nil, domain.ErrNameRequired
		}
	}
	if description != nil {
		category.Description = strings.TrimSpace(*description)
	}

	if err := s.store.Categories().Update(ctx, category); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryAlreadyExists):
			return nil, domain.ErrCategoryExists
		case errors.Is(err, repository.ErrCategoryNotFound):
			return nil, domain.ErrCategoryMissing
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes an empty category
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Categories().Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryInUse):
			return domain.ErrCategoryInUse
		case errors.Is(err, repository.ErrCategoryNotFound):
			return domain.ErrCategoryMissing
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}

	s.logger.Info("Category deleted", zap.String("category_id", id.String()))
	return nil
}
