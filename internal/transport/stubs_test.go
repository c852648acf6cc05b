package transport

import (
	"context"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"
	"farmmarket/internal/service"

	"github.com/google/uuid"
)

// stubCartService answers every call with the configured cart or error and records the arguments.
type stubCartService struct {
	cart  *domain.Cart
	err   error
	owner domain.Owner
	items []service.ItemRequest
	token string
}

func (s *stubCartService) Get(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	s.owner = owner
	return s.cart, s.err
}

func (s *stubCartService) AddItems(ctx context.Context, owner domain.Owner, items []service.ItemRequest) (*domain.Cart, error) {
	s.owner, s.items = owner, items
	return s.cart, s.err
}

func (s *stubCartService) DecrementItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error) {
	s.owner = owner
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, owner domain.Owner, productID uuid.UUID) (*domain.Cart, error) {
	s.owner = owner
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	s.owner = owner
	return s.cart, s.err
}

func (s *stubCartService) MergeGuestIntoUser(ctx context.Context, guestToken string, owner domain.Owner) (*domain.Cart, error) {
	s.owner, s.token = owner, guestToken
	return s.cart, s.err
}

func (s *stubCartService) ListCarts(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error) {
	if s.cart == nil {
		return nil, 0, s.err
	}
	return []*domain.Cart{s.cart}, 1, s.err
}

type stubOrderService struct {
	order    *domain.Order
	err      error
	owner    domain.Owner
	checkout service.CheckoutRequest
	paidBy   *uuid.UUID
}

func (s *stubOrderService) Checkout(ctx context.Context, owner domain.Owner, req service.CheckoutRequest) (*domain.Order, error) {
	s.owner, s.checkout = owner, req
	return s.order, s.err
}

func (s *stubOrderService) Cancel(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error) {
	s.owner = owner
	return s.order, s.err
}

func (s *stubOrderService) ReturnItem(ctx context.Context, owner domain.Owner, orderID, itemID uuid.UUID) (*domain.Order, error) {
	s.owner = owner
	return s.order, s.err
}

func (s *stubOrderService) MarkPaid(ctx context.Context, orderID uuid.UUID, paidBy *uuid.UUID) (*domain.Order, error) {
	s.paidBy = paidBy
	return s.order, s.err
}

func (s *stubOrderService) MarkShipped(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) GetOrder(ctx context.Context, owner domain.Owner, orderID uuid.UUID) (*domain.Order, error) {
	s.owner = owner
	return s.order, s.err
}

func (s *stubOrderService) ListOwnOrders(ctx context.Context, owner domain.Owner) ([]*domain.Order, error) {
	s.owner = owner
	return nil, s.err
}

func (s *stubOrderService) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error) {
	return nil, s.err
}

func (s *stubOrderService) ListOrders(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error) {
	return nil, 0, s.err
}

type stubCatalogService struct {
	filter  repository.ProductFilter
	product *domain.Product
	update  service.ProductUpdate
	actor   domain.Owner
	farmer  uuid.UUID
	deleted uuid.UUID
	err     error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	s.filter = filter
	return nil, 0, s.err
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.product, s.err
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	s.product = product
	return product, s.err
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return nil, s.err
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	return &domain.Category{ID: uuid.New(), Name: name, Description: description}, s.err
}

func (s *stubCatalogService) ListByFarmer(ctx context.Context, farmerID uuid.UUID, page, pageSize int) ([]*domain.Product, int, error) {
	s.farmer = farmerID
	return nil, 0, s.err
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, actor domain.Owner, id uuid.UUID, update service.ProductUpdate) (*domain.Product, error) {
	s.actor = actor
	s.update = update
	return &domain.Product{ID: id}, s.err
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, actor domain.Owner, id uuid.UUID) error {
	s.actor = actor
	s.deleted = id
	return s.err
}

func (s *stubCatalogService) GetCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return &domain.Category{ID: id}, s.err
}

func (s *stubCatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name, description *string) (*domain.Category, error) {
	category := &domain.Category{ID: id}
	if name != nil {
		category.Name = *name
	}
	return category, s.err
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}
