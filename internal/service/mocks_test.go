package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmmarket/internal/domain"
	"farmmarket/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memData is the state of the in-memory store. Every value is deep-copied on the way in and out
// so callers only observe changes that were saved.
type memData struct {
	products map[uuid.UUID]domain.Product
	carts    map[uuid.UUID]*domain.Cart
	orders   map[uuid.UUID]*domain.Order
	accounts map[uuid.UUID]domain.Account

	categories map[uuid.UUID]domain.Category
}

func (d *memData) clone() *memData {
	c := &memData{
		products: make(map[uuid.UUID]domain.Product, len(d.products)),
		carts:    make(map[uuid.UUID]*domain.Cart, len(d.carts)),
		orders:   make(map[uuid.UUID]*domain.Order, len(d.orders)),
		accounts: make(map[uuid.UUID]domain.Account, len(d.accounts)),

		categories: make(map[uuid.UUID]domain.Category, len(d.categories)),
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	return c
}

func copyCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = append([]domain.CartLineItem{}, c.Items...)
	return &out
}

func copyOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderLineItem{}, o.Items...)
	return &out
}

// memStore is an in-memory repository.Store. WithinTx serializes transactions and
// restores the snapshot taken at its start when fn fails.
type memStore struct {
	mu   *sync.Mutex
	data **memData
	inTx bool

	// failOrderCreate makes Orders().Create fail, for atomicity tests.
	failOrderCreate error
}

func newMemStore() *memStore {
	data := &memData{
		products: map[uuid.UUID]domain.Product{},
		carts:    map[uuid.UUID]*domain.Cart{},
		orders:   map[uuid.UUID]*domain.Order{},
		accounts: map[uuid.UUID]domain.Account{},

		categories: map[uuid.UUID]domain.Category{},
	}
	return &memStore{mu: &sync.Mutex{}, data: &data}
}

func (s *memStore) Products() repository.ProductRepository { return &memProducts{s} }
func (s *memStore) Categories() repository.CategoryRepository { return &memCategories{s} }
func (s *memStore) Accounts() repository.AccountRepository { return &memAccounts{s} }
func (s *memStore) Carts() repository.CartRepository { return &memCarts{s} }
func (s *memStore) Orders() repository.OrderRepository { return &memOrders{s} }

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.data).clone()
	tx := *s
	tx.inTx = true
	if err := fn(&tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// lock guards access from outside a transaction; inside one the mutex is already held.
func (s *memStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) addProduct(name string, price string, stock int) domain.Product {
	unlock := s.lock()
	defer unlock()
	p := domain.Product{
		ID:                uuid.New(),
		Name:              name,
		Price:             decimal.RequireFromString(price),
		QuantityAvailable: stock,
	}
	(*s.data).products[p.ID] = p
	return p
}

func (s *memStore) stock(id uuid.UUID) int {
	unlock := s.lock()
	defer unlock()
	return (*s.data).products[id].QuantityAvailable
}

func (s *memStore) deleteProduct(id uuid.UUID) {
	unlock := s.lock()
	defer unlock()
	delete((*s.data).products, id)
}

func (s *memStore) orderCount() int {
	unlock := s.lock()
	defer unlock()
	return len((*s.data).orders)
}

type memProducts struct{ s *memStore }

func (r *memProducts) Create(ctx context.Context, product *domain.Product) error {
	unlock := r.s.lock()
	defer unlock()
	(*r.s.data).products[product.ID] = *product
	return nil
}

func (r *memProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	unlock := r.s.lock()
	defer unlock()
	p, ok := (*r.s.data).products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r *memProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *memProducts) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	unlock := r.s.lock()
	defer unlock()
	p, ok := (*r.s.data).products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if p.QuantityAvailable+delta < 0 {
		return nil, repository.ErrInsufficientStock
	}
	p.QuantityAvailable += delta
	(*r.s.data).products[id] = p
	return &p, nil
}

func (r *memProducts) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	unlock := r.s.lock()
	defer unlock()
	var out []*domain.Product
	for _, p := range (*r.s.data).products {
		p := p
		if filter.FarmerID != nil && (p.FarmerID == nil || *p.FarmerID != *filter.FarmerID) {
			continue
		}
		out = append(out, &p)
	}
	return out, len(out), nil
}

func (r *memProducts) Update(ctx context.Context, product *domain.Product) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	(*r.s.data).products[product.ID] = *product
	return nil
}

func (r *memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete((*r.s.data).products, id)
	return nil
}

type memCategories struct{ s *memStore }

func (r *memCategories) Create(ctx context.Context, category *domain.Category) error {
	unlock := r.s.lock()
	defer unlock()
	for _, c := range (*r.s.data).categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	(*r.s.data).categories[category.ID] = *category
	return nil
}

func (r *memCategories) List(ctx context.Context) ([]*domain.Category, error) {
	unlock := r.s.lock()
	defer unlock()
	var out []*domain.Category
	for _, c := range (*r.s.data).categories {
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (r *memCategories) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	unlock := r.s.lock()
	defer unlock()
	c, ok := (*r.s.data).categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

func (r *memCategories) Update(ctx context.Context, category *domain.Category) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).categories[category.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	for _, c := range (*r.s.data).categories {
		if c.ID != category.ID && c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	(*r.s.data).categories[category.ID] = *category
	return nil
}

func (r *memCategories) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	for _, p := range (*r.s.data).products {
		if p.CategoryID == id {
			return repository.ErrCategoryInUse
		}
	}
	delete((*r.s.data).categories, id)
	return nil
}

func (s *memStore) addAccount(email, role string) domain.Account {
	unlock := s.lock()
	defer unlock()
	a := domain.Account{ID: uuid.New(), Email: email, Name: email, Role: role}
	(*s.data).accounts[a.ID] = a
	return a
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	unlock := r.s.lock()
	defer unlock()
	a, ok := (*r.s.data).accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &a, nil
}

type memCarts struct{ s *memStore }

func (r *memCarts) FindByOwner(ctx context.Context, owner domain.Owner, forUpdate bool) (*domain.Cart, error) {
	unlock := r.s.lock()
	defer unlock()
	for _, c := range (*r.s.data).carts {
		switch {
		case owner.IsAuthenticated() && c.AccountID != nil && *c.AccountID == owner.AccountID,
			owner.IsAnonymous() && c.GuestToken != nil && *c.GuestToken == owner.Token:
			return copyCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (r *memCarts) Insert(ctx context.Context, cart *domain.Cart) error {
	unlock := r.s.lock()
	defer unlock()
	(*r.s.data).carts[cart.ID] = copyCart(cart)
	return nil
}

func (r *memCarts) Save(ctx context.Context, cart *domain.Cart) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).carts[cart.ID]; !ok {
		return repository.ErrCartNotFound
	}
	(*r.s.data).carts[cart.ID] = copyCart(cart)
	return nil
}

func (r *memCarts) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).carts[id]; !ok {
		return repository.ErrCartNotFound
	}
	delete((*r.s.data).carts, id)
	return nil
}

func (r *memCarts) List(ctx context.Context, page, pageSize int) ([]*domain.Cart, int, error) {
	unlock := r.s.lock()
	defer unlock()
	var out []*domain.Cart
	for _, c := range (*r.s.data).carts {
		out = append(out, copyCart(c))
	}
	return out, len(out), nil
}

type memOrders struct{ s *memStore }

func (r *memOrders) Create(ctx context.Context, order *domain.Order) error {
	if r.s.failOrderCreate != nil {
		return r.s.failOrderCreate
	}
	unlock := r.s.lock()
	defer unlock()
	(*r.s.data).orders[order.ID] = copyOrder(order)
	return nil
}

func (r *memOrders) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Order, error) {
	unlock := r.s.lock()
	defer unlock()
	o, ok := (*r.s.data).orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *memOrders) Update(ctx context.Context, order *domain.Order) error {
	unlock := r.s.lock()
	defer unlock()
	if _, ok := (*r.s.data).orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	(*r.s.data).orders[order.ID] = copyOrder(order)
	return nil
}

func (r *memOrders) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Order, error) {
	unlock := r.s.lock()
	defer unlock()
	var out []*domain.Order
	for _, o := range (*r.s.data).orders {
		if o.AccountID != nil && *o.AccountID == accountID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memOrders) List(ctx context.Context, page, pageSize int) ([]*domain.Order, int, error) {
	unlock := r.s.lock()
	defer unlock()
	var out []*domain.Order
	for _, o := range (*r.s.data).orders {
		out = append(out, copyOrder(o))
	}
	return out, len(out), nil
}

// recordingNotifier captures placed orders.
type recordingNotifier struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (n *recordingNotifier) OrderPlaced(order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

// testClock is a settable Clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
