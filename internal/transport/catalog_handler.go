package transport

import (
	"net/http"
	"strings"

	"farmmarket/internal/domain"
	"farmmarket/internal/middleware"
	"farmmarket/internal/repository"
	"farmmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest represents the product creation payload. FarmerID is honoured for admins only.
type CreateProductRequest struct {
	Name              string          `json:"name" validate:"required,max=200"`
	Description       string          `json:"description" validate:"max=2000"`
	Store             string          `json:"store" validate:"max=200"`
	Location          string          `json:"location" validate:"max=200"`
	Price             decimal.Decimal `json:"price"`
	CategoryID        string          `json:"categoryId" validate:"required,uuid"`
	FarmerID          string          `json:"farmerId" validate:"omitempty,uuid"`
	QuantityAvailable int             `json:"quantityAvailable" validate:"gte=0"`
}

// UpdateProductRequest is a partial product update. Absent fields are left unchanged.
type UpdateProductRequest struct {
	Name              *string          `json:"name" validate:"omitempty,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=2000"`
	Store             *string          `json:"store" validate:"omitempty,max=200"`
	Location          *string          `json:"location" validate:"omitempty,max=200"`
	Price             *decimal.Decimal `json:"price"`
	CategoryID        *string          `json:"categoryId" validate:"omitempty,uuid"`
	QuantityAvailable *int             `json:"quantityAvailable" validate:"omitempty,gte=0"`
}

// CreateCategoryRequest represents the admin category creation payload
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// UpdateCategoryRequest is a partial category update
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// CatalogHandler serves products and categories
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the public catalog reads, the product writes open to farmers and
// admins, and the admin-only category writes. authenticate must resolve the caller's account.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{productId}", h.GetProduct)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{categoryId}", h.GetCategory)

	r.Group(func(r chi.Router) {
		r.Use(authenticate, middleware.RequireRole([]string{domain.RoleAdmin, domain.RoleFarmer}, h.logger))
		r.Get("/products/mine", h.ListMyProducts)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{productId}", h.UpdateProduct)
		r.Delete("/products/{productId}", h.DeleteProduct)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate, middleware.RequireAdmin(h.logger))
		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{categoryId}", h.UpdateCategory)
		r.Delete("/categories/{categoryId}", h.DeleteCategory)
	})
}

// ListProducts lists products filtered by category, price range and location
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := paging(r)
	filter := repository.ProductFilter{
		Location:  strings.TrimSpace(q.Get("location")),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    q.Get("sortBy"),
		SortOrder: repository.SortOrder(strings.ToUpper(q.Get("sortOrder"))),
	}

	if raw := q.Get("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category")
			return
		}
		filter.CategoryID = &id
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = &v
	}

	products, total, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPage(products, total, page, pageSize))
}

// GetProduct returns one product
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), productID)
	if err != nil {
		writeServiceError(w, h.logger, "get product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListMyProducts lists the products listed under the calling farmer's account
func (h *CatalogHandler) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	owner, _ := middleware.OwnerFrom(r.Context())
	page, pageSize := paging(r)

	products, total, err := h.catalogService.ListByFarmer(r.Context(), owner.AccountID, page, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, "list farmer products", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPage(products, total, page, pageSize))
}

// ListCategories lists every category
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list categories", err)
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CreateProduct adds a product to the catalog
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	product := &domain.Product{
		Name:              req.Name,
		Description:       req.Description,
		Store:             req.Store,
		Location:          req.Location,
		Price:             req.Price,
		CategoryID:        uuid.MustParse(req.CategoryID),
		QuantityAvailable: req.QuantityAvailable,
	}
	owner, _ := middleware.OwnerFrom(r.Context())
	switch {
	case owner.Role == domain.RoleFarmer:
		farmerID := owner.AccountID
		product.FarmerID = &farmerID
	case req.FarmerID != "":
		farmerID := uuid.MustParse(req.FarmerID)
		product.FarmerID = &farmerID
	}

	created, err := h.catalogService.CreateProduct(r.Context(), product)
	if err != nil {
		writeServiceError(w, h.logger, "create product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, created)
}

// CreateCategory adds a category
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalogService.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, "create category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// UpdateProduct applies a partial update to a product the caller may edit
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	update := service.ProductUpdate{
		Name:              req.Name,
		Description:       req.Description,
		Store:             req.Store,
		Location:          req.Location,
		Price:             req.Price,
		QuantityAvailable: req.QuantityAvailable,
	}
	if req.CategoryID != nil {
		categoryID := uuid.MustParse(*req.CategoryID)
		update.CategoryID = &categoryID
	}

	owner, _ := middleware.OwnerFrom(r.Context())
	product, err := h.catalogService.UpdateProduct(r.Context(), owner, productID, update)
	if err != nil {
		writeServiceError(w, h.logger, "update product", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product the caller may edit
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	owner, _ := middleware.OwnerFrom(r.Context())
	if err := h.catalogService.DeleteProduct(r.Context(), owner, productID); err != nil {
		writeServiceError(w, h.logger, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCategory returns one category
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId")
	if !ok {
		return
	}

	category, err := h.catalogService.GetCategory(r.Context(), categoryID)
	if err != nil {
		writeServiceError(w, h.logger, "get category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// UpdateCategory renames a category or changes its description
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId")
	if !ok {
		return
	}
	var req UpdateCategoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalogService.UpdateCategory(r.Context(), categoryID, req.Name, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, "update category", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// DeleteCategory removes a category that no product uses
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := uuidParam(w, r, "categoryId")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteCategory(r.Context(), categoryID); err != nil {
		writeServiceError(w, h.logger, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
