package transport

import (
	"net/http"

	"farmmarket/internal/domain"
	"farmmarket/internal/middleware"
	"farmmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartItemRequest is one requested line of an add-to-cart call
type CartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// AddItemsRequest represents the add-to-cart payload
type AddItemsRequest struct {
	Items []CartItemRequest `json:"items" validate:"required,min=1,dive"`
}

// MergeRequest represents the cart merge payload
type MergeRequest struct {
	AnonymousCartToken string `json:"anonymousCartToken" validate:"required"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes. ownerMiddleware must resolve the request owner.
func (h *CartHandler) RegisterRoutes(r chi.Router, ownerMiddleware func(http.Handler) http.Handler) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(ownerMiddleware)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItems)
		r.Patch("/items/{productId}/decrement", h.DecrementItem)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/merge", h.Merge)
	})
}

// GetCart returns the caller's cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	cart, err := h.cartService.Get(r.Context(), owner)
	if err != nil {
		writeServiceError(w, h.logger, "get cart", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddItems reserves stock and adds the requested items. The whole batch is rejected if any item fails.
func (h *CartHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	var req AddItemsRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	items := make([]service.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		// validated as a uuid already
		items = append(items, service.ItemRequest{ProductID: uuid.MustParse(item.ProductID), Quantity: item.Quantity})
	}

	cart, err := h.cartService.AddItems(r.Context(), owner, items)
	if err != nil {
		writeServiceError(w, h.logger, "add items", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// DecrementItem removes one unit of a product from the cart
func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	cart, err := h.cartService.DecrementItem(r.Context(), owner, productID)
	if err != nil {
		writeServiceError(w, h.logger, "decrement item", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// RemoveItem removes a whole product line from the cart
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	cart, err := h.cartService.RemoveItem(r.Context(), owner, productID)
	if err != nil {
		writeServiceError(w, h.logger, "remove item", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// ClearCart empties the cart and releases its stock
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	cart, err := h.cartService.Clear(r.Context(), owner)
	if err != nil {
		writeServiceError(w, h.logger, "clear cart", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// Merge folds an anonymous cart into the authenticated caller's cart
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	if !owner.IsAuthenticated() {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req MergeRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	cart, err := h.cartService.MergeGuestIntoUser(r.Context(), req.AnonymousCartToken, owner)
	if err != nil {
		writeServiceError(w, h.logger, "merge cart", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func requestOwner(w http.ResponseWriter, r *http.Request) (domain.Owner, bool) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return domain.Owner{}, false
	}
	return owner, true
}
