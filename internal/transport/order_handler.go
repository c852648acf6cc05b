package transport

import (
	"net/http"

	"farmmarket/internal/domain"
	"farmmarket/internal/middleware"
	"farmmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CheckoutRequest represents the checkout payload. Guests may leave a contact address.
type CheckoutRequest struct {
	ShippingAddress string `json:"shippingAddress" validate:"required,max=500"`
	ContactEmail    string `json:"contactEmail" validate:"omitempty,email"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes. ownerMiddleware must resolve the request owner.
func (h *OrderHandler) RegisterRoutes(r chi.Router, ownerMiddleware func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(ownerMiddleware)
		r.Post("/", h.Checkout)
		r.Get("/", h.ListOrders)
		r.Get("/{orderId}", h.GetOrder)
		r.Put("/{orderId}/cancel", h.Cancel)
		r.Post("/{orderId}/items/{itemId}/return", h.ReturnItem)
	})
}

// Checkout converts the caller's cart into an order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	order, err := h.orderService.Checkout(r.Context(), owner, service.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		ContactEmail:    req.ContactEmail,
	})
	if err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders lists the authenticated caller's orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOwnOrders(r.Context(), owner)
	if err != nil {
		writeServiceError(w, h.logger, "list orders", err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the caller's orders
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), owner, orderID)
	if err != nil {
		writeServiceError(w, h.logger, "get order", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Cancel cancels an order inside its cancellation window
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}

	order, err := h.orderService.Cancel(r.Context(), owner, orderID)
	if err != nil {
		writeServiceError(w, h.logger, "cancel order", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ReturnItem returns one order item inside the return window
func (h *OrderHandler) ReturnItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId")
	if !ok {
		return
	}

	order, err := h.orderService.ReturnItem(r.Context(), owner, orderID, itemID)
	if err != nil {
		writeServiceError(w, h.logger, "return item", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
