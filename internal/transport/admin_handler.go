package transport

import (
	"net/http"

	"farmmarket/internal/domain"
	"farmmarket/internal/middleware"
	"farmmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler serves the admin view over every cart and order
type AdminHandler struct {
	cartService  service.CartService
	orderService service.OrderService
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(cartService service.CartService, orderService service.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		cartService:  cartService,
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers the admin routes behind the given middleware
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(guards...)
		r.Get("/carts", h.ListCarts)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Put("/orders/{orderId}/pay", h.MarkPaid)
		r.Put("/orders/{orderId}/ship", h.MarkShipped)
		r.Get("/accounts/{accountId}/orders", h.ListAccountOrders)
	})
}

func (h *AdminHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paging(r)
	carts, total, err := h.cartService.ListCarts(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, "list carts", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPage(carts, total, page, pageSize))
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paging(r)
	orders, total, err := h.orderService.ListOrders(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, "list orders", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newPage(orders, total, page, pageSize))
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandler) ListAccountOrders(w http.ResponseWriter, r *http.Request) {
	accountID, ok := uuidParam(w, r, "accountId")
	if !ok {
		return
	}

	orders, err := h.orderService.ListByAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, h.logger, "list account orders", err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// MarkPaid records a payment confirmed out of band by the acting admin
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	owner, ok := requestOwner(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}

	paidBy := owner.AccountID
	order, err := h.orderService.MarkPaid(r.Context(), orderID, &paidBy)
	if err != nil {
		writeServiceError(w, h.logger, "mark paid", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *AdminHandler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "orderId")
	if !ok {
		return
	}

	order, err := h.orderService.MarkShipped(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.logger, "mark shipped", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
