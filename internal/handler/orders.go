package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/kiwari-pos/tabs/internal/middleware"
	"github.com/kiwari-pos/tabs/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateWalkIn(ctx context.Context, createdBy uuid.UUID) (*service.OrderDetail, error)
	Get(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	AddItem(ctx context.Context, orderID uuid.UUID, req service.AddItemRequest) (*service.AddItemResult, error)
	ReduceItem(ctx context.Context, orderID, itemID uuid.UUID, by int32) (*service.OrderDetail, error)
	RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*service.OrderDetail, error)
	Confirm(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	Void(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error)
	Complete(ctx context.Context, orderID uuid.UUID, pay service.PaymentRequest) (*service.SaleResult, error)
	QuickSale(ctx context.Context, orderID uuid.UUID, pay service.PaymentRequest) (*service.SaleResult, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints. Mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{itemId}", h.ReduceItem)
	r.Delete("/{id}/items/{itemId}", h.RemoveItem)
	r.Post("/{id}/confirm", h.Confirm)
	r.With(middleware.RequireRole(enum.UserRoleManager)).Post("/{id}/void", h.Void)
	r.Post("/{id}/quick-sale", h.QuickSale)
	r.Post("/{id}/complete", h.Complete)
}

// --- Request types ---

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type reduceItemRequest struct {
	Quantity int32 `json:"quantity"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

// --- Handlers ---

// Create handles POST /orders. It starts a walk-in draft with no tab.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.CreateWalkIn(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, "create walk-in order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// AddItem handles POST /orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		badRequest(w, "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		badRequest(w, "quantity must be > 0")
		return
	}
	if req.Quantity > service.MaxLineQuantity {
		badRequest(w, fmt.Sprintf("quantity must be at most %d", service.MaxLineQuantity))
		return
	}

	result, err := h.svc.AddItem(r.Context(), orderID, service.AddItemRequest{
		ProductID: productID,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, addItemResponse{
		orderResponse: toOrderDetailResponse(result.OrderDetail),
		Availability:  result.Availability,
	})
}

// ReduceItem handles PATCH /orders/{id}/items/{itemId}. The body carries the
// quantity to take off the line, not the new quantity.
func (h *OrderHandler) ReduceItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId")
	if !ok {
		return
	}
	var req reduceItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		badRequest(w, "quantity must be > 0")
		return
	}

	detail, err := h.svc.ReduceItem(r.Context(), orderID, itemID, req.Quantity)
	if err != nil {
		writeServiceError(w, "reduce item", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// RemoveItem handles DELETE /orders/{id}/items/{itemId}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId")
	if !ok {
		return
	}

	detail, err := h.svc.RemoveItem(r.Context(), orderID, itemID)
	if err != nil {
		writeServiceError(w, "remove item", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// Confirm handles POST /orders/{id}/confirm.
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Confirm(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "confirm order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// Void handles POST /orders/{id}/void. Manager only.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req voidRequest
	if !decodeBody(w, r, &req) {
		return
	}

	detail, err := h.svc.Void(r.Context(), orderID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeServiceError(w, "void order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}

// QuickSale handles POST /orders/{id}/quick-sale.
func (h *OrderHandler) QuickSale(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, "quick sale", h.svc.QuickSale)
}

// Complete handles POST /orders/{id}/complete.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, "complete order", h.svc.Complete)
}

func (h *OrderHandler) settle(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, uuid.UUID, service.PaymentRequest) (*service.SaleResult, error)) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := fn(r.Context(), orderID, req.toService(claims.UserID))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleResponse(result))
}
