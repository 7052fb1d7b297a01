package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/service"
)

// TabServicer defines the service methods needed by tab and table handlers.
// Satisfied by *service.TabService; narrow interface for testability.
type TabServicer interface {
	OpenTab(ctx context.Context, tableID, openedBy uuid.UUID) (*service.TabDetail, error)
	ResumeTab(ctx context.Context, tableID uuid.UUID) (*service.TabDetail, error)
	Get(ctx context.Context, tabID uuid.UUID) (*service.TabDetail, error)
	ListOpen(ctx context.Context) ([]database.Tab, error)
	AddOrder(ctx context.Context, tabID, createdBy uuid.UUID) (*service.OrderDetail, error)
	PreviewBill(ctx context.Context, tabID uuid.UUID) (*service.Bill, error)
	CloseTab(ctx context.Context, tabID uuid.UUID, pay service.PaymentRequest) (*service.ClosedTab, error)
	SetTableStatus(ctx context.Context, tableID uuid.UUID, status string) (database.DiningTable, error)
}

// TabHandler handles table session endpoints.
type TabHandler struct {
	svc TabServicer
}

func NewTabHandler(svc TabServicer) *TabHandler {
	return &TabHandler{svc: svc}
}

// RegisterTableRoutes registers table endpoints. Mounted at /tables.
func (h *TabHandler) RegisterTableRoutes(r chi.Router) {
	r.Post("/{id}/tabs", h.Open)
	r.Get("/{id}/tab", h.Resume)
	r.Patch("/{id}/status", h.SetTableStatus)
}

// RegisterRoutes registers tab endpoints. Mounted at /tabs.
func (h *TabHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListOpen)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/orders", h.AddOrder)
	r.Get("/{id}/bill", h.Bill)
	r.Post("/{id}/close", h.Close)
}

// --- Request types ---

type paymentRequest struct {
	PaymentMethod   string `json:"payment_method"`
	AmountReceived  string `json:"amount_received"`
	ReferenceNumber string `json:"reference_number"`
}

func (p paymentRequest) toService(processedBy uuid.UUID) service.PaymentRequest {
	return service.PaymentRequest{
		Method:          p.PaymentMethod,
		AmountReceived:  p.AmountReceived,
		ReferenceNumber: p.ReferenceNumber,
		ProcessedBy:     processedBy,
	}
}

type tableStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Open handles POST /tables/{id}/tabs.
func (h *TabHandler) Open(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.OpenTab(r.Context(), tableID, claims.UserID)
	if err != nil {
		writeServiceError(w, "open tab", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTabDetailResponse(detail))
}

// Resume handles GET /tables/{id}/tab.
func (h *TabHandler) Resume(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.ResumeTab(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, "resume tab", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabDetailResponse(detail))
}

// SetTableStatus handles PATCH /tables/{id}/status.
func (h *TabHandler) SetTableStatus(w http.ResponseWriter, r *http.Request) {
	tableID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req tableStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		badRequest(w, "status is required")
		return
	}

	table, err := h.svc.SetTableStatus(r.Context(), tableID, req.Status)
	if err != nil {
		writeServiceError(w, "set table status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// ListOpen handles GET /tabs.
func (h *TabHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	tabs, err := h.svc.ListOpen(r.Context())
	if err != nil {
		writeServiceError(w, "list open tabs", err)
		return
	}
	resp := make([]tabResponse, len(tabs))
	for i, t := range tabs {
		resp[i] = toTabResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /tabs/{id}.
func (h *TabHandler) Get(w http.ResponseWriter, r *http.Request) {
	tabID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, "get tab", err)
		return
	}
	writeJSON(w, http.StatusOK, toTabDetailResponse(detail))
}

// AddOrder handles POST /tabs/{id}/orders.
func (h *TabHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	tabID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.AddOrder(r.Context(), tabID, claims.UserID)
	if err != nil {
		writeServiceError(w, "add order to tab", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// Bill handles GET /tabs/{id}/bill. It never changes state.
func (h *TabHandler) Bill(w http.ResponseWriter, r *http.Request) {
	tabID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	bill, err := h.svc.PreviewBill(r.Context(), tabID)
	if err != nil {
		writeServiceError(w, "preview bill", err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse{
		TabID:  bill.TabID,
		Status: bill.Status,
		Orders: toOrderResponses(bill.Orders),
		Totals: toTotalsResponse(bill.Totals),
	})
}

// Close handles POST /tabs/{id}/close.
func (h *TabHandler) Close(w http.ResponseWriter, r *http.Request) {
	tabID, ok := uuidParam(w, r, "id")
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

	closed, err := h.svc.CloseTab(r.Context(), tabID, req.toService(claims.UserID))
	if err != nil {
		writeServiceError(w, "close tab", err)
		return
	}
	writeJSON(w, http.StatusOK, closeTabResponse{
		Tab:          toTabResponse(closed.Tab),
		Table:        toTableResponse(closed.Table),
		Orders:       toOrderResponses(closed.Orders),
		Totals:       toTotalsResponse(closed.Totals),
		Payment:      toPaymentResponse(closed.Payment),
		ChangeAmount: closed.Settlement.Change.StringFixed(2),
	})
}
