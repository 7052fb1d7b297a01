package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/kiwari-pos/tabs/internal/middleware"
	"github.com/kiwari-pos/tabs/internal/service"
)

// StockLedger defines the ledger methods needed by stock handlers.
// Satisfied by *service.StockLedger.
type StockLedger interface {
	Available(ctx context.Context, store service.StockStore, productID uuid.UUID, reserved int32) (service.Availability, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int32) (service.Availability, error)
}

// StockStore defines the database reads behind the stock endpoints.
// Satisfied by *database.Queries.
type StockStore interface {
	service.StockStore
	ListStockLevels(ctx context.Context) ([]database.ListStockLevelsRow, error)
	ListStockMovements(ctx context.Context, arg database.ListStockMovementsParams) ([]database.StockMovement, error)
}

// StockHandler exposes on-hand quantities and restocking.
type StockHandler struct {
	ledger StockLedger
	store  StockStore
}

func NewStockHandler(ledger StockLedger, store StockStore) *StockHandler {
	return &StockHandler{ledger: ledger, store: store}
}

// RegisterRoutes registers stock endpoints. Mounted at /stock.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{productId}", h.Get)
	r.Get("/{productId}/movements", h.Movements)
	r.With(middleware.RequireRole(enum.UserRoleManager)).Post("/{productId}/restock", h.Restock)
}

type restockRequest struct {
	Quantity int32 `json:"quantity"`
}

type movementResponse struct {
	ID          uuid.UUID  `json:"id"`
	Delta       int32      `json:"delta"`
	BeforeQty   int32      `json:"before_qty"`
	AfterQty    int32      `json:"after_qty"`
	Reason      string     `json:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// List handles GET /stock.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	levels, err := h.store.ListStockLevels(r.Context())
	if err != nil {
		log.Printf("ERROR: list stock levels: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// Get handles GET /stock/{productId}. Untracked products report
// tracked=false rather than 404.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	avail, err := h.ledger.Available(r.Context(), h.store, productID, 0)
	if err != nil {
		writeServiceError(w, "get stock", err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// Movements handles GET /stock/{productId}/movements?limit=N.
func (h *StockHandler) Movements(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 500 {
		limit = 500
	}

	movements, err := h.store.ListStockMovements(r.Context(), database.ListStockMovementsParams{
		ProductID: productID,
		Limit:     int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: list stock movements: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
		return
	}

	resp := make([]movementResponse, len(movements))
	for i, m := range movements {
		resp[i] = movementResponse{
			ID:          m.ID,
			Delta:       m.Delta,
			BeforeQty:   m.BeforeQty,
			AfterQty:    m.AfterQty,
			Reason:      m.Reason,
			ReferenceID: optionalUUID(m.ReferenceID),
			CreatedAt:   m.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Restock handles POST /stock/{productId}/restock. Manager only.
func (h *StockHandler) Restock(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "productId")
	if !ok {
		return
	}
	var req restockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		badRequest(w, "quantity must be > 0")
		return
	}

	avail, err := h.ledger.Restock(r.Context(), productID, req.Quantity)
	if err != nil {
		writeServiceError(w, "restock", err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}
