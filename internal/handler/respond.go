package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/auth"
	"github.com/kiwari-pos/tabs/internal/middleware"
	"github.com/kiwari-pos/tabs/internal/service"
)

// Machine-readable error codes carried in every error body.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeNotFound           = "NOT_FOUND"
	codeInsufficientStock  = "INSUFFICIENT_STOCK"
	codeTableOccupied      = "TABLE_ALREADY_OCCUPIED"
	codeTableUnavailable   = "TABLE_UNAVAILABLE"
	codeNoActiveTab        = "NO_ACTIVE_TAB"
	codeTabClosed          = "TAB_CLOSED"
	codeOrdersNotFinalized = "ORDERS_NOT_FINALIZED"
	codeInvalidTransition  = "INVALID_TRANSITION"
	codeAlreadyDispatched  = "ALREADY_DISPATCHED"
	codeDataIntegrity      = "DATA_INTEGRITY"
	codePaymentTimeout     = "PAYMENT_TIMEOUT"
	codeUnauthorized       = "UNAUTHORIZED"
	codeInternal           = "INTERNAL"
)

type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Details: details})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, codeValidation, msg, nil)
}

// writeServiceError maps a service error onto its HTTP status and body.
// Anything unrecognised is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		stockErr    *service.InsufficientStockError
		occupiedErr *service.TableOccupiedError
		noTabErr    *service.NoActiveTabError
		closedErr   *service.TabClosedError
		pendingErr  *service.OrdersNotFinalizedError
		transErr    *service.TransitionError
		dataErr     *service.DataIntegrityError
	)

	switch {
	case errors.As(err, &dataErr):
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, codeDataIntegrity, "data integrity error, reconciliation required", map[string]any{
			"order_id":  dataErr.OrderID,
			"operation": dataErr.Op,
		})
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error(), map[string]any{
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"requested":    stockErr.Requested,
			"available":    stockErr.Available,
		})
	case errors.As(err, &occupiedErr):
		writeError(w, http.StatusConflict, codeTableOccupied, err.Error(), map[string]any{
			"table_id":   occupiedErr.TableID,
			"table_code": occupiedErr.TableCode,
			"tab_id":     occupiedErr.TabID,
		})
	case errors.As(err, &noTabErr):
		writeError(w, http.StatusConflict, codeNoActiveTab, err.Error(), map[string]any{
			"table_id":   noTabErr.TableID,
			"table_code": noTabErr.TableCode,
		})
	case errors.As(err, &closedErr):
		writeError(w, http.StatusConflict, codeTabClosed, err.Error(), map[string]any{
			"tab_id":   closedErr.TabID,
			"table_id": closedErr.TableID,
		})
	case errors.As(err, &pendingErr):
		writeError(w, http.StatusConflict, codeOrdersNotFinalized, err.Error(), map[string]any{
			"tab_id":         pendingErr.TabID,
			"pending_orders": pendingErr.Pending,
		})
	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error(), map[string]any{
			"entity": transErr.Entity,
			"id":     transErr.ID,
			"status": transErr.From,
		})
	case errors.Is(err, service.ErrTableUnavailable):
		writeError(w, http.StatusConflict, codeTableUnavailable, err.Error(), nil)
	case errors.Is(err, service.ErrAlreadyDispatched):
		writeError(w, http.StatusConflict, codeAlreadyDispatched, err.Error(), nil)
	case errors.Is(err, service.ErrPaymentTimeout):
		log.Printf("WARN: %s: %v", op, err)
		writeError(w, http.StatusGatewayTimeout, codePaymentTimeout, err.Error(), nil)
	case service.IsValidationError(err):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
	case service.IsNotFound(err):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}

// uuidParam parses a chi URL parameter, writing a 400 when it is malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "not authenticated", nil)
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}
