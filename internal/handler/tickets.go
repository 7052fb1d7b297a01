package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/service"
)

// TicketAdvancer is the station-facing slice of the order service.
// Satisfied by *service.OrderService.
type TicketAdvancer interface {
	AdvanceTicket(ctx context.Context, ticketID uuid.UUID, status string) (*service.OrderDetail, error)
}

// TicketHandler lets kitchen and bar displays move tickets forward.
type TicketHandler struct {
	svc TicketAdvancer
}

func NewTicketHandler(svc TicketAdvancer) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// RegisterRoutes registers ticket endpoints. Mounted at /tickets.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
}

type ticketStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /tickets/{id}/status and returns the owning
// order so the display can show the derived order status.
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ticketStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		badRequest(w, "status is required")
		return
	}

	detail, err := h.svc.AdvanceTicket(r.Context(), ticketID, req.Status)
	if err != nil {
		writeServiceError(w, "advance ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDetailResponse(detail))
}
