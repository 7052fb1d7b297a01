package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/shopspring/decimal"
)

// --- Response types ---
//
// Money is rendered as fixed two-decimal strings. Nullable columns become
// pointers so that JSON shows null instead of pgtype's struct encoding.

type tableResponse struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Capacity     int32      `json:"capacity"`
	Area         string     `json:"area"`
	Status       string     `json:"status"`
	CurrentTabID *uuid.UUID `json:"current_tab_id"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type tabResponse struct {
	ID             uuid.UUID  `json:"id"`
	TableID        uuid.UUID  `json:"table_id"`
	Status         string     `json:"status"`
	Subtotal       string     `json:"subtotal"`
	DiscountAmount string     `json:"discount_amount"`
	TaxAmount      string     `json:"tax_amount"`
	TotalAmount    string     `json:"total_amount"`
	OpenedBy       uuid.UUID  `json:"opened_by"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	TabID          *uuid.UUID          `json:"tab_id"`
	OrderNumber    string              `json:"order_number"`
	Status         string              `json:"status"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	TaxAmount      string              `json:"tax_amount"`
	TotalAmount    string              `json:"total_amount"`
	VoidReason     *string             `json:"void_reason"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	ConfirmedAt    *time.Time          `json:"confirmed_at"`
	ServedAt       *time.Time          `json:"served_at"`
	CompletedAt    *time.Time          `json:"completed_at"`
	VoidedAt       *time.Time          `json:"voided_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
	Tickets        []ticketResponse    `json:"tickets,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
	Destination string    `json:"destination"`
	Notes       *string   `json:"notes"`
}

type ticketResponse struct {
	ID          uuid.UUID            `json:"id"`
	OrderID     uuid.UUID            `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	Destination string               `json:"destination"`
	Status      string               `json:"status"`
	Items       []ticketItemResponse `json:"items"`
	StartedAt   *time.Time           `json:"started_at"`
	ReadyAt     *time.Time           `json:"ready_at"`
	ServedAt    *time.Time           `json:"served_at"`
	CreatedAt   time.Time            `json:"created_at"`
}

type ticketItemResponse struct {
	ProductName string  `json:"product_name"`
	Quantity    int32   `json:"quantity"`
	Notes       *string `json:"notes"`
}

type paymentResponse struct {
	ID              uuid.UUID  `json:"id"`
	TabID           *uuid.UUID `json:"tab_id"`
	OrderID         *uuid.UUID `json:"order_id"`
	PaymentMethod   string     `json:"payment_method"`
	Amount          string     `json:"amount"`
	AmountReceived  string     `json:"amount_received"`
	ChangeAmount    string     `json:"change_amount"`
	ReferenceNumber *string    `json:"reference_number"`
	ProcessedBy     uuid.UUID  `json:"processed_by"`
	ProcessedAt     time.Time  `json:"processed_at"`
}

type totalsResponse struct {
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	TaxAmount      string `json:"tax_amount"`
	TotalAmount    string `json:"total_amount"`
}

type tabDetailResponse struct {
	Tab    tabResponse     `json:"tab"`
	Table  tableResponse   `json:"table"`
	Orders []orderResponse `json:"orders"`
}

type billResponse struct {
	TabID  uuid.UUID       `json:"tab_id"`
	Status string          `json:"status"`
	Orders []orderResponse `json:"orders"`
	Totals totalsResponse  `json:"totals"`
}

type closeTabResponse struct {
	Tab          tabResponse     `json:"tab"`
	Table        tableResponse   `json:"table"`
	Orders       []orderResponse `json:"orders"`
	Totals       totalsResponse  `json:"totals"`
	Payment      paymentResponse `json:"payment"`
	ChangeAmount string          `json:"change_amount"`
}

type addItemResponse struct {
	orderResponse
	Availability *service.Availability `json:"availability,omitempty"`
}

type saleResponse struct {
	Order        orderResponse       `json:"order"`
	Payment      paymentResponse     `json:"payment"`
	ChangeAmount string              `json:"change_amount"`
	Shortfalls   []service.Shortfall `json:"shortfalls,omitempty"`
}

// --- Converters ---

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func optionalUUID(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func optionalText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func optionalTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}

func toTableResponse(t database.DiningTable) tableResponse {
	return tableResponse{
		ID:           t.ID,
		Code:         t.Code,
		Capacity:     t.Capacity,
		Area:         t.Area,
		Status:       t.Status,
		CurrentTabID: optionalUUID(t.CurrentTabID),
		UpdatedAt:    t.UpdatedAt,
	}
}

func toTabResponse(t database.Tab) tabResponse {
	return tabResponse{
		ID:             t.ID,
		TableID:        t.TableID,
		Status:         t.Status,
		Subtotal:       numericToString(t.Subtotal),
		DiscountAmount: numericToString(t.DiscountAmount),
		TaxAmount:      numericToString(t.TaxAmount),
		TotalAmount:    numericToString(t.TotalAmount),
		OpenedBy:       t.OpenedBy,
		OpenedAt:       t.OpenedAt,
		ClosedAt:       optionalTime(t.ClosedAt),
	}
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		TabID:          optionalUUID(o.TabID),
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Subtotal:       numericToString(o.Subtotal),
		DiscountAmount: numericToString(o.DiscountAmount),
		TaxAmount:      numericToString(o.TaxAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		VoidReason:     optionalText(o.VoidReason),
		CreatedBy:      o.CreatedBy,
		ConfirmedAt:    optionalTime(o.ConfirmedAt),
		ServedAt:       optionalTime(o.ServedAt),
		CompletedAt:    optionalTime(o.CompletedAt),
		VoidedAt:       optionalTime(o.VoidedAt),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderResponses(orders []database.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

// toOrderDetailResponse includes the order's lines and preparation tickets.
func toOrderDetailResponse(d *service.OrderDetail) orderResponse {
	resp := toOrderResponse(d.Order)
	resp.Items = make([]orderItemResponse, len(d.Items))
	for i, it := range d.Items {
		resp.Items[i] = orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   numericToString(it.UnitPrice),
			Subtotal:    numericToString(it.Subtotal),
			Destination: it.Destination,
			Notes:       optionalText(it.Notes),
		}
	}
	resp.Tickets = make([]ticketResponse, len(d.Tickets))
	for i, t := range d.Tickets {
		resp.Tickets[i] = toTicketResponse(t)
	}
	return resp
}

func toTicketResponse(t service.TicketDetail) ticketResponse {
	items := make([]ticketItemResponse, len(t.Items))
	for i, it := range t.Items {
		items[i] = ticketItemResponse{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Notes:       optionalText(it.Notes),
		}
	}
	return ticketResponse{
		ID:          t.Ticket.ID,
		OrderID:     t.Ticket.OrderID,
		OrderNumber: t.OrderNumber,
		Destination: t.Ticket.Destination,
		Status:      t.Ticket.Status,
		Items:       items,
		StartedAt:   optionalTime(t.Ticket.StartedAt),
		ReadyAt:     optionalTime(t.Ticket.ReadyAt),
		ServedAt:    optionalTime(t.Ticket.ServedAt),
		CreatedAt:   t.Ticket.CreatedAt,
	}
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		TabID:           optionalUUID(p.TabID),
		OrderID:         optionalUUID(p.OrderID),
		PaymentMethod:   p.PaymentMethod,
		Amount:          numericToString(p.Amount),
		AmountReceived:  numericToString(p.AmountReceived),
		ChangeAmount:    numericToString(p.ChangeAmount),
		ReferenceNumber: optionalText(p.ReferenceNumber),
		ProcessedBy:     p.ProcessedBy,
		ProcessedAt:     p.ProcessedAt,
	}
}

func toTotalsResponse(t service.Totals) totalsResponse {
	return totalsResponse{
		Subtotal:       t.Subtotal.StringFixed(2),
		DiscountAmount: t.Discount.StringFixed(2),
		TaxAmount:      t.Tax.StringFixed(2),
		TotalAmount:    t.Total.StringFixed(2),
	}
}

func toTabDetailResponse(d *service.TabDetail) tabDetailResponse {
	return tabDetailResponse{
		Tab:    toTabResponse(d.Tab),
		Table:  toTableResponse(d.Table),
		Orders: toOrderResponses(d.Orders),
	}
}

func toSaleResponse(s *service.SaleResult) saleResponse {
	return saleResponse{
		Order:        toOrderDetailResponse(s.OrderDetail),
		Payment:      toPaymentResponse(s.Payment),
		ChangeAmount: s.Settlement.Change.StringFixed(2),
		Shortfalls:   s.Shortfalls,
	}
}
