package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type DiningTable struct {
	ID           uuid.UUID   `json:"id"`
	Code         string      `json:"code"`
	Capacity     int32       `json:"capacity"`
	Area         string      `json:"area"`
	Status       string      `json:"status"`
	CurrentTabID pgtype.UUID `json:"current_tab_id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type Product struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
	Destination string         `json:"destination"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

type StockEntry struct {
	ProductID      uuid.UUID `json:"product_id"`
	QuantityOnHand int32     `json:"quantity_on_hand"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type StockMovement struct {
	ID          uuid.UUID   `json:"id"`
	ProductID   uuid.UUID   `json:"product_id"`
	Delta       int32       `json:"delta"`
	BeforeQty   int32       `json:"before_qty"`
	AfterQty    int32       `json:"after_qty"`
	Reason      string      `json:"reason"`
	ReferenceID pgtype.UUID `json:"reference_id"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Tab struct {
	ID             uuid.UUID          `json:"id"`
	TableID        uuid.UUID          `json:"table_id"`
	Status         string             `json:"status"`
	Subtotal       pgtype.Numeric     `json:"subtotal"`
	DiscountAmount pgtype.Numeric     `json:"discount_amount"`
	TaxAmount      pgtype.Numeric     `json:"tax_amount"`
	TotalAmount    pgtype.Numeric     `json:"total_amount"`
	OpenedBy       uuid.UUID          `json:"opened_by"`
	OpenedAt       time.Time          `json:"opened_at"`
	ClosedAt       pgtype.Timestamptz `json:"closed_at"`
}

type Order struct {
	ID             uuid.UUID          `json:"id"`
	TabID          pgtype.UUID        `json:"tab_id"`
	OrderNumber    string             `json:"order_number"`
	Status         string             `json:"status"`
	Subtotal       pgtype.Numeric     `json:"subtotal"`
	DiscountAmount pgtype.Numeric     `json:"discount_amount"`
	TaxAmount      pgtype.Numeric     `json:"tax_amount"`
	TotalAmount    pgtype.Numeric     `json:"total_amount"`
	VoidReason     pgtype.Text        `json:"void_reason"`
	Version        int32              `json:"version"`
	CreatedBy      uuid.UUID          `json:"created_by"`
	ConfirmedAt    pgtype.Timestamptz `json:"confirmed_at"`
	ServedAt       pgtype.Timestamptz `json:"served_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	VoidedAt       pgtype.Timestamptz `json:"voided_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type OrderItem struct {
	ID          uuid.UUID      `json:"id"`
	OrderID     uuid.UUID      `json:"order_id"`
	ProductID   uuid.UUID      `json:"product_id"`
	ProductName string         `json:"product_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
	Subtotal    pgtype.Numeric `json:"subtotal"`
	Destination string         `json:"destination"`
	Notes       pgtype.Text    `json:"notes"`
	CreatedAt   time.Time      `json:"created_at"`
}

type PreparationTicket struct {
	ID          uuid.UUID          `json:"id"`
	OrderID     uuid.UUID          `json:"order_id"`
	Destination string             `json:"destination"`
	Status      string             `json:"status"`
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	ReadyAt     pgtype.Timestamptz `json:"ready_at"`
	ServedAt    pgtype.Timestamptz `json:"served_at"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type Payment struct {
	ID              uuid.UUID      `json:"id"`
	TabID           pgtype.UUID    `json:"tab_id"`
	OrderID         pgtype.UUID    `json:"order_id"`
	PaymentMethod   string         `json:"payment_method"`
	Amount          pgtype.Numeric `json:"amount"`
	AmountReceived  pgtype.Numeric `json:"amount_received"`
	ChangeAmount    pgtype.Numeric `json:"change_amount"`
	ReferenceNumber pgtype.Text    `json:"reference_number"`
	ProcessedBy     uuid.UUID      `json:"processed_by"`
	ProcessedAt     time.Time      `json:"processed_at"`
}
