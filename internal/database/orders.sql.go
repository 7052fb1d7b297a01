package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tab_id, order_number, status, subtotal, discount_amount, tax_amount, total_amount,
       void_reason, version, created_by, confirmed_at, served_at, completed_at, voided_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.OrderNumber,
		&i.Status,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.VoidReason,
		&i.Version,
		&i.CreatedBy,
		&i.ConfirmedAt,
		&i.ServedAt,
		&i.CompletedAt,
		&i.VoidedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT nextval('order_number_seq')::int`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var n int32
	err := row.Scan(&n)
	return n, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (tab_id, order_number, created_by)
VALUES ($1, $2, $3)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TabID       pgtype.UUID `json:"tab_id"`
	OrderNumber string      `json:"order_number"`
	CreatedBy   uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.TabID, arg.OrderNumber, arg.CreatedBy))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`

// GetOrderForUpdate locks the order row for the rest of the transaction.
// Every mutation of an order's items, tickets or status goes through it.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrdersByTab = `-- name: ListOrdersByTab :many
SELECT ` + orderColumns + ` FROM orders WHERE tab_id = $1 ORDER BY created_at, order_number`

func (q *Queries) ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersByTab, tabID)
}

const listOrdersByTabForUpdate = `-- name: ListOrdersByTabForUpdate :many
SELECT ` + orderColumns + ` FROM orders WHERE tab_id = $1 ORDER BY id FOR NO KEY UPDATE`

func (q *Queries) ListOrdersByTabForUpdate(ctx context.Context, tabID uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersByTabForUpdate, tabID)
}

const listUnsettledOrders = `-- name: ListUnsettledOrders :many
SELECT ` + orderColumns + ` FROM orders WHERE status NOT IN ('COMPLETED', 'VOIDED') ORDER BY created_at`

func (q *Queries) ListUnsettledOrders(ctx context.Context) ([]Order, error) {
	return q.queryOrders(ctx, listUnsettledOrders)
}

const updateOrderTotals = `-- name: UpdateOrderTotals :one
UPDATE orders
SET subtotal = $2, discount_amount = $3, tax_amount = $4, total_amount = $5,
    version = version + 1, updated_at = now()
WHERE id = $1 AND status NOT IN ('COMPLETED', 'VOIDED')
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID             uuid.UUID      `json:"id"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	TotalAmount    pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TaxAmount,
		arg.TotalAmount,
	)
	return scanOrder(row)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    confirmed_at = CASE WHEN $2 = 'CONFIRMED' AND confirmed_at IS NULL THEN now() ELSE confirmed_at END,
    served_at    = CASE WHEN $2 = 'SERVED' AND served_at IS NULL THEN now() ELSE served_at END,
    completed_at = CASE WHEN $2 = 'COMPLETED' THEN now() ELSE completed_at END,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	PrevStatus string    `json:"prev_status"`
}

// UpdateOrderStatus is a compare-and-set on the current status; a concurrent
// change yields pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus))
}

const voidOrder = `-- name: VoidOrder :one
UPDATE orders
SET status = 'VOIDED', void_reason = $2, voided_at = now(), version = version + 1, updated_at = now()
WHERE id = $1 AND status NOT IN ('COMPLETED', 'VOIDED')
RETURNING ` + orderColumns

type VoidOrderParams struct {
	ID         uuid.UUID `json:"id"`
	VoidReason string    `json:"void_reason"`
}

func (q *Queries) VoidOrder(ctx context.Context, arg VoidOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, voidOrder, arg.ID, arg.VoidReason))
}
