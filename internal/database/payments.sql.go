package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, tab_id, order_id, payment_method, amount, amount_received, change_amount,
       reference_number, processed_by, processed_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.TabID,
		&i.OrderID,
		&i.PaymentMethod,
		&i.Amount,
		&i.AmountReceived,
		&i.ChangeAmount,
		&i.ReferenceNumber,
		&i.ProcessedBy,
		&i.ProcessedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (tab_id, order_id, payment_method, amount, amount_received, change_amount, reference_number, processed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	TabID           pgtype.UUID    `json:"tab_id"`
	OrderID         pgtype.UUID    `json:"order_id"`
	PaymentMethod   string         `json:"payment_method"`
	Amount          pgtype.Numeric `json:"amount"`
	AmountReceived  pgtype.Numeric `json:"amount_received"`
	ChangeAmount    pgtype.Numeric `json:"change_amount"`
	ReferenceNumber pgtype.Text    `json:"reference_number"`
	ProcessedBy     uuid.UUID      `json:"processed_by"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment,
		arg.TabID,
		arg.OrderID,
		arg.PaymentMethod,
		arg.Amount,
		arg.AmountReceived,
		arg.ChangeAmount,
		arg.ReferenceNumber,
		arg.ProcessedBy,
	)
	return scanPayment(row)
}

const listPaymentsByTab = `-- name: ListPaymentsByTab :many
SELECT ` + paymentColumns + ` FROM payments WHERE tab_id = $1 ORDER BY processed_at`

func (q *Queries) ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByTab, tabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Payment{}
	for rows.Next() {
		i, err := scanPayment(rows)
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
