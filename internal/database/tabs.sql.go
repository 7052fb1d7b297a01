package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tabColumns = `id, table_id, status, subtotal, discount_amount, tax_amount, total_amount, opened_by, opened_at, closed_at`

func scanTab(row interface{ Scan(...any) error }) (Tab, error) {
	var i Tab
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Status,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.OpenedBy,
		&i.OpenedAt,
		&i.ClosedAt,
	)
	return i, err
}

func collectTabs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
	Close()
}) ([]Tab, error) {
	defer rows.Close()
	items := []Tab{}
	for rows.Next() {
		i, err := scanTab(rows)
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

const createTab = `-- name: CreateTab :one
INSERT INTO tabs (table_id, opened_by)
VALUES ($1, $2)
RETURNING ` + tabColumns

type CreateTabParams struct {
	TableID  uuid.UUID `json:"table_id"`
	OpenedBy uuid.UUID `json:"opened_by"`
}

// CreateTab fails with a 23505 on tabs_one_open_per_table when the table
// already has an open tab.
func (q *Queries) CreateTab(ctx context.Context, arg CreateTabParams) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, createTab, arg.TableID, arg.OpenedBy))
}

const getTab = `-- name: GetTab :one
SELECT ` + tabColumns + ` FROM tabs WHERE id = $1`

func (q *Queries) GetTab(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, getTab, id))
}

const getTabForUpdate = `-- name: GetTabForUpdate :one
SELECT ` + tabColumns + ` FROM tabs WHERE id = $1 FOR UPDATE`

func (q *Queries) GetTabForUpdate(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, getTabForUpdate, id))
}

const getOpenTabByTable = `-- name: GetOpenTabByTable :one
SELECT ` + tabColumns + ` FROM tabs WHERE table_id = $1 AND status = 'OPEN'`

func (q *Queries) GetOpenTabByTable(ctx context.Context, tableID uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, getOpenTabByTable, tableID))
}

const listOpenTabs = `-- name: ListOpenTabs :many
SELECT ` + tabColumns + ` FROM tabs WHERE status = 'OPEN' ORDER BY opened_at`

func (q *Queries) ListOpenTabs(ctx context.Context) ([]Tab, error) {
	rows, err := q.db.Query(ctx, listOpenTabs)
	if err != nil {
		return nil, err
	}
	return collectTabs(rows)
}

const updateTabTotals = `-- name: UpdateTabTotals :one
UPDATE tabs
SET subtotal = $2, discount_amount = $3, tax_amount = $4, total_amount = $5
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

type UpdateTabTotalsParams struct {
	ID             uuid.UUID      `json:"id"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	TotalAmount    pgtype.Numeric `json:"total_amount"`
}

// UpdateTabTotals refuses closed tabs (pgx.ErrNoRows).
func (q *Queries) UpdateTabTotals(ctx context.Context, arg UpdateTabTotalsParams) (Tab, error) {
	row := q.db.QueryRow(ctx, updateTabTotals,
		arg.ID,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TaxAmount,
		arg.TotalAmount,
	)
	return scanTab(row)
}

const closeTab = `-- name: CloseTab :one
UPDATE tabs
SET status = 'CLOSED', closed_at = now()
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + tabColumns

func (q *Queries) CloseTab(ctx context.Context, id uuid.UUID) (Tab, error) {
	return scanTab(q.db.QueryRow(ctx, closeTab, id))
}
