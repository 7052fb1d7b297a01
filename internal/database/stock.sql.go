package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const stockEntryColumns = `product_id, quantity_on_hand, updated_at`

func scanStockEntry(row interface{ Scan(...any) error }) (StockEntry, error) {
	var i StockEntry
	err := row.Scan(&i.ProductID, &i.QuantityOnHand, &i.UpdatedAt)
	return i, err
}

const getStockEntry = `-- name: GetStockEntry :one
SELECT ` + stockEntryColumns + ` FROM stock_entries WHERE product_id = $1`

func (q *Queries) GetStockEntry(ctx context.Context, productID uuid.UUID) (StockEntry, error) {
	return scanStockEntry(q.db.QueryRow(ctx, getStockEntry, productID))
}

const lockStockEntries = `-- name: LockStockEntries :many
SELECT ` + stockEntryColumns + `
FROM stock_entries
WHERE product_id = ANY($1::uuid[])
ORDER BY product_id
FOR UPDATE`

// LockStockEntries locks rows in product_id order so that two transactions
// touching overlapping products cannot deadlock.
func (q *Queries) LockStockEntries(ctx context.Context, productIDs []uuid.UUID) ([]StockEntry, error) {
	rows, err := q.db.Query(ctx, lockStockEntries, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockEntry{}
	for rows.Next() {
		i, err := scanStockEntry(rows)
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

const setStockQuantity = `-- name: SetStockQuantity :one
UPDATE stock_entries
SET quantity_on_hand = $2, updated_at = now()
WHERE product_id = $1
RETURNING ` + stockEntryColumns

type SetStockQuantityParams struct {
	ProductID      uuid.UUID `json:"product_id"`
	QuantityOnHand int32     `json:"quantity_on_hand"`
}

func (q *Queries) SetStockQuantity(ctx context.Context, arg SetStockQuantityParams) (StockEntry, error) {
	return scanStockEntry(q.db.QueryRow(ctx, setStockQuantity, arg.ProductID, arg.QuantityOnHand))
}

const upsertStockEntry = `-- name: UpsertStockEntry :one
INSERT INTO stock_entries (product_id, quantity_on_hand)
VALUES ($1, $2)
ON CONFLICT (product_id) DO UPDATE SET quantity_on_hand = EXCLUDED.quantity_on_hand, updated_at = now()
RETURNING ` + stockEntryColumns

type UpsertStockEntryParams struct {
	ProductID      uuid.UUID `json:"product_id"`
	QuantityOnHand int32     `json:"quantity_on_hand"`
}

func (q *Queries) UpsertStockEntry(ctx context.Context, arg UpsertStockEntryParams) (StockEntry, error) {
	return scanStockEntry(q.db.QueryRow(ctx, upsertStockEntry, arg.ProductID, arg.QuantityOnHand))
}

const listStockLevels = `-- name: ListStockLevels :many
SELECT p.id, p.name, p.destination, COALESCE(s.quantity_on_hand, 0)::int AS quantity_on_hand
FROM products p
LEFT JOIN stock_entries s ON s.product_id = p.id
WHERE p.active = true
ORDER BY p.name`

type ListStockLevelsRow struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Destination    string    `json:"destination"`
	QuantityOnHand int32     `json:"quantity_on_hand"`
}

func (q *Queries) ListStockLevels(ctx context.Context) ([]ListStockLevelsRow, error) {
	rows, err := q.db.Query(ctx, listStockLevels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListStockLevelsRow{}
	for rows.Next() {
		var i ListStockLevelsRow
		if err := rows.Scan(&i.ProductID, &i.Name, &i.Destination, &i.QuantityOnHand); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createStockMovement = `-- name: CreateStockMovement :one
INSERT INTO stock_movements (product_id, delta, before_qty, after_qty, reason, reference_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
RETURNING id, product_id, delta, before_qty, after_qty, reason, reference_id, created_at`

type CreateStockMovementParams struct {
	ProductID   uuid.UUID          `json:"product_id"`
	Delta       int32              `json:"delta"`
	BeforeQty   int32              `json:"before_qty"`
	AfterQty    int32              `json:"after_qty"`
	Reason      string             `json:"reason"`
	ReferenceID pgtype.UUID        `json:"reference_id"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, createStockMovement,
		arg.ProductID,
		arg.Delta,
		arg.BeforeQty,
		arg.AfterQty,
		arg.Reason,
		arg.ReferenceID,
		arg.CreatedAt,
	)
	var i StockMovement
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Delta,
		&i.BeforeQty,
		&i.AfterQty,
		&i.Reason,
		&i.ReferenceID,
		&i.CreatedAt,
	)
	return i, err
}

const listStockMovements = `-- name: ListStockMovements :many
SELECT id, product_id, delta, before_qty, after_qty, reason, reference_id, created_at
FROM stock_movements
WHERE product_id = $1
ORDER BY created_at DESC
LIMIT $2`

type ListStockMovementsParams struct {
	ProductID uuid.UUID `json:"product_id"`
	Limit     int32     `json:"limit"`
}

func (q *Queries) ListStockMovements(ctx context.Context, arg ListStockMovementsParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listStockMovements, arg.ProductID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockMovement{}
	for rows.Next() {
		var i StockMovement
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Delta,
			&i.BeforeQty,
			&i.AfterQty,
			&i.Reason,
			&i.ReferenceID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
