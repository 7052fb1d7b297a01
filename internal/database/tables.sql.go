package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const diningTableColumns = `id, code, capacity, area, status, current_tab_id, created_at, updated_at`

func scanDiningTable(row interface{ Scan(...any) error }) (DiningTable, error) {
	var i DiningTable
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Capacity,
		&i.Area,
		&i.Status,
		&i.CurrentTabID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO dining_tables (code, capacity, area)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE SET capacity = EXCLUDED.capacity, area = EXCLUDED.area, updated_at = now()
RETURNING ` + diningTableColumns

type CreateTableParams struct {
	Code     string `json:"code"`
	Capacity int32  `json:"capacity"`
	Area     string `json:"area"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, createTable, arg.Code, arg.Capacity, arg.Area)
	return scanDiningTable(row)
}

const getTable = `-- name: GetTable :one
SELECT ` + diningTableColumns + ` FROM dining_tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + diningTableColumns + ` FROM dining_tables WHERE id = $1 FOR UPDATE`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanDiningTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `-- name: ListTables :many
SELECT ` + diningTableColumns + ` FROM dining_tables ORDER BY code`

func (q *Queries) ListTables(ctx context.Context) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DiningTable{}
	for rows.Next() {
		i, err := scanDiningTable(rows)
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

const setTableTab = `-- name: SetTableTab :one
UPDATE dining_tables
SET current_tab_id = $2, status = $3, updated_at = now()
WHERE id = $1
RETURNING ` + diningTableColumns

type SetTableTabParams struct {
	ID           uuid.UUID   `json:"id"`
	CurrentTabID pgtype.UUID `json:"current_tab_id"`
	Status       string      `json:"status"`
}

func (q *Queries) SetTableTab(ctx context.Context, arg SetTableTabParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, setTableTab, arg.ID, arg.CurrentTabID, arg.Status)
	return scanDiningTable(row)
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE dining_tables
SET status = $2, updated_at = now()
WHERE id = $1 AND current_tab_id IS NULL
RETURNING ` + diningTableColumns

type UpdateTableStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// UpdateTableStatus only touches tables without an open tab; pgx.ErrNoRows
// otherwise.
func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status)
	return scanDiningTable(row)
}
