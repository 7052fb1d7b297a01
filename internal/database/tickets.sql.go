package database

import (
	"context"

	"github.com/google/uuid"
)

const ticketColumns = `id, order_id, destination, status, started_at, ready_at, served_at, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (PreparationTicket, error) {
	var i PreparationTicket
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Destination,
		&i.Status,
		&i.StartedAt,
		&i.ReadyAt,
		&i.ServedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createTicket = `-- name: CreateTicket :one
INSERT INTO preparation_tickets (order_id, destination)
VALUES ($1, $2)
RETURNING ` + ticketColumns

type CreateTicketParams struct {
	OrderID     uuid.UUID `json:"order_id"`
	Destination string    `json:"destination"`
}

func (q *Queries) CreateTicket(ctx context.Context, arg CreateTicketParams) (PreparationTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, createTicket, arg.OrderID, arg.Destination))
}

const getTicket = `-- name: GetTicket :one
SELECT ` + ticketColumns + ` FROM preparation_tickets WHERE id = $1`

func (q *Queries) GetTicket(ctx context.Context, id uuid.UUID) (PreparationTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, getTicket, id))
}

const listTicketsByOrder = `-- name: ListTicketsByOrder :many
SELECT ` + ticketColumns + ` FROM preparation_tickets WHERE order_id = $1 ORDER BY created_at, destination`

func (q *Queries) ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]PreparationTicket, error) {
	rows, err := q.db.Query(ctx, listTicketsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PreparationTicket{}
	for rows.Next() {
		i, err := scanTicket(rows)
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

const updateTicketStatus = `-- name: UpdateTicketStatus :one
UPDATE preparation_tickets
SET status = $2,
    started_at = CASE WHEN $2 IN ('PREPARING', 'READY', 'SERVED') AND started_at IS NULL THEN now() ELSE started_at END,
    ready_at   = CASE WHEN $2 IN ('READY', 'SERVED') AND ready_at IS NULL THEN now() ELSE ready_at END,
    served_at  = CASE WHEN $2 = 'SERVED' THEN now() ELSE served_at END,
    updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + ticketColumns

type UpdateTicketStatusParams struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	PrevStatus string    `json:"prev_status"`
}

func (q *Queries) UpdateTicketStatus(ctx context.Context, arg UpdateTicketStatusParams) (PreparationTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, updateTicketStatus, arg.ID, arg.Status, arg.PrevStatus))
}

const touchTicket = `-- name: TouchTicket :one
UPDATE preparation_tickets SET updated_at = now() WHERE id = $1
RETURNING ` + ticketColumns

// TouchTicket marks a ticket as changed after its line items were edited.
func (q *Queries) TouchTicket(ctx context.Context, id uuid.UUID) (PreparationTicket, error) {
	return scanTicket(q.db.QueryRow(ctx, touchTicket, id))
}

const deleteTicket = `-- name: DeleteTicket :exec
DELETE FROM preparation_tickets WHERE id = $1`

func (q *Queries) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTicket, id)
	return err
}
