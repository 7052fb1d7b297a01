package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, price, destination, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Destination,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, price, destination)
VALUES ($1, $2, $3)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
	Destination string         `json:"destination"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, arg.Name, arg.Price, arg.Destination))
}

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT ` + productColumns + ` FROM products WHERE id = $1 AND active = true`

func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForOrder, id))
}

const getProductByName = `-- name: GetProductByName :one
SELECT ` + productColumns + ` FROM products WHERE name = $1 ORDER BY created_at LIMIT 1`

func (q *Queries) GetProductByName(ctx context.Context, name string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByName, name))
}
