package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, numero, cliente_nome, veiculo, status,
	valor_orcado, valor_aprovado, created_at, updated_at`

func scanOrder(row pgx.Row) (ServiceOrder, error) {
	var o ServiceOrder
	err := row.Scan(
		&o.ID,
		&o.Number,
		&o.CustomerName,
		&o.Vehicle,
		&o.Status,
		&o.ValorOrcado,
		&o.ValorAprovado,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM ordens_servico
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (ServiceOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM ordens_servico
WHERE $1::text IS NULL OR status = $1
ORDER BY created_at DESC
`

// ListOrders returns orders newest first, optionally filtered by kanban
// status when the parameter is valid.
func (q *Queries) ListOrders(ctx context.Context, status pgtype.Text) ([]ServiceOrder, error) {
	rows, err := q.db.Query(ctx, listOrders, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []ServiceOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(numero FROM 4) AS INTEGER)), 0) + 1
FROM ordens_servico
`

// GetNextOrderNumber returns the next sequential OS number. Concurrent
// transactions can read the same MAX; the unique constraint on numero plus
// the service-level retry handle that race.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO ordens_servico (numero, cliente_nome, veiculo, status)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Number       string
	CustomerName string
	Vehicle      string
	Status       string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (ServiceOrder, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Number,
		arg.CustomerName,
		arg.Vehicle,
		arg.Status,
	)
	return scanOrder(row)
}

const updateOrderStatus = `
UPDATE ordens_servico SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (ServiceOrder, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const updateOrderTotals = `
UPDATE ordens_servico SET valor_orcado = $2, valor_aprovado = $3, updated_at = now()
WHERE id = $1
`

type UpdateOrderTotalsParams struct {
	ID            uuid.UUID
	ValorOrcado   pgtype.Numeric
	ValorAprovado pgtype.Numeric
}

// UpdateOrderTotals writes the denormalized budget totals onto the order.
func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) error {
	_, err := q.db.Exec(ctx, updateOrderTotals, arg.ID, arg.ValorOrcado, arg.ValorAprovado)
	return err
}
