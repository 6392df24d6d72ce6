package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemColumns = `id, ordem_servico_id, descricao, tipo, quantidade,
	valor_custo, valor_venda_sugerido, valor_unitario, valor_total,
	margem_aplicada, status, prioridade, budget_tier, notes, motivo_recusa,
	justificativa_desconto, data_retorno_estimada, created_at`

func scanItem(row pgx.Row) (ServiceOrderItem, error) {
	var i ServiceOrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Description,
		&i.ItemType,
		&i.Quantity,
		&i.CostPrice,
		&i.SuggestedPrice,
		&i.UnitPrice,
		&i.TotalPrice,
		&i.MarginPercent,
		&i.Status,
		&i.Priority,
		&i.BudgetTier,
		&i.Notes,
		&i.RefusalReason,
		&i.DiscountJustification,
		&i.EstimatedReturnDate,
		&i.CreatedAt,
	)
	return i, err
}

const listItemsByOrder = `
SELECT ` + itemColumns + `
FROM ordens_servico_itens
WHERE ordem_servico_id = $1
ORDER BY created_at ASC
`

// ListItemsByOrder returns every budget line of one order, oldest first.
func (q *Queries) ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]ServiceOrderItem, error) {
	rows, err := q.db.Query(ctx, listItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ServiceOrderItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createItem = `
INSERT INTO ordens_servico_itens (
	ordem_servico_id, descricao, tipo, quantidade, valor_custo,
	valor_venda_sugerido, valor_unitario, valor_total, margem_aplicada,
	status, prioridade, budget_tier, notes, justificativa_desconto
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + itemColumns

type CreateItemParams struct {
	OrderID               uuid.UUID
	Description           string
	ItemType              string
	Quantity              int32
	CostPrice             pgtype.Numeric
	SuggestedPrice        pgtype.Numeric
	UnitPrice             pgtype.Numeric
	TotalPrice            pgtype.Numeric
	MarginPercent         pgtype.Numeric
	Status                string
	Priority              string
	BudgetTier            string
	Notes                 pgtype.Text
	DiscountJustification pgtype.Text
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (ServiceOrderItem, error) {
	row := q.db.QueryRow(ctx, createItem,
		arg.OrderID,
		arg.Description,
		arg.ItemType,
		arg.Quantity,
		arg.CostPrice,
		arg.SuggestedPrice,
		arg.UnitPrice,
		arg.TotalPrice,
		arg.MarginPercent,
		arg.Status,
		arg.Priority,
		arg.BudgetTier,
		arg.Notes,
		arg.DiscountJustification,
	)
	return scanItem(row)
}

const updateItem = `
UPDATE ordens_servico_itens SET
	descricao = $2,
	tipo = $3,
	quantidade = $4,
	valor_custo = $5,
	valor_unitario = $6,
	valor_total = $7,
	margem_aplicada = $8,
	status = $9,
	prioridade = $10,
	budget_tier = $11,
	notes = $12,
	motivo_recusa = $13,
	justificativa_desconto = $14,
	data_retorno_estimada = $15
WHERE id = $1
RETURNING ` + itemColumns

// UpdateItemParams carries the full effective row. Partial-update semantics
// live in the service layer, which merges caller changes over the loaded
// item before writing.
type UpdateItemParams struct {
	ID                    uuid.UUID
	Description           string
	ItemType              string
	Quantity              int32
	CostPrice             pgtype.Numeric
	UnitPrice             pgtype.Numeric
	TotalPrice            pgtype.Numeric
	MarginPercent         pgtype.Numeric
	Status                string
	Priority              string
	BudgetTier            string
	Notes                 pgtype.Text
	RefusalReason         pgtype.Text
	DiscountJustification pgtype.Text
	EstimatedReturnDate   pgtype.Date
}

func (q *Queries) UpdateItem(ctx context.Context, arg UpdateItemParams) (ServiceOrderItem, error) {
	row := q.db.QueryRow(ctx, updateItem,
		arg.ID,
		arg.Description,
		arg.ItemType,
		arg.Quantity,
		arg.CostPrice,
		arg.UnitPrice,
		arg.TotalPrice,
		arg.MarginPercent,
		arg.Status,
		arg.Priority,
		arg.BudgetTier,
		arg.Notes,
		arg.RefusalReason,
		arg.DiscountJustification,
		arg.EstimatedReturnDate,
	)
	return scanItem(row)
}

const deleteItem = `
DELETE FROM ordens_servico_itens WHERE id = $1
`

// DeleteItem removes the row permanently. Returns pgx.ErrNoRows when the
// id does not exist so callers share the not-found path with UpdateItem.
func (q *Queries) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
