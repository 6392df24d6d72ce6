package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ServiceOrder is a row of ordens_servico. ValorOrcado and ValorAprovado
// are the denormalized aggregate totals maintained by the budget engine.
type ServiceOrder struct {
	ID            uuid.UUID
	Number        string
	CustomerName  string
	Vehicle       string
	Status        string
	ValorOrcado   pgtype.Numeric
	ValorAprovado pgtype.Numeric
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ServiceOrderItem is a row of ordens_servico_itens: one priced budget line
// (part or labor) belonging to exactly one service order.
type ServiceOrderItem struct {
	ID                    uuid.UUID
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
	RefusalReason         pgtype.Text
	DiscountJustification pgtype.Text
	EstimatedReturnDate   pgtype.Date
	CreatedAt             time.Time
}

// User is a row of users.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}
