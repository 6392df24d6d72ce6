package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
)

const maxOrderNumberRetries = 3

// ErrOrderNumberTaken is returned when every attempt to allocate a
// sequential OS number lost the race against a concurrent create.
var ErrOrderNumberTaken = errors.New("order number taken after retries")

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.ServiceOrder, error)
}

// NewOrderStore binds an OrderStore to a transaction, typically via
// Queries.WithTx.
type NewOrderStore func(tx pgx.Tx) OrderStore

// Orders creates service orders with sequential OS-NNN numbers.
type Orders struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrders creates a new Orders service.
func NewOrders(pool TxBeginner, newStore NewOrderStore) *Orders {
	return &Orders{pool: pool, newStore: newStore}
}

// Create opens a new service order on the kanban's first column. The number
// read and the insert run in one transaction, but two concurrent creates can
// still pick the same number; the unique constraint on numero rejects the
// loser and we retry with a fresh read.
func (s *Orders) Create(ctx context.Context, customerName, vehicle string) (database.ServiceOrder, error) {
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createOnce(ctx, customerName, vehicle)
		if err == nil {
			return order, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return database.ServiceOrder{}, err
	}
	return database.ServiceOrder{}, ErrOrderNumberTaken
}

func (s *Orders) createOnce(ctx context.Context, customerName, vehicle string) (database.ServiceOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ServiceOrder{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	store := s.newStore(tx)

	n, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return database.ServiceOrder{}, fmt.Errorf("next order number: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Number:       fmt.Sprintf("OS-%03d", n),
		CustomerName: customerName,
		Vehicle:      vehicle,
		Status:       enum.OrderStatusReceived,
	})
	if err != nil {
		return database.ServiceOrder{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ServiceOrder{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}
