package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound reports an update or delete against an id that is not in
// the currently loaded item set.
var ErrItemNotFound = errors.New("item not found")

// ItemStore defines the DB methods the budget engine needs.
// Satisfied by *database.Queries.
type ItemStore interface {
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ServiceOrderItem, error)
	CreateItem(ctx context.Context, arg database.CreateItemParams) (database.ServiceOrderItem, error)
	UpdateItem(ctx context.Context, arg database.UpdateItemParams) (database.ServiceOrderItem, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) error
}

// Notifier is the user-facing toast channel. Calls are fire-and-forget and
// never influence an operation's success or failure.
type Notifier interface {
	Success(orderID uuid.UUID, message string)
	Error(orderID uuid.UUID, message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Success(uuid.UUID, string) {}
func (NopNotifier) Error(uuid.UUID, string)   {}

// Item is the stable external shape of one budget line. The database layer
// holds the legacy pt-BR column names; everything above speaks this struct.
type Item struct {
	ID                    uuid.UUID
	OrderID               uuid.UUID
	Description           string
	ItemType              string
	Quantity              int32
	CostPrice             decimal.Decimal
	SuggestedPrice        decimal.Decimal
	UnitPrice             decimal.Decimal
	TotalPrice            decimal.Decimal
	MarginPercent         decimal.Decimal
	Status                string
	Priority              string
	BudgetTier            string
	Notes                 string
	RefusalReason         string
	DiscountJustification string
	EstimatedReturnDate   string // YYYY-MM-DD, empty when unset
	CreatedAt             time.Time
}

// NewItemInput is the payload for adding a budget line.
type NewItemInput struct {
	Description           string
	ItemType              string
	Quantity              int32
	CostPrice             decimal.Decimal
	UnitPrice             decimal.Decimal
	Priority              string
	MarginPercent         *decimal.Decimal // nil -> pricing.DefaultMarginPercent
	BudgetTier            string           // empty -> standard
	Notes                 string
	DiscountJustification string
}

// ItemUpdate is a partial update: nil fields keep their current value.
// Derived fields (total, margin) are recomputed from the effective values,
// never taken from the caller.
type ItemUpdate struct {
	Description           *string
	ItemType              *string
	Quantity              *int32
	CostPrice             *decimal.Decimal
	UnitPrice             *decimal.Decimal
	Status                *string
	Priority              *string
	BudgetTier            *string
	Notes                 *string
	RefusalReason         *string
	DiscountJustification *string
	EstimatedReturnDate   *string
}

// Budget is the stateful item engine for one service order: it loads the
// order's budget lines, runs every mutation through the pricing rules and
// the approval state machine, and keeps the order's aggregate totals in
// sync after each write. A Budget with an absent order id is a supported
// mode (order not created yet): reads yield an empty list and no I/O runs.
type Budget struct {
	store    ItemStore
	notifier Notifier
	orderID  uuid.NullUUID

	mu    sync.RWMutex
	items []Item
	subs  []chan struct{}
}

// NewBudget creates a Budget bound to the given order id (invalid = absent).
func NewBudget(store ItemStore, notifier Notifier, orderID uuid.NullUUID) *Budget {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Budget{store: store, notifier: notifier, orderID: orderID}
}

// Items returns a copy of the currently loaded item list.
func (b *Budget) Items() []Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}

// Subscribe returns a channel that receives a signal after every successful
// mutation. The signal is dropped if the subscriber is not ready.
func (b *Budget) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Refresh reloads the item list from storage, ascending by creation time.
// With no order id it resets to an empty list without touching storage.
func (b *Budget) Refresh(ctx context.Context) error {
	if !b.orderID.Valid {
		b.setItems(nil)
		return nil
	}

	rows, err := b.store.ListItemsByOrder(ctx, b.orderID.UUID)
	if err != nil {
		log.Printf("ERROR: fetch items: %v", err)
		b.notifier.Error(b.orderID.UUID, "Erro ao carregar itens da OS")
		return err
	}

	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = normalizeItem(row)
	}
	b.setItems(items)
	return nil
}

// AddItem inserts a new budget line and returns it. The suggested price
// comes from the supplied (or default) margin, while the stored margin
// reflects the unit price actually chosen, so the two differ when the
// caller overrides the suggestion. Status is always forced to pending.
// The returned item is built from the insert itself, not the follow-up
// refetch, which can fail without affecting the result.
func (b *Budget) AddItem(ctx context.Context, input NewItemInput) (Item, bool) {
	if !b.orderID.Valid {
		return Item{}, false
	}

	margin := pricing.DefaultMargin()
	if input.MarginPercent != nil {
		margin = *input.MarginPercent
	}
	suggested := pricing.SuggestedPrice(input.CostPrice, margin)
	total := input.UnitPrice.Mul(decimal.NewFromInt32(input.Quantity))

	tier := input.BudgetTier
	if tier == "" {
		tier = enum.DefaultBudgetTier
	}

	row, err := b.store.CreateItem(ctx, database.CreateItemParams{
		OrderID:               b.orderID.UUID,
		Description:           input.Description,
		ItemType:              input.ItemType,
		Quantity:              input.Quantity,
		CostPrice:             decimalToNumeric(input.CostPrice),
		SuggestedPrice:        decimalToNumeric(suggested),
		UnitPrice:             decimalToNumeric(input.UnitPrice),
		TotalPrice:            decimalToNumeric(total),
		MarginPercent:         decimalToNumeric(pricing.Margin(input.CostPrice, input.UnitPrice)),
		Status:                enum.ItemStatusPending,
		Priority:              input.Priority,
		BudgetTier:            tier,
		Notes:                 textOrNull(input.Notes),
		DiscountJustification: textOrNull(input.DiscountJustification),
	})
	if err != nil {
		log.Printf("ERROR: add item: %v", err)
		b.notifier.Error(b.orderID.UUID, "Erro ao adicionar item")
		return Item{}, false
	}

	b.notifier.Success(b.orderID.UUID, "Item adicionado!")
	b.afterMutation(ctx)
	return normalizeItem(row), true
}

// UpdateItem applies a partial update to one loaded item. total_price is
// recomputed when quantity or unit price is touched, margin_percent when
// cost or unit price is touched, and the refusal reason is cleared whenever
// the status leaves recusado.
func (b *Budget) UpdateItem(ctx context.Context, id uuid.UUID, upd ItemUpdate) bool {
	item, ok := b.find(id)
	if !ok {
		log.Printf("ERROR: update item %s: %v", id, ErrItemNotFound)
		b.notifier.Error(b.orderID.UUID, "Erro ao atualizar item")
		return false
	}

	eff := applyUpdate(item, upd)
	if _, err := b.store.UpdateItem(ctx, updateParams(eff)); err != nil {
		log.Printf("ERROR: update item %s: %v", id, err)
		b.notifier.Error(b.orderID.UUID, "Erro ao atualizar item")
		return false
	}

	b.afterMutation(ctx)
	return true
}

// DeleteItem removes the row permanently. There is no soft delete.
func (b *Budget) DeleteItem(ctx context.Context, id uuid.UUID) bool {
	if err := b.store.DeleteItem(ctx, id); err != nil {
		log.Printf("ERROR: delete item %s: %v", id, err)
		b.notifier.Error(b.orderID.UUID, "Erro ao remover item")
		return false
	}

	b.notifier.Success(b.orderID.UUID, "Item removido!")
	b.afterMutation(ctx)
	return true
}

// ApproveItem moves the item to aprovado and clears any refusal reason.
// There is no transition guard: any state may move to any other state.
func (b *Budget) ApproveItem(ctx context.Context, id uuid.UUID) bool {
	status := enum.ItemStatusApproved
	ok := b.UpdateItem(ctx, id, ItemUpdate{Status: &status})
	if ok {
		b.notifier.Success(b.orderID.UUID, "Item aprovado!")
	}
	return ok
}

// RefuseItem moves the item to recusado, recording the optional reason.
func (b *Budget) RefuseItem(ctx context.Context, id uuid.UUID, reason string) bool {
	status := enum.ItemStatusRefused
	upd := ItemUpdate{Status: &status}
	if reason != "" {
		upd.RefusalReason = &reason
	}
	ok := b.UpdateItem(ctx, id, upd)
	if ok {
		b.notifier.Success(b.orderID.UUID, "Item recusado!")
	}
	return ok
}

// ResetItemStatus returns the item to pendente and clears the refusal
// reason. Calling it repeatedly is a no-op after the first call.
func (b *Budget) ResetItemStatus(ctx context.Context, id uuid.UUID) bool {
	status := enum.ItemStatusPending
	return b.UpdateItem(ctx, id, ItemUpdate{Status: &status})
}

// --- Internals ---

func (b *Budget) setItems(items []Item) {
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
}

func (b *Budget) find(id uuid.UUID) (Item, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, it := range b.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// afterMutation runs the post-write sequence: refetch the list, push fresh
// totals onto the order, and wake subscribers. Refetch and totals sync are
// two independent round-trips; neither failure undoes the item write.
func (b *Budget) afterMutation(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil {
		log.Printf("ERROR: refetch after mutation: %v", err)
	}
	b.syncOrderTotals(ctx)
	b.notifyChanged()
}

// syncOrderTotals re-reads the full item set from storage (not the local
// cache, to avoid drift) and writes the budgeted and approved sums onto the
// owning order. Failures are logged and swallowed: the triggering item
// mutation already succeeded, and the order totals catch up on the next
// write. The totals can therefore go stale if this step keeps failing.
func (b *Budget) syncOrderTotals(ctx context.Context) {
	if !b.orderID.Valid {
		return
	}

	rows, err := b.store.ListItemsByOrder(ctx, b.orderID.UUID)
	if err != nil {
		log.Printf("ERROR: sync order totals: fetch items: %v", err)
		return
	}

	total := decimal.Zero
	approved := decimal.Zero
	for _, row := range rows {
		t := numericToDecimal(row.TotalPrice)
		total = total.Add(t)
		if row.Status == enum.ItemStatusApproved {
			approved = approved.Add(t)
		}
	}

	err = b.store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:            b.orderID.UUID,
		ValorOrcado:   decimalToNumeric(total),
		ValorAprovado: decimalToNumeric(approved),
	})
	if err != nil {
		log.Printf("ERROR: sync order totals: update order: %v", err)
	}
}

func (b *Budget) notifyChanged() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// applyUpdate merges a partial update over the loaded item and re-derives
// total_price and margin_percent from the effective values.
func applyUpdate(item Item, upd ItemUpdate) Item {
	eff := item

	if upd.Description != nil {
		eff.Description = *upd.Description
	}
	if upd.ItemType != nil {
		eff.ItemType = *upd.ItemType
	}
	if upd.Quantity != nil {
		eff.Quantity = *upd.Quantity
	}
	if upd.CostPrice != nil {
		eff.CostPrice = *upd.CostPrice
	}
	if upd.UnitPrice != nil {
		eff.UnitPrice = *upd.UnitPrice
	}
	if upd.Priority != nil {
		eff.Priority = *upd.Priority
	}
	if upd.BudgetTier != nil {
		eff.BudgetTier = *upd.BudgetTier
	}
	if upd.Notes != nil {
		eff.Notes = *upd.Notes
	}
	if upd.DiscountJustification != nil {
		eff.DiscountJustification = *upd.DiscountJustification
	}
	if upd.EstimatedReturnDate != nil {
		eff.EstimatedReturnDate = *upd.EstimatedReturnDate
	}

	if upd.Quantity != nil || upd.UnitPrice != nil {
		eff.TotalPrice = eff.UnitPrice.Mul(decimal.NewFromInt32(eff.Quantity))
	}
	if upd.CostPrice != nil || upd.UnitPrice != nil {
		eff.MarginPercent = pricing.Margin(eff.CostPrice, eff.UnitPrice)
	}

	// Every status write replaces the refusal reason: the provided value
	// for recusado, nothing otherwise.
	if upd.Status != nil {
		eff.Status = *upd.Status
		if upd.RefusalReason != nil {
			eff.RefusalReason = *upd.RefusalReason
		} else {
			eff.RefusalReason = ""
		}
	} else if upd.RefusalReason != nil {
		eff.RefusalReason = *upd.RefusalReason
	}
	if eff.Status == enum.ItemStatusApproved || eff.Status == enum.ItemStatusPending {
		eff.RefusalReason = ""
	}

	return eff
}

func updateParams(eff Item) database.UpdateItemParams {
	return database.UpdateItemParams{
		ID:                    eff.ID,
		Description:           eff.Description,
		ItemType:              eff.ItemType,
		Quantity:              eff.Quantity,
		CostPrice:             decimalToNumeric(eff.CostPrice),
		UnitPrice:             decimalToNumeric(eff.UnitPrice),
		TotalPrice:            decimalToNumeric(eff.TotalPrice),
		MarginPercent:         decimalToNumeric(eff.MarginPercent),
		Status:                eff.Status,
		Priority:              eff.Priority,
		BudgetTier:            eff.BudgetTier,
		Notes:                 textOrNull(eff.Notes),
		RefusalReason:         textOrNull(eff.RefusalReason),
		DiscountJustification: textOrNull(eff.DiscountJustification),
		EstimatedReturnDate:   dateOrNull(eff.EstimatedReturnDate),
	}
}

// normalizeItem maps a persisted row to the external shape, applying the
// legacy fallback defaults for empty enum columns and a 40% margin when the
// stored margin is missing.
func normalizeItem(row database.ServiceOrderItem) Item {
	item := Item{
		ID:                    row.ID,
		OrderID:               row.OrderID,
		Description:           row.Description,
		ItemType:              row.ItemType,
		Quantity:              row.Quantity,
		CostPrice:             numericToDecimal(row.CostPrice),
		SuggestedPrice:        numericToDecimal(row.SuggestedPrice),
		UnitPrice:             numericToDecimal(row.UnitPrice),
		TotalPrice:            numericToDecimal(row.TotalPrice),
		MarginPercent:         numericToDecimal(row.MarginPercent),
		Status:                row.Status,
		Priority:              row.Priority,
		BudgetTier:            row.BudgetTier,
		Notes:                 row.Notes.String,
		RefusalReason:         row.RefusalReason.String,
		DiscountJustification: row.DiscountJustification.String,
		CreatedAt:             row.CreatedAt,
	}

	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if !row.MarginPercent.Valid {
		item.MarginPercent = pricing.DefaultMargin()
	}
	switch item.Status {
	case enum.ItemStatusPending, enum.ItemStatusApproved, enum.ItemStatusRefused:
	default:
		item.Status = enum.DefaultItemStatus
	}
	switch item.Priority {
	case enum.PriorityGreen, enum.PriorityYellow, enum.PriorityRed:
	default:
		item.Priority = enum.DefaultPriority
	}
	switch item.BudgetTier {
	case enum.BudgetTierPremium, enum.BudgetTierStandard, enum.BudgetTierEco:
	default:
		item.BudgetTier = enum.DefaultBudgetTier
	}
	if row.EstimatedReturnDate.Valid {
		item.EstimatedReturnDate = row.EstimatedReturnDate.Time.Format("2006-01-02")
	}

	return item
}

// --- pgtype helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func dateOrNull(s string) pgtype.Date {
	if s == "" {
		return pgtype.Date{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}
