package service

import (
	"sync"

	"github.com/google/uuid"
)

// ChangeBroadcaster receives a signal whenever an order's item list changed.
// Satisfied by the ws layer, which pushes an items_changed event to the
// order's room.
type ChangeBroadcaster interface {
	ItemsChanged(orderID uuid.UUID)
}

// BudgetRegistry hands out one Budget per order so that concurrent requests
// for the same order share state and subscribers. Budgets live for the
// process lifetime; the workshop has a few dozen open orders at a time.
type BudgetRegistry struct {
	store       ItemStore
	notifier    Notifier
	broadcaster ChangeBroadcaster

	mu      sync.Mutex
	budgets map[uuid.UUID]*Budget
}

// NewBudgetRegistry creates a registry. broadcaster may be nil.
func NewBudgetRegistry(store ItemStore, notifier Notifier, broadcaster ChangeBroadcaster) *BudgetRegistry {
	return &BudgetRegistry{
		store:       store,
		notifier:    notifier,
		broadcaster: broadcaster,
		budgets:     make(map[uuid.UUID]*Budget),
	}
}

// For returns the order's Budget, creating it on first use.
func (r *BudgetRegistry) For(orderID uuid.UUID) *Budget {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.budgets[orderID]; ok {
		return b
	}

	b := NewBudget(r.store, r.notifier, uuid.NullUUID{UUID: orderID, Valid: true})
	r.budgets[orderID] = b

	if r.broadcaster != nil {
		ch := b.Subscribe()
		go func() {
			for range ch {
				r.broadcaster.ItemsChanged(orderID)
			}
		}()
	}
	return b
}
