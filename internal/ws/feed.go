package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ChangeFeed tells an order's room that its item list changed, so open
// clients can refetch. It carries no payload on purpose: the HTTP API is
// the single source of truth for item data.
type ChangeFeed struct {
	hub *Hub
}

func NewChangeFeed(hub *Hub) *ChangeFeed {
	return &ChangeFeed{hub: hub}
}

func (f *ChangeFeed) ItemsChanged(orderID uuid.UUID) {
	f.hub.BroadcastToOrder(orderID, Event{Type: "items_changed", Payload: json.RawMessage(`{}`)})
}
