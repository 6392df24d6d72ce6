package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

type toastPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Toaster pushes user-facing toast notifications through the hub. It is the
// delivery side of the budget engine's notification channel: every client
// watching the order sees the same "Item aprovado!" the operator sees.
type Toaster struct {
	hub *Hub
}

func NewToaster(hub *Hub) *Toaster {
	return &Toaster{hub: hub}
}

func (t *Toaster) Success(orderID uuid.UUID, message string) {
	t.push(orderID, "success", message)
}

func (t *Toaster) Error(orderID uuid.UUID, message string) {
	t.push(orderID, "error", message)
}

func (t *Toaster) push(orderID uuid.UUID, level, message string) {
	payload, err := json.Marshal(toastPayload{Level: level, Message: message})
	if err != nil {
		return
	}
	t.hub.BroadcastToOrder(orderID, Event{Type: "toast", Payload: payload})
}
