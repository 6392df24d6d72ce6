package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.Orders; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, customerName, vehicle string) (database.ServiceOrder, error)
}

// OrderStore defines the database methods needed by order read/update
// handlers. Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.ServiceOrder, error)
	ListOrders(ctx context.Context, status pgtype.Text) ([]database.ServiceOrder, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.ServiceOrder, error)
}

// OrderHandler handles service-order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers the order read endpoints. Mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{oid}", h.Get)
}

// RegisterStaffRoutes registers the order write endpoints. The router
// restricts these to the front desk.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{oid}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName string `json:"customer_name"`
	Vehicle      string `json:"vehicle"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID `json:"id"`
	Number        string    `json:"number"`
	CustomerName  string    `json:"customer_name"`
	Vehicle       string    `json:"vehicle"`
	Status        string    `json:"status"`
	ValorOrcado   string    `json:"valor_orcado"`
	ValorAprovado string    `json:"valor_aprovado"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toOrderResponse(o database.ServiceOrder) orderResponse {
	return orderResponse{
		ID:            o.ID,
		Number:        o.Number,
		CustomerName:  o.CustomerName,
		Vehicle:       o.Vehicle,
		Status:        o.Status,
		ValorOrcado:   numericToString(o.ValorOrcado),
		ValorAprovado: numericToString(o.ValorAprovado),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// --- Handlers ---

// Create opens a new service order on the kanban's first column.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.CustomerName == "" || req.Vehicle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name and vehicle are required"})
		return
	}

	order, err := h.svc.Create(r.Context(), req.CustomerName, req.Vehicle)
	if err != nil {
		if errors.Is(err, service.ErrOrderNumberTaken) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "could not allocate order number, try again"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// List returns orders newest first, optionally filtered by ?status=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := pgtype.Text{}
	if status := r.URL.Query().Get("status"); status != "" {
		if !validOrderStatus(status) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		filter = pgtype.Text{String: status, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one order by id.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus moves the order across the kanban board.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !validOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{ID: id, Status: req.Status})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func validOrderStatus(status string) bool {
	switch status {
	case enum.OrderStatusReceived, enum.OrderStatusDiagnosing,
		enum.OrderStatusBudgeting, enum.OrderStatusInService,
		enum.OrderStatusReady, enum.OrderStatusDelivered:
		return true
	}
	return false
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0"
	}
	v, err := n.Value()
	if err != nil || v == nil {
		return "0"
	}
	return v.(string)
}
