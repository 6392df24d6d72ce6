package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/service"
	"github.com/shopspring/decimal"
)

// ItemsHandler handles the budget lines of a service order.
type ItemsHandler struct {
	budgets *service.BudgetRegistry
}

// NewItemsHandler creates a new ItemsHandler.
func NewItemsHandler(budgets *service.BudgetRegistry) *ItemsHandler {
	return &ItemsHandler{budgets: budgets}
}

// RegisterRoutes registers the read endpoints, open to every authenticated
// role. Mounted at /orders/{oid}/items.
func (h *ItemsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/summary", h.Summary)
}

// RegisterStaffRoutes registers the budget-editing endpoints. The router
// restricts these to workshop staff.
func (h *ItemsHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// RegisterDecisionRoutes registers the approval endpoints. The router also
// grants these to CLIENTE, who decides on their own quote.
func (h *ItemsHandler) RegisterDecisionRoutes(r chi.Router) {
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/refuse", h.Refuse)
	r.Post("/{id}/reset", h.Reset)
}

// --- Request / Response types ---

type createItemRequest struct {
	Description           string `json:"description"`
	ItemType              string `json:"item_type"`
	Quantity              int32  `json:"quantity"`
	CostPrice             string `json:"cost_price"`
	UnitPrice             string `json:"unit_price"`
	Priority              string `json:"priority"`
	MarginPercent         string `json:"margin_percent"`
	BudgetTier            string `json:"budget_tier"`
	Notes                 string `json:"notes"`
	DiscountJustification string `json:"discount_justification"`
}

type updateItemRequest struct {
	Description           *string `json:"description"`
	ItemType              *string `json:"item_type"`
	Quantity              *int32  `json:"quantity"`
	CostPrice             *string `json:"cost_price"`
	UnitPrice             *string `json:"unit_price"`
	Priority              *string `json:"priority"`
	BudgetTier            *string `json:"budget_tier"`
	Notes                 *string `json:"notes"`
	DiscountJustification *string `json:"discount_justification"`
	EstimatedReturnDate   *string `json:"estimated_return_date"`
}

type refuseItemRequest struct {
	Reason string `json:"reason"`
}

type itemResponse struct {
	ID                    uuid.UUID `json:"id"`
	OrderID               uuid.UUID `json:"order_id"`
	Description           string    `json:"description"`
	ItemType              string    `json:"item_type"`
	Quantity              int32     `json:"quantity"`
	CostPrice             string    `json:"cost_price"`
	SuggestedPrice        string    `json:"suggested_price"`
	UnitPrice             string    `json:"unit_price"`
	TotalPrice            string    `json:"total_price"`
	MarginPercent         string    `json:"margin_percent"`
	Status                string    `json:"status"`
	Priority              string    `json:"priority"`
	BudgetTier            string    `json:"budget_tier"`
	Notes                 *string   `json:"notes"`
	RefusalReason         *string   `json:"refusal_reason"`
	DiscountJustification *string   `json:"discount_justification"`
	EstimatedReturnDate   *string   `json:"estimated_return_date"`
	CreatedAt             time.Time `json:"created_at"`
}

type summaryResponse struct {
	Totals           service.Summary `json:"totals"`
	CountsByStatus   map[string]int  `json:"counts_by_status"`
	CountsByPriority map[string]int  `json:"counts_by_priority"`
	CountsByTier     map[string]int  `json:"counts_by_tier"`
	LowMarginItems   []itemResponse  `json:"low_margin_items"`
}

func toItemResponse(it service.Item) itemResponse {
	return itemResponse{
		ID:                    it.ID,
		OrderID:               it.OrderID,
		Description:           it.Description,
		ItemType:              it.ItemType,
		Quantity:              it.Quantity,
		CostPrice:             it.CostPrice.StringFixed(2),
		SuggestedPrice:        it.SuggestedPrice.StringFixed(2),
		UnitPrice:             it.UnitPrice.StringFixed(2),
		TotalPrice:            it.TotalPrice.StringFixed(2),
		MarginPercent:         it.MarginPercent.StringFixed(2),
		Status:                it.Status,
		Priority:              it.Priority,
		BudgetTier:            it.BudgetTier,
		Notes:                 strOrNil(it.Notes),
		RefusalReason:         strOrNil(it.RefusalReason),
		DiscountJustification: strOrNil(it.DiscountJustification),
		EstimatedReturnDate:   strOrNil(it.EstimatedReturnDate),
		CreatedAt:             it.CreatedAt,
	}
}

func toItemResponses(items []service.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

// --- Handlers ---

// List returns the order's budget lines, oldest first.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(budget.Items()))
}

// Create adds a budget line to the order.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "description is required"})
		return
	}
	if req.ItemType != enum.ItemTypePart && req.ItemType != enum.ItemTypeLabor {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_type must be peca or mao_de_obra"})
		return
	}
	if req.Quantity < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be at least 1"})
		return
	}

	cost, err := parseMoney(req.CostPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
		return
	}
	unit, err := parseMoney(req.UnitPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
		return
	}

	input := service.NewItemInput{
		Description:           req.Description,
		ItemType:              req.ItemType,
		Quantity:              req.Quantity,
		CostPrice:             cost,
		UnitPrice:             unit,
		Priority:              req.Priority,
		BudgetTier:            req.BudgetTier,
		Notes:                 req.Notes,
		DiscountJustification: req.DiscountJustification,
	}
	if input.Priority == "" {
		input.Priority = enum.DefaultPriority
	}
	if req.MarginPercent != "" {
		margin, err := decimal.NewFromString(req.MarginPercent)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid margin_percent"})
			return
		}
		input.MarginPercent = &margin
	}

	item, ok := budget.AddItem(r.Context(), input)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to add item"})
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// Update applies a partial update to one budget line.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	id, ok := h.findItem(w, r, budget)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	upd := service.ItemUpdate{
		Description:           req.Description,
		ItemType:              req.ItemType,
		Quantity:              req.Quantity,
		Priority:              req.Priority,
		BudgetTier:            req.BudgetTier,
		Notes:                 req.Notes,
		DiscountJustification: req.DiscountJustification,
		EstimatedReturnDate:   req.EstimatedReturnDate,
	}
	if req.CostPrice != nil {
		cost, err := parseMoney(*req.CostPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cost_price"})
			return
		}
		upd.CostPrice = &cost
	}
	if req.UnitPrice != nil {
		unit, err := parseMoney(*req.UnitPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
			return
		}
		upd.UnitPrice = &unit
	}

	if !budget.UpdateItem(r.Context(), id, upd) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update item"})
		return
	}

	h.respondWithItem(w, budget, id)
}

// Delete removes a budget line.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	id, ok := h.findItem(w, r, budget)
	if !ok {
		return
	}

	if !budget.DeleteItem(r.Context(), id) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete item"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Approve marks a budget line aprovado.
func (h *ItemsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	id, ok := h.findItem(w, r, budget)
	if !ok {
		return
	}

	if !budget.ApproveItem(r.Context(), id) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to approve item"})
		return
	}
	h.respondWithItem(w, budget, id)
}

// Refuse marks a budget line recusado with an optional reason.
func (h *ItemsHandler) Refuse(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	id, ok := h.findItem(w, r, budget)
	if !ok {
		return
	}

	var req refuseItemRequest
	if r.Body != nil {
		// Body is optional; a refusal without a reason is valid.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if !budget.RefuseItem(r.Context(), id, req.Reason) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to refuse item"})
		return
	}
	h.respondWithItem(w, budget, id)
}

// Reset returns a budget line to pendente.
func (h *ItemsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	id, ok := h.findItem(w, r, budget)
	if !ok {
		return
	}

	if !budget.ResetItemStatus(r.Context(), id) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset item"})
		return
	}
	h.respondWithItem(w, budget, id)
}

// Summary returns the order's budget rollup: monetary totals, counts per
// status, priority and tier, and the low-margin lines needing review.
func (h *ItemsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	items := budget.Items()
	writeJSON(w, http.StatusOK, summaryResponse{
		Totals:           service.Summarize(items),
		CountsByStatus:   countGroups(service.GroupByStatus(items)),
		CountsByPriority: countGroups(service.GroupByPriority(items)),
		CountsByTier:     countGroups(service.GroupByTier(items)),
		LowMarginItems:   toItemResponses(service.LowMarginItems(items)),
	})
}

// --- Helpers ---

// loadBudget resolves the order's budget engine and refreshes its item list.
func (h *ItemsHandler) loadBudget(w http.ResponseWriter, r *http.Request) (*service.Budget, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "oid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return nil, false
	}

	budget := h.budgets.For(orderID)
	if err := budget.Refresh(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}
	return budget, true
}

// findItem parses the item id and confirms it belongs to the loaded budget.
func (h *ItemsHandler) findItem(w http.ResponseWriter, r *http.Request, budget *service.Budget) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return uuid.Nil, false
	}

	for _, it := range budget.Items() {
		if it.ID == id {
			return id, true
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
	return uuid.Nil, false
}

func (h *ItemsHandler) respondWithItem(w http.ResponseWriter, budget *service.Budget, id uuid.UUID) {
	for _, it := range budget.Items() {
		if it.ID == id {
			writeJSON(w, http.StatusOK, toItemResponse(it))
			return
		}
	}
	// Deleted concurrently between the write and the refetch.
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
}

func countGroups(groups map[string][]service.Item) map[string]int {
	out := make(map[string]int, len(groups))
	for k, v := range groups {
		out[k] = len(v)
	}
	return out
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
