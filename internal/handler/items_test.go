package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/service"
)

// fakeItemStore is an in-memory service.ItemStore.
type fakeItemStore struct {
	mu     sync.Mutex
	items  map[uuid.UUID]database.ServiceOrderItem
	seq    []uuid.UUID
	totals map[uuid.UUID]database.UpdateOrderTotalsParams
	clock  time.Time

	// When set, ListItemsByOrder fails once anything has been inserted.
	// Simulates a connection drop between an insert and its refetch.
	failListAfterCreate bool
	creates             int
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{
		items:  make(map[uuid.UUID]database.ServiceOrderItem),
		totals: make(map[uuid.UUID]database.UpdateOrderTotalsParams),
		clock:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeItemStore) ListItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.ServiceOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failListAfterCreate && f.creates > 0 {
		return nil, errors.New("connection reset")
	}
	var out []database.ServiceOrderItem
	for _, id := range f.seq {
		it, ok := f.items[id]
		if ok && it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItemStore) CreateItem(_ context.Context, arg database.CreateItemParams) (database.ServiceOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.clock = f.clock.Add(time.Second)
	it := database.ServiceOrderItem{
		ID:                    uuid.New(),
		OrderID:               arg.OrderID,
		Description:           arg.Description,
		ItemType:              arg.ItemType,
		Quantity:              arg.Quantity,
		CostPrice:             arg.CostPrice,
		SuggestedPrice:        arg.SuggestedPrice,
		UnitPrice:             arg.UnitPrice,
		TotalPrice:            arg.TotalPrice,
		MarginPercent:         arg.MarginPercent,
		Status:                arg.Status,
		Priority:              arg.Priority,
		BudgetTier:            arg.BudgetTier,
		Notes:                 arg.Notes,
		DiscountJustification: arg.DiscountJustification,
		CreatedAt:             f.clock,
	}
	f.items[it.ID] = it
	f.seq = append(f.seq, it.ID)
	return it, nil
}

func (f *fakeItemStore) UpdateItem(_ context.Context, arg database.UpdateItemParams) (database.ServiceOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[arg.ID]
	it.Description = arg.Description
	it.ItemType = arg.ItemType
	it.Quantity = arg.Quantity
	it.CostPrice = arg.CostPrice
	it.UnitPrice = arg.UnitPrice
	it.TotalPrice = arg.TotalPrice
	it.MarginPercent = arg.MarginPercent
	it.Status = arg.Status
	it.Priority = arg.Priority
	it.BudgetTier = arg.BudgetTier
	it.Notes = arg.Notes
	it.RefusalReason = arg.RefusalReason
	it.DiscountJustification = arg.DiscountJustification
	it.EstimatedReturnDate = arg.EstimatedReturnDate
	f.items[arg.ID] = it
	return it, nil
}

func (f *fakeItemStore) DeleteItem(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeItemStore) UpdateOrderTotals(_ context.Context, arg database.UpdateOrderTotalsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals[arg.ID] = arg
	return nil
}

func newItemsTestServer(store *fakeItemStore) http.Handler {
	registry := service.NewBudgetRegistry(store, service.NopNotifier{}, nil)
	h := NewItemsHandler(registry)

	r := chi.NewRouter()
	r.Route("/orders/{oid}/items", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterStaffRoutes(r)
		h.RegisterDecisionRoutes(r)
	})
	return r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeItem(t *testing.T, rec *httptest.ResponseRecorder) itemResponse {
	t.Helper()
	var it itemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &it); err != nil {
		t.Fatalf("decode item response: %v", err)
	}
	return it
}

func createTestItem(t *testing.T, srv http.Handler, orderID uuid.UUID, body map[string]interface{}) itemResponse {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/orders/"+orderID.String()+"/items/", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d, body %s", rec.Code, rec.Body)
	}
	return decodeItem(t, rec)
}

func TestCreateItemEndpoint(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	it := createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Pastilha de freio",
		"item_type":   enum.ItemTypePart,
		"quantity":    2,
		"cost_price":  "100",
		"unit_price":  "150",
		"priority":    enum.PriorityRed,
	})

	if it.SuggestedPrice != "140.00" {
		t.Errorf("suggested_price = %q, want 140.00", it.SuggestedPrice)
	}
	if it.TotalPrice != "300.00" {
		t.Errorf("total_price = %q, want 300.00", it.TotalPrice)
	}
	if it.MarginPercent != "50.00" {
		t.Errorf("margin_percent = %q, want 50.00", it.MarginPercent)
	}
	if it.Status != enum.ItemStatusPending {
		t.Errorf("status = %q, want pendente", it.Status)
	}
	if it.BudgetTier != enum.BudgetTierStandard {
		t.Errorf("budget_tier = %q, want standard", it.BudgetTier)
	}
}

func TestCreateItemRefetchFailure(t *testing.T) {
	store := newFakeItemStore()
	store.failListAfterCreate = true
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	// The insert succeeds, the refetch behind it does not. The response
	// must still carry the created row.
	rec := doJSON(t, srv, http.MethodPost, "/orders/"+orderID.String()+"/items/", map[string]interface{}{
		"description": "Radiador",
		"item_type":   enum.ItemTypePart,
		"quantity":    1,
		"cost_price":  "100",
		"unit_price":  "150",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s, want 201", rec.Code, rec.Body)
	}
	it := decodeItem(t, rec)
	if it.Description != "Radiador" || it.TotalPrice != "150.00" {
		t.Errorf("created item = %+v, want the inserted row", it)
	}
	if len(store.items) != 1 {
		t.Errorf("store has %d items, want 1", len(store.items))
	}
}

func TestCreateItemValidation(t *testing.T) {
	srv := newItemsTestServer(newFakeItemStore())
	orderID := uuid.New()
	path := "/orders/" + orderID.String() + "/items/"

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing description", map[string]interface{}{"item_type": "peca", "quantity": 1, "unit_price": "10"}},
		{"bad item type", map[string]interface{}{"description": "x", "item_type": "servico", "quantity": 1, "unit_price": "10"}},
		{"zero quantity", map[string]interface{}{"description": "x", "item_type": "peca", "quantity": 0, "unit_price": "10"}},
		{"bad unit price", map[string]interface{}{"description": "x", "item_type": "peca", "quantity": 1, "unit_price": "abc"}},
		{"bad margin", map[string]interface{}{"description": "x", "item_type": "peca", "quantity": 1, "unit_price": "10", "margin_percent": "?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListItemsEndpoint(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Filtro", "item_type": "peca", "quantity": 1,
		"cost_price": "20", "unit_price": "35",
	})
	createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Troca de oleo", "item_type": "mao_de_obra", "quantity": 1,
		"cost_price": "0", "unit_price": "80",
	})

	rec := doJSON(t, srv, http.MethodGet, "/orders/"+orderID.String()+"/items/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var items []itemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Description != "Filtro" {
		t.Errorf("items not ordered oldest first: %q", items[0].Description)
	}
	// Zero-cost labor gets the 100% margin convention.
	if items[1].MarginPercent != "100.00" {
		t.Errorf("labor margin = %q, want 100.00", items[1].MarginPercent)
	}
}

func TestApproveRefuseResetEndpoints(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	it := createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Correia", "item_type": "peca", "quantity": 1,
		"cost_price": "30", "unit_price": "45",
	})
	base := "/orders/" + orderID.String() + "/items/" + it.ID.String()

	rec := doJSON(t, srv, http.MethodPost, base+"/refuse", map[string]interface{}{"reason": "muito caro"})
	if rec.Code != http.StatusOK {
		t.Fatalf("refuse: status %d, body %s", rec.Code, rec.Body)
	}
	refused := decodeItem(t, rec)
	if refused.Status != enum.ItemStatusRefused {
		t.Errorf("status = %q, want recusado", refused.Status)
	}
	if refused.RefusalReason == nil || *refused.RefusalReason != "muito caro" {
		t.Errorf("refusal_reason = %v, want muito caro", refused.RefusalReason)
	}

	rec = doJSON(t, srv, http.MethodPost, base+"/approve", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status %d", rec.Code)
	}
	approved := decodeItem(t, rec)
	if approved.Status != enum.ItemStatusApproved {
		t.Errorf("status = %q, want aprovado", approved.Status)
	}
	if approved.RefusalReason != nil {
		t.Errorf("refusal_reason survived approval: %v", *approved.RefusalReason)
	}

	totals := store.totals[orderID]
	if got := numericToString(totals.ValorAprovado); got != "45.00" {
		t.Errorf("valor_aprovado = %q, want 45.00", got)
	}

	rec = doJSON(t, srv, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status %d", rec.Code)
	}
	if got := decodeItem(t, rec).Status; got != enum.ItemStatusPending {
		t.Errorf("status after reset = %q, want pendente", got)
	}
}

func TestUpdateItemEndpoint(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	it := createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Amortecedor", "item_type": "peca", "quantity": 2,
		"cost_price": "200", "unit_price": "280",
	})

	rec := doJSON(t, srv, http.MethodPatch, "/orders/"+orderID.String()+"/items/"+it.ID.String(),
		map[string]interface{}{"quantity": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body)
	}
	updated := decodeItem(t, rec)
	if updated.TotalPrice != "840.00" {
		t.Errorf("total_price = %q, want 840.00", updated.TotalPrice)
	}
	if updated.MarginPercent != "40.00" {
		t.Errorf("margin_percent = %q, want unchanged 40.00", updated.MarginPercent)
	}
}

func TestItemNotFound(t *testing.T) {
	srv := newItemsTestServer(newFakeItemStore())
	orderID := uuid.New()
	path := "/orders/" + orderID.String() + "/items/" + uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPatch, path},
		{http.MethodDelete, path},
		{http.MethodPost, path + "/approve"},
		{http.MethodPost, path + "/refuse"},
		{http.MethodPost, path + "/reset"},
	} {
		rec := doJSON(t, srv, tc.method, tc.path, map[string]interface{}{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestDeleteItemEndpoint(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	it := createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Palheta", "item_type": "peca", "quantity": 1,
		"cost_price": "20", "unit_price": "35",
	})

	rec := doJSON(t, srv, http.MethodDelete, "/orders/"+orderID.String()+"/items/"+it.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/orders/"+orderID.String()+"/items/", nil)
	var items []itemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items after delete, want 0", len(items))
	}
}

func TestSummaryEndpoint(t *testing.T) {
	store := newFakeItemStore()
	srv := newItemsTestServer(store)
	orderID := uuid.New()

	a := createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Pastilha", "item_type": "peca", "quantity": 1,
		"cost_price": "100", "unit_price": "150", "priority": "vermelho",
	})
	// 10% margin, no justification: should be flagged.
	createTestItem(t, srv, orderID, map[string]interface{}{
		"description": "Farol", "item_type": "peca", "quantity": 1,
		"cost_price": "100", "unit_price": "110", "priority": "verde",
	})
	doJSON(t, srv, http.MethodPost, "/orders/"+orderID.String()+"/items/"+a.ID.String()+"/approve", nil)

	rec := doJSON(t, srv, http.MethodGet, "/orders/"+orderID.String()+"/items/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status %d, body %s", rec.Code, rec.Body)
	}

	var sum summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sum.Totals.TotalQuoted.Equal(sum.Totals.TotalApproved.Add(sum.Totals.TotalPending)) {
		t.Errorf("totals do not add up: %+v", sum.Totals)
	}
	if sum.CountsByStatus[enum.ItemStatusApproved] != 1 {
		t.Errorf("approved count = %d, want 1", sum.CountsByStatus[enum.ItemStatusApproved])
	}
	if sum.CountsByPriority[enum.PriorityRed] != 1 || sum.CountsByPriority[enum.PriorityGreen] != 1 {
		t.Errorf("priority counts = %v", sum.CountsByPriority)
	}
	if len(sum.LowMarginItems) != 1 || sum.LowMarginItems[0].Description != "Farol" {
		t.Errorf("low margin items = %+v, want only Farol", sum.LowMarginItems)
	}
}

func TestInvalidOrderID(t *testing.T) {
	srv := newItemsTestServer(newFakeItemStore())
	rec := doJSON(t, srv, http.MethodGet, "/orders/not-a-uuid/items/", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
