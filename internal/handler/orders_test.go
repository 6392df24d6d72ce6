package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oficinapro/api/internal/database"
	"github.com/oficinapro/api/internal/enum"
	"github.com/oficinapro/api/internal/service"
)

type mockOrderService struct {
	createFn func(ctx context.Context, customerName, vehicle string) (database.ServiceOrder, error)
}

func (m *mockOrderService) Create(ctx context.Context, customerName, vehicle string) (database.ServiceOrder, error) {
	return m.createFn(ctx, customerName, vehicle)
}

type mockOrderReadStore struct {
	getOrderFn          func(ctx context.Context, id uuid.UUID) (database.ServiceOrder, error)
	listOrdersFn        func(ctx context.Context, status pgtype.Text) ([]database.ServiceOrder, error)
	updateOrderStatusFn func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.ServiceOrder, error)
}

func (m *mockOrderReadStore) GetOrder(ctx context.Context, id uuid.UUID) (database.ServiceOrder, error) {
	return m.getOrderFn(ctx, id)
}

func (m *mockOrderReadStore) ListOrders(ctx context.Context, status pgtype.Text) ([]database.ServiceOrder, error) {
	return m.listOrdersFn(ctx, status)
}

func (m *mockOrderReadStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.ServiceOrder, error) {
	return m.updateOrderStatusFn(ctx, arg)
}

func newOrdersTestServer(svc OrderServicer, store OrderStore) http.Handler {
	h := NewOrderHandler(svc, store)
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterStaffRoutes(r)
	})
	return r
}

func TestCreateOrderEndpoint(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(_ context.Context, customerName, vehicle string) (database.ServiceOrder, error) {
			return database.ServiceOrder{
				ID:           uuid.New(),
				Number:       "OS-001",
				CustomerName: customerName,
				Vehicle:      vehicle,
				Status:       enum.OrderStatusReceived,
			}, nil
		},
	}
	srv := newOrdersTestServer(svc, &mockOrderReadStore{})

	rec := doJSON(t, srv, http.MethodPost, "/orders/", map[string]interface{}{
		"customer_name": "Maria Souza",
		"vehicle":       "Gol 2014",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	srv := newOrdersTestServer(&mockOrderService{}, &mockOrderReadStore{})

	rec := doJSON(t, srv, http.MethodPost, "/orders/", map[string]interface{}{"customer_name": "Maria"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateOrderNumberConflict(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(context.Context, string, string) (database.ServiceOrder, error) {
			return database.ServiceOrder{}, service.ErrOrderNumberTaken
		},
	}
	srv := newOrdersTestServer(svc, &mockOrderReadStore{})

	rec := doJSON(t, srv, http.MethodPost, "/orders/", map[string]interface{}{
		"customer_name": "x", "vehicle": "y",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestListOrdersStatusFilter(t *testing.T) {
	var gotFilter pgtype.Text
	store := &mockOrderReadStore{
		listOrdersFn: func(_ context.Context, status pgtype.Text) ([]database.ServiceOrder, error) {
			gotFilter = status
			return nil, nil
		},
	}
	srv := newOrdersTestServer(&mockOrderService{}, store)

	rec := doJSON(t, srv, http.MethodGet, "/orders/?status=pronto", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !gotFilter.Valid || gotFilter.String != enum.OrderStatusReady {
		t.Errorf("filter = %+v, want pronto", gotFilter)
	}

	rec = doJSON(t, srv, http.MethodGet, "/orders/?status=cancelado", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid filter: status = %d, want 400", rec.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	store := &mockOrderReadStore{
		getOrderFn: func(context.Context, uuid.UUID) (database.ServiceOrder, error) {
			return database.ServiceOrder{}, pgx.ErrNoRows
		},
	}
	srv := newOrdersTestServer(&mockOrderService{}, store)

	rec := doJSON(t, srv, http.MethodGet, "/orders/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	var gotStatus string
	store := &mockOrderReadStore{
		updateOrderStatusFn: func(_ context.Context, arg database.UpdateOrderStatusParams) (database.ServiceOrder, error) {
			gotStatus = arg.Status
			return database.ServiceOrder{ID: arg.ID, Status: arg.Status}, nil
		},
	}
	srv := newOrdersTestServer(&mockOrderService{}, store)

	rec := doJSON(t, srv, http.MethodPatch, "/orders/"+uuid.NewString()+"/status", map[string]interface{}{
		"status": enum.OrderStatusInService,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if gotStatus != enum.OrderStatusInService {
		t.Errorf("store got status %q, want em_servico", gotStatus)
	}

	rec = doJSON(t, srv, http.MethodPatch, "/orders/"+uuid.NewString()+"/status", map[string]interface{}{
		"status": "finalizado",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status: status = %d, want 400", rec.Code)
	}
}
