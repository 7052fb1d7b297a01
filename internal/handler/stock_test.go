package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/kiwari-pos/tabs/internal/handler"
	"github.com/kiwari-pos/tabs/internal/middleware"
	"github.com/kiwari-pos/tabs/internal/service"
)

// --- Mock StockStore ---

type mockStockStore struct {
	entries   map[uuid.UUID]database.StockEntry
	movements []database.StockMovement
	gotLimit  int32
}

func (m *mockStockStore) GetStockEntry(ctx context.Context, productID uuid.UUID) (database.StockEntry, error) {
	e, ok := m.entries[productID]
	if !ok {
		return database.StockEntry{}, pgx.ErrNoRows
	}
	return e, nil
}

func (m *mockStockStore) LockStockEntries(ctx context.Context, productIDs []uuid.UUID) ([]database.StockEntry, error) {
	var out []database.StockEntry
	for _, id := range productIDs {
		if e, ok := m.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStockStore) SetStockQuantity(ctx context.Context, arg database.SetStockQuantityParams) (database.StockEntry, error) {
	return database.StockEntry{}, errNotStubbed
}

func (m *mockStockStore) UpsertStockEntry(ctx context.Context, arg database.UpsertStockEntryParams) (database.StockEntry, error) {
	return database.StockEntry{}, errNotStubbed
}

func (m *mockStockStore) ListStockLevels(ctx context.Context) ([]database.ListStockLevelsRow, error) {
	rows := []database.ListStockLevelsRow{}
	for id, e := range m.entries {
		rows = append(rows, database.ListStockLevelsRow{ProductID: id, Name: "Croissant", Destination: enum.DestinationNone, QuantityOnHand: e.QuantityOnHand})
	}
	return rows, nil
}

func (m *mockStockStore) ListStockMovements(ctx context.Context, arg database.ListStockMovementsParams) ([]database.StockMovement, error) {
	m.gotLimit = arg.Limit
	return m.movements, nil
}

// --- Mock StockLedger ---

type mockLedger struct {
	restockFn func(ctx context.Context, productID uuid.UUID, qty int32) (service.Availability, error)
}

// Available delegates to the real ledger logic so the handler is exercised
// against the store it passes in.
func (m *mockLedger) Available(ctx context.Context, store service.StockStore, productID uuid.UUID, reserved int32) (service.Availability, error) {
	return (&service.StockLedger{}).Available(ctx, store, productID, reserved)
}

func (m *mockLedger) Restock(ctx context.Context, productID uuid.UUID, qty int32) (service.Availability, error) {
	if m.restockFn != nil {
		return m.restockFn(ctx, productID, qty)
	}
	return service.Availability{}, errNotStubbed
}

func setupStockRouter(ledger *mockLedger, store *mockStockStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/stock", handler.NewStockHandler(ledger, store).RegisterRoutes)
	return r
}

func TestStockGet_Tracked(t *testing.T) {
	productID := uuid.New()
	store := &mockStockStore{entries: map[uuid.UUID]database.StockEntry{
		productID: {ProductID: productID, QuantityOnHand: 7},
	}}

	rr := doAuthRequest(t, setupStockRouter(&mockLedger{}, store), "GET", "/stock/"+productID.String(), nil, cashier())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if resp["tracked"] != true || resp["available"] != float64(7) {
		t.Errorf("availability: got %v", resp)
	}
}

func TestStockGet_Untracked(t *testing.T) {
	store := &mockStockStore{entries: map[uuid.UUID]database.StockEntry{}}

	rr := doAuthRequest(t, setupStockRouter(&mockLedger{}, store), "GET", "/stock/"+uuid.NewString(), nil, cashier())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeResponse(t, rr); resp["tracked"] != false {
		t.Errorf("tracked: got %v, want false", resp["tracked"])
	}
}

func TestStockList(t *testing.T) {
	store := &mockStockStore{entries: map[uuid.UUID]database.StockEntry{
		uuid.New(): {QuantityOnHand: 3},
	}}

	rr := doAuthRequest(t, setupStockRouter(&mockLedger{}, store), "GET", "/stock", nil, kitchen())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if list := decodeListResponse(t, rr); len(list) != 1 || list[0]["quantity_on_hand"] != float64(3) {
		t.Errorf("levels: got %v", list)
	}
}

func TestStockMovements_LimitCapped(t *testing.T) {
	productID := uuid.New()
	orderID := uuid.New()
	store := &mockStockStore{movements: []database.StockMovement{{
		ID:          uuid.New(),
		ProductID:   productID,
		Delta:       -2,
		BeforeQty:   5,
		AfterQty:    3,
		Reason:      enum.MovementReasonConfirm,
		ReferenceID: pgID(orderID),
		CreatedAt:   time.Now(),
	}}}

	rr := doAuthRequest(t, setupStockRouter(&mockLedger{}, store), "GET", "/stock/"+productID.String()+"/movements?limit=9999", nil, manager())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if store.gotLimit != 500 {
		t.Errorf("limit: got %d, want 500", store.gotLimit)
	}
	list := decodeListResponse(t, rr)
	if len(list) != 1 || list[0]["reference_id"] != orderID.String() || list[0]["delta"] != float64(-2) {
		t.Errorf("movements: got %v", list)
	}
}

func TestRestock_RequiresManager(t *testing.T) {
	ledger := &mockLedger{
		restockFn: func(ctx context.Context, productID uuid.UUID, qty int32) (service.Availability, error) {
			t.Fatal("ledger should not be called")
			return service.Availability{}, nil
		},
	}

	rr := doAuthRequest(t, setupStockRouter(ledger, &mockStockStore{}), "POST", "/stock/"+uuid.NewString()+"/restock",
		map[string]int{"quantity": 10}, cashier())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestRestock(t *testing.T) {
	productID := uuid.New()
	ledger := &mockLedger{
		restockFn: func(ctx context.Context, id uuid.UUID, qty int32) (service.Availability, error) {
			return service.Availability{ProductID: id, Tracked: true, OnHand: 2 + qty, Available: 2 + qty}, nil
		},
	}

	rr := doAuthRequest(t, setupStockRouter(ledger, &mockStockStore{}), "POST", "/stock/"+productID.String()+"/restock",
		map[string]int{"quantity": 10}, manager())

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if resp := decodeResponse(t, rr); resp["on_hand"] != float64(12) {
		t.Errorf("on_hand: got %v, want 12", resp["on_hand"])
	}
}

func TestRestock_ZeroQuantity(t *testing.T) {
	rr := doAuthRequest(t, setupStockRouter(&mockLedger{}, &mockStockStore{}), "POST", "/stock/"+uuid.NewString()+"/restock",
		map[string]int{"quantity": 0}, manager())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
