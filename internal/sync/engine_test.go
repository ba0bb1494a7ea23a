package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marcus/pos/internal/apiclient"
	"github.com/marcus/pos/internal/events"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/store"
)

// fakeServer emulates the shop backend on an in-memory sqlite database so
// tests can assert what actually landed server-side.
type fakeServer struct {
	t  *testing.T
	db *sql.DB

	srv *httptest.Server

	rejectProducts bool
	rejectSales    bool

	saleSubmissions int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE products (id TEXT PRIMARY KEY, name TEXT, stock INTEGER);
		CREATE TABLE sales (id TEXT PRIMARY KEY, sale_number TEXT, total REAL, offline_number TEXT);
	`); err != nil {
		t.Fatalf("server schema: %v", err)
	}

	fs := &fakeServer{t: t, db: db}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(func() {
		fs.srv.Close()
		db.Close()
	})
	return fs
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/products" && r.Method == "POST":
		if fs.rejectProducts {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": "validation", "message": "product rejected"})
			return
		}
		var p apiclient.ProductPayload
		json.NewDecoder(r.Body).Decode(&p)
		var n int
		fs.db.QueryRow("SELECT COUNT(1) FROM products").Scan(&n)
		id := fmt.Sprintf("srv-p-%d", n+1)
		fs.db.Exec("INSERT INTO products (id, name, stock) VALUES (?, ?, ?)", id, p.Name, p.Stock)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "product": map[string]string{"id": id}})

	case r.URL.Path == "/api/sales" && r.Method == "POST":
		fs.saleSubmissions++
		if fs.rejectSales {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": "validation", "message": "sale rejected"})
			return
		}
		var s apiclient.SalePayload
		json.NewDecoder(r.Body).Decode(&s)
		// Lines must reference server product ids
		for _, item := range s.Items {
			var exists int
			fs.db.QueryRow("SELECT COUNT(1) FROM products WHERE id = ?", item.ProductID).Scan(&exists)
			if exists == 0 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"code": "unknown_product", "message": "unknown product " + item.ProductID})
				return
			}
		}
		var n int
		fs.db.QueryRow("SELECT COUNT(1) FROM sales").Scan(&n)
		id := fmt.Sprintf("srv-s-%d", n+1)
		number := fmt.Sprintf("POS-%s-%04d", time.Now().Format("20060102"), n+1)
		fs.db.Exec("INSERT INTO sales (id, sale_number, total, offline_number) VALUES (?, ?, ?, ?)",
			id, number, s.TotalAmount, s.OfflineNumber)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"sale":    map[string]string{"id": id, "saleNumber": number},
		})

	case strings.HasSuffix(r.URL.Path, "/restock") && r.Method == "POST":
		productID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/products/"), "/restock")
		var exists int
		fs.db.QueryRow("SELECT COUNT(1) FROM products WHERE id = ?", productID).Scan(&exists)
		if exists == 0 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "not found", "message": "unknown product"})
			return
		}
		var req apiclient.RestockRequest
		json.NewDecoder(r.Body).Decode(&req)
		fs.db.Exec("UPDATE products SET stock = stock + ? WHERE id = ?", req.Quantity, productID)
		json.NewEncoder(w).Encode(map[string]any{"success": true})

	default:
		http.NotFound(w, r)
	}
}

func (fs *fakeServer) productCount(t *testing.T) int {
	t.Helper()
	var n int
	if err := fs.db.QueryRow("SELECT COUNT(1) FROM products").Scan(&n); err != nil {
		t.Fatalf("count products: %v", err)
	}
	return n
}

func (fs *fakeServer) seedProduct(t *testing.T, id, name string, stock int) {
	t.Helper()
	if _, err := fs.db.Exec("INSERT INTO products (id, name, stock) VALUES (?, ?, ?)", id, name, stock); err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func setupEngine(t *testing.T, fs *fakeServer) (*Engine, *store.Store, *events.Bus) {
	t.Helper()
	s, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	bus := events.NewBus()
	client := apiclient.New(fs.srv.URL, "test-key", "admin-1")
	engine := New(s, client, bus, WithDelay(0))
	return engine, s, bus
}

func createLocalSale(t *testing.T, s *store.Store, p *models.Product, qty int) *models.Sale {
	t.Helper()
	total := float64(qty) * p.SellingPrice
	sale := &models.Sale{
		Subtotal:      total,
		TotalAmount:   total,
		AmountPaid:    total,
		PaymentStatus: models.PaymentPaid,
		PaymentMethod: models.PayCash,
		Items: []models.SaleItem{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   p.SellingPrice,
			TotalPrice:  total,
		}},
	}
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return sale
}

func TestSyncOfflineSaleEndToEnd(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	// Server-confirmed product cached locally
	remote := &models.Product{ID: "srv-p-9", Name: "Widget", Stock: 10, PurchasePrice: 1000, SellingPrice: 1500}
	if err := s.UpsertRemoteProduct(remote); err != nil {
		t.Fatalf("upsert remote product: %v", err)
	}
	fs.seedProduct(t, "srv-p-9", "Widget", 10)

	sale := createLocalSale(t, s, remote, 3)
	localNumber := sale.SaleNumber
	if !strings.HasPrefix(localNumber, "POS-L-") {
		t.Fatalf("offline number: %s", localNumber)
	}

	p, _ := s.GetProduct("srv-p-9")
	if p.Stock != 7 {
		t.Fatalf("stock after offline sale: got %d, want 7", p.Stock)
	}

	result, err := engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Successful != 1 || result.Failed != 0 {
		t.Fatalf("result: %+v", result)
	}

	// Identity rewritten, queue drained, stock untouched by the sync step
	synced, err := s.GetSale("srv-s-1")
	if err != nil {
		t.Fatalf("get synced sale: %v", err)
	}
	if !synced.Synced {
		t.Error("sale should be synced")
	}
	if !synced.IsLocal {
		t.Error("local provenance should survive sync")
	}
	if strings.HasPrefix(synced.SaleNumber, "POS-L-") {
		t.Errorf("sale number still offline-prefixed: %s", synced.SaleNumber)
	}
	if synced.TotalAmount != sale.TotalAmount || len(synced.Items) != 1 {
		t.Errorf("fields not preserved: %+v", synced)
	}

	pending, _ := s.CountPendingQueue()
	if pending != 0 {
		t.Errorf("pending queue after sync: got %d, want 0", pending)
	}
	p, _ = s.GetProduct("srv-p-9")
	if p.Stock != 7 {
		t.Errorf("sync must not re-touch stock: got %d, want 7", p.Stock)
	}
}

func TestSyncOrderProductBeforeSaleBeforeRestock(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	local := &models.Product{Name: "New Thing", Stock: 20, SellingPrice: 5}
	if err := s.CreateProduct(local); err != nil {
		t.Fatalf("create product: %v", err)
	}
	createLocalSale(t, s, local, 2)
	if _, err := s.RestockProduct(local.ID, 10, "first delivery"); err != nil {
		t.Fatalf("restock: %v", err)
	}

	var messages []string
	result, err := engine.SyncAll(context.Background(), func(p Progress) {
		messages = append(messages, p.Message)
		if p.Total != 3 {
			t.Errorf("progress total: got %d, want 3", p.Total)
		}
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Successful != 3 {
		t.Fatalf("result: %+v (progress: %v)", result, messages)
	}

	// Product identity rewritten before the sale/restock submissions used it
	if _, err := s.GetProduct("srv-p-1"); err != nil {
		t.Fatalf("server product id not applied locally: %v", err)
	}
	// Product submits its enqueue-time snapshot (20), then the restock
	// adds 10; the sale syncs as its own operation.
	var serverStock int
	fs.db.QueryRow("SELECT stock FROM products WHERE id = 'srv-p-1'").Scan(&serverStock)
	if serverStock != 30 {
		t.Errorf("server stock after create(20)+restock(10): got %d, want 30", serverStock)
	}
}

func TestPerItemErrorIsolation(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	remote := &models.Product{ID: "srv-p-5", Name: "Widget", Stock: 50, SellingPrice: 2}
	s.UpsertRemoteProduct(remote)
	fs.seedProduct(t, "srv-p-5", "Widget", 50)

	sale := createLocalSale(t, s, remote, 1)
	if _, err := s.RestockProduct("srv-p-5", 5, ""); err != nil {
		t.Fatalf("restock: %v", err)
	}

	fs.rejectSales = true
	result, err := engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Failed != 1 || result.Successful != 1 {
		t.Fatalf("result: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].TargetID != sale.ID {
		t.Errorf("errors: %+v", result.Errors)
	}

	// Failed sale stays queued with the failure recorded
	got, _ := s.GetSale(sale.ID)
	if got.Synced {
		t.Error("rejected sale must not be marked synced")
	}
	if got.SyncAttempts != 1 || got.LastSyncError == "" {
		t.Errorf("failure not recorded: attempts=%d err=%q", got.SyncAttempts, got.LastSyncError)
	}
	if models.SyncStateOf(got.Synced, got.LastSyncError) != models.SyncStateFailed {
		t.Error("sale should classify as sync-failed")
	}

	pending, _ := s.CountPendingQueue()
	if pending != 1 {
		t.Errorf("pending after partial sync: got %d, want 1", pending)
	}

	// Explicit retry after the server recovers
	fs.rejectSales = false
	result, err = engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("retry sync: %v", err)
	}
	if result.Successful != 1 {
		t.Fatalf("retry result: %+v", result)
	}
	pending, _ = s.CountPendingQueue()
	if pending != 0 {
		t.Errorf("pending after retry: got %d", pending)
	}
}

func TestRestockAndSaleWaitForProductSync(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	local := &models.Product{Name: "New Thing", Stock: 20, SellingPrice: 5}
	if err := s.CreateProduct(local); err != nil {
		t.Fatalf("create product: %v", err)
	}
	createLocalSale(t, s, local, 1)
	if _, err := s.RestockProduct(local.ID, 3, ""); err != nil {
		t.Fatalf("restock: %v", err)
	}

	fs.rejectProducts = true
	result, err := engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("product failure: %+v", result)
	}
	if result.Skipped != 2 {
		t.Errorf("sale and restock should wait, got %+v", result)
	}
	if fs.saleSubmissions != 0 {
		t.Errorf("sale submitted despite local product: %d", fs.saleSubmissions)
	}

	// Everything drains once the product goes through
	fs.rejectProducts = false
	result, err = engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Successful != 3 {
		t.Errorf("second sync result: %+v", result)
	}
}

func TestSyncedRecordNeverResubmitted(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	remote := &models.Product{ID: "srv-p-1", Name: "Widget", Stock: 10, SellingPrice: 5}
	s.UpsertRemoteProduct(remote)
	fs.seedProduct(t, "srv-p-1", "Widget", 10)

	createLocalSale(t, s, remote, 1)
	if _, err := engine.SyncAll(context.Background(), nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fs.saleSubmissions != 1 {
		t.Fatalf("submissions: %d", fs.saleSubmissions)
	}

	// A stale queue item pointing at the now-synced sale must be dropped
	if err := s.Enqueue(models.QueueSale, models.QueueCreate, "srv-s-1", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	result, err := engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if fs.saleSubmissions != 1 {
		t.Errorf("synced sale resubmitted: %d submissions", fs.saleSubmissions)
	}
	if result.Skipped != 1 {
		t.Errorf("result: %+v", result)
	}
}

func TestOrphanedQueueItemDropped(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	if err := s.Enqueue(models.QueueSale, models.QueueCreate, "ls-deadbeef", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := engine.SyncAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Failed != 0 {
		t.Errorf("orphan should not count as failure: %+v", result)
	}
	pending, _ := s.CountPendingQueue()
	if pending != 0 {
		t.Errorf("orphan still queued: %d", pending)
	}
}

func TestSyncFinishedSignal(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, bus := setupEngine(t, fs)

	fired := 0
	bus.Subscribe(events.SignalSyncFinished, func(sig events.Signal, p events.Payload) {
		fired++
	})

	local := &models.Product{Name: "Widget", Stock: 5, SellingPrice: 1}
	if err := s.CreateProduct(local); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.SyncAll(context.Background(), nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fired != 1 {
		t.Errorf("sync finished signal fired %d times, want 1", fired)
	}
}

func TestSyncCancellationStopsBetweenItems(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	for i := 0; i < 3; i++ {
		p := &models.Product{Name: fmt.Sprintf("P%d", i), Stock: 1, SellingPrice: 1}
		if err := s.CreateProduct(p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	result, err := engine.SyncAll(ctx, func(p Progress) {
		if p.Current == 1 {
			cancel()
		}
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	if result.Successful != 1 {
		t.Errorf("items before cancel: %+v", result)
	}
	if fs.productCount(t) != 1 {
		t.Errorf("server received %d products, want 1", fs.productCount(t))
	}

	// Remaining work survives for the next drain
	pending, _ := s.CountPendingQueue()
	if pending != 2 {
		t.Errorf("pending after cancel: got %d, want 2", pending)
	}
}

func TestSyncOne(t *testing.T) {
	fs := newFakeServer(t)
	engine, s, _ := setupEngine(t, fs)

	local := &models.Product{Name: "Widget", Stock: 5, SellingPrice: 1}
	if err := s.CreateProduct(local); err != nil {
		t.Fatalf("create: %v", err)
	}
	queue, _ := s.ListPendingQueue()
	if len(queue) != 1 {
		t.Fatalf("queue: %d items", len(queue))
	}

	if err := engine.SyncOne(context.Background(), queue[0].ID); err != nil {
		t.Fatalf("sync one: %v", err)
	}
	if fs.productCount(t) != 1 {
		t.Errorf("server products: %d", fs.productCount(t))
	}

	fs.rejectProducts = true
	p2 := &models.Product{Name: "Other", Stock: 1, SellingPrice: 1}
	if err := s.CreateProduct(p2); err != nil {
		t.Fatalf("create: %v", err)
	}
	queue, _ = s.ListPendingQueue()
	if err := engine.SyncOne(context.Background(), queue[0].ID); err == nil {
		t.Error("expected error from rejected submission")
	}
}
