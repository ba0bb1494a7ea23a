package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/pos/internal/ledger"
	"github.com/marcus/pos/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateProduct(t *testing.T, s *Store, name string, stock int, price float64) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		SellingPrice:  price,
		PurchasePrice: price / 2,
		Stock:         stock,
	}
	if err := s.CreateProduct(p); err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func saleFor(p *models.Product, qty int) *models.Sale {
	total := float64(qty) * p.SellingPrice
	return &models.Sale{
		TotalAmount:   total,
		Subtotal:      total,
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
}

func TestInitializeAndReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	version, err := s.GetSchemaVersion()
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version: got %d, want %d", version, SchemaVersion)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2.Close()
}

func TestOpenWithoutInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected error opening uninitialized store")
	}
	if !strings.Contains(err.Error(), "pos init") {
		t.Errorf("error should point at init: %v", err)
	}
}

func TestCreateProduct(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)

	if !strings.HasPrefix(p.ID, "lp-") {
		t.Errorf("product ID should have local prefix, got %s", p.ID)
	}
	if !p.IsLocal || p.Synced {
		t.Errorf("new product should be local and unsynced: is_local=%v synced=%v", p.IsLocal, p.Synced)
	}

	got, err := s.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Widget" || got.Stock != 10 {
		t.Errorf("got %q stock %d, want Widget stock 10", got.Name, got.Stock)
	}

	// Initial stock starts the ledger chain from zero
	history, err := s.GetStockHistory(p.ID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries: got %d, want 1", len(history))
	}
	if history[0].PreviousStock != 0 || history[0].NewStock != 10 {
		t.Errorf("initial entry: got %d->%d, want 0->10", history[0].PreviousStock, history[0].NewStock)
	}

	// Creation enqueues a PRODUCT item
	queue, err := s.ListPendingQueue()
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(queue) != 1 || queue[0].Type != models.QueueProduct || queue[0].TargetID != p.ID {
		t.Errorf("queue after create: %+v", queue)
	}
}

func TestGetProductNotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.GetProduct("lp-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListProductsFilters(t *testing.T) {
	s := setupStore(t)
	mustCreateProduct(t, s, "Cola", 20, 2.0)
	soap := mustCreateProduct(t, s, "Soap", 0, 3.0)
	low := &models.Product{Name: "Rice", Stock: 2, LowStockAlert: 5, SellingPrice: 10}
	if err := s.CreateProduct(low); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := s.ListProducts(ListProductsOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all products: got %d, want 3", len(all))
	}

	out, err := s.ListProducts(ListProductsOptions{OutOfStock: true})
	if err != nil {
		t.Fatalf("list out of stock: %v", err)
	}
	if len(out) != 1 || out[0].ID != soap.ID {
		t.Errorf("out of stock: got %+v", out)
	}

	lowStock, err := s.ListProducts(ListProductsOptions{LowStock: true})
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if len(lowStock) != 1 || lowStock[0].Name != "Rice" {
		t.Errorf("low stock: got %+v", lowStock)
	}

	search, err := s.ListProducts(ListProductsOptions{Search: "col"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(search) != 1 || search[0].Name != "Cola" {
		t.Errorf("search: got %+v", search)
	}
}

func TestRestockProduct(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 5, 4.0)

	updated, err := s.RestockProduct(p.ID, 10, "weekly delivery")
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if updated.Stock != 15 {
		t.Errorf("stock after restock: got %d, want 15", updated.Stock)
	}
	if updated.RestockedQuantity != 10 {
		t.Errorf("restocked quantity: got %d, want 10", updated.RestockedQuantity)
	}

	history, _ := s.GetStockHistory(p.ID)
	if len(history) != 2 {
		t.Fatalf("history entries: got %d, want 2", len(history))
	}
	last := history[len(history)-1]
	if last.Type != models.StockChangeRestock || last.UnitsChanged != 10 {
		t.Errorf("restock entry: %+v", last)
	}
	if err := ledger.VerifyHistory(updated.Stock, history); err != nil {
		t.Errorf("history chain broken: %v", err)
	}

	queue, _ := s.ListPendingQueue()
	if len(queue) != 2 {
		t.Fatalf("queue items: got %d, want 2", len(queue))
	}
}

func TestCreateSale(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)

	sale := saleFor(p, 3)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if !strings.HasPrefix(sale.ID, "ls-") {
		t.Errorf("sale ID should have local prefix, got %s", sale.ID)
	}
	wantPrefix := "POS-L-" + time.Now().Format("20060102") + "-"
	if !strings.HasPrefix(sale.SaleNumber, wantPrefix) {
		t.Errorf("sale number %s should start with %s", sale.SaleNumber, wantPrefix)
	}

	got, err := s.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 7 {
		t.Errorf("stock after sale: got %d, want 7", got.Stock)
	}
	if got.TotalSold != 3 {
		t.Errorf("total sold: got %d, want 3", got.TotalSold)
	}

	history, _ := s.GetStockHistory(p.ID)
	if err := ledger.VerifyHistory(got.Stock, history); err != nil {
		t.Errorf("history chain broken: %v", err)
	}

	loaded, err := s.GetSale(sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].Quantity != 3 {
		t.Errorf("sale items: %+v", loaded.Items)
	}
}

func TestCreateSaleInsufficientStockIsAtomic(t *testing.T) {
	s := setupStore(t)
	ok := mustCreateProduct(t, s, "Plenty", 100, 1.0)
	scarce := mustCreateProduct(t, s, "Scarce", 2, 1.0)

	sale := &models.Sale{
		TotalAmount: 105,
		Items: []models.SaleItem{
			{ProductID: ok.ID, ProductName: ok.Name, Quantity: 100, UnitPrice: 1},
			{ProductID: scarce.ID, ProductName: scarce.Name, Quantity: 5, UnitPrice: 1},
		},
	}
	err := s.CreateSale(sale)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	var stockErr *ledger.ErrInsufficientStock
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Nothing committed: valid line's stock untouched, no sale, no queue item
	got, _ := s.GetProduct(ok.ID)
	if got.Stock != 100 {
		t.Errorf("stock after failed sale: got %d, want 100", got.Stock)
	}
	sales, _ := s.ListSales(ListSalesOptions{})
	if len(sales) != 0 {
		t.Errorf("sales after failed create: got %d, want 0", len(sales))
	}
	queue, _ := s.ListPendingQueue()
	for _, item := range queue {
		if item.Type == models.QueueSale {
			t.Errorf("unexpected SALE queue item: %+v", item)
		}
	}
}

func TestCreateSaleCollectsAllViolations(t *testing.T) {
	s := setupStore(t)
	a := mustCreateProduct(t, s, "A", 1, 1.0)
	b := mustCreateProduct(t, s, "B", 1, 1.0)

	sale := &models.Sale{
		Items: []models.SaleItem{
			{ProductID: a.ID, ProductName: "A", Quantity: 5, UnitPrice: 1},
			{ProductID: b.ID, ProductName: "B", Quantity: 5, UnitPrice: 1},
		},
	}
	err := s.CreateSale(sale)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "A") || !strings.Contains(err.Error(), "B") {
		t.Errorf("error should name both products: %v", err)
	}
}

func TestSaleNumberSequence(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 100, 1.0)

	var numbers []string
	for i := 0; i < 3; i++ {
		sale := saleFor(p, 1)
		if err := s.CreateSale(sale); err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
		numbers = append(numbers, sale.SaleNumber)
	}

	day := time.Now().Format("20060102")
	for i, n := range numbers {
		want := "POS-L-" + day + "-" + []string{"0001", "0002", "0003"}[i]
		if n != want {
			t.Errorf("sale %d number: got %s, want %s", i, n, want)
		}
	}
}

func TestCancelAndResumeSale(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)

	sale := saleFor(p, 4)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := s.CancelSale(sale.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := s.GetProduct(p.ID)
	if got.Stock != 10 {
		t.Errorf("stock after cancel: got %d, want 10", got.Stock)
	}
	loaded, _ := s.GetSale(sale.ID)
	if loaded.Status != models.SaleCancelled {
		t.Errorf("status after cancel: %s", loaded.Status)
	}

	// Cancelled unsynced sale must not sit in the queue
	queue, _ := s.ListPendingQueue()
	for _, item := range queue {
		if item.Type == models.QueueSale {
			t.Errorf("cancelled sale still queued: %+v", item)
		}
	}

	// Cancelling twice fails
	if err := s.CancelSale(sale.ID); err == nil {
		t.Error("expected error cancelling twice")
	}

	if err := s.ResumeSale(sale.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ = s.GetProduct(p.ID)
	if got.Stock != 6 {
		t.Errorf("stock after resume: got %d, want 6", got.Stock)
	}
	queue, _ = s.ListPendingQueue()
	found := false
	for _, item := range queue {
		if item.Type == models.QueueSale && item.TargetID == sale.ID {
			found = true
		}
	}
	if !found {
		t.Error("resumed sale should be queued again")
	}

	history, _ := s.GetStockHistory(p.ID)
	if err := ledger.VerifyHistory(got.Stock, history); err != nil {
		t.Errorf("history chain broken after cancel/resume: %v", err)
	}
}

func TestResumeFailsWhenStockGone(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 5, 1.0)

	sale := saleFor(p, 5)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if err := s.CancelSale(sale.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Another sale claims the returned stock
	other := saleFor(p, 3)
	if err := s.CreateSale(other); err != nil {
		t.Fatalf("second sale: %v", err)
	}

	if err := s.ResumeSale(sale.ID); err == nil {
		t.Fatal("expected insufficient stock on resume")
	}
	got, _ := s.GetProduct(p.ID)
	if got.Stock != 2 {
		t.Errorf("stock after failed resume: got %d, want 2", got.Stock)
	}
}

func TestReplaceProductIdentity(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)
	if _, err := s.RestockProduct(p.ID, 5, ""); err != nil {
		t.Fatalf("restock: %v", err)
	}

	if err := s.ReplaceProductIdentity(p.ID, "srv-prod-1"); err != nil {
		t.Fatalf("replace identity: %v", err)
	}

	if _, err := s.GetProduct(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old ID should be gone, got %v", err)
	}
	got, err := s.GetProduct("srv-prod-1")
	if err != nil {
		t.Fatalf("get by server ID: %v", err)
	}
	if !got.Synced {
		t.Errorf("replaced product should be synced: %+v", got)
	}
	if !got.IsLocal {
		t.Error("local provenance should survive sync")
	}
	if got.Stock != 15 {
		t.Errorf("stock preserved: got %d, want 15", got.Stock)
	}

	// History and the pending restock follow the new identity
	history, _ := s.GetStockHistory("srv-prod-1")
	if len(history) != 2 {
		t.Errorf("history after replace: got %d entries, want 2", len(history))
	}
	queue, _ := s.ListPendingQueue()
	for _, item := range queue {
		if item.TargetID == p.ID {
			t.Errorf("queue item still points at old ID: %+v", item)
		}
	}
}

func TestReplaceSaleIdentity(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)
	sale := saleFor(p, 2)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	localNumber := sale.SaleNumber

	if err := s.ReplaceSaleIdentity(sale.ID, "srv-sale-9", "POS-20260901-0042"); err != nil {
		t.Fatalf("replace identity: %v", err)
	}

	got, err := s.GetSale("srv-sale-9")
	if err != nil {
		t.Fatalf("get by server ID: %v", err)
	}
	if got.SaleNumber != "POS-20260901-0042" {
		t.Errorf("sale number: got %s", got.SaleNumber)
	}
	if !got.Synced {
		t.Errorf("replaced sale should be synced: %+v", got)
	}
	if !got.IsLocal {
		t.Error("local provenance should survive sync")
	}
	if len(got.Items) != 1 {
		t.Errorf("items should follow: %+v", got.Items)
	}
	if got.LastSyncAt == nil {
		t.Error("confirmed sync should stamp last_sync_at")
	}

	// Ledger references rewritten to the confirmed number
	history, _ := s.GetStockHistory(p.ID)
	for _, e := range history {
		if e.Reference == localNumber {
			t.Errorf("stale ledger reference %s", e.Reference)
		}
	}
}

func TestRecordSaleSyncErrorStampsAttempt(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)
	sale := saleFor(p, 1)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got, _ := s.GetSale(sale.ID); got.LastSyncAt != nil {
		t.Error("fresh sale should have no sync attempt time")
	}

	if err := s.RecordSaleSyncError(sale.ID, "server rejected"); err != nil {
		t.Fatalf("record sync error: %v", err)
	}

	got, err := s.GetSale(sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if got.LastSyncError != "server rejected" || got.SyncAttempts != 1 {
		t.Errorf("sync failure not recorded: %+v", got)
	}
	if got.LastSyncAt == nil {
		t.Error("failed attempt should stamp last_sync_at")
	}
}

func TestQueueOrdering(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 50, 1.0)
	if _, err := s.RestockProduct(p.ID, 5, ""); err != nil {
		t.Fatalf("restock: %v", err)
	}
	sale := saleFor(p, 1)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("sale: %v", err)
	}

	queue, err := s.ListPendingQueue()
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(queue) != 3 {
		t.Fatalf("queue items: got %d, want 3", len(queue))
	}
	wantOrder := []models.QueueType{models.QueueProduct, models.QueueSale, models.QueueRestock}
	for i, item := range queue {
		if item.Type != wantOrder[i] {
			t.Errorf("queue[%d]: got %s, want %s", i, item.Type, wantOrder[i])
		}
	}
}

func TestRecordQueueAttempt(t *testing.T) {
	s := setupStore(t)
	mustCreateProduct(t, s, "Widget", 1, 1.0)

	queue, _ := s.ListPendingQueue()
	if len(queue) != 1 {
		t.Fatalf("queue items: got %d", len(queue))
	}
	if err := s.RecordQueueAttempt(queue[0].ID, "server unreachable"); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	item, err := s.GetQueueItem(queue[0].ID)
	if err != nil {
		t.Fatalf("get queue item: %v", err)
	}
	if item.Attempts != 1 || item.LastError != "server unreachable" {
		t.Errorf("after attempt: attempts=%d lastError=%q", item.Attempts, item.LastError)
	}
	if item.LastAttempt == nil {
		t.Error("last attempt time not recorded")
	}
}

func TestDropOrphanedQueueItems(t *testing.T) {
	s := setupStore(t)
	if err := s.Enqueue(models.QueueSale, models.QueueCreate, "ls-gone", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	p := mustCreateProduct(t, s, "Widget", 1, 1.0)

	removed, err := s.DropOrphanedQueueItems()
	if err != nil {
		t.Fatalf("drop orphans: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	queue, _ := s.ListPendingQueue()
	if len(queue) != 1 || queue[0].TargetID != p.ID {
		t.Errorf("queue after drop: %+v", queue)
	}
}

func TestStats(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)
	mustCreateProduct(t, s, "Empty", 0, 2.0)

	sale := saleFor(p, 2)
	sale.TotalProfit = 5
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("sale: %v", err)
	}

	ps, err := s.GetProductStats()
	if err != nil {
		t.Fatalf("product stats: %v", err)
	}
	if ps.TotalProducts != 2 {
		t.Errorf("total products: got %d, want 2", ps.TotalProducts)
	}
	if ps.OutOfStockCount != 1 {
		t.Errorf("out of stock: got %d, want 1", ps.OutOfStockCount)
	}
	if ps.TotalStock != 8 {
		t.Errorf("total stock: got %d, want 8", ps.TotalStock)
	}

	ss, err := s.GetSalesStats()
	if err != nil {
		t.Fatalf("sales stats: %v", err)
	}
	if ss.TotalSales != 1 || ss.TodaySales != 1 {
		t.Errorf("sales counts: total=%d today=%d", ss.TotalSales, ss.TodaySales)
	}
	if ss.TotalRevenue != 10 {
		t.Errorf("revenue: got %v, want 10", ss.TotalRevenue)
	}
	if ss.PendingSync != 3 {
		t.Errorf("pending sync: got %d, want 3", ss.PendingSync)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 5.0)
	sale := saleFor(p, 2)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("sale: %v", err)
	}

	path := filepath.Join(t.TempDir(), "backup.json")
	info, err := s.Export(path)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Products != 1 || info.Sales != 1 {
		t.Errorf("backup info: %+v", info)
	}

	// Import into a fresh store
	s2 := setupStore(t)
	backup, err := ReadBackup(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if err := s2.Import(backup); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := s2.GetProduct(p.ID)
	if err != nil {
		t.Fatalf("get product after import: %v", err)
	}
	if got.Stock != 8 {
		t.Errorf("imported stock: got %d, want 8", got.Stock)
	}
	sales, _ := s2.ListSales(ListSalesOptions{})
	if len(sales) != 1 || len(sales[0].Items) != 1 {
		t.Errorf("imported sales: %+v", sales)
	}
	pending, _ := s2.CountPendingQueue()
	if pending != 2 {
		t.Errorf("imported queue: got %d, want 2", pending)
	}
}

func TestListSalesDateFilter(t *testing.T) {
	s := setupStore(t)
	p := mustCreateProduct(t, s, "Widget", 10, 1.0)
	sale := saleFor(p, 1)
	if err := s.CreateSale(sale); err != nil {
		t.Fatalf("sale: %v", err)
	}

	tomorrow := time.Now().Add(24 * time.Hour)
	sales, err := s.ListSales(ListSalesOptions{Since: tomorrow})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sales) != 0 {
		t.Errorf("future filter should exclude today's sale")
	}

	sales, err = s.ListSales(ListSalesOptions{Until: tomorrow})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sales) != 1 {
		t.Errorf("until filter: got %d sales, want 1", len(sales))
	}
}
