// Package recon maintains the lists the UI shows: local store records merged
// with the server's view, deduplicated by ID, filtered by view mode, and
// kept fresh through bus signals instead of direct cross-component calls.
package recon

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marcus/pos/internal/apiclient"
	"github.com/marcus/pos/internal/events"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/store"
)

// Reconciler owns the visible product and sale lists. All methods are safe
// for concurrent use.
type Reconciler struct {
	store  *store.Store
	client *apiclient.Client
	bus    *events.Bus
	log    *slog.Logger

	mu            sync.Mutex
	viewMode      string
	adminID       string
	products      []models.Product
	sales         []models.Sale
	productsValid bool
	salesValid    bool
}

// New creates a reconciler and wires its bus subscriptions. client may be
// nil for a purely offline session.
func New(s *store.Store, client *apiclient.Client, bus *events.Bus, viewMode, adminID string) *Reconciler {
	if !models.IsValidViewMode(viewMode) {
		viewMode = models.ViewModeSystem
	}
	r := &Reconciler{
		store:    s,
		client:   client,
		bus:      bus,
		log:      slog.Default(),
		viewMode: viewMode,
		adminID:  adminID,
	}
	r.subscribe()
	return r
}

// subscribe wires the causal chain: each handler only publishes signals its
// trigger is allowed to cause, so no handler re-raises its own trigger.
func (r *Reconciler) subscribe() {
	r.bus.Subscribe(events.SignalSaleRecorded, func(sig events.Signal, p events.Payload) {
		r.invalidateSales()
		r.bus.Publish(events.SignalStockChanged, events.Payload{ProductIDs: p.ProductIDs, Time: p.Time})
		r.bus.Publish(events.SignalSaleListStale, events.Payload{})
	})
	r.bus.Subscribe(events.SignalStockChanged, func(sig events.Signal, p events.Payload) {
		r.invalidateProducts()
		r.bus.Publish(events.SignalProductListStale, events.Payload{})
	})
	r.bus.Subscribe(events.SignalSyncFinished, func(sig events.Signal, p events.Payload) {
		r.invalidateProducts()
		r.invalidateSales()
		r.bus.Publish(events.SignalProductListStale, events.Payload{})
		r.bus.Publish(events.SignalSaleListStale, events.Payload{})
	})
	r.bus.Subscribe(events.SignalViewModeChanged, func(sig events.Signal, p events.Payload) {
		r.mu.Lock()
		if models.IsValidViewMode(p.ViewMode) {
			r.viewMode = p.ViewMode
		}
		r.mu.Unlock()
		r.bus.Publish(events.SignalCacheCleared, events.Payload{Time: time.Now()})
	})
	r.bus.Subscribe(events.SignalCacheCleared, func(sig events.Signal, p events.Payload) {
		r.invalidateProducts()
		r.invalidateSales()
		r.bus.Publish(events.SignalProductListStale, events.Payload{})
		r.bus.Publish(events.SignalSaleListStale, events.Payload{})
	})
}

func (r *Reconciler) invalidateProducts() {
	r.mu.Lock()
	r.productsValid = false
	r.mu.Unlock()
}

func (r *Reconciler) invalidateSales() {
	r.mu.Lock()
	r.salesValid = false
	r.mu.Unlock()
}

// Invalidate drops both cached lists so the next read rebuilds them from the
// store and the server. Pollers cannot hear signals published in other
// processes, so the monitor calls this before each read.
func (r *Reconciler) Invalidate() {
	r.invalidateProducts()
	r.invalidateSales()
}

// ViewMode returns the current list scope.
func (r *Reconciler) ViewMode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewMode
}

// creatorFilter returns the creator both the local and remote paths must
// filter by. Empty means unfiltered (system view).
func (r *Reconciler) creatorFilter() string {
	if r.viewMode == models.ViewModePersonal {
		return r.adminID
	}
	return ""
}

// VisibleProducts returns the merged product list, rebuilding the cache if a
// signal marked it stale. Storage errors surface; remote errors degrade to
// local-only (this is an offline-first view).
func (r *Reconciler) VisibleProducts() ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.productsValid {
		return append([]models.Product(nil), r.products...), nil
	}

	creator := r.creatorFilter()
	local, err := r.store.ListProducts(store.ListProductsOptions{CreatedBy: creator})
	if err != nil {
		return nil, err
	}

	merged := local
	if r.client != nil {
		remote, err := r.client.GetProducts(apiclient.ListParams{CreatedBy: creator})
		if err != nil {
			r.log.Debug("remote products unavailable, showing local only", "error", err)
		} else {
			merged = mergeProducts(local, remote)
		}
	}

	r.products = merged
	r.productsValid = true
	return append([]models.Product(nil), merged...), nil
}

// VisibleSales returns the merged sale list, newest first.
func (r *Reconciler) VisibleSales() ([]models.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.salesValid {
		return append([]models.Sale(nil), r.sales...), nil
	}

	creator := r.creatorFilter()
	local, err := r.store.ListSales(store.ListSalesOptions{CreatedBy: creator})
	if err != nil {
		return nil, err
	}

	merged := local
	if r.client != nil {
		remote, err := r.client.GetSales(apiclient.ListParams{CreatedBy: creator})
		if err != nil {
			r.log.Debug("remote sales unavailable, showing local only", "error", err)
		} else {
			merged = mergeSales(local, remote)
		}
	}

	r.sales = merged
	r.salesValid = true
	return append([]models.Sale(nil), merged...), nil
}

// mergeProducts combines local and remote lists deduplicated by ID. The
// local copy wins a collision: it carries sync provenance and any offline
// stock movement the server has not seen yet.
func mergeProducts(local []models.Product, remote []apiclient.RemoteProduct) []models.Product {
	seen := make(map[string]bool, len(local))
	merged := append([]models.Product(nil), local...)
	for _, p := range local {
		seen[p.ID] = true
	}
	for _, rp := range remote {
		if seen[rp.ID] {
			continue
		}
		merged = append(merged, models.Product{
			ID:            rp.ID,
			Name:          rp.Name,
			Brand:         rp.Brand,
			Category:      rp.Category,
			PurchasePrice: rp.PurchasePrice,
			SellingPrice:  rp.SellingPrice,
			Stock:         rp.Stock,
			LowStockAlert: rp.LowStockAlert,
			Images:        rp.Images,
			CreatedBy:     rp.CreatedBy,
			Synced:        true,
			CreatedAt:     parseRemoteTime(rp.CreatedAt),
		})
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// mergeSales combines local and remote sales deduplicated by ID so a synced
// sale never shows twice ("no double-counting").
func mergeSales(local []models.Sale, remote []apiclient.RemoteSale) []models.Sale {
	seen := make(map[string]bool, len(local))
	merged := append([]models.Sale(nil), local...)
	for _, s := range local {
		seen[s.ID] = true
	}
	for _, rs := range remote {
		if seen[rs.ID] {
			continue
		}
		sale := models.Sale{
			ID:            rs.ID,
			SaleNumber:    rs.SaleNumber,
			Customer:      models.Customer{Name: rs.CustomerName},
			Subtotal:      rs.Subtotal,
			TotalAmount:   rs.TotalAmount,
			AmountPaid:    rs.AmountPaid,
			Balance:       models.Balance(rs.AmountPaid, rs.TotalAmount),
			PaymentStatus: models.PaymentStatus(rs.PaymentStatus),
			PaymentMethod: models.PaymentMethod(rs.PaymentMethod),
			Status:        models.SaleStatus(rs.Status),
			CreatedBy:     rs.CreatedBy,
			Synced:        true,
			CreatedAt:     parseRemoteTime(rs.CreatedAt),
		}
		for _, item := range rs.Items {
			sale.Items = append(sale.Items, models.SaleItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TotalPrice:  item.TotalPrice,
			})
		}
		merged = append(merged, sale)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

func parseRemoteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
