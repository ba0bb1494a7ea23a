// Package sync drains the local queue against the remote API: one item at a
// time, per-item error isolation, and identity reconciliation on success.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/pos/internal/apiclient"
	"github.com/marcus/pos/internal/events"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/store"
)

// DefaultDelay is the pause between item submissions so a long drain does
// not hammer the server.
const DefaultDelay = 200 * time.Millisecond

// Progress reports drain state after each item.
type Progress struct {
	Current int
	Total   int
	Message string
}

// ItemError records one failed submission.
type ItemError struct {
	QueueID  string
	Type     models.QueueType
	TargetID string
	Message  string
}

// Result summarizes a drain.
type Result struct {
	Successful int
	Failed     int
	Skipped    int
	Errors     []ItemError
}

// Engine walks pending queue items sequentially. Submission N+1 never
// starts before N's outcome is recorded; concurrent submissions touching
// the same product would corrupt stock ordering.
type Engine struct {
	store  *store.Store
	client *apiclient.Client
	bus    *events.Bus
	delay  time.Duration
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelay overrides the inter-item delay.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine. bus may be nil when no UI is listening.
func New(s *store.Store, c *apiclient.Client, bus *events.Bus, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		client: c,
		bus:    bus,
		delay:  DefaultDelay,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAll drains every pending queue item in submission order. Each item's
// failure is recorded and the drain moves on; only a storage-level error
// aborts. Cancellation via ctx stops between items, never mid-item.
func (e *Engine) SyncAll(ctx context.Context, progress func(Progress)) (*Result, error) {
	items, err := e.store.ListPendingQueue()
	if err != nil {
		return nil, fmt.Errorf("list pending queue: %w", err)
	}

	result := &Result{}
	total := len(items)
	e.log.Info("sync started", "pending", total)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			e.log.Warn("sync cancelled", "processed", i, "remaining", total-i)
			return result, err
		}
		if i > 0 && e.delay > 0 {
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		outcome, err := e.syncItem(&item)
		if err != nil {
			return result, err
		}

		msg := ""
		switch outcome {
		case outcomeSuccess:
			result.Successful++
			msg = fmt.Sprintf("%s %s synced", item.Type, item.TargetID)
		case outcomeSkipped:
			result.Skipped++
			msg = fmt.Sprintf("%s %s waiting on product sync", item.Type, item.TargetID)
		case outcomeDropped:
			result.Skipped++
			msg = fmt.Sprintf("%s %s already confirmed", item.Type, item.TargetID)
		default:
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				QueueID:  item.ID,
				Type:     item.Type,
				TargetID: item.TargetID,
				Message:  outcome.err,
			})
			msg = fmt.Sprintf("%s %s failed: %s", item.Type, item.TargetID, outcome.err)
		}

		if progress != nil {
			progress(Progress{Current: i + 1, Total: total, Message: msg})
		}
	}

	e.log.Info("sync finished",
		"successful", result.Successful, "failed", result.Failed, "skipped", result.Skipped)
	if e.bus != nil {
		e.bus.Publish(events.SignalSyncFinished, events.Payload{
			Quantity: result.Successful,
			Message:  fmt.Sprintf("%d synced, %d failed", result.Successful, result.Failed),
			Time:     time.Now(),
		})
	}
	return result, nil
}

// SyncOne retries a single queue item by ID.
func (e *Engine) SyncOne(ctx context.Context, queueID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	item, err := e.store.GetQueueItem(queueID)
	if err != nil {
		return err
	}
	outcome, err := e.syncItem(item)
	if err != nil {
		return err
	}
	if outcome.err != "" {
		return fmt.Errorf("%s %s: %s", item.Type, item.TargetID, outcome.err)
	}
	if e.bus != nil {
		e.bus.Publish(events.SignalSyncFinished, events.Payload{Quantity: 1, Time: time.Now()})
	}
	return nil
}

// outcome classifies one item's drain result. A non-empty err means the
// submission failed and stays queued for retry.
type outcome struct {
	kind string
	err  string
}

var (
	outcomeSuccess = outcome{kind: "success"}
	outcomeSkipped = outcome{kind: "skipped"}
	outcomeDropped = outcome{kind: "dropped"}
)

func failure(err error) outcome {
	return outcome{kind: "failed", err: err.Error()}
}

// syncItem submits one queue item. The returned error is reserved for
// storage failures; remote failures come back inside the outcome.
func (e *Engine) syncItem(item *models.SyncQueueItem) (outcome, error) {
	switch item.Type {
	case models.QueueProduct:
		return e.syncProduct(item)
	case models.QueueSale:
		return e.syncSale(item)
	case models.QueueRestock:
		return e.syncRestock(item)
	default:
		e.log.Warn("unknown queue item type, dropping", "id", item.ID, "type", item.Type)
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}
}

func (e *Engine) syncProduct(item *models.SyncQueueItem) (outcome, error) {
	p, err := e.store.GetProduct(item.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		// Orphaned: record deleted after enqueue
		e.log.Warn("dropping orphaned queue item", "id", item.ID, "target", item.TargetID)
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}
	if err != nil {
		return outcome{}, err
	}

	// Never resubmit a confirmed record
	if p.Synced {
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}

	// Submit the enqueue-time snapshot: sales and restocks recorded since
	// then sync as their own operations, so live stock would double-count.
	snap := *p
	if len(item.Payload) > 0 {
		var stored models.Product
		if err := json.Unmarshal(item.Payload, &stored); err == nil {
			snap = stored
		}
	}

	resp, err := e.client.CreateProduct(&apiclient.ProductPayload{
		Name:          snap.Name,
		Brand:         snap.Brand,
		Category:      snap.Category,
		PurchasePrice: snap.PurchasePrice,
		SellingPrice:  snap.SellingPrice,
		Stock:         snap.Stock,
		LowStockAlert: snap.LowStockAlert,
		Images:        snap.Images,
		CreatedBy:     snap.CreatedBy,
	})
	if err != nil {
		e.log.Warn("product submission failed", "product", p.ID, "error", err)
		if serr := e.store.RecordProductSyncError(p.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		if serr := e.store.RecordQueueAttempt(item.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		return failure(err), nil
	}

	if err := e.store.ReplaceProductIdentity(p.ID, resp.Product.ID); err != nil {
		return outcome{}, fmt.Errorf("reconcile product %s: %w", p.ID, err)
	}
	if err := e.store.RemoveQueueItem(item.ID); err != nil {
		return outcome{}, err
	}
	e.log.Info("product synced", "local", p.ID, "server", resp.Product.ID)
	return outcomeSuccess, nil
}

func (e *Engine) syncSale(item *models.SyncQueueItem) (outcome, error) {
	sale, err := e.store.GetSale(item.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		e.log.Warn("dropping orphaned queue item", "id", item.ID, "target", item.TargetID)
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}
	if err != nil {
		return outcome{}, err
	}

	if sale.Synced {
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}

	// A line referencing a still-local product cannot be submitted yet;
	// the product's own item runs earlier in the same drain, so this only
	// bites when that submission failed. Leave the sale queued.
	for _, line := range sale.Items {
		if store.IsLocalID(line.ProductID) {
			e.log.Info("sale waiting on product sync", "sale", sale.ID, "product", line.ProductID)
			return outcomeSkipped, nil
		}
	}

	payload := &apiclient.SalePayload{
		CustomerName:     sale.Customer.Name,
		CustomerPhone:    sale.Customer.Phone,
		CustomerEmail:    sale.Customer.Email,
		CustomerLocation: sale.Customer.Location,
		Subtotal:         sale.Subtotal,
		TotalAmount:      sale.TotalAmount,
		AmountPaid:       sale.AmountPaid,
		PaymentMethod:    string(sale.PaymentMethod),
		Notes:            sale.Notes,
		CreatedBy:        sale.CreatedBy,
		OfflineNumber:    sale.SaleNumber,
		CreatedAt:        sale.CreatedAt.Format(time.RFC3339),
	}
	for _, line := range sale.Items {
		payload.Items = append(payload.Items, apiclient.SaleItemPayload{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			ProductBrand: line.ProductBrand,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			TotalPrice:   line.TotalPrice,
		})
	}

	resp, err := e.client.CreateSale(payload)
	if err != nil {
		e.log.Warn("sale submission failed", "sale", sale.ID, "error", err)
		if serr := e.store.RecordSaleSyncError(sale.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		if serr := e.store.RecordQueueAttempt(item.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		return failure(err), nil
	}

	// Server identity replaces the local one; stock is never re-touched here
	if err := e.store.ReplaceSaleIdentity(sale.ID, resp.Sale.ID, resp.Sale.SaleNumber); err != nil {
		return outcome{}, fmt.Errorf("reconcile sale %s: %w", sale.ID, err)
	}
	if err := e.store.RemoveQueueItem(item.ID); err != nil {
		return outcome{}, err
	}
	e.log.Info("sale synced", "local", sale.ID, "server", resp.Sale.ID, "number", resp.Sale.SaleNumber)
	return outcomeSuccess, nil
}

func (e *Engine) syncRestock(item *models.SyncQueueItem) (outcome, error) {
	p, err := e.store.GetProduct(item.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		e.log.Warn("dropping orphaned queue item", "id", item.ID, "target", item.TargetID)
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}
	if err != nil {
		return outcome{}, err
	}

	// A restock against a still-local product has no remote target yet
	if store.IsLocalID(p.ID) {
		e.log.Info("restock waiting on product sync", "product", p.ID)
		return outcomeSkipped, nil
	}

	var req apiclient.RestockRequest
	if len(item.Payload) > 0 {
		if err := json.Unmarshal(item.Payload, &req); err != nil {
			return outcome{}, fmt.Errorf("queue item %s payload: %w", item.ID, err)
		}
	}
	if req.Quantity <= 0 {
		// Unusable payload; dropping is safer than submitting garbage
		e.log.Warn("dropping restock item with empty payload", "id", item.ID)
		if err := e.store.RemoveQueueItem(item.ID); err != nil {
			return outcome{}, err
		}
		return outcomeDropped, nil
	}

	if err := e.client.RestockProduct(p.ID, &req); err != nil {
		e.log.Warn("restock submission failed", "product", p.ID, "error", err)
		if serr := e.store.RecordProductSyncError(p.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		if serr := e.store.RecordQueueAttempt(item.ID, err.Error()); serr != nil {
			return outcome{}, serr
		}
		return failure(err), nil
	}

	if err := e.store.RemoveQueueItem(item.ID); err != nil {
		return outcome{}, err
	}
	e.log.Info("restock synced", "product", p.ID, "quantity", req.Quantity)
	return outcomeSuccess, nil
}
