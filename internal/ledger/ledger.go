// Package ledger implements pure, auditable stock mutation. Every mutation
// returns an updated product plus the history entry to append; persistence is
// the caller's job. Entries always satisfy NewStock = PreviousStock +
// UnitsChanged.
package ledger

import (
	"fmt"
	"time"

	"github.com/marcus/pos/internal/models"
)

// ErrInsufficientStock is returned when a sale debit would take stock below
// zero. It carries the exact shortfall so callers can list every offending
// line before failing the whole sale.
type ErrInsufficientStock struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// ApplySaleDebit decrements stock for a sale line. Requires stock >= quantity;
// fails with *ErrInsufficientStock otherwise, leaving the product untouched.
func ApplySaleDebit(p models.Product, quantity int, unitPrice float64, saleRef string, now time.Time) (models.Product, models.StockEntry, error) {
	if quantity <= 0 {
		return p, models.StockEntry{}, fmt.Errorf("sale quantity must be positive, got %d", quantity)
	}
	if p.Stock < quantity {
		return p, models.StockEntry{}, &ErrInsufficientStock{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   quantity,
			Available:   p.Stock,
		}
	}

	entry := models.StockEntry{
		ProductID:     p.ID,
		PreviousStock: p.Stock,
		NewStock:      p.Stock - quantity,
		UnitsChanged:  -quantity,
		Type:          models.StockChangeSale,
		Reference:     saleRef,
		Date:          now,
	}

	p.Stock -= quantity
	p.TotalSold += quantity
	p.TotalRevenue += float64(quantity) * unitPrice
	p.UpdatedAt = now
	return p, entry, nil
}

// ApplyRestockCredit increments stock unconditionally.
func ApplyRestockCredit(p models.Product, quantity int, notes string, now time.Time) (models.Product, models.StockEntry, error) {
	if quantity <= 0 {
		return p, models.StockEntry{}, fmt.Errorf("restock quantity must be positive, got %d", quantity)
	}

	entry := models.StockEntry{
		ProductID:     p.ID,
		PreviousStock: p.Stock,
		NewStock:      p.Stock + quantity,
		UnitsChanged:  quantity,
		Type:          models.StockChangeRestock,
		Notes:         notes,
		Date:          now,
	}

	p.Stock += quantity
	p.RestockedQuantity += quantity
	p.UpdatedAt = now
	return p, entry, nil
}

// ReverseSale credits stock back when a sale is cancelled. Stock only
// increases here, so there is no underflow risk; the sold/revenue bookkeeping
// is clamped at zero.
func ReverseSale(p models.Product, quantity int, unitPrice float64, saleRef string, now time.Time) (models.Product, models.StockEntry, error) {
	if quantity <= 0 {
		return p, models.StockEntry{}, fmt.Errorf("reversal quantity must be positive, got %d", quantity)
	}

	entry := models.StockEntry{
		ProductID:     p.ID,
		PreviousStock: p.Stock,
		NewStock:      p.Stock + quantity,
		UnitsChanged:  quantity,
		Type:          models.StockChangeAdjustment,
		Reference:     saleRef,
		Notes:         "sale cancelled",
		Date:          now,
	}

	p.Stock += quantity
	p.TotalSold -= quantity
	if p.TotalSold < 0 {
		p.TotalSold = 0
	}
	p.TotalRevenue -= float64(quantity) * unitPrice
	if p.TotalRevenue < 0 {
		p.TotalRevenue = 0
	}
	p.UpdatedAt = now
	return p, entry, nil
}

// VerifyHistory audits a product's stock history chain: every entry must
// satisfy NewStock = PreviousStock + UnitsChanged, consecutive entries must
// chain, and the last entry's NewStock must equal currentStock. Entries are
// expected oldest-first.
func VerifyHistory(currentStock int, history []models.StockEntry) error {
	for i, e := range history {
		if e.NewStock != e.PreviousStock+e.UnitsChanged {
			return fmt.Errorf("entry %d: new stock %d != previous %d + change %d",
				i, e.NewStock, e.PreviousStock, e.UnitsChanged)
		}
		if i > 0 && e.PreviousStock != history[i-1].NewStock {
			return fmt.Errorf("entry %d: previous stock %d does not chain from entry %d new stock %d",
				i, e.PreviousStock, i-1, history[i-1].NewStock)
		}
	}
	if n := len(history); n > 0 && history[n-1].NewStock != currentStock {
		return fmt.Errorf("last entry new stock %d != current stock %d", history[n-1].NewStock, currentStock)
	}
	return nil
}
