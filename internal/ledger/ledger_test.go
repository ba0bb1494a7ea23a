package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/pos/internal/models"
)

func testProduct(stock int) models.Product {
	return models.Product{
		ID:            "lp-abc123",
		Name:          "Test Product",
		PurchasePrice: 1000,
		SellingPrice:  1500,
		Stock:         stock,
	}
}

func TestApplySaleDebit(t *testing.T) {
	now := time.Now()
	p, entry, err := ApplySaleDebit(testProduct(10), 3, 1500, "POS-L-20250901-0001", now)
	if err != nil {
		t.Fatalf("ApplySaleDebit failed: %v", err)
	}

	if p.Stock != 7 {
		t.Errorf("Stock: got %d, want 7", p.Stock)
	}
	if p.TotalSold != 3 {
		t.Errorf("TotalSold: got %d, want 3", p.TotalSold)
	}
	if p.TotalRevenue != 4500 {
		t.Errorf("TotalRevenue: got %v, want 4500", p.TotalRevenue)
	}
	if entry.PreviousStock != 10 || entry.NewStock != 7 || entry.UnitsChanged != -3 {
		t.Errorf("entry: got prev=%d new=%d change=%d", entry.PreviousStock, entry.NewStock, entry.UnitsChanged)
	}
	if entry.Type != models.StockChangeSale {
		t.Errorf("entry type: got %q", entry.Type)
	}
	if entry.Reference != "POS-L-20250901-0001" {
		t.Errorf("entry reference: got %q", entry.Reference)
	}
}

func TestApplySaleDebitInsufficientStock(t *testing.T) {
	p := testProduct(2)
	got, _, err := ApplySaleDebit(p, 5, 1500, "ref", time.Now())
	if err == nil {
		t.Fatal("expected error for oversell")
	}

	var insufficient *ErrInsufficientStock
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientStock, got %T", err)
	}
	if insufficient.Requested != 5 || insufficient.Available != 2 {
		t.Errorf("shortfall: requested=%d available=%d", insufficient.Requested, insufficient.Available)
	}

	// Product must be completely unchanged
	if got.Stock != 2 || got.TotalSold != 0 || got.TotalRevenue != 0 {
		t.Errorf("product mutated on failed debit: %+v", got)
	}
}

func TestApplySaleDebitExactStock(t *testing.T) {
	p, _, err := ApplySaleDebit(testProduct(5), 5, 1500, "ref", time.Now())
	if err != nil {
		t.Fatalf("selling exact stock should succeed: %v", err)
	}
	if p.Stock != 0 {
		t.Errorf("Stock: got %d, want 0", p.Stock)
	}
}

func TestApplySaleDebitNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -1} {
		if _, _, err := ApplySaleDebit(testProduct(10), qty, 1500, "ref", time.Now()); err == nil {
			t.Errorf("quantity %d should be rejected", qty)
		}
	}
}

func TestApplyRestockCredit(t *testing.T) {
	p, entry, err := ApplyRestockCredit(testProduct(3), 12, "supplier delivery", time.Now())
	if err != nil {
		t.Fatalf("ApplyRestockCredit failed: %v", err)
	}
	if p.Stock != 15 {
		t.Errorf("Stock: got %d, want 15", p.Stock)
	}
	if p.RestockedQuantity != 12 {
		t.Errorf("RestockedQuantity: got %d, want 12", p.RestockedQuantity)
	}
	if entry.Type != models.StockChangeRestock {
		t.Errorf("entry type: got %q", entry.Type)
	}
	if entry.PreviousStock != 3 || entry.NewStock != 15 || entry.UnitsChanged != 12 {
		t.Errorf("entry: got prev=%d new=%d change=%d", entry.PreviousStock, entry.NewStock, entry.UnitsChanged)
	}
	if entry.Notes != "supplier delivery" {
		t.Errorf("entry notes: got %q", entry.Notes)
	}
}

func TestReverseSale(t *testing.T) {
	p := testProduct(10)
	p, _, err := ApplySaleDebit(p, 4, 1500, "ref", time.Now())
	if err != nil {
		t.Fatalf("debit: %v", err)
	}

	p, entry, err := ReverseSale(p, 4, 1500, "ref", time.Now())
	if err != nil {
		t.Fatalf("ReverseSale failed: %v", err)
	}
	if p.Stock != 10 {
		t.Errorf("Stock after reversal: got %d, want 10", p.Stock)
	}
	if p.TotalSold != 0 {
		t.Errorf("TotalSold after reversal: got %d, want 0", p.TotalSold)
	}
	if p.TotalRevenue != 0 {
		t.Errorf("TotalRevenue after reversal: got %v, want 0", p.TotalRevenue)
	}
	if entry.Type != models.StockChangeAdjustment {
		t.Errorf("entry type: got %q", entry.Type)
	}
}

func TestReverseSaleClampsBookkeeping(t *testing.T) {
	// Reversing more than was ever sold must not drive sold/revenue negative
	p, _, err := ReverseSale(testProduct(5), 3, 1500, "ref", time.Now())
	if err != nil {
		t.Fatalf("ReverseSale failed: %v", err)
	}
	if p.TotalSold != 0 {
		t.Errorf("TotalSold: got %d, want 0", p.TotalSold)
	}
	if p.TotalRevenue != 0 {
		t.Errorf("TotalRevenue: got %v, want 0", p.TotalRevenue)
	}
	if p.Stock != 8 {
		t.Errorf("Stock: got %d, want 8", p.Stock)
	}
}

// TestStockConservation verifies stock after a sequence of debits and credits
// equals initial + sum(credits) - sum(debits), with a valid history chain.
func TestStockConservation(t *testing.T) {
	p := testProduct(20)
	var history []models.StockEntry
	now := time.Now()

	ops := []struct {
		debit bool
		qty   int
	}{
		{true, 5}, {false, 10}, {true, 8}, {true, 2}, {false, 3}, {true, 1},
	}

	expected := 20
	for i, op := range ops {
		var entry models.StockEntry
		var err error
		if op.debit {
			p, entry, err = ApplySaleDebit(p, op.qty, 1500, "ref", now)
			expected -= op.qty
		} else {
			p, entry, err = ApplyRestockCredit(p, op.qty, "", now)
			expected += op.qty
		}
		if err != nil {
			t.Fatalf("op %d failed: %v", i, err)
		}
		history = append(history, entry)
	}

	if p.Stock != expected {
		t.Errorf("Stock: got %d, want %d", p.Stock, expected)
	}
	if err := VerifyHistory(p.Stock, history); err != nil {
		t.Errorf("history chain broken: %v", err)
	}
}

func TestVerifyHistoryDetectsBreaks(t *testing.T) {
	tests := []struct {
		name    string
		stock   int
		history []models.StockEntry
	}{
		{
			name:  "entry arithmetic wrong",
			stock: 5,
			history: []models.StockEntry{
				{PreviousStock: 10, NewStock: 5, UnitsChanged: -4},
			},
		},
		{
			name:  "entries do not chain",
			stock: 3,
			history: []models.StockEntry{
				{PreviousStock: 10, NewStock: 7, UnitsChanged: -3},
				{PreviousStock: 8, NewStock: 3, UnitsChanged: -5},
			},
		},
		{
			name:  "last entry disagrees with current stock",
			stock: 9,
			history: []models.StockEntry{
				{PreviousStock: 10, NewStock: 7, UnitsChanged: -3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyHistory(tt.stock, tt.history); err == nil {
				t.Error("expected verification failure")
			}
		})
	}
}

func TestVerifyHistoryEmpty(t *testing.T) {
	if err := VerifyHistory(42, nil); err != nil {
		t.Errorf("empty history should verify: %v", err)
	}
}
