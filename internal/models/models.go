package models

import (
	"encoding/json"
	"time"
)

// StockChangeType represents the kind of stock ledger entry
type StockChangeType string

const (
	StockChangeSale       StockChangeType = "sale"
	StockChangeRestock    StockChangeType = "restock"
	StockChangeAdjustment StockChangeType = "adjustment"
)

// SaleStatus represents sale lifecycle status
type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// PaymentStatus is derived from amountPaid vs totalAmount, never stored ad hoc
type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "paid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPending       PaymentStatus = "pending"
)

// PaymentMethod represents how a sale was paid
type PaymentMethod string

const (
	PayCash     PaymentMethod = "cash"
	PayCard     PaymentMethod = "card"
	PayTransfer PaymentMethod = "transfer"
	PayMobile   PaymentMethod = "mobile"
)

// QueueType is the entity kind a sync queue item targets
type QueueType string

const (
	QueueSale    QueueType = "SALE"
	QueueRestock QueueType = "RESTOCK"
	QueueProduct QueueType = "PRODUCT"
)

// QueueAction is the remote operation a sync queue item requests
type QueueAction string

const (
	QueueCreate QueueAction = "CREATE"
	QueueUpdate QueueAction = "UPDATE"
)

// QueueStatus tracks whether a queue item has been confirmed remotely.
// Items are removed after confirmation; "done" only exists transiently
// inside the sync transaction.
type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueDone    QueueStatus = "done"
)

// Product represents an inventory item.
// IsLocal/Synced track provenance: a server-confirmed product has
// IsLocal=false, Synced=true; a locally created, not-yet-submitted one has
// IsLocal=true, Synced=false. Identity is by ID only: same-named products
// with different IDs are never merged.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Brand             string    `json:"brand,omitempty"`
	Category          string    `json:"category,omitempty"`
	PurchasePrice     float64   `json:"purchase_price"`
	SellingPrice      float64   `json:"selling_price"`
	Stock             int       `json:"stock"`
	LowStockAlert     int       `json:"low_stock_alert,omitempty"`
	Images            []string  `json:"images,omitempty"`
	TotalSold         int       `json:"total_sold,omitempty"`
	TotalRevenue      float64   `json:"total_revenue,omitempty"`
	RestockedQuantity int       `json:"restocked_quantity,omitempty"`
	IsLocal           bool      `json:"is_local"`
	Synced            bool      `json:"synced"`
	SyncAttempts      int       `json:"sync_attempts,omitempty"`
	LastSyncError     string    `json:"last_sync_error,omitempty"`
	CreatedBy         string    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StockEntry is one row of a product's append-only stock history.
// Invariant: NewStock = PreviousStock + UnitsChanged, and the latest entry's
// NewStock equals the product's current stock.
type StockEntry struct {
	ID            int64           `json:"id"`
	ProductID     string          `json:"product_id"`
	PreviousStock int             `json:"previous_stock"`
	NewStock      int             `json:"new_stock"`
	UnitsChanged  int             `json:"units_changed"`
	Type          StockChangeType `json:"type"`
	Reference     string          `json:"reference,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Date          time.Time       `json:"date"`
}

// Customer holds the buyer details captured on a sale
type Customer struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
}

// SaleItem is a sale line. Name/brand/prices are snapshots taken at sale
// time, so the line stays valid even if the product is later deleted.
type SaleItem struct {
	ID           int64   `json:"id"`
	SaleID       string  `json:"sale_id"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductBrand string  `json:"product_brand,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	UnitCost     float64 `json:"unit_cost"`
	TotalPrice   float64 `json:"total_price"`
	TotalCost    float64 `json:"total_cost"`
	Profit       float64 `json:"profit"`
}

// Sale represents a completed (or cancelled) transaction
type Sale struct {
	ID            string        `json:"id"`
	SaleNumber    string        `json:"sale_number"`
	Customer      Customer      `json:"customer"`
	Items         []SaleItem    `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	TotalCost     float64       `json:"total_cost"`
	TotalProfit   float64       `json:"total_profit"`
	TotalAmount   float64       `json:"total_amount"`
	AmountPaid    float64       `json:"amount_paid"`
	Balance       float64       `json:"balance"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        SaleStatus    `json:"status"`
	Notes         string        `json:"notes,omitempty"`
	IsLocal       bool          `json:"is_local"`
	Synced        bool          `json:"synced"`
	SyncAttempts  int           `json:"sync_attempts,omitempty"`
	LastSyncError string        `json:"last_sync_error,omitempty"`
	LastSyncAt    *time.Time    `json:"last_sync_at,omitempty"`
	CreatedBy     string        `json:"created_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SyncQueueItem is a durable record of a pending remote operation,
// independent of the Sale/Product record it targets. Removed only after the
// remote operation is confirmed; left for retry on failure.
type SyncQueueItem struct {
	ID          string          `json:"id"`
	Type        QueueType       `json:"type"`
	Action      QueueAction     `json:"action"`
	TargetID    string          `json:"target_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      QueueStatus     `json:"status"`
	Attempts    int             `json:"attempts"`
	LastAttempt *time.Time      `json:"last_attempt,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductStats is the cached aggregate summary recomputed after any product
// mutation
type ProductStats struct {
	TotalProducts   int            `json:"total_products"`
	TotalStock      int            `json:"total_stock"`
	TotalValue      float64        `json:"total_value"`
	LowStockCount   int            `json:"low_stock_count"`
	OutOfStockCount int            `json:"out_of_stock_count"`
	ByCategory      map[string]int `json:"by_category,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SalesStats is the cached sales summary used by the stats command and TUI
type SalesStats struct {
	TotalSales   int       `json:"total_sales"`
	TotalRevenue float64   `json:"total_revenue"`
	TotalProfit  float64   `json:"total_profit"`
	TodaySales   int       `json:"today_sales"`
	TodayRevenue float64   `json:"today_revenue"`
	PendingSync  int       `json:"pending_sync"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DerivePaymentStatus applies the payment thresholds exactly:
// paid iff amountPaid >= totalAmount, partially_paid iff 0 < amountPaid <
// totalAmount, pending otherwise.
func DerivePaymentStatus(amountPaid, totalAmount float64) PaymentStatus {
	switch {
	case amountPaid >= totalAmount:
		return PaymentPaid
	case amountPaid > 0:
		return PaymentPartiallyPaid
	default:
		return PaymentPending
	}
}

// Balance returns max(0, totalAmount - amountPaid)
func Balance(amountPaid, totalAmount float64) float64 {
	if amountPaid >= totalAmount {
		return 0
	}
	return totalAmount - amountPaid
}

// IsValidStockChangeType checks if a stock change type is valid
func IsValidStockChangeType(t StockChangeType) bool {
	switch t {
	case StockChangeSale, StockChangeRestock, StockChangeAdjustment:
		return true
	}
	return false
}

// IsValidSaleStatus checks if a sale status is valid
func IsValidSaleStatus(s SaleStatus) bool {
	switch s {
	case SaleCompleted, SaleCancelled:
		return true
	}
	return false
}

// IsValidPaymentMethod checks if a payment method is valid
func IsValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PayCash, PayCard, PayTransfer, PayMobile:
		return true
	}
	return false
}

// NormalizePaymentMethod converts alternate method names to canonical form
// Accepts: "momo" and "mobile_money" as aliases for "mobile", "bank" for "transfer"
func NormalizePaymentMethod(m string) PaymentMethod {
	switch m {
	case "momo", "mobile_money":
		return PayMobile
	case "bank", "bank_transfer":
		return PayTransfer
	default:
		return PaymentMethod(m)
	}
}

// IsValidQueueType checks if a queue item type is valid
func IsValidQueueType(t QueueType) bool {
	switch t {
	case QueueSale, QueueRestock, QueueProduct:
		return true
	}
	return false
}

// IsValidQueueAction checks if a queue action is valid
func IsValidQueueAction(a QueueAction) bool {
	switch a {
	case QueueCreate, QueueUpdate:
		return true
	}
	return false
}

// IsLowStock reports whether the product is at or below its low-stock alert
// threshold but not out of stock
func (p *Product) IsLowStock() bool {
	if p.LowStockAlert <= 0 {
		return false
	}
	return p.Stock > 0 && p.Stock <= p.LowStockAlert
}

// IsOutOfStock reports whether the product has zero stock
func (p *Product) IsOutOfStock() bool {
	return p.Stock <= 0
}

// SyncState distinguishes the three user-visible states: server-confirmed,
// locally pending, and sync-failed.
type SyncState string

const (
	SyncStateConfirmed SyncState = "synced"
	SyncStatePending   SyncState = "pending"
	SyncStateFailed    SyncState = "failed"
)

// SyncStateOf classifies a record's provenance flags
func SyncStateOf(synced bool, lastSyncError string) SyncState {
	if synced {
		return SyncStateConfirmed
	}
	if lastSyncError != "" {
		return SyncStateFailed
	}
	return SyncStatePending
}

// Config represents the local shop config state stored beside the database
type Config struct {
	ShopName      string `json:"shop_name,omitempty"`
	Currency      string `json:"currency,omitempty"`
	AdminID       string `json:"admin_id,omitempty"`
	ViewMode      string `json:"view_mode,omitempty"` // personal | system
	LowStockAlert int    `json:"low_stock_alert,omitempty"`
}

// View modes: personal shows only records created by the acting admin,
// system shows everything.
const (
	ViewModePersonal = "personal"
	ViewModeSystem   = "system"
)

// IsValidViewMode checks if a view mode is valid
func IsValidViewMode(m string) bool {
	return m == ViewModePersonal || m == ViewModeSystem
}
