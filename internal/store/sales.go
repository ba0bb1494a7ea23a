package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/pos/internal/ledger"
	"github.com/marcus/pos/internal/models"
)

const saleColumns = `id, sale_number, customer_name, customer_phone, customer_email, customer_location,
	subtotal, total_cost, total_profit, total_amount, amount_paid, balance,
	payment_status, payment_method, status, notes,
	is_local, synced, sync_attempts, last_sync_error, last_sync_at, created_by, created_at`

// ListSalesOptions filters sale listings
type ListSalesOptions struct {
	Since     time.Time
	Until     time.Time
	Status    models.SaleStatus
	CreatedBy string
	Unsynced  bool
	Limit     int
}

// CreateSale records a sale atomically: every line's stock debit, ledger
// entry, the sale row, its items, and the sync queue item land together or
// not at all. Stock violations across all lines are collected before
// anything is written.
func (s *Store) CreateSale(sale *models.Sale) error {
	if len(sale.Items) == 0 {
		return fmt.Errorf("sale has no items")
	}

	return s.withTx(func(tx *sql.Tx) error {
		id, err := generateSaleID()
		if err != nil {
			return err
		}
		sale.ID = id

		now := time.Now()
		sale.IsLocal = true
		sale.Synced = false
		sale.Status = models.SaleCompleted
		sale.CreatedAt = now

		if sale.SaleNumber == "" {
			number, err := nextSaleNumberTx(tx, now)
			if err != nil {
				return err
			}
			sale.SaleNumber = number
		}

		// Pass 1: validate every line so the caller sees all violations,
		// not just the first.
		type debit struct {
			product models.Product
			entry   models.StockEntry
		}
		var debits []debit
		var stockErrs []error
		for i := range sale.Items {
			item := &sale.Items[i]
			p, err := getProductTx(tx, item.ProductID)
			if err != nil {
				return fmt.Errorf("sale line %d: %w", i+1, err)
			}
			next, entry, err := ledger.ApplySaleDebit(*p, item.Quantity, item.UnitPrice, sale.SaleNumber, now)
			if err != nil {
				stockErrs = append(stockErrs, err)
				continue
			}
			debits = append(debits, debit{product: next, entry: entry})
		}
		if len(stockErrs) > 0 {
			return errors.Join(stockErrs...)
		}

		// Pass 2: commit
		for _, d := range debits {
			if err := saveStockStateTx(tx, &d.product); err != nil {
				return err
			}
			if err := insertStockEntryTx(tx, &d.entry); err != nil {
				return err
			}
		}

		if err := insertSaleTx(tx, sale); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		for i := range sale.Items {
			sale.Items[i].SaleID = sale.ID
			if err := insertSaleItemTx(tx, &sale.Items[i]); err != nil {
				return fmt.Errorf("insert sale item: %w", err)
			}
		}

		return enqueueTx(tx, models.QueueSale, models.QueueCreate, sale.ID, nil)
	})
}

// NextSaleNumber returns the next offline sale number for the given day
func (s *Store) NextSaleNumber(day time.Time) (string, error) {
	var number string
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		number, err = nextSaleNumberTx(tx, day)
		return err
	})
	return number, err
}

// nextSaleNumberTx computes POS-L-YYYYMMDD-NNNN: a dense per-day sequence.
// Cancelled sales keep their numbers, so the next number comes from the
// highest issued suffix, not the row count.
func nextSaleNumberTx(tx *sql.Tx, day time.Time) (string, error) {
	prefix := fmt.Sprintf("POS-L-%s-", day.Format("20060102"))
	var last sql.NullString
	err := tx.QueryRow(`
		SELECT sale_number FROM sales WHERE sale_number LIKE ? ORDER BY sale_number DESC LIMIT 1
	`, prefix+"%").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}

	seq := 1
	if last.Valid {
		suffix := strings.TrimPrefix(last.String, prefix)
		if n, perr := strconv.Atoi(suffix); perr == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// GetSale retrieves a sale with its items
func (s *Store) GetSale(id string) (*models.Sale, error) {
	row := s.conn.QueryRow("SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.getSaleItems(sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return sale, nil
}

// GetSaleByNumber retrieves a sale by its sale number
func (s *Store) GetSaleByNumber(number string) (*models.Sale, error) {
	var id string
	err := s.conn.QueryRow("SELECT id FROM sales WHERE sale_number = ?", number).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.GetSale(id)
}

// ListSales returns sales matching the filters, newest first, items included
func (s *Store) ListSales(opts ListSalesOptions) ([]models.Sale, error) {
	var conds []string
	var args []interface{}

	if !opts.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, opts.Since)
	}
	if !opts.Until.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, opts.Until)
	}
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, opts.CreatedBy)
	}
	if opts.Unsynced {
		conds = append(conds, "synced = 0")
	}

	query := "SELECT " + saleColumns + " FROM sales"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.getSaleItems(sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

// CancelSale reverses a completed sale: stock returns to each product via
// adjustment entries and the sale is marked cancelled. An unsynced sale's
// queue item is dropped so it is never submitted.
func (s *Store) CancelSale(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		sale, err := getSaleTx(tx, id)
		if err != nil {
			return err
		}
		if sale.Status == models.SaleCancelled {
			return fmt.Errorf("sale %s is already cancelled", sale.SaleNumber)
		}

		now := time.Now()
		for _, item := range sale.Items {
			p, err := getProductTx(tx, item.ProductID)
			if err != nil {
				// Product deleted after the sale; nothing to credit.
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			next, entry, err := ledger.ReverseSale(*p, item.Quantity, item.UnitPrice, sale.SaleNumber, now)
			if err != nil {
				return err
			}
			if err := saveStockStateTx(tx, &next); err != nil {
				return err
			}
			if err := insertStockEntryTx(tx, &entry); err != nil {
				return err
			}
		}

		if _, err := tx.Exec("UPDATE sales SET status = ? WHERE id = ?", models.SaleCancelled, id); err != nil {
			return err
		}

		if !sale.Synced {
			if _, err := tx.Exec("DELETE FROM sync_queue WHERE target_id = ? AND type = ?", id, models.QueueSale); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResumeSale reinstates a cancelled sale, debiting stock again. Fails if any
// line no longer has sufficient stock.
func (s *Store) ResumeSale(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		sale, err := getSaleTx(tx, id)
		if err != nil {
			return err
		}
		if sale.Status != models.SaleCancelled {
			return fmt.Errorf("sale %s is not cancelled", sale.SaleNumber)
		}

		now := time.Now()
		var stockErrs []error
		type debit struct {
			product models.Product
			entry   models.StockEntry
		}
		var debits []debit
		for _, item := range sale.Items {
			p, err := getProductTx(tx, item.ProductID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			next, entry, err := ledger.ApplySaleDebit(*p, item.Quantity, item.UnitPrice, sale.SaleNumber, now)
			if err != nil {
				stockErrs = append(stockErrs, err)
				continue
			}
			debits = append(debits, debit{product: next, entry: entry})
		}
		if len(stockErrs) > 0 {
			return errors.Join(stockErrs...)
		}

		for _, d := range debits {
			if err := saveStockStateTx(tx, &d.product); err != nil {
				return err
			}
			if err := insertStockEntryTx(tx, &d.entry); err != nil {
				return err
			}
		}

		if _, err := tx.Exec("UPDATE sales SET status = ? WHERE id = ?", models.SaleCompleted, id); err != nil {
			return err
		}

		if !sale.Synced {
			// Queue item was dropped at cancel time; restore it.
			var pending int
			if err := tx.QueryRow("SELECT COUNT(1) FROM sync_queue WHERE target_id = ? AND type = ?", id, models.QueueSale).Scan(&pending); err != nil {
				return err
			}
			if pending == 0 {
				if err := enqueueTx(tx, models.QueueSale, models.QueueCreate, id, nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ReplaceSaleIdentity rewrites a local sale's ID and number with the
// server-assigned identity after a successful sync. is_local stays set so a
// locally-originated sale remains distinguishable from one that always lived
// server-side.
func (s *Store) ReplaceSaleIdentity(localID, serverID, serverNumber string) error {
	return s.withTx(func(tx *sql.Tx) error {
		sale, err := getSaleTx(tx, localID)
		if err != nil {
			return err
		}

		now := time.Now()
		res, err := tx.Exec(`
			UPDATE sales SET id = ?, sale_number = ?, synced = 1, last_sync_error = '', last_sync_at = ?
			WHERE id = ?
		`, serverID, serverNumber, now, localID)
		if err != nil {
			return fmt.Errorf("replace sale id: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("sale %s: %w", localID, ErrNotFound)
		}

		if _, err := tx.Exec("UPDATE sale_items SET sale_id = ? WHERE sale_id = ?", serverID, localID); err != nil {
			return err
		}
		// Ledger references carry the sale number; keep them pointing at
		// the confirmed identity.
		if _, err := tx.Exec("UPDATE stock_history SET reference = ? WHERE reference = ?", serverNumber, sale.SaleNumber); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE sync_queue SET target_id = ?, last_attempt = ? WHERE target_id = ?", serverID, now, localID); err != nil {
			return err
		}
		return nil
	})
}

// RecordSaleSyncError marks a sale's last sync failure
func (s *Store) RecordSaleSyncError(id, errMsg string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE sales SET sync_attempts = sync_attempts + 1, last_sync_error = ?, last_sync_at = ?
			WHERE id = ?
		`, errMsg, time.Now(), id)
		return err
	})
}

func scanSale(sc scanner) (*models.Sale, error) {
	var sale models.Sale
	var isLocal, synced int
	var lastSyncAt sql.NullTime
	err := sc.Scan(&sale.ID, &sale.SaleNumber, &sale.Customer.Name, &sale.Customer.Phone,
		&sale.Customer.Email, &sale.Customer.Location, &sale.Subtotal, &sale.TotalCost,
		&sale.TotalProfit, &sale.TotalAmount, &sale.AmountPaid, &sale.Balance,
		&sale.PaymentStatus, &sale.PaymentMethod, &sale.Status, &sale.Notes,
		&isLocal, &synced, &sale.SyncAttempts, &sale.LastSyncError, &lastSyncAt,
		&sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.IsLocal = isLocal != 0
	sale.Synced = synced != 0
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		sale.LastSyncAt = &t
	}
	return &sale, nil
}

func insertSaleTx(tx *sql.Tx, sale *models.Sale) error {
	_, err := tx.Exec(`
		INSERT INTO sales (`+saleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sale.ID, sale.SaleNumber, sale.Customer.Name, sale.Customer.Phone,
		sale.Customer.Email, sale.Customer.Location, sale.Subtotal, sale.TotalCost,
		sale.TotalProfit, sale.TotalAmount, sale.AmountPaid, sale.Balance,
		sale.PaymentStatus, sale.PaymentMethod, sale.Status, sale.Notes,
		sale.IsLocal, sale.Synced, sale.SyncAttempts, sale.LastSyncError, sale.LastSyncAt,
		sale.CreatedBy, sale.CreatedAt)
	return err
}

func insertSaleItemTx(tx *sql.Tx, item *models.SaleItem) error {
	res, err := tx.Exec(`
		INSERT INTO sale_items (sale_id, product_id, product_name, product_brand, quantity, unit_price, unit_cost, total_price, total_cost, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.SaleID, item.ProductID, item.ProductName, item.ProductBrand,
		item.Quantity, item.UnitPrice, item.UnitCost, item.TotalPrice, item.TotalCost, item.Profit)
	if err != nil {
		return err
	}
	item.ID, _ = res.LastInsertId()
	return nil
}

func getSaleTx(tx *sql.Tx, id string) (*models.Sale, error) {
	row := tx.QueryRow("SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sale %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(`
		SELECT id, sale_id, product_id, product_name, product_brand, quantity, unit_price, unit_cost, total_price, total_cost, profit
		FROM sale_items WHERE sale_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.ProductBrand, &item.Quantity, &item.UnitPrice, &item.UnitCost,
			&item.TotalPrice, &item.TotalCost, &item.Profit); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

func (s *Store) getSaleItems(saleID string) ([]models.SaleItem, error) {
	rows, err := s.conn.Query(`
		SELECT id, sale_id, product_id, product_name, product_brand, quantity, unit_price, unit_cost, total_price, total_cost, profit
		FROM sale_items WHERE sale_id = ? ORDER BY id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SaleItem
	for rows.Next() {
		var item models.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName,
			&item.ProductBrand, &item.Quantity, &item.UnitPrice, &item.UnitCost,
			&item.TotalPrice, &item.TotalCost, &item.Profit); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
