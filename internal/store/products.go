package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/pos/internal/ledger"
	"github.com/marcus/pos/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = fmt.Errorf("not found")

const productColumns = `id, name, brand, category, purchase_price, selling_price, stock,
	low_stock_alert, images, total_sold, total_revenue, restocked_quantity,
	is_local, synced, sync_attempts, last_sync_error, created_by, created_at, updated_at`

// ListProductsOptions filters product listings
type ListProductsOptions struct {
	Category   string
	Search     string // matches name or brand, case-insensitive substring
	CreatedBy  string // restrict to one creator (personal view mode)
	LowStock   bool   // only products at or below their alert threshold
	OutOfStock bool   // only products with zero stock
	Unsynced   bool   // only locally pending or failed products
}

// CreateProduct creates a locally-minted product and enqueues it for sync.
// Initial stock is recorded as the first ledger entry so the history chain
// starts from zero.
func (s *Store) CreateProduct(p *models.Product) error {
	return s.withTx(func(tx *sql.Tx) error {
		// Retry on the off chance the random ID collides
		for attempt := 0; attempt < 5; attempt++ {
			id, err := generateProductID()
			if err != nil {
				return err
			}
			p.ID = id

			now := time.Now()
			p.IsLocal = true
			p.Synced = false
			p.CreatedAt = now
			p.UpdatedAt = now

			err = insertProductTx(tx, p)
			if err == nil {
				break
			}
			if attempt == 4 || !isUniqueViolation(err) {
				return fmt.Errorf("insert product: %w", err)
			}
		}

		if p.Stock > 0 {
			entry := models.StockEntry{
				ProductID:     p.ID,
				PreviousStock: 0,
				NewStock:      p.Stock,
				UnitsChanged:  p.Stock,
				Type:          models.StockChangeRestock,
				Notes:         "initial stock",
				Date:          p.CreatedAt,
			}
			if err := insertStockEntryTx(tx, &entry); err != nil {
				return fmt.Errorf("record initial stock: %w", err)
			}
		}

		// Snapshot at enqueue time: later sales and restocks sync as their
		// own operations, so submitting live stock would double-count them.
		snapshot, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("snapshot product: %w", err)
		}
		return enqueueTx(tx, models.QueueProduct, models.QueueCreate, p.ID, snapshot)
	})
}

// UpsertRemoteProduct stores a server-confirmed product fetched during sync.
// Existing rows keep their local stock history; only catalog fields refresh.
func (s *Store) UpsertRemoteProduct(p *models.Product) error {
	return s.withTx(func(tx *sql.Tx) error {
		p.IsLocal = false
		p.Synced = true
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		p.UpdatedAt = time.Now()

		var exists int
		if err := tx.QueryRow("SELECT COUNT(1) FROM products WHERE id = ?", p.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return insertProductTx(tx, p)
		}

		images, _ := json.Marshal(p.Images)
		_, err := tx.Exec(`
			UPDATE products SET name = ?, brand = ?, category = ?, purchase_price = ?,
				selling_price = ?, stock = ?, low_stock_alert = ?, images = ?,
				is_local = 0, synced = 1, last_sync_error = '', updated_at = ?
			WHERE id = ?
		`, p.Name, p.Brand, p.Category, p.PurchasePrice, p.SellingPrice, p.Stock,
			p.LowStockAlert, string(images), p.UpdatedAt, p.ID)
		return err
	})
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(id string) (*models.Product, error) {
	row := s.conn.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts returns products matching the given filters, newest first
func (s *Store) ListProducts(opts ListProductsOptions) ([]models.Product, error) {
	var conds []string
	var args []interface{}

	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Search != "" {
		conds = append(conds, "(name LIKE ? COLLATE NOCASE OR brand LIKE ? COLLATE NOCASE)")
		like := "%" + opts.Search + "%"
		args = append(args, like, like)
	}
	if opts.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, opts.CreatedBy)
	}
	if opts.LowStock {
		conds = append(conds, "low_stock_alert > 0 AND stock > 0 AND stock <= low_stock_alert")
	}
	if opts.OutOfStock {
		conds = append(conds, "stock <= 0")
	}
	if opts.Unsynced {
		conds = append(conds, "synced = 0")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct updates catalog fields on a product. Stock is never touched
// here; stock moves only through RestockProduct and sale recording.
func (s *Store) UpdateProduct(p *models.Product) error {
	return s.withTx(func(tx *sql.Tx) error {
		images, _ := json.Marshal(p.Images)
		p.UpdatedAt = time.Now()
		res, err := tx.Exec(`
			UPDATE products SET name = ?, brand = ?, category = ?, purchase_price = ?,
				selling_price = ?, low_stock_alert = ?, images = ?, updated_at = ?
			WHERE id = ?
		`, p.Name, p.Brand, p.Category, p.PurchasePrice, p.SellingPrice,
			p.LowStockAlert, string(images), p.UpdatedAt, p.ID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
		}
		return nil
	})
}

// RestockProduct credits stock to a product, appends the ledger entry, and
// enqueues the restock for sync.
func (s *Store) RestockProduct(id string, quantity int, notes string) (*models.Product, error) {
	var updated models.Product
	err := s.withTx(func(tx *sql.Tx) error {
		p, err := getProductTx(tx, id)
		if err != nil {
			return err
		}

		next, entry, err := ledger.ApplyRestockCredit(*p, quantity, notes, time.Now())
		if err != nil {
			return err
		}

		if err := saveStockStateTx(tx, &next); err != nil {
			return err
		}
		if err := insertStockEntryTx(tx, &entry); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"quantity": quantity,
			"notes":    notes,
		})
		if err := enqueueTx(tx, models.QueueRestock, models.QueueUpdate, id, payload); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetStockHistory returns a product's ledger entries, oldest first
func (s *Store) GetStockHistory(productID string) ([]models.StockEntry, error) {
	rows, err := s.conn.Query(`
		SELECT id, product_id, previous_stock, new_stock, units_changed, type, reference, notes, date
		FROM stock_history WHERE product_id = ? ORDER BY id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.StockEntry
	for rows.Next() {
		var e models.StockEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.PreviousStock, &e.NewStock,
			&e.UnitsChanged, &e.Type, &e.Reference, &e.Notes, &e.Date); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceProductIdentity rewrites a local product ID with its server-assigned
// ID after a successful sync. is_local stays set as provenance; only synced
// flips. All referencing rows follow so pending restocks and sale lines keep
// pointing at the right product.
func (s *Store) ReplaceProductIdentity(localID, serverID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE products SET id = ?, synced = 1, last_sync_error = '', updated_at = ?
			WHERE id = ?
		`, serverID, time.Now(), localID)
		if err != nil {
			return fmt.Errorf("replace product id: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("product %s: %w", localID, ErrNotFound)
		}

		if _, err := tx.Exec("UPDATE stock_history SET product_id = ? WHERE product_id = ?", serverID, localID); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE sale_items SET product_id = ? WHERE product_id = ?", serverID, localID); err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE sync_queue SET target_id = ? WHERE target_id = ?", serverID, localID); err != nil {
			return err
		}
		return nil
	})
}

// RecordProductSyncError marks a product's last sync failure
func (s *Store) RecordProductSyncError(id, errMsg string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE products SET sync_attempts = sync_attempts + 1, last_sync_error = ?, updated_at = ?
			WHERE id = ?
		`, errMsg, time.Now(), id)
		return err
	})
}

// DeleteProduct removes a product and its history. Only allowed when no sale
// lines reference it; sold products keep their snapshots instead.
func (s *Store) DeleteProduct(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var refs int
		if err := tx.QueryRow("SELECT COUNT(1) FROM sale_items WHERE product_id = ?", id).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("product %s has %d sale lines, cannot delete", id, refs)
		}
		if _, err := tx.Exec("DELETE FROM stock_history WHERE product_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Exec("DELETE FROM sync_queue WHERE target_id = ?", id); err != nil {
			return err
		}
		res, err := tx.Exec("DELETE FROM products WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// scanner abstracts sql.Row / sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(sc scanner) (*models.Product, error) {
	var p models.Product
	var images string
	var isLocal, synced int
	err := sc.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.PurchasePrice,
		&p.SellingPrice, &p.Stock, &p.LowStockAlert, &images, &p.TotalSold,
		&p.TotalRevenue, &p.RestockedQuantity, &isLocal, &synced,
		&p.SyncAttempts, &p.LastSyncError, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.IsLocal = isLocal != 0
	p.Synced = synced != 0
	if images != "" && images != "[]" {
		json.Unmarshal([]byte(images), &p.Images)
	}
	return &p, nil
}

func insertProductTx(tx *sql.Tx, p *models.Product) error {
	images, _ := json.Marshal(p.Images)
	_, err := tx.Exec(`
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Brand, p.Category, p.PurchasePrice, p.SellingPrice,
		p.Stock, p.LowStockAlert, string(images), p.TotalSold, p.TotalRevenue,
		p.RestockedQuantity, p.IsLocal, p.Synced, p.SyncAttempts,
		p.LastSyncError, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func getProductTx(tx *sql.Tx, id string) (*models.Product, error) {
	row := tx.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return p, err
}

// saveStockStateTx persists the stock-affecting fields computed by the ledger
func saveStockStateTx(tx *sql.Tx, p *models.Product) error {
	_, err := tx.Exec(`
		UPDATE products SET stock = ?, total_sold = ?, total_revenue = ?,
			restocked_quantity = ?, updated_at = ?
		WHERE id = ?
	`, p.Stock, p.TotalSold, p.TotalRevenue, p.RestockedQuantity, p.UpdatedAt, p.ID)
	return err
}

func insertStockEntryTx(tx *sql.Tx, e *models.StockEntry) error {
	res, err := tx.Exec(`
		INSERT INTO stock_history (product_id, previous_stock, new_stock, units_changed, type, reference, notes, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ProductID, e.PreviousStock, e.NewStock, e.UnitsChanged, e.Type, e.Reference, e.Notes, e.Date)
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
