package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcus/pos/internal/models"
)

const backupVersion = 1

// Backup is a portable JSON snapshot of the local store
type Backup struct {
	Version   int                    `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Info      BackupInfo             `json:"info"`
	Products  []models.Product       `json:"products"`
	History   []models.StockEntry    `json:"stock_history"`
	Sales     []models.Sale          `json:"sales"`
	Queue     []models.SyncQueueItem `json:"sync_queue"`
}

// BackupInfo summarizes a snapshot for display without loading everything
type BackupInfo struct {
	Products    int `json:"products"`
	Sales       int `json:"sales"`
	PendingSync int `json:"pending_sync"`
}

// Export writes the full store contents to a JSON file. Written atomically
// via temp file and rename.
func (s *Store) Export(path string) (*BackupInfo, error) {
	products, err := s.ListProducts(ListProductsOptions{})
	if err != nil {
		return nil, fmt.Errorf("export products: %w", err)
	}

	var history []models.StockEntry
	for _, p := range products {
		entries, err := s.GetStockHistory(p.ID)
		if err != nil {
			return nil, fmt.Errorf("export history for %s: %w", p.ID, err)
		}
		history = append(history, entries...)
	}

	sales, err := s.ListSales(ListSalesOptions{})
	if err != nil {
		return nil, fmt.Errorf("export sales: %w", err)
	}

	queue, err := s.ListPendingQueue()
	if err != nil {
		return nil, fmt.Errorf("export queue: %w", err)
	}

	backup := Backup{
		Version:   backupVersion,
		Timestamp: time.Now(),
		Info: BackupInfo{
			Products:    len(products),
			Sales:       len(sales),
			PendingSync: len(queue),
		},
		Products: products,
		History:  history,
		Sales:    sales,
		Queue:    queue,
	}

	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write backup: %w", err)
	}
	return &backup.Info, nil
}

// ReadBackup loads and validates a backup file without importing it
func ReadBackup(path string) (*Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", filepath.Base(path), err)
	}
	if backup.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", backup.Version)
	}
	return &backup, nil
}

// Import replaces the entire store contents with a snapshot. Runs in one
// transaction so a bad file leaves the store untouched.
func (s *Store) Import(backup *Backup) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, table := range []string{"sale_items", "sales", "stock_history", "sync_queue", "products"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for i := range backup.Products {
			if err := insertProductTx(tx, &backup.Products[i]); err != nil {
				return fmt.Errorf("import product %s: %w", backup.Products[i].ID, err)
			}
		}
		for i := range backup.History {
			if err := insertStockEntryTx(tx, &backup.History[i]); err != nil {
				return fmt.Errorf("import stock history: %w", err)
			}
		}
		for i := range backup.Sales {
			sale := &backup.Sales[i]
			if err := insertSaleTx(tx, sale); err != nil {
				return fmt.Errorf("import sale %s: %w", sale.ID, err)
			}
			for j := range sale.Items {
				sale.Items[j].SaleID = sale.ID
				if err := insertSaleItemTx(tx, &sale.Items[j]); err != nil {
					return fmt.Errorf("import sale %s items: %w", sale.ID, err)
				}
			}
		}
		for _, item := range backup.Queue {
			var lastAttempt interface{}
			if item.LastAttempt != nil {
				lastAttempt = *item.LastAttempt
			}
			if _, err := tx.Exec(`
				INSERT INTO sync_queue (id, type, action, target_id, payload, status, attempts, last_attempt, last_error, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, item.ID, item.Type, item.Action, item.TargetID, string(item.Payload),
				item.Status, item.Attempts, lastAttempt, item.LastError, item.CreatedAt); err != nil {
				return fmt.Errorf("import queue item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}
