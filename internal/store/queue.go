package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/pos/internal/models"
)

// enqueueTx inserts a sync queue item inside an existing transaction so the
// queue entry is durable with the write it records.
func enqueueTx(tx *sql.Tx, qtype models.QueueType, action models.QueueAction, targetID string, payload json.RawMessage) error {
	id, err := generateQueueID()
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO sync_queue (id, type, action, target_id, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, qtype, action, targetID, string(payload), models.QueuePending, time.Now())
	if err != nil {
		return fmt.Errorf("enqueue %s %s: %w", qtype, targetID, err)
	}
	return nil
}

// Enqueue adds a pending sync operation outside any other transaction
func (s *Store) Enqueue(qtype models.QueueType, action models.QueueAction, targetID string, payload json.RawMessage) error {
	return s.withTx(func(tx *sql.Tx) error {
		return enqueueTx(tx, qtype, action, targetID, payload)
	})
}

// ListPendingQueue returns pending queue items in submission order:
// products before sales before restocks (a restock for a still-local
// product cannot be submitted until the product exists remotely), oldest
// first within each kind.
func (s *Store) ListPendingQueue() ([]models.SyncQueueItem, error) {
	rows, err := s.conn.Query(`
		SELECT id, type, action, target_id, payload, status, attempts, last_attempt, last_error, created_at
		FROM sync_queue WHERE status = ?
		ORDER BY CASE type WHEN 'PRODUCT' THEN 0 WHEN 'SALE' THEN 1 ELSE 2 END, created_at, id
	`, models.QueuePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetQueueItem retrieves a queue item by ID
func (s *Store) GetQueueItem(id string) (*models.SyncQueueItem, error) {
	row := s.conn.QueryRow(`
		SELECT id, type, action, target_id, payload, status, attempts, last_attempt, last_error, created_at
		FROM sync_queue WHERE id = ?
	`, id)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// CountPendingQueue returns the number of pending queue items
func (s *Store) CountPendingQueue() (int, error) {
	var n int
	err := s.conn.QueryRow("SELECT COUNT(1) FROM sync_queue WHERE status = ?", models.QueuePending).Scan(&n)
	return n, err
}

// RecordQueueAttempt marks a failed submission attempt. The item stays
// pending so the next sync retries it.
func (s *Store) RecordQueueAttempt(id, errMsg string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			UPDATE sync_queue SET attempts = attempts + 1, last_attempt = ?, last_error = ?
			WHERE id = ?
		`, time.Now(), errMsg, id)
		return err
	})
}

// RemoveQueueItem deletes a queue item after its operation is confirmed
func (s *Store) RemoveQueueItem(id string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec("DELETE FROM sync_queue WHERE id = ?", id)
		return err
	})
}

// DropOrphanedQueueItems removes queue items whose target record no longer
// exists locally. Returns the number removed.
func (s *Store) DropOrphanedQueueItems() (int, error) {
	var removed int64
	err := s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			DELETE FROM sync_queue
			WHERE (type = 'SALE' AND target_id NOT IN (SELECT id FROM sales))
			   OR (type IN ('PRODUCT', 'RESTOCK') AND target_id NOT IN (SELECT id FROM products))
		`)
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	return int(removed), err
}

func scanQueueItem(sc scanner) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	var payload string
	var lastAttempt sql.NullTime
	err := sc.Scan(&item.ID, &item.Type, &item.Action, &item.TargetID, &payload, &item.Status,
		&item.Attempts, &lastAttempt, &item.LastError, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if payload != "" {
		item.Payload = json.RawMessage(payload)
	}
	if lastAttempt.Valid {
		item.LastAttempt = &lastAttempt.Time
	}
	return &item, nil
}
