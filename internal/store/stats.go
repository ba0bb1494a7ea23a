package store

import (
	"time"

	"github.com/marcus/pos/internal/models"
)

// GetProductStats computes the inventory summary from current rows
func (s *Store) GetProductStats() (*models.ProductStats, error) {
	stats := &models.ProductStats{
		ByCategory: make(map[string]int),
		UpdatedAt:  time.Now(),
	}

	err := s.conn.QueryRow(`
		SELECT COUNT(1),
		       COALESCE(SUM(stock), 0),
		       COALESCE(SUM(stock * selling_price), 0),
		       COALESCE(SUM(CASE WHEN low_stock_alert > 0 AND stock > 0 AND stock <= low_stock_alert THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN stock <= 0 THEN 1 ELSE 0 END), 0)
		FROM products
	`).Scan(&stats.TotalProducts, &stats.TotalStock, &stats.TotalValue,
		&stats.LowStockCount, &stats.OutOfStockCount)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`
		SELECT category, COUNT(1) FROM products WHERE category != '' GROUP BY category
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

// GetSalesStats computes the sales summary from completed sales.
// "Today" is the local calendar day.
func (s *Store) GetSalesStats() (*models.SalesStats, error) {
	stats := &models.SalesStats{UpdatedAt: time.Now()}

	err := s.conn.QueryRow(`
		SELECT COUNT(1), COALESCE(SUM(total_amount), 0), COALESCE(SUM(total_profit), 0)
		FROM sales WHERE status = ?
	`, models.SaleCompleted).Scan(&stats.TotalSales, &stats.TotalRevenue, &stats.TotalProfit)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = s.conn.QueryRow(`
		SELECT COUNT(1), COALESCE(SUM(total_amount), 0)
		FROM sales WHERE status = ? AND created_at >= ?
	`, models.SaleCompleted, dayStart).Scan(&stats.TodaySales, &stats.TodayRevenue)
	if err != nil {
		return nil, err
	}

	pending, err := s.CountPendingQueue()
	if err != nil {
		return nil, err
	}
	stats.PendingSync = pending
	return stats, nil
}
