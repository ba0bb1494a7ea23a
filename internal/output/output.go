// Package output provides styled terminal output helpers (success, error,
// warning, product and sale formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/pos/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	moneyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	syncStyles   = map[models.SyncState]lipgloss.Style{
		models.SyncStateConfirmed: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncStatePending:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncStateFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Currency is the code prefixed to money amounts. The config layer overrides
// it at startup.
var Currency = "GHS"

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Money formats an amount with the configured currency code
func Money(amount float64) string {
	return fmt.Sprintf("%s %.2f", Currency, amount)
}

// MoneyStyled is Money with the amount highlighted
func MoneyStyled(amount float64) string {
	return moneyStyle.Render(Money(amount))
}

// SyncBadge returns the three-state sync indicator for a record
// e.g., "✓ synced", "↻ pending", "✗ failed"
func SyncBadge(synced bool, lastSyncError string) string {
	state := models.SyncStateOf(synced, lastSyncError)
	symbols := map[models.SyncState]string{
		models.SyncStateConfirmed: "✓",
		models.SyncStatePending:   "↻",
		models.SyncStateFailed:    "✗",
	}
	badge := fmt.Sprintf("%s %s", symbols[state], state)
	if style, ok := syncStyles[state]; ok {
		return style.Render(badge)
	}
	return badge
}

// StockBadge flags a product's stock level
func StockBadge(p *models.Product) string {
	switch {
	case p.Stock == 0:
		return errorStyle.Render("OUT OF STOCK")
	case p.IsLowStock():
		return warningStyle.Render(fmt.Sprintf("LOW (%d left)", p.Stock))
	default:
		return subtleStyle.Render(fmt.Sprintf("%d in stock", p.Stock))
	}
}

// FormatProductShort formats a product as a single list line
func FormatProductShort(p *models.Product) string {
	var parts []string
	parts = append(parts, titleStyle.Render(p.ID))
	parts = append(parts, p.Name)
	if p.Brand != "" {
		parts = append(parts, subtleStyle.Render(p.Brand))
	}
	parts = append(parts, MoneyStyled(p.SellingPrice))
	parts = append(parts, StockBadge(p))
	parts = append(parts, SyncBadge(p.Synced, p.LastSyncError))
	return strings.Join(parts, "  ")
}

// FormatProductLong formats a product with its full detail and optional
// stock history
func FormatProductLong(p *models.Product, history []models.StockEntry) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", p.ID, p.Name)))
	sb.WriteString("\n")
	if p.Brand != "" || p.Category != "" {
		sb.WriteString(subtleStyle.Render(strings.TrimSpace(p.Brand + " " + p.Category)))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Price: %s (cost %s)\n", Money(p.SellingPrice), Money(p.PurchasePrice)))
	sb.WriteString(fmt.Sprintf("Stock: %s\n", StockBadge(p)))
	sb.WriteString(fmt.Sprintf("Sync: %s\n", SyncBadge(p.Synced, p.LastSyncError)))
	if p.TotalSold > 0 {
		sb.WriteString(fmt.Sprintf("Sold: %d units, revenue %s\n", p.TotalSold, Money(p.TotalRevenue)))
	}
	if p.CreatedBy != "" {
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("Created by %s, %s", p.CreatedBy, FormatTimeAgo(p.CreatedAt))))
		sb.WriteString("\n")
	}

	if len(history) > 0 {
		sb.WriteString(SectionHeader("stock history"))
		for _, e := range history {
			sign := ""
			if e.UnitsChanged > 0 {
				sign = "+"
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s%d (%d → %d) %s",
				e.Date.Format("2006-01-02 15:04"), sign, e.UnitsChanged,
				e.PreviousStock, e.NewStock, e.Type))
			if e.Notes != "" {
				sb.WriteString(subtleStyle.Render("  " + e.Notes))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// FormatSaleShort formats a sale as a single list line
func FormatSaleShort(s *models.Sale) string {
	var parts []string
	parts = append(parts, titleStyle.Render(s.SaleNumber))
	parts = append(parts, fmt.Sprintf("%d items", len(s.Items)))
	parts = append(parts, MoneyStyled(s.TotalAmount))
	parts = append(parts, paymentBadge(s))
	if s.Status == models.SaleCancelled {
		parts = append(parts, errorStyle.Render("[cancelled]"))
	}
	parts = append(parts, SyncBadge(s.Synced, s.LastSyncError))
	parts = append(parts, subtleStyle.Render(FormatTimeAgo(s.CreatedAt)))
	return strings.Join(parts, "  ")
}

func paymentBadge(s *models.Sale) string {
	switch s.PaymentStatus {
	case models.PaymentPaid:
		return successStyle.Render("paid")
	case models.PaymentPartiallyPaid:
		return warningStyle.Render(fmt.Sprintf("owes %s", Money(s.Balance)))
	default:
		return errorStyle.Render("unpaid")
	}
}

// SaleReceiptMarkdown renders a sale as markdown for the receipt view.
// Callers pass it through RenderMarkdown for terminal display.
func SaleReceiptMarkdown(s *models.Sale) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Receipt %s\n\n", s.SaleNumber))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n\n", s.CreatedAt.Format("2006-01-02 15:04")))
	if s.Customer.Name != "" {
		sb.WriteString(fmt.Sprintf("**Customer:** %s\n\n", s.Customer.Name))
	}

	sb.WriteString("| Item | Qty | Price | Total |\n")
	sb.WriteString("|------|----:|------:|------:|\n")
	for _, item := range s.Items {
		name := item.ProductName
		if item.ProductBrand != "" {
			name += " (" + item.ProductBrand + ")"
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f |\n",
			name, item.Quantity, item.UnitPrice, item.TotalPrice))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("**Total:** %s\n\n", Money(s.TotalAmount)))
	sb.WriteString(fmt.Sprintf("**Paid:** %s (%s)\n", Money(s.AmountPaid), s.PaymentMethod))
	if s.Balance > 0 {
		sb.WriteString(fmt.Sprintf("\n**Balance due:** %s\n", Money(s.Balance)))
	}
	if s.Status == models.SaleCancelled {
		sb.WriteString("\n*This sale was cancelled.*\n")
	}

	return sb.String()
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSTOCK HISTORY:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
