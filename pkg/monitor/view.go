package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/pos/internal/output"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	activePanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	if m.Width == 0 {
		return "loading..."
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("pos monitor"))
	if m.PendingSync > 0 {
		sb.WriteString(footerStyle.Render(fmt.Sprintf("   %d queued for sync", m.PendingSync)))
	}
	sb.WriteString("\n")

	if m.Err != nil {
		sb.WriteString(errStyle.Render("error: " + m.Err.Error()))
		sb.WriteString("\n")
	}

	rows := m.Height - 8
	if rows < 3 {
		rows = 3
	}
	half := rows / 2

	sb.WriteString(m.renderPanel(PanelProducts, "PRODUCTS", m.productLines(), half))
	sb.WriteString("\n")
	sb.WriteString(m.renderPanel(PanelSales, "RECENT SALES", m.saleLines(), rows-half))
	sb.WriteString("\n")
	sb.WriteString(m.footer())
	return sb.String()
}

func (m Model) renderPanel(panel Panel, title string, lines []string, height int) string {
	offset := m.Scroll[panel]
	if offset > len(lines) {
		offset = len(lines)
	}
	visible := lines[offset:]
	if len(visible) > height {
		visible = visible[:height]
	}
	body := title + "\n" + strings.Join(visible, "\n")
	if len(lines) == 0 {
		body = title + "\n(empty)"
	}

	style := panelStyle
	if panel == m.ActivePanel {
		style = activePanelStyle
	}
	return style.Width(m.Width - 4).Render(body)
}

func (m Model) productLines() []string {
	lines := make([]string, 0, len(m.Products))
	for i := range m.Products {
		lines = append(lines, output.FormatProductShort(&m.Products[i]))
	}
	return lines
}

func (m Model) saleLines() []string {
	lines := make([]string, 0, len(m.Sales))
	for i := range m.Sales {
		lines = append(lines, output.FormatSaleShort(&m.Sales[i]))
	}
	return lines
}

func (m Model) footer() string {
	parts := []string{
		fmt.Sprintf("view:%s", m.Recon.ViewMode()),
		"tab/1/2 panels",
		"j/k scroll",
		"r refresh",
		"q quit",
	}
	if m.SalesStats != nil {
		parts = append([]string{
			fmt.Sprintf("today: %d sales %s", m.SalesStats.TodaySales, output.Money(m.SalesStats.TodayRevenue)),
		}, parts...)
	}
	if m.version != "" {
		parts = append(parts, "v"+m.version)
	}
	return footerStyle.Render(strings.Join(parts, "  |  "))
}
