// Package monitor is the live shop dashboard: stock levels, recent sales,
// and the state of the sync queue, refreshed on an interval.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/recon"
	"github.com/marcus/pos/internal/store"
)

type keyMap struct {
	Quit      key.Binding
	NextPanel key.Binding
	Products  key.Binding
	Sales     key.Binding
	Refresh   key.Binding
	Down      key.Binding
	Up        key.Binding
	Top       key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c")),
	NextPanel: key.NewBinding(key.WithKeys("tab")),
	Products:  key.NewBinding(key.WithKeys("1")),
	Sales:     key.NewBinding(key.WithKeys("2")),
	Refresh:   key.NewBinding(key.WithKeys("r")),
	Down:      key.NewBinding(key.WithKeys("j", "down")),
	Up:        key.NewBinding(key.WithKeys("k", "up")),
	Top:       key.NewBinding(key.WithKeys("g")),
}

// Panel identifies the focused pane
type Panel int

const (
	PanelProducts Panel = iota
	PanelSales
)

// Model is the Bubble Tea model for the dashboard
type Model struct {
	Store *store.Store
	Recon *recon.Reconciler

	Width  int
	Height int

	Products    []models.Product
	Sales       []models.Sale
	PendingSync int
	SalesStats  *models.SalesStats

	ActivePanel Panel
	Scroll      map[Panel]int

	RefreshRate time.Duration
	LastRefresh time.Time
	Err         error

	version string
}

// NewModel builds the dashboard model
func NewModel(s *store.Store, r *recon.Reconciler, refresh time.Duration, version string) Model {
	return Model{
		Store:       s,
		Recon:       r,
		Scroll:      map[Panel]int{},
		RefreshRate: refresh,
		version:     version,
	}
}

type tickMsg time.Time

type refreshedMsg struct {
	products []models.Product
	sales    []models.Sale
	pending  int
	stats    *models.SalesStats
	err      error
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.RefreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		// Writes happen in other pos processes, so no bus signal reaches
		// this one. Drop the caches or every tick replays the first read.
		m.Recon.Invalidate()

		var msg refreshedMsg
		msg.products, msg.err = m.Recon.VisibleProducts()
		if msg.err != nil {
			return msg
		}
		msg.sales, msg.err = m.Recon.VisibleSales()
		if msg.err != nil {
			return msg
		}
		if msg.pending, msg.err = m.Store.CountPendingQueue(); msg.err != nil {
			return msg
		}
		msg.stats, msg.err = m.Store.GetSalesStats()
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case refreshedMsg:
		m.Err = msg.err
		if msg.err == nil {
			m.Products = msg.products
			m.Sales = msg.sales
			m.PendingSync = msg.pending
			m.SalesStats = msg.stats
			m.LastRefresh = time.Now()
			m.clampScroll()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.NextPanel):
			if m.ActivePanel == PanelProducts {
				m.ActivePanel = PanelSales
			} else {
				m.ActivePanel = PanelProducts
			}
		case key.Matches(msg, keys.Products):
			m.ActivePanel = PanelProducts
		case key.Matches(msg, keys.Sales):
			m.ActivePanel = PanelSales
		case key.Matches(msg, keys.Refresh):
			return m, m.refresh()
		case key.Matches(msg, keys.Down):
			m.Scroll[m.ActivePanel]++
			m.clampScroll()
		case key.Matches(msg, keys.Up):
			if m.Scroll[m.ActivePanel] > 0 {
				m.Scroll[m.ActivePanel]--
			}
		case key.Matches(msg, keys.Top):
			m.Scroll[m.ActivePanel] = 0
		}
	}
	return m, nil
}

func (m *Model) clampScroll() {
	limits := map[Panel]int{
		PanelProducts: len(m.Products),
		PanelSales:    len(m.Sales),
	}
	for panel, limit := range limits {
		if limit == 0 {
			m.Scroll[panel] = 0
			continue
		}
		if m.Scroll[panel] >= limit {
			m.Scroll[panel] = limit - 1
		}
	}
}
