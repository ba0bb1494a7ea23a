package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/marcus/pos/internal/config"
	"github.com/marcus/pos/internal/events"
	"github.com/marcus/pos/internal/recon"
	"github.com/marcus/pos/pkg/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of stock, sales, and sync state",
	Long: `Launch a live-updating dashboard showing:
- Products with stock levels and sync badges
- Recent sales
- The sync queue depth and today's totals

Key bindings:
  Tab, 1/2   Switch panels
  j/k        Scroll
  r          Force refresh
  q          Quit`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		viewMode, _ := config.GetViewMode(getBaseDir())
		r := recon.New(s, newAPIClient(), events.NewBus(), viewMode, actingAdmin())

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(s, r, interval, version)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval")
}
