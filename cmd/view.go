package cmd

import (
	"fmt"

	"github.com/marcus/pos/internal/config"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/output"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:     "view [personal|system]",
	Short:   "Show or switch the list scope",
	Long: `Control whose records the list commands show. 'personal' shows
only records you created, 'system' shows everything. The filter applies
the same way to local records and server records.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		if len(args) == 0 {
			mode, err := config.GetViewMode(dir)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			output.Info("View mode: %s", mode)
			return nil
		}

		mode := args[0]
		if !models.IsValidViewMode(mode) {
			output.Error("invalid view mode %q (use personal or system)", mode)
			return fmt.Errorf("invalid view mode")
		}
		if err := config.SetViewMode(dir, mode); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("View mode set to %s", mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
