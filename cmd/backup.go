package cmd

import (
	"fmt"
	"time"

	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/store"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export and import shop data",
	GroupID: "system",
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the shop to a JSON file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		path := fmt.Sprintf("pos-backup-%s.json", time.Now().Format("20060102-150405"))
		if len(args) > 0 {
			path = args[0]
		}

		info, err := s.Export(path)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Exported %d products and %d sales to %s", info.Products, info.Sales, path)
		if info.PendingSync > 0 {
			output.Warning("%d unsynced changes are included in the backup", info.PendingSync)
		}
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the shop's data with a backup",
	Long:  `Import a backup. This REPLACES all current products, sales, and queue items.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		backup, err := store.ReadBackup(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			output.Warning("import replaces ALL current data (%d products, %d sales in backup)",
				backup.Info.Products, backup.Info.Sales)
			output.Info("re-run with --force to proceed")
			return nil
		}

		if err := s.Import(backup); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Imported %d products and %d sales", backup.Info.Products, backup.Info.Sales)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupExportCmd, backupImportCmd)

	backupImportCmd.Flags().Bool("force", false, "Skip the confirmation check")
}
