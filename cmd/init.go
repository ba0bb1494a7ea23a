package cmd

import (
	"fmt"

	"github.com/marcus/pos/internal/config"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a shop in the current directory",
	Long:    `Create the .pos directory with an empty database and config.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		s, err := store.Initialize(dir)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		name, _ := cmd.Flags().GetString("name")
		currency, _ := cmd.Flags().GetString("currency")
		if name != "" || currency != "" {
			if err := config.SetShopInfo(dir, name, currency); err != nil {
				output.Error("save config: %v", err)
				return err
			}
		}
		if admin, _ := cmd.Flags().GetString("admin"); admin != "" {
			if err := config.SetAdminID(dir, admin); err != nil {
				output.Error("save config: %v", err)
				return err
			}
		}

		output.Success("Initialized shop in %s/.pos", dir)
		fmt.Println("Add products with 'pos product add', record sales with 'pos sale'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("name", "", "Shop name")
	initCmd.Flags().String("currency", "", "Currency code (default GHS)")
	initCmd.Flags().String("admin", "", "Admin identity for created records")
}
