package cmd

import (
	"fmt"

	"github.com/marcus/pos/internal/output"
	"github.com/spf13/cobra"
)

var restockCmd = &cobra.Command{
	Use:     "restock <product-id> <quantity>",
	Short:   "Add stock to a product",
	Long:    `Record a restock. The movement lands in the stock ledger and queues for sync.`,
	GroupID: "inventory",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var quantity int
		if _, err := fmt.Sscanf(args[1], "%d", &quantity); err != nil || quantity <= 0 {
			output.Error("quantity must be a positive integer")
			return fmt.Errorf("invalid quantity %q", args[1])
		}

		notes, _ := cmd.Flags().GetString("notes")
		p, err := s.RestockProduct(args[0], quantity, notes)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Restocked %s: now %d in stock, queued for sync", p.Name, p.Stock)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restockCmd)
	restockCmd.Flags().String("notes", "", "Note on the stock entry (supplier, batch)")
}
