package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pos/internal/dateparse"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/store"
	"github.com/spf13/cobra"
)

var saleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sales",
	Long: `List sales, newest first. --since and --until accept exact dates
(2026-03-01), relative offsets (-7d, -2w, -1m), day names, and keywords
like yesterday, this-week, last-month.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := store.ListSalesOptions{}
		if since, _ := cmd.Flags().GetString("since"); since != "" {
			iso, err := dateparse.ParseDate(since)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			opts.Since, _ = dateparse.DayStart(iso)
		}
		if until, _ := cmd.Flags().GetString("until"); until != "" {
			iso, err := dateparse.ParseDate(until)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			opts.Until, _ = dateparse.DayEnd(iso)
		}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			opts.Status = models.SaleStatus(status)
		}
		opts.Unsynced, _ = cmd.Flags().GetBool("unsynced")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			opts.CreatedBy = actingAdmin()
		}

		sales, err := s.ListSales(opts)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sales)
		}
		if len(sales) == 0 {
			output.Info("No sales found.")
			return nil
		}
		for i := range sales {
			fmt.Println(output.FormatSaleShort(&sales[i]))
		}
		return nil
	},
}

var saleShowCmd = &cobra.Command{
	Use:   "show <id-or-number>",
	Short: "Show a sale as a receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		sale, err := findSale(s, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(sale)
		}

		rendered, err := output.RenderMarkdown(output.SaleReceiptMarkdown(sale))
		if err != nil {
			// Plain receipt still beats no receipt
			fmt.Print(output.SaleReceiptMarkdown(sale))
			return nil
		}
		fmt.Println(rendered)
		fmt.Printf("Sync: %s\n", output.SyncBadge(sale.Synced, sale.LastSyncError))
		return nil
	},
}

var saleCancelCmd = &cobra.Command{
	Use:   "cancel <id-or-number>",
	Short: "Cancel a sale and restore its stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		sale, err := findSale(s, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := s.CancelSale(sale.ID); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Cancelled %s, stock restored", sale.SaleNumber)
		return nil
	},
}

var saleResumeCmd = &cobra.Command{
	Use:   "resume <id-or-number>",
	Short: "Resume a cancelled sale",
	Long: `Re-commit a cancelled sale. Fails if the stock it needs has been
claimed by other sales since the cancellation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		sale, err := findSale(s, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := s.ResumeSale(sale.ID); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Resumed %s", sale.SaleNumber)
		return nil
	},
}

// findSale resolves an argument that may be a sale ID or a sale number.
func findSale(s *store.Store, key string) (*models.Sale, error) {
	if strings.HasPrefix(key, "POS-") {
		return s.GetSaleByNumber(key)
	}
	return s.GetSale(key)
}

func init() {
	saleCmd.AddCommand(saleListCmd, saleShowCmd, saleCancelCmd, saleResumeCmd)

	saleListCmd.Flags().String("since", "", "Only sales on or after this date")
	saleListCmd.Flags().String("until", "", "Only sales on or before this date")
	saleListCmd.Flags().String("status", "", "Filter by status (completed, cancelled)")
	saleListCmd.Flags().Bool("unsynced", false, "Only sales awaiting sync")
	saleListCmd.Flags().Bool("mine", false, "Only sales I recorded")
	saleListCmd.Flags().Int("limit", 0, "Maximum number of sales")
	saleListCmd.Flags().Bool("json", false, "Output as JSON")

	saleShowCmd.Flags().Bool("json", false, "Output as JSON")
}
