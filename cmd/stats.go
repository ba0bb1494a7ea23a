package cmd

import (
	"fmt"

	"github.com/marcus/pos/internal/output"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show inventory and sales summaries",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		products, err := s.GetProductStats()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		sales, err := s.GetSalesStats()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(map[string]interface{}{"products": products, "sales": sales})
		}

		fmt.Print(output.SectionHeader("inventory"))
		fmt.Printf("  %d products, %d units on hand, stock value %s\n",
			products.TotalProducts, products.TotalStock, output.Money(products.TotalValue))
		if products.LowStockCount > 0 {
			output.Warning("  %d products low on stock", products.LowStockCount)
		}
		if products.OutOfStockCount > 0 {
			output.Warning("  %d products out of stock", products.OutOfStockCount)
		}
		for category, count := range products.ByCategory {
			fmt.Printf("  %s: %d\n", category, count)
		}

		fmt.Print(output.SectionHeader("sales"))
		fmt.Printf("  %d completed sales, revenue %s, profit %s\n",
			sales.TotalSales, output.Money(sales.TotalRevenue), output.Money(sales.TotalProfit))
		fmt.Printf("  today: %d sales, %s\n", sales.TodaySales, output.Money(sales.TodayRevenue))
		if sales.PendingSync > 0 {
			output.Warning("  %d changes waiting to sync", sales.PendingSync)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Bool("json", false, "Output as JSON")
}
