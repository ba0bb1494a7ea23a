package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/pos/internal/config"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/store"
	"github.com/spf13/cobra"
)

var productCmd = &cobra.Command{
	Use:     "product",
	Aliases: []string{"products", "p"},
	Short:   "Manage the product catalog",
	GroupID: "inventory",
}

var productAddCmd = &cobra.Command{
	Use:     "add [name]",
	Aliases: []string{"create", "new"},
	Short:   "Add a product to the catalog",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		name, _ := cmd.Flags().GetString("name")
		if len(args) > 0 {
			name = args[0]
		}
		if strings.TrimSpace(name) == "" {
			output.Error("product name is required")
			return fmt.Errorf("product name is required")
		}

		selling, _ := cmd.Flags().GetFloat64("price")
		if selling <= 0 {
			output.Error("--price must be positive")
			return fmt.Errorf("invalid price")
		}
		cost, _ := cmd.Flags().GetFloat64("cost")
		if cost < 0 {
			output.Error("--cost cannot be negative")
			return fmt.Errorf("invalid cost")
		}
		stock, _ := cmd.Flags().GetInt("stock")
		if stock < 0 {
			output.Error("--stock cannot be negative")
			return fmt.Errorf("invalid stock")
		}

		alert, _ := cmd.Flags().GetInt("alert")
		if alert <= 0 {
			alert = config.GetLowStockAlert(getBaseDir())
		}
		brand, _ := cmd.Flags().GetString("brand")
		category, _ := cmd.Flags().GetString("category")

		p := &models.Product{
			Name:          strings.TrimSpace(name),
			Brand:         brand,
			Category:      category,
			PurchasePrice: cost,
			SellingPrice:  selling,
			Stock:         stock,
			LowStockAlert: alert,
			CreatedBy:     actingAdmin(),
		}
		if err := s.CreateProduct(p); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Added %s (%s), queued for sync", p.Name, p.ID)
		return nil
	},
}

var productListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List products",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := store.ListProductsOptions{}
		opts.Category, _ = cmd.Flags().GetString("category")
		opts.Search, _ = cmd.Flags().GetString("search")
		opts.LowStock, _ = cmd.Flags().GetBool("low")
		opts.OutOfStock, _ = cmd.Flags().GetBool("out")
		opts.Unsynced, _ = cmd.Flags().GetBool("unsynced")
		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			opts.CreatedBy = actingAdmin()
		}

		products, err := s.ListProducts(opts)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(products)
		}
		if len(products) == 0 {
			output.Info("No products found.")
			return nil
		}
		for i := range products {
			fmt.Println(output.FormatProductShort(&products[i]))
		}
		return nil
	},
}

var productShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a product with its stock history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.GetProduct(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		history, err := s.GetStockHistory(p.ID)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(map[string]interface{}{"product": p, "history": history})
		}
		fmt.Print(output.FormatProductLong(p, history))
		return nil
	},
}

var productUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update catalog fields of a product",
	Long: `Update name, brand, category, prices, or the low-stock alert.
Stock never changes here: use 'pos restock' or record a sale.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.GetProduct(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		changed := false
		if v, _ := cmd.Flags().GetString("name"); v != "" {
			p.Name = v
			changed = true
		}
		if cmd.Flags().Changed("brand") {
			p.Brand, _ = cmd.Flags().GetString("brand")
			changed = true
		}
		if cmd.Flags().Changed("category") {
			p.Category, _ = cmd.Flags().GetString("category")
			changed = true
		}
		if cmd.Flags().Changed("price") {
			v, _ := cmd.Flags().GetFloat64("price")
			if v <= 0 {
				output.Error("--price must be positive")
				return fmt.Errorf("invalid price")
			}
			p.SellingPrice = v
			changed = true
		}
		if cmd.Flags().Changed("cost") {
			v, _ := cmd.Flags().GetFloat64("cost")
			if v < 0 {
				output.Error("--cost cannot be negative")
				return fmt.Errorf("invalid cost")
			}
			p.PurchasePrice = v
			changed = true
		}
		if cmd.Flags().Changed("alert") {
			p.LowStockAlert, _ = cmd.Flags().GetInt("alert")
			changed = true
		}

		if !changed {
			output.Warning("nothing to update")
			return nil
		}
		if err := s.UpdateProduct(p); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Updated %s", p.ID)
		return nil
	},
}

var productDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a product that has never been sold",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteProduct(args[0]); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Deleted %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productAddCmd, productListCmd, productShowCmd, productUpdateCmd, productDeleteCmd)

	productAddCmd.Flags().String("name", "", "Product name")
	productAddCmd.Flags().String("brand", "", "Brand")
	productAddCmd.Flags().String("category", "", "Category")
	productAddCmd.Flags().Float64("price", 0, "Selling price per unit")
	productAddCmd.Flags().Float64("cost", 0, "Purchase cost per unit")
	productAddCmd.Flags().Int("stock", 0, "Initial stock on hand")
	productAddCmd.Flags().Int("alert", 0, "Low-stock alert threshold")

	productListCmd.Flags().String("category", "", "Filter by category")
	productListCmd.Flags().String("search", "", "Search name or brand")
	productListCmd.Flags().Bool("low", false, "Only products at or below their alert threshold")
	productListCmd.Flags().Bool("out", false, "Only out-of-stock products")
	productListCmd.Flags().Bool("unsynced", false, "Only products awaiting sync")
	productListCmd.Flags().Bool("mine", false, "Only products I created")
	productListCmd.Flags().Bool("json", false, "Output as JSON")

	productShowCmd.Flags().Bool("json", false, "Output as JSON")

	productUpdateCmd.Flags().String("name", "", "New name")
	productUpdateCmd.Flags().String("brand", "", "New brand")
	productUpdateCmd.Flags().String("category", "", "New category")
	productUpdateCmd.Flags().Float64("price", 0, "New selling price")
	productUpdateCmd.Flags().Float64("cost", 0, "New purchase cost")
	productUpdateCmd.Flags().Int("alert", 0, "New low-stock alert threshold")
}
