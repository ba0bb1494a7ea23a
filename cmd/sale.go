package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/marcus/pos/internal/input"
	"github.com/marcus/pos/internal/models"
	"github.com/marcus/pos/internal/output"
	"github.com/marcus/pos/internal/salebuild"
	"github.com/marcus/pos/internal/store"
	"github.com/spf13/cobra"
)

var saleCmd = &cobra.Command{
	Use:     "sale",
	Aliases: []string{"sales", "s"},
	Short:   "Record and manage sales",
	GroupID: "sales",
}

var saleNewCmd = &cobra.Command{
	Use:     "new",
	Aliases: []string{"create", "add"},
	Short:   "Record a sale",
	Long: `Record a sale. Pass items with repeated --item product-id:qty flags,
or run without --item for the interactive checkout form.

The sale commits all-or-nothing: if any line would oversell, nothing is
recorded and every violation is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		builder := salebuild.New()
		builder.SetCreatedBy(actingAdmin())

		items, _ := cmd.Flags().GetStringArray("item")
		items, _ = input.ExpandFlagValues(items, false)
		if len(items) > 0 {
			if err := addFlagItems(s, builder, items); err != nil {
				output.Error("%v", err)
				return err
			}
			if err := applyPaymentFlags(cmd, builder); err != nil {
				output.Error("%v", err)
				return err
			}
		} else {
			if err := runCheckoutForm(s, builder); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		if name, _ := cmd.Flags().GetString("customer"); name != "" {
			phone, _ := cmd.Flags().GetString("phone")
			builder.SetCustomer(models.Customer{Name: name, Phone: phone})
		}
		if notes, _ := cmd.Flags().GetString("notes"); notes != "" {
			builder.SetNotes(notes)
		}

		sale, err := builder.Build()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := s.CreateSale(sale); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Recorded %s: %s, queued for sync", sale.SaleNumber, output.Money(sale.TotalAmount))
		if sale.Balance > 0 {
			output.Warning("balance due: %s", output.Money(sale.Balance))
		}
		return nil
	},
}

// addFlagItems resolves repeated --item product-id:qty flags against the
// catalog.
func addFlagItems(s *store.Store, builder *salebuild.Builder, items []string) error {
	for _, spec := range items {
		id, qtyStr, ok := strings.Cut(spec, ":")
		if !ok {
			return fmt.Errorf("invalid --item %q (want product-id:qty)", spec)
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil || qty <= 0 {
			return fmt.Errorf("invalid quantity in --item %q", spec)
		}
		p, err := s.GetProduct(id)
		if err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
		if err := builder.AddItem(*p, qty); err != nil {
			return err
		}
	}
	return nil
}

func applyPaymentFlags(cmd *cobra.Command, builder *salebuild.Builder) error {
	method, _ := cmd.Flags().GetString("method")
	paid, _ := cmd.Flags().GetFloat64("paid")
	if !cmd.Flags().Changed("paid") {
		// Default to full payment
		paid = builder.Subtotal()
	}
	return builder.SetPayment(paid, models.PaymentMethod(method))
}

// runCheckoutForm walks the cashier through item picking and payment.
func runCheckoutForm(s *store.Store, builder *salebuild.Builder) error {
	products, err := s.ListProducts(store.ListProductsOptions{})
	if err != nil {
		return err
	}
	inStock := products[:0]
	for _, p := range products {
		if p.Stock > 0 {
			inStock = append(inStock, p)
		}
	}
	if len(inStock) == 0 {
		return fmt.Errorf("no products in stock")
	}

	byID := make(map[string]models.Product, len(inStock))
	options := make([]huh.Option[string], 0, len(inStock))
	for _, p := range inStock {
		byID[p.ID] = p
		label := fmt.Sprintf("%s  %s  (%d in stock)", p.Name, output.Money(p.SellingPrice), p.Stock)
		options = append(options, huh.NewOption(label, p.ID))
	}

	for {
		var productID, qtyStr string
		pick := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Product").
					Options(options...).
					Value(&productID),
				huh.NewInput().
					Title("Quantity").
					Value(&qtyStr).
					Validate(func(v string) error {
						n, err := strconv.Atoi(v)
						if err != nil || n <= 0 {
							return fmt.Errorf("enter a positive number")
						}
						return nil
					}),
			),
		)
		if err := pick.Run(); err != nil {
			return err
		}
		qty, _ := strconv.Atoi(qtyStr)
		if err := builder.AddItem(byID[productID], qty); err != nil {
			output.Warning("%v", err)
			continue
		}

		more := false
		cont := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Subtotal %s. Add another item?", output.Money(builder.Subtotal()))).
				Value(&more),
		))
		if err := cont.Run(); err != nil {
			return err
		}
		if !more {
			break
		}
	}

	paidStr := fmt.Sprintf("%.2f", builder.Subtotal())
	method := string(models.PayCash)
	pay := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Amount paid").
				Value(&paidStr).
				Validate(func(v string) error {
					n, err := strconv.ParseFloat(v, 64)
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative amount")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Payment method").
				Options(
					huh.NewOption("Cash", string(models.PayCash)),
					huh.NewOption("Card", string(models.PayCard)),
					huh.NewOption("Transfer", string(models.PayTransfer)),
					huh.NewOption("Mobile money", string(models.PayMobile)),
				).
				Value(&method),
		),
	)
	if err := pay.Run(); err != nil {
		return err
	}
	paid, _ := strconv.ParseFloat(paidStr, 64)
	return builder.SetPayment(paid, models.PaymentMethod(method))
}

func init() {
	rootCmd.AddCommand(saleCmd)
	saleCmd.AddCommand(saleNewCmd)

	saleNewCmd.Flags().StringArray("item", nil, "Sale line as product-id:qty (repeatable; @file or - reads lines)")
	saleNewCmd.Flags().String("customer", "", "Customer name")
	saleNewCmd.Flags().String("phone", "", "Customer phone")
	saleNewCmd.Flags().Float64("paid", 0, "Amount paid (default: full total)")
	saleNewCmd.Flags().String("method", string(models.PayCash), "Payment method (cash, card, transfer, mobile)")
	saleNewCmd.Flags().String("notes", "", "Notes on the sale")
}
