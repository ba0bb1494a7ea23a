// Package salebuild assembles a sale from cart lines: snapshots, pricing
// aggregates, payment derivation, and whole-cart stock validation.
package salebuild

import (
	"errors"
	"fmt"

	"github.com/marcus/pos/internal/ledger"
	"github.com/marcus/pos/internal/models"
)

// Builder accumulates cart lines against product snapshots taken when each
// line is added. Lines for the same product merge into one.
type Builder struct {
	lines      []line
	customer   models.Customer
	amountPaid float64
	method     models.PaymentMethod
	notes      string
	createdBy  string
}

type line struct {
	product  models.Product
	quantity int
}

// New returns an empty builder defaulting to cash payment
func New() *Builder {
	return &Builder{method: models.PayCash}
}

// AddItem adds quantity units of a product to the cart. Adding the same
// product again increases the existing line.
func (b *Builder) AddItem(p models.Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	for i := range b.lines {
		if b.lines[i].product.ID == p.ID {
			b.lines[i].quantity += quantity
			return nil
		}
	}
	b.lines = append(b.lines, line{product: p, quantity: quantity})
	return nil
}

// SetQuantity replaces a line's quantity; zero removes the line
func (b *Builder) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", quantity)
	}
	for i := range b.lines {
		if b.lines[i].product.ID == productID {
			if quantity == 0 {
				b.lines = append(b.lines[:i], b.lines[i+1:]...)
			} else {
				b.lines[i].quantity = quantity
			}
			return nil
		}
	}
	return fmt.Errorf("product %s is not in the cart", productID)
}

// RemoveItem drops a product's line from the cart
func (b *Builder) RemoveItem(productID string) error {
	return b.SetQuantity(productID, 0)
}

// SetCustomer attaches buyer details
func (b *Builder) SetCustomer(c models.Customer) {
	b.customer = c
}

// SetPayment sets the amount tendered and the method. The payment status is
// derived at build time, never set directly.
func (b *Builder) SetPayment(amountPaid float64, method models.PaymentMethod) error {
	if amountPaid < 0 {
		return fmt.Errorf("amount paid must not be negative, got %v", amountPaid)
	}
	if !models.IsValidPaymentMethod(method) {
		return fmt.Errorf("invalid payment method %q", method)
	}
	b.amountPaid = amountPaid
	b.method = method
	return nil
}

// SetNotes attaches free-form notes
func (b *Builder) SetNotes(notes string) {
	b.notes = notes
}

// SetCreatedBy records the acting admin
func (b *Builder) SetCreatedBy(adminID string) {
	b.createdBy = adminID
}

// Empty reports whether the cart has no lines
func (b *Builder) Empty() bool {
	return len(b.lines) == 0
}

// Lines returns the current cart as (productID, quantity) pairs for display
func (b *Builder) Lines() []models.SaleItem {
	items := make([]models.SaleItem, 0, len(b.lines))
	for _, l := range b.lines {
		items = append(items, b.itemFor(l))
	}
	return items
}

// Subtotal returns the running cart total
func (b *Builder) Subtotal() float64 {
	var total float64
	for _, l := range b.lines {
		total += float64(l.quantity) * l.product.SellingPrice
	}
	return total
}

// Validate checks every line against its product snapshot and returns all
// stock violations joined, not just the first. A nil error means the whole
// cart is satisfiable.
func (b *Builder) Validate() error {
	if len(b.lines) == 0 {
		return errors.New("cart is empty")
	}
	var violations []error
	for _, l := range b.lines {
		if l.quantity > l.product.Stock {
			violations = append(violations, &ledger.ErrInsufficientStock{
				ProductID:   l.product.ID,
				ProductName: l.product.Name,
				Requested:   l.quantity,
				Available:   l.product.Stock,
			})
		}
	}
	return errors.Join(violations...)
}

// Build validates the cart and produces the sale with all aggregates
// computed. The sale has no ID or number; the store assigns those when it
// commits.
func (b *Builder) Build() (*models.Sale, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	sale := &models.Sale{
		Customer:      b.customer,
		PaymentMethod: b.method,
		Notes:         b.notes,
		CreatedBy:     b.createdBy,
	}
	for _, l := range b.lines {
		item := b.itemFor(l)
		sale.Items = append(sale.Items, item)
		sale.Subtotal += item.TotalPrice
		sale.TotalCost += item.TotalCost
		sale.TotalProfit += item.Profit
	}
	sale.TotalAmount = sale.Subtotal
	sale.AmountPaid = b.amountPaid
	sale.PaymentStatus = models.DerivePaymentStatus(sale.AmountPaid, sale.TotalAmount)
	sale.Balance = models.Balance(sale.AmountPaid, sale.TotalAmount)
	return sale, nil
}

// itemFor snapshots a cart line into a sale item. Name, brand, and prices
// are frozen here so the line outlives later product edits.
func (b *Builder) itemFor(l line) models.SaleItem {
	totalPrice := float64(l.quantity) * l.product.SellingPrice
	totalCost := float64(l.quantity) * l.product.PurchasePrice
	return models.SaleItem{
		ProductID:    l.product.ID,
		ProductName:  l.product.Name,
		ProductBrand: l.product.Brand,
		Quantity:     l.quantity,
		UnitPrice:    l.product.SellingPrice,
		UnitCost:     l.product.PurchasePrice,
		TotalPrice:   totalPrice,
		TotalCost:    totalCost,
		Profit:       totalPrice - totalCost,
	}
}
