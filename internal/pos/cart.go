package pos

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xelth-com/eckposgo/internal/models"
)

// Cart is the mutable checkout state of one register. Totals are a
// derived view over it, recomputed on demand.
type Cart struct {
	mu sync.Mutex

	cashierID   int
	customerID  int
	warehouseID int

	lines          []CartLine
	coupon         *models.Coupon
	paymentMethod  string
	amountTendered decimal.Decimal

	taxRate decimal.Decimal
}

// NewCart creates an empty cart with the configured tax rate
func NewCart(taxRate decimal.Decimal) *Cart {
	return &Cart{
		taxRate:       taxRate,
		paymentMethod: models.PaymentMethodCash,
	}
}

// SetCashier records the logged-in cashier
func (c *Cart) SetCashier(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cashierID = id
}

// SetCustomer records the optional customer
func (c *Cart) SetCustomer(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customerID = id
}

// SetWarehouse selects the warehouse the sale draws stock from
func (c *Cart) SetWarehouse(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warehouseID = id
}

// AddProduct adds qty units of a product, merging with an existing
// line for the same product.
func (c *Cart) AddProduct(p models.Product, qty int) {
	if qty <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, line := range c.lines {
		if line.ProductID == p.ID {
			c.lines[i].Quantity += qty
			return
		}
	}
	c.lines = append(c.lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	})
}

// SetQuantity sets the quantity of a line; zero removes it
func (c *Cart) SetQuantity(productID, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, line := range c.lines {
		if line.ProductID != productID {
			continue
		}
		if qty <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = qty
		}
		return
	}
}

// ApplyCoupon attaches a verified coupon to the cart
func (c *Cart) ApplyCoupon(coupon *models.Coupon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coupon = coupon
}

// SetPayment records the payment method and, for cash, the tender
func (c *Cart) SetPayment(method string, amountTendered decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethod = method
	c.amountTendered = amountTendered
}

// Lines returns a snapshot of the cart lines
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals derives the current price breakdown
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeTotals(c.lines, c.taxRate, c.coupon, c.paymentMethod, c.amountTendered)
}

// Draft freezes the cart into a submittable sale draft
func (c *Cart) Draft() models.SaleDraft {
	c.mu.Lock()
	defer c.mu.Unlock()

	totals := ComputeTotals(c.lines, c.taxRate, c.coupon, c.paymentMethod, c.amountTendered)

	items := make([]models.SaleItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, models.SaleItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.Total(),
		})
	}

	draft := models.SaleDraft{
		CashierID:      c.cashierID,
		CustomerID:     c.customerID,
		WarehouseID:    c.warehouseID,
		Items:          items,
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.Tax,
		DiscountAmount: totals.Discount,
		TotalAmount:    totals.Total,
		PaymentMethod:  c.paymentMethod,
		AmountTendered: c.amountTendered,
		ChangeDue:      totals.Change,
	}
	if c.coupon != nil {
		draft.CouponCode = c.coupon.Code
	}
	return draft
}

// Clear resets the checkout state after a completed sale. Cashier and
// warehouse selection survive for the next customer.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.coupon = nil
	c.customerID = 0
	c.paymentMethod = models.PaymentMethodCash
	c.amountTendered = decimal.Zero
}
