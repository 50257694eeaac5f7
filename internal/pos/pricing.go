package pos

import (
	"github.com/shopspring/decimal"

	"github.com/xelth-com/eckposgo/internal/models"
)

// CartLine is one product position in the cart
type CartLine struct {
	ProductID int
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns the line total
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is the complete price breakdown of a cart
type Totals struct {
	SubTotal   decimal.Decimal
	Tax        decimal.Decimal
	GrossTotal decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	Change     decimal.Decimal
}

// ComputeTotals derives the price breakdown from the cart state. It is
// a pure function: totals are always recomputed from their inputs,
// never stored and kept in sync by hand.
//
// A percentage coupon discounts the gross total by its value percent;
// a fixed-amount coupon is capped at the gross total so the final
// total never goes negative. Change is computed for cash payments
// only.
func ComputeTotals(lines []CartLine, taxRate decimal.Decimal, coupon *models.Coupon, paymentMethod string, amountTendered decimal.Decimal) Totals {
	subTotal := decimal.Zero
	for _, line := range lines {
		subTotal = subTotal.Add(line.Total())
	}

	tax := subTotal.Mul(taxRate)
	gross := subTotal.Add(tax)

	discount := decimal.Zero
	if coupon != nil {
		switch coupon.CouponType {
		case models.CouponTypePercentage:
			discount = gross.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100))
		case models.CouponTypeFixedAmount:
			discount = coupon.DiscountValue
			if discount.GreaterThan(gross) {
				discount = gross
			}
		}
	}

	total := gross.Sub(discount)

	change := decimal.Zero
	if paymentMethod == models.PaymentMethodCash {
		change = amountTendered.Sub(total)
		if change.IsNegative() {
			change = decimal.Zero
		}
	}

	return Totals{
		SubTotal:   subTotal,
		Tax:        tax,
		GrossTotal: gross,
		Discount:   discount,
		Total:      total,
		Change:     change,
	}
}
