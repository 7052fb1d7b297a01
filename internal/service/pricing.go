package service

import (
	"context"
	"time"

	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is the pricing view of an order line.
type LineItem struct {
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Rules are the promotional and tax parameters active for an order.
type Rules struct {
	DiscountType  string
	DiscountValue decimal.Decimal
	// TaxRate is a percentage, e.g. 11 for 11%.
	TaxRate decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount_amount"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// Equal compares totals at cent precision.
func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Round(2).Equal(o.Subtotal.Round(2)) &&
		t.Discount.Round(2).Equal(o.Discount.Round(2)) &&
		t.Tax.Round(2).Equal(o.Tax.Round(2)) &&
		t.Total.Round(2).Equal(o.Total.Round(2))
}

// PriceRecalculator derives order and tab totals. It holds no state.
type PriceRecalculator struct{}

// LineSubtotal is quantity × unit price at cent precision.
func (PriceRecalculator) LineSubtotal(qty int32, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(qty)).Round(2)
}

// Recompute derives totals from scratch. Calling it twice on the same items
// and rules yields identical values.
func (p PriceRecalculator) Recompute(items []LineItem, rules Rules) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(p.LineSubtotal(it.Quantity, it.UnitPrice))
	}

	discount := decimal.Zero
	switch rules.DiscountType {
	case enum.DiscountTypePercentage:
		discount = subtotal.Mul(rules.DiscountValue).Div(hundred).Round(2)
	case enum.DiscountTypeFixed:
		discount = rules.DiscountValue.Round(2)
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(rules.TaxRate).Div(hundred).Round(2)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}

// SumOrders aggregates the totals of every non-voided order.
func (PriceRecalculator) SumOrders(orders []database.Order) Totals {
	sum := Totals{Subtotal: decimal.Zero, Discount: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	for _, o := range orders {
		if o.Status == enum.OrderStatusVoided {
			continue
		}
		sum.Subtotal = sum.Subtotal.Add(numericToDecimal(o.Subtotal))
		sum.Discount = sum.Discount.Add(numericToDecimal(o.DiscountAmount))
		sum.Tax = sum.Tax.Add(numericToDecimal(o.TaxAmount))
		sum.Total = sum.Total.Add(numericToDecimal(o.TotalAmount))
	}
	return sum
}

// LineItems converts stored order items into pricing input.
func LineItems(items []database.OrderItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = LineItem{Quantity: it.Quantity, UnitPrice: numericToDecimal(it.UnitPrice)}
	}
	return out
}

func orderTotals(o database.Order) Totals {
	return Totals{
		Subtotal: numericToDecimal(o.Subtotal),
		Discount: numericToDecimal(o.DiscountAmount),
		Tax:      numericToDecimal(o.TaxAmount),
		Total:    numericToDecimal(o.TotalAmount),
	}
}

func tabTotals(t database.Tab) Totals {
	return Totals{
		Subtotal: numericToDecimal(t.Subtotal),
		Discount: numericToDecimal(t.DiscountAmount),
		Tax:      numericToDecimal(t.TaxAmount),
		Total:    numericToDecimal(t.TotalAmount),
	}
}

// RuleProvider supplies promotional and tax rules by date/time.
type RuleProvider interface {
	RulesAt(ctx context.Context, at time.Time) (Rules, error)
}

// ConfigRules is a RuleProvider backed by static configuration with an
// optional daily promo window [PromoStartHour, PromoEndHour).
type ConfigRules struct {
	TaxRate        decimal.Decimal
	PromoType      string
	PromoValue     decimal.Decimal
	PromoStartHour int
	PromoEndHour   int
	Location       *time.Location
}

func (r ConfigRules) RulesAt(_ context.Context, at time.Time) (Rules, error) {
	rules := Rules{TaxRate: r.TaxRate}
	if r.PromoType == "" || !r.inWindow(at) {
		return rules, nil
	}
	rules.DiscountType = r.PromoType
	rules.DiscountValue = r.PromoValue
	return rules, nil
}

func (r ConfigRules) inWindow(at time.Time) bool {
	if r.PromoStartHour == r.PromoEndHour {
		return true
	}
	if r.Location != nil {
		at = at.In(r.Location)
	}
	h := at.Hour()
	if r.PromoStartHour < r.PromoEndHour {
		return h >= r.PromoStartHour && h < r.PromoEndHour
	}
	// window wraps past midnight
	return h >= r.PromoStartHour || h < r.PromoEndHour
}
