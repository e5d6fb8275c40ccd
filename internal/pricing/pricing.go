// Package pricing derives prices and totals from products and cart lines.
// Totals are always recomputed from the lines they describe.
package pricing

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// EffectivePrice is the sale price when it is positive and below the list
// price, otherwise the list price.
func EffectivePrice(p domain.Product) decimal.Decimal {
	if p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		return p.SalePrice
	}
	return p.Price
}

func LineTotal(item domain.CartLineItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func CartTotal(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

// ItemCount is the number of units across all lines.
func ItemCount(items []domain.CartLineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
