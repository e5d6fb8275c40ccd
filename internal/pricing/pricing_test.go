package pricing

import (
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name      string
		price     int64
		salePrice int64
		want      int64
	}{
		{name: "no sale price", price: 1000, salePrice: 0, want: 1000},
		{name: "sale below list", price: 1000, salePrice: 799, want: 799},
		{name: "sale equal to list", price: 1000, salePrice: 1000, want: 1000},
		{name: "sale above list", price: 1000, salePrice: 1200, want: 1000},
		{name: "negative sale", price: 1000, salePrice: -5, want: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Product{
				Price:     decimal.NewFromInt(tt.price),
				SalePrice: decimal.NewFromInt(tt.salePrice),
			}
			got := EffectivePrice(p)
			assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s, want %d", got, tt.want)
		})
	}
}

func TestEffectivePrice_MissingSalePrice(t *testing.T) {
	p := domain.Product{Price: decimal.RequireFromString("499.99")}
	assert.Equal(t, "499.99", EffectivePrice(p).String())
}

func TestCartTotal(t *testing.T) {
	assert.True(t, CartTotal(nil).IsZero())

	one := []domain.CartLineItem{
		{ProductID: "a", UnitPrice: decimal.NewFromInt(500), Quantity: 1},
	}
	assert.Equal(t, "500", CartTotal(one).String())

	two := []domain.CartLineItem{
		{ProductID: "a", UnitPrice: decimal.NewFromInt(300), Quantity: 2},
		{ProductID: "b", UnitPrice: decimal.NewFromInt(750), Quantity: 1},
	}
	assert.Equal(t, "1350", CartTotal(two).String())
	assert.Equal(t, 3, ItemCount(two))
}

func TestLineTotal_Fractional(t *testing.T) {
	item := domain.CartLineItem{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3}
	assert.Equal(t, "59.97", LineTotal(item).String())
}
