package domain

import "github.com/shopspring/decimal"

// Product is the catalog view of a product as served by the commerce API.
type Product struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	CountInStock int             `json:"countInStock"`
	Sizes        []string        `json:"sizes,omitempty"`
	Colors       []string        `json:"colors,omitempty"`
}

func (p Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

func (p Product) HasColors() bool {
	return len(p.Colors) > 0
}
