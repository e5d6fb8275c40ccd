package domain

import "github.com/shopspring/decimal"

// CartLineItem is one product entry in the cart. UnitPrice is the effective
// price frozen when the item was added.
type CartLineItem struct {
	ProductID     string          `json:"product"`
	Name          string          `json:"name"`
	Image         string          `json:"image"`
	UnitPrice     decimal.Decimal `json:"price"`
	StockSnapshot int             `json:"countInStock"`
	Quantity      int             `json:"qty"`
	Size          string          `json:"size,omitempty"`
	Color         string          `json:"color,omitempty"`
}

type ShippingAddressDraft struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	HouseNumber   string `json:"houseNumber"`
	FlatOrSociety string `json:"flatOrSociety"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postalCode"`
	Landmark      string `json:"landmark"`
}

func (a ShippingAddressDraft) IsZero() bool {
	return a == ShippingAddressDraft{}
}
