// Package cart owns the shopping-cart line items and the shipping address
// draft. State changes go through Apply, a pure transition over Command
// values; Store persists every committed state.
package cart

import (
	"slices"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

var (
	ErrOutOfStock      = apperr.Validation("product", "This product is out of stock")
	ErrInvalidQuantity = apperr.Validation("quantity", "Quantity must be between 1 and the available stock")
	ErrSizeRequired    = apperr.Validation("size", "Please select a size")
	ErrColorRequired   = apperr.Validation("color", "Please select a color")
	ErrItemNotFound    = apperr.Validation("product", "Item is not in the cart")
	ErrUnknownCommand  = apperr.Validation("command", "Unknown cart command")
)

// Command is one of AddItem, RemoveItem, UpdateQuantity, Clear, SaveAddress.
type Command interface {
	command()
}

// AddItem puts a product in the cart at its effective price. An existing
// line for the same product is replaced, not merged: the last add wins.
type AddItem struct {
	Product  domain.Product
	Quantity int
	Size     string
	Color    string
}

// RemoveItem is a no-op when the product is not in the cart.
type RemoveItem struct {
	ProductID string
}

type UpdateQuantity struct {
	ProductID string
	Quantity  int
}

// Clear empties the line items and keeps the address draft.
type Clear struct{}

type SaveAddress struct {
	Address domain.ShippingAddressDraft
}

func (AddItem) command()        {}
func (RemoveItem) command()     {}
func (UpdateQuantity) command() {}
func (Clear) command()          {}
func (SaveAddress) command()    {}

type State struct {
	Items   []domain.CartLineItem
	Address domain.ShippingAddressDraft
}

// Apply returns the state that results from cmd. s is never modified; on
// error the returned state is s.
func Apply(s State, cmd Command) (State, error) {
	next := State{Items: slices.Clone(s.Items), Address: s.Address}

	switch c := cmd.(type) {
	case AddItem:
		item, err := newLineItem(c)
		if err != nil {
			return s, err
		}
		if i := indexOf(next.Items, item.ProductID); i >= 0 {
			next.Items[i] = item
		} else {
			next.Items = append(next.Items, item)
		}
	case RemoveItem:
		if i := indexOf(next.Items, c.ProductID); i >= 0 {
			next.Items = slices.Delete(next.Items, i, i+1)
		}
	case UpdateQuantity:
		i := indexOf(next.Items, c.ProductID)
		if i < 0 {
			return s, ErrItemNotFound
		}
		if c.Quantity < 1 || c.Quantity > next.Items[i].StockSnapshot {
			return s, ErrInvalidQuantity
		}
		next.Items[i].Quantity = c.Quantity
	case Clear:
		next.Items = nil
	case SaveAddress:
		next.Address = c.Address
	default:
		return s, ErrUnknownCommand
	}
	return next, nil
}

func newLineItem(c AddItem) (domain.CartLineItem, error) {
	p := c.Product
	if p.CountInStock <= 0 {
		return domain.CartLineItem{}, ErrOutOfStock
	}
	if c.Quantity < 1 || c.Quantity > p.CountInStock {
		return domain.CartLineItem{}, ErrInvalidQuantity
	}

	item := domain.CartLineItem{
		ProductID:     p.ID,
		Name:          p.Name,
		Image:         p.Image,
		UnitPrice:     pricing.EffectivePrice(p),
		StockSnapshot: p.CountInStock,
		Quantity:      c.Quantity,
	}
	if p.HasSizes() {
		if !slices.Contains(p.Sizes, c.Size) {
			return domain.CartLineItem{}, ErrSizeRequired
		}
		item.Size = c.Size
	}
	if p.HasColors() {
		if !slices.Contains(p.Colors, c.Color) {
			return domain.CartLineItem{}, ErrColorRequired
		}
		item.Color = c.Color
	}
	return item, nil
}

func indexOf(items []domain.CartLineItem, productID string) int {
	return slices.IndexFunc(items, func(li domain.CartLineItem) bool {
		return li.ProductID == productID
	})
}

// ClampQuantity brings a requested quantity into [1, stock]. With no stock
// the result is 1; AddItem rejects that line with ErrOutOfStock.
func ClampQuantity(quantity, stock int) int {
	if quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		return 1
	}
	return quantity
}

// validLine reports whether a persisted line can be kept.
func validLine(li domain.CartLineItem) bool {
	return li.ProductID != "" && li.Quantity >= 1 && li.Quantity <= li.StockSnapshot && !li.UnitPrice.IsNegative()
}
