package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/service"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// CartItem is a product snapshot plus the quantity the shopper wants.
// Price and stock are as last seen by the client; the server re-checks both.
type CartItem struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the session-scoped shopping cart. Items keep insertion order.
// The zero value is an empty cart. A Cart is not safe for concurrent use.
type Cart struct {
	items []CartItem
}

// LoadCart restores a cart serialized with MarshalJSON. Lines with a
// non-positive quantity are dropped; duplicate products are merged.
func LoadCart(data []byte) (*Cart, error) {
	var items []CartItem
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode cart: %w", err)
		}
	}

	c := &Cart{}
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		if i := c.index(it.ProductID); i >= 0 {
			c.items[i].Quantity += it.Quantity
			continue
		}
		c.items = append(c.items, it)
	}
	return c, nil
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []CartItem{}
	}
	return json.Marshal(items)
}

func (c *Cart) index(productID int64) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add puts quantity units of p in the cart, merging with an existing line.
// The combined quantity may not exceed p's stock.
func (c *Cart) Add(p models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	i := c.index(p.ID)
	current := 0
	if i >= 0 {
		current = c.items[i].Quantity
	}
	if current+quantity > p.Stock {
		return ErrInsufficientStock
	}

	item := CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Stock:     p.Stock,
		Quantity:  current + quantity,
	}
	if i >= 0 {
		c.items[i] = item
		return nil
	}
	c.items = append(c.items, item)
	return nil
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(productID int64, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	if quantity < 1 {
		c.Remove(productID)
		return nil
	}
	if quantity > c.items[i].Stock {
		return ErrInsufficientStock
	}
	c.items[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

// Total is the sum of line subtotals at the cached prices.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderItems converts the cart to the order request payload. Prices are
// left out because the server reads them from the catalog.
func (c *Cart) OrderItems() []service.OrderItemRequest {
	out := make([]service.OrderItemRequest, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, service.OrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
