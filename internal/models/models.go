package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Category    string          `db:"category" json:"category"`
	Stock       int             `db:"stock" json:"stock"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order header
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	PhoneNumber     string          `db:"phone_number" json:"phone_number"`
	PaymentIntentID string          `db:"payment_intent_id" json:"payment_intent_id"`
	Status          string          `db:"status" json:"status"`
	IdempotencyKey  string          `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of an order. Price is the unit price captured when
// the order was placed.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// OrderItemDetail is an order line joined with the product it refers to.
// The product may have been deleted since, hence the empty-string defaults.
type OrderItemDetail struct {
	OrderItem
	ProductName  string `db:"product_name" json:"product_name"`
	ProductImage string `db:"product_image" json:"product_image"`
}

// OrderDetail is an order with its items and, when loaded, its owner.
type OrderDetail struct {
	Order
	UserName  string            `db:"user_name" json:"user_name,omitempty"`
	UserEmail string            `db:"user_email" json:"user_email,omitempty"`
	Items     []OrderItemDetail `db:"-" json:"items"`
}

// Order statuses
const (
	OrderStatusPlaced    = "placed"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists every status an order may hold.
var OrderStatuses = []string{
	OrderStatusPlaced,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ValidOrderStatus reports whether s is one of OrderStatuses.
func ValidOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Review is a user's rating of a product. There is at most one per
// (product, user) pair.
type Review struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	UserName  string    `db:"user_name" json:"user_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RatingSummary aggregates the reviews of one product.
type RatingSummary struct {
	AvgRating    string `json:"avgRating"`
	TotalReviews int    `json:"totalReviews"`
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// PaymentIntent records a gateway order created for a caller, kept so the
// callback and the order placement can be tied back to it.
type PaymentIntent struct {
	IntentID  string    `json:"intent_id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Verified  bool      `json:"verified"`
	PaymentID string    `json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
