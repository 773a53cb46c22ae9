package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Order is the immutable receipt produced when a cart is checked out
type Order struct {
	gorm.Model    `json:"-"`
	OrderNumber   string      `gorm:"unique_index" json:"order_id"`
	SessionID     string      `gorm:"index" json:"session_id"`
	Items         []OrderItem `gorm:"foreignkey:OrderID" json:"items"`
	Subtotal      float64     `json:"subtotal"`
	Tax           float64     `json:"tax"`
	Total         float64     `json:"total"`
	Status        string      `json:"status"`
	PlacedAt      time.Time   `json:"timestamp"`
	EstimatedTime string      `json:"estimatedTime"`
}

// OrderItem represents a cart line captured in a receipt
type OrderItem struct {
	gorm.Model `json:"-"`
	OrderID    uint    `json:"-"`
	MenuItemID string  `json:"id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Total      float64 `json:"total"`
	Custom     bool    `json:"custom,omitempty"`
}

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// NewOrder snapshots cart lines into a receipt with tax applied to the subtotal.
func NewOrder(number, sessionID string, lines []CartLine, taxRate float64, placedAt time.Time, estimated string) *Order {
	o := &Order{
		OrderNumber:   number,
		SessionID:     sessionID,
		Status:        string(OrderStatusPlaced),
		PlacedAt:      placedAt,
		EstimatedTime: estimated,
		Items:         make([]OrderItem, 0, len(lines)),
	}

	var subtotal float64
	for _, l := range lines {
		total := RoundCents(l.Price * float64(l.Quantity))
		subtotal += total
		o.Items = append(o.Items, OrderItem{
			MenuItemID: l.ID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			Price:      l.Price,
			Total:      total,
			Custom:     l.Custom,
		})
	}

	o.Subtotal = RoundCents(subtotal)
	o.Tax = RoundCents(o.Subtotal * taxRate)
	o.Total = RoundCents(o.Subtotal + o.Tax)
	return o
}
