package models

import (
	"fmt"
	"math"
)

// CartLine is a single cart entry. Quantity is always positive.
type CartLine struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
	Custom     bool    `json:"custom,omitempty"`
}

// Recompute refreshes TotalPrice from Price and Quantity.
func (l *CartLine) Recompute() {
	l.TotalPrice = RoundCents(l.Price * float64(l.Quantity))
}

// CartSnapshot is a point-in-time copy of a cart.
type CartSnapshot struct {
	Lines     []CartLine `json:"items"`
	ItemCount int        `json:"itemCount"`
	Total     float64    `json:"total"`
}

// NewCartSnapshot totals the given lines.
func NewCartSnapshot(lines []CartLine) CartSnapshot {
	s := CartSnapshot{Lines: lines}
	var total float64
	for _, l := range lines {
		s.ItemCount += l.Quantity
		total += l.TotalPrice
	}
	s.Total = RoundCents(total)
	return s
}

// Empty reports whether the snapshot has no lines.
func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

// Summary renders the compact cart line shown under cart messages.
func (s CartSnapshot) Summary() string {
	noun := "items"
	if s.ItemCount == 1 {
		noun = "item"
	}
	return fmt.Sprintf("%d %s • Total: $%.2f", s.ItemCount, noun, s.Total)
}

// RoundCents rounds a money amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
