package models

import (
	"fmt"
	"strings"
)

// MenuItem represents a dish or add-on on the menu
type MenuItem struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	Price       float64  `json:"price" yaml:"price"`
	Available   bool     `json:"available" yaml:"available"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
	IsAddon     bool     `json:"isAddon" yaml:"is_addon"`
}

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if item.ID == "" {
		return fmt.Errorf("menu item id is required")
	}
	if item.Name == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.Price < 0 {
		return fmt.Errorf("menu item %q price must not be negative", item.Name)
	}
	if item.Category == "" {
		return fmt.Errorf("menu item %q category is required", item.Name)
	}
	return nil
}

// IsInCategory reports whether the item belongs to category, ignoring case.
func (mi *MenuItem) IsInCategory(category string) bool {
	return strings.EqualFold(mi.Category, category)
}
