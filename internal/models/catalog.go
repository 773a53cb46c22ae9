package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RestaurantName is the display name used in assistant messages.
const RestaurantName = "Bella Vista Restaurant"

// Catalog is the ordered, read-only list of menu items used for matching.
type Catalog struct {
	items []MenuItem
	byID  map[string]int
}

// NewCatalog builds a catalog, rejecting invalid or duplicate items.
func NewCatalog(items []MenuItem) (*Catalog, error) {
	c := &Catalog{
		items: make([]MenuItem, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for i := range items {
		item := items[i]
		if err := ValidateMenuItem(&item); err != nil {
			return nil, err
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate menu item id %q", item.ID)
		}
		c.byID[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog file of the form `items: [...]`.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var doc struct {
		Items []MenuItem `yaml:"items"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("catalog %s has no items", path)
	}
	return NewCatalog(doc.Items)
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []MenuItem {
	out := make([]MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// ByID looks up an item by its id.
func (c *Catalog) ByID(id string) (MenuItem, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return MenuItem{}, false
	}
	return c.items[idx], true
}

// Categories returns the primary (non add-on) categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range c.items {
		if item.IsAddon || seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		out = append(out, item.Category)
	}
	return out
}

// HasCategory reports whether any item (add-ons included) carries the category.
func (c *Catalog) HasCategory(category string) bool {
	for i := range c.items {
		if c.items[i].IsInCategory(category) {
			return true
		}
	}
	return false
}

// InCategory returns the items of a category, compared case-insensitively.
func (c *Catalog) InCategory(category string) []MenuItem {
	var out []MenuItem
	for _, item := range c.items {
		if item.IsInCategory(category) {
			out = append(out, item)
		}
	}
	return out
}

// Addons returns the add-on items grouped by category, categories in first-seen order.
func (c *Catalog) Addons() []CategoryItems {
	var groups []CategoryItems
	index := make(map[string]int)
	for _, item := range c.items {
		if !item.IsAddon || !item.Available {
			continue
		}
		i, ok := index[item.Category]
		if !ok {
			i = len(groups)
			index[item.Category] = i
			groups = append(groups, CategoryItems{Category: item.Category})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

// Alternatives returns available items sharing the category of item, excluding it.
func (c *Catalog) Alternatives(item MenuItem) []MenuItem {
	var out []MenuItem
	for _, candidate := range c.items {
		if candidate.ID == item.ID || !candidate.Available {
			continue
		}
		if candidate.IsInCategory(item.Category) {
			out = append(out, candidate)
		}
	}
	return out
}

// CategoryItems groups menu items under a category label.
type CategoryItems struct {
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
}

// DefaultCatalog returns the Bella Vista menu.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(seedMenu)
	if err != nil {
		panic(fmt.Sprintf("seed menu is invalid: %v", err))
	}
	return c
}

var seedMenu = []MenuItem{
	{ID: "1", Name: "Margherita Pizza", Description: "Classic pizza with fresh mozzarella, tomato sauce, and basil", Price: 18.99, Category: "Pizza", Available: true,
		Ingredients: []string{"Mozzarella", "Tomato Sauce", "Fresh Basil", "Olive Oil"}},
	{ID: "2", Name: "Spaghetti Carbonara", Description: "Traditional Roman pasta with eggs, cheese, pancetta, and pepper", Price: 22.99, Category: "Pasta", Available: true,
		Ingredients: []string{"Spaghetti", "Eggs", "Parmesan Cheese", "Pancetta", "Black Pepper"}},
	{ID: "3", Name: "Caesar Salad", Description: "Crisp romaine lettuce with Caesar dressing, croutons, and parmesan", Price: 14.99, Category: "Salads", Available: true,
		Ingredients: []string{"Romaine Lettuce", "Caesar Dressing", "Croutons", "Parmesan Cheese"}},
	{ID: "4", Name: "Grilled Salmon", Description: "Fresh Atlantic salmon with lemon herb butter and seasonal vegetables", Price: 28.99, Category: "Seafood", Available: true,
		Ingredients: []string{"Atlantic Salmon", "Lemon", "Herbs", "Butter", "Seasonal Vegetables"}},
	{ID: "5", Name: "Tiramisu", Description: "Classic Italian dessert with coffee-soaked ladyfingers and mascarpone", Price: 8.99, Category: "Desserts", Available: true,
		Ingredients: []string{"Ladyfingers", "Coffee", "Mascarpone", "Cocoa Powder", "Sugar"}},
	{ID: "6", Name: "Bruschetta", Description: "Grilled bread topped with fresh tomatoes, garlic, and basil", Price: 12.99, Category: "Appetizers", Available: true,
		Ingredients: []string{"Bread", "Tomatoes", "Garlic", "Basil", "Olive Oil"}},
	{ID: "7", Name: "Fettuccine Alfredo", Description: "Creamy pasta with parmesan cheese and butter", Price: 20.99, Category: "Pasta", Available: true,
		Ingredients: []string{"Fettuccine", "Parmesan Cheese", "Butter", "Heavy Cream"}},
	{ID: "8", Name: "Pepperoni Pizza", Description: "Classic pizza with pepperoni and mozzarella cheese", Price: 21.99, Category: "Pizza", Available: true,
		Ingredients: []string{"Pepperoni", "Mozzarella", "Tomato Sauce"}},
	{ID: "9", Name: "Grilled Shrimp", Description: "Perfectly seasoned grilled shrimp with garlic and herbs", Price: 24.99, Category: "Seafood", Available: true,
		Ingredients: []string{"Shrimp", "Garlic", "Herbs", "Lemon", "Olive Oil"}},
	{ID: "10", Name: "Fish and Chips", Description: "Crispy battered fish with golden fries and tartar sauce", Price: 19.99, Category: "Seafood", Available: true,
		Ingredients: []string{"White Fish", "Batter", "Potatoes", "Tartar Sauce"}},

	{ID: "addon-1", Name: "Water Bottle", Description: "Refreshing mineral water bottle (500ml)", Price: 2.99, Category: "Beverages", Available: true, IsAddon: true,
		Ingredients: []string{"Mineral Water"}},
	{ID: "addon-2", Name: "Fresh Orange Juice", Description: "Freshly squeezed orange juice", Price: 4.99, Category: "Beverages", Available: true, IsAddon: true,
		Ingredients: []string{"Fresh Oranges"}},
	{ID: "addon-3", Name: "Apple Juice Can", Description: "Canned apple juice (330ml)", Price: 3.49, Category: "Beverages", Available: true, IsAddon: true,
		Ingredients: []string{"Apple Juice"}},
	{ID: "addon-4", Name: "Garden Salad", Description: "Fresh mixed greens with cherry tomatoes and cucumber", Price: 6.99, Category: "Sides", Available: true, IsAddon: true,
		Ingredients: []string{"Mixed Greens", "Cherry Tomatoes", "Cucumber", "Dressing"}},
	{ID: "addon-5", Name: "Tomato Ketchup", Description: "Premium tomato ketchup packet", Price: 0.99, Category: "Condiments", Available: true, IsAddon: true,
		Ingredients: []string{"Tomatoes", "Vinegar", "Sugar", "Spices"}},
	{ID: "addon-6", Name: "Green Chilli", Description: "Fresh green chilli peppers", Price: 1.49, Category: "Condiments", Available: true, IsAddon: true,
		Ingredients: []string{"Green Chilli Peppers"}},
	{ID: "addon-7", Name: "Sliced Onions", Description: "Fresh sliced red onions", Price: 1.99, Category: "Condiments", Available: true, IsAddon: true,
		Ingredients: []string{"Red Onions"}},
	{ID: "addon-8", Name: "Extra Cheese", Description: "Additional mozzarella cheese", Price: 2.49, Category: "Extras", Available: true, IsAddon: true,
		Ingredients: []string{"Mozzarella Cheese"}},
	{ID: "addon-9", Name: "Garlic Bread", Description: "Toasted bread with garlic butter", Price: 3.99, Category: "Sides", Available: true, IsAddon: true,
		Ingredients: []string{"Bread", "Garlic", "Butter", "Herbs"}},
}
