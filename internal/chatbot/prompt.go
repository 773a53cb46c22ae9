package chatbot

import (
	"fmt"
	"regexp"
	"strings"

	"bellavista/internal/models"
)

var (
	boldPattern        = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern      = regexp.MustCompile(`\*(.*?)\*`)
	headerPattern      = regexp.MustCompile(`#{1,6}\s*`)
	codeBlockPattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern  = regexp.MustCompile("`([^`]*)`")
	linkPattern        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	strayStarsPattern  = regexp.MustCompile(`\*{2,}|\*\s*\*`)
	bulletStarsPattern = regexp.MustCompile(`(?m)^\s*\*\s*`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// CleanResponse strips markdown from model output and collapses whitespace.
func CleanResponse(text string) string {
	text = codeBlockPattern.ReplaceAllString(text, "")
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = headerPattern.ReplaceAllString(text, "")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = strayStarsPattern.ReplaceAllString(text, "")
	text = bulletStarsPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SystemPrompt instructs the model about the menu and the action format the storefront expects.
func SystemPrompt(menu MenuInfo) string {
	var b strings.Builder
	b.WriteString("You are a friendly restaurant ordering assistant for " + models.RestaurantName + ".\n")
	fmt.Fprintf(&b, "Valid menu items (use exact names): %s.\n", strings.Join(menu.Items, ", "))
	fmt.Fprintf(&b, "Available categories: %s.\n", strings.Join(menu.Categories, ", "))
	if len(menu.Addons) > 0 {
		fmt.Fprintf(&b, "Add-ons offered at checkout: %s.\n", strings.Join(menu.Addons, ", "))
	}
	b.WriteString(`
Your capabilities:
- Help customers browse menu categories
- Add items to cart with specified quantities
- Handle multi-category bulk orders
- Modify cart (increase/decrease quantities, remove items, remove all of an item type)
- Show cart contents with totals
- Handle unavailable items with alternatives
- Clear cart or chat history
- Process order placement

Key rules:
- Keep text responses SHORT and let the UI show details
- Never list menu items in text, use an action instead
- For a multi-category request use the "multi_category_bulk" action
- For a single category with quantity 2 or more use the "bulk_menu" action
- Always end your response with a JSON block containing the action

Category mapping:
- 'pizza' -> 'Pizza', 'pasta', 'noodles', 'spaghetti' -> 'Pasta', 'salad' -> 'Salads'
- 'seafood', 'fish', 'salmon', 'shrimp' -> 'Seafood'
- 'water', 'drink', 'beverage', 'juice', 'soda' -> 'Beverages'
- 'dessert', 'cake', 'sweet' -> 'Desserts'
- 'appetizer', 'starter' -> 'Appetizers'

Example JSON format:
` + "```json" + `
{
  "action": "add|remove|remove_all|update|show_menu|show_category|show_cart|clear_cart|clear_chat|place_order|bulk_menu|multi_category_bulk|item_not_found",
  "items": [{"name": "item_name", "quantity": 1}],
  "target_item": "item_name",
  "operation": "increase|decrease|set",
  "quantity": 1,
  "category": "category_name",
  "item_type": "pizza",
  "bulk_quantity": 2,
  "multi_categories": [{"category": "name", "quantity": 2}],
  "response_delay": 1000
}
` + "```")
	return b.String()
}
