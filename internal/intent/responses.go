package intent

import (
	"fmt"
	"strings"

	"bellavista/internal/models"
)

// DefaultResponse is the assistant text used when a reply carries an action but no
// usable text.
func DefaultResponse(a models.Action) string {
	switch a.Kind {
	case models.ActionAdd, models.ActionAddMultiple:
		if len(a.Items) > 0 {
			return fmt.Sprintf("Great! I've added %s to your cart.", DescribeItems(a.Items))
		}
		return "Great! I've added that to your cart."
	case models.ActionAddMultiplePartial:
		return "I've added what I could find to your cart."
	case models.ActionItemNotFound:
		if len(a.NotFoundItems) > 0 {
			return fmt.Sprintf("I'm sorry, I couldn't find %s on our menu. Would you like me to show you our available items?",
				strings.Join(a.NotFoundItems, " and "))
		}
		return "I'm sorry, I couldn't find that item on our menu. Would you like me to show you our available items?"
	case models.ActionRemove, models.ActionRemoveAll:
		return "I've removed that from your cart."
	case models.ActionUpdate:
		return "I've updated your cart."
	case models.ActionShowMenu:
		return "Here's our menu! Take a look at our delicious options."
	case models.ActionShowCategory:
		if a.Category != "" {
			return fmt.Sprintf("Here are our %s options.", strings.ToLower(a.Category))
		}
		return "Here are the options in that category."
	case models.ActionShowCart:
		return "Here's what's in your cart."
	case models.ActionClearCart:
		return "Your cart has been cleared."
	case models.ActionClearChat:
		return "Chat cleared! How can I help you today?"
	case models.ActionCheckout:
		return "Let's get your order ready."
	case models.ActionPlaceOrder:
		return "Perfect! I'll process your order and generate a receipt for you."
	case models.ActionBulkQuantity, models.ActionBulkMenu:
		return "Great! Pick the items you'd like and I'll add them in bulk."
	case models.ActionMultiCategoryBulk:
		return "Perfect! I'll help you order from multiple categories."
	case models.ActionAskAddons:
		return "Would you like to add any drinks, sides or extras before you check out?"
	case models.ActionConfirmAddons:
		return "Here are our add-ons."
	case models.ActionCancelAddons:
		return "No problem! Let's place your order."
	case models.ActionGreeting:
		return fmt.Sprintf("Hello! Welcome to %s. What can I get for you today?", models.RestaurantName)
	case models.ActionUnknown:
		return "I'm not sure I understood that, but here's our menu to help you choose."
	default:
		return "How can I help you with your order?"
	}
}

// DescribeItems renders "2 Margherita Pizza and 1 Tiramisu".
func DescribeItems(items []models.ActionItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		q := item.Quantity
		if q < 1 {
			q = 1
		}
		parts = append(parts, fmt.Sprintf("%d %s", q, item.Name))
	}
	return strings.Join(parts, " and ")
}
