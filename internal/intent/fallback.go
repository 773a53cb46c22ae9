package intent

import (
	"fmt"
	"regexp"
	"strings"

	"bellavista/internal/matching"
	"bellavista/internal/models"
)

// fallbackDelay is the response delay of locally generated replies.
const fallbackDelay = 1000

// minScoredQuery is the shortest cleaned query accepted from the scoring layer alone.
const minScoredQuery = 4

var (
	clearChatPattern  = regexp.MustCompile(`(?i)\b(?:clear|reset|new)\s+(?:the\s+|my\s+)?(?:chat|conversation)\b|\bstart\s+over\b`)
	removeAllPattern  = regexp.MustCompile(`(?i)\b(?:remove|delete|cancel|take\s+out)\s+(?:all|every|everything)\b\s*(?:of\s+)?(?:the\s+|my\s+)?(.*?)\s*(?:from\s+(?:my\s+|the\s+)?cart)?\s*[.!?]*$`)
	clearCartPattern  = regexp.MustCompile(`(?i)\b(?:clear|empty|reset)\s+(?:my\s+|the\s+)?(?:cart|basket)\b`)
	showCartPattern   = regexp.MustCompile(`(?i)\b(?:show|view|see|check|display)\b.*\b(?:cart|basket)\b|\bwhat'?s\s+in\s+my\s+(?:cart|basket)\b|^\s*(?:my\s+)?cart\s*[?.!]*\s*$`)
	placeOrderPattern = regexp.MustCompile(`(?i)\b(?:place|confirm|submit|complete)\s+(?:my\s+|the\s+)?order\b`)
	checkoutPattern   = regexp.MustCompile(`(?i)\b(?:check\s*out|ready\s+to\s+(?:pay|order))\b`)
	decreasePattern   = regexp.MustCompile(`(?i)\b(?:decrease|reduce|fewer|less)\b`)
	increasePattern   = regexp.MustCompile(`(?i)\b(?:increase|more|another)\b`)
	removePattern     = regexp.MustCompile(`(?i)\b(?:remove|delete|take\s+out|drop)\b`)
	byQuantityPattern = regexp.MustCompile(`(?i)\bby\s+\d+\b`)
	greetingPattern   = regexp.MustCompile(`(?i)^\s*(?:hello|hi|hey|hiya|howdy|greetings|good\s+(?:morning|afternoon|evening))\b`)
	menuPattern       = regexp.MustCompile(`(?i)\bmenu\b|\bwhat\s+do\s+you\s+(?:have|serve|offer)\b|\bwhat'?s\s+available\b`)
	orderVerbPattern  = regexp.MustCompile(`(?i)\b(?:want|add|get|order|have|like|take|need|give|bring)\b`)
)

// Responder produces a reply for a user message.
type Responder interface {
	Respond(text string, cart models.CartSnapshot, empathy string) models.Reply
}

// FallbackResponder answers with keyword rules when the AI service is unreachable.
type FallbackResponder struct {
	parser  *Parser
	matcher *matching.Matcher
}

// NewFallbackResponder creates a rule-based responder over the parser's matcher.
func NewFallbackResponder(parser *Parser) *FallbackResponder {
	return &FallbackResponder{parser: parser, matcher: parser.Matcher()}
}

// Respond classifies text into a single action and writes the reply text for it.
func (f *FallbackResponder) Respond(text string, cart models.CartSnapshot, empathy string) models.Reply {
	reply := f.classify(strings.TrimSpace(text), cart)
	reply.Fallback = true
	if reply.Action.Kind != models.ActionText && reply.Action.ResponseDelay == 0 {
		reply.Action.ResponseDelay = fallbackDelay
	}
	if empathy == models.EmpathyHigh {
		reply.Text = "I'm sorry for the trouble. " + reply.Text
	}
	return reply
}

func (f *FallbackResponder) classify(text string, cart models.CartSnapshot) models.Reply {
	switch {
	case clearChatPattern.MatchString(text):
		return models.Reply{
			Text:   "Chat cleared! How can I help you today?",
			Action: models.Action{Kind: models.ActionClearChat},
		}

	case removeAllPattern.MatchString(text):
		target := CleanCandidate(removeAllPattern.FindStringSubmatch(text)[1])
		if target == "" || isCartWord(target) {
			return clearCartReply()
		}
		return models.Reply{
			Text:   fmt.Sprintf("I'll remove all %s from your cart.", target),
			Action: models.Action{Kind: models.ActionRemoveAll, TargetItem: target},
		}

	case clearCartPattern.MatchString(text):
		return clearCartReply()

	case showCartPattern.MatchString(text):
		if cart.Empty() {
			return models.Reply{
				Text:   "Your cart is currently empty. I'd be happy to help you add some delicious items!",
				Action: models.Action{Kind: models.ActionShowCart},
			}
		}
		return models.Reply{
			Text:   fmt.Sprintf("You have %s in your cart. Let me show you the details.", pluralItems(cart.ItemCount)),
			Action: models.Action{Kind: models.ActionShowCart},
		}

	case placeOrderPattern.MatchString(text):
		if cart.Empty() {
			return emptyCartReply()
		}
		return models.Reply{
			Text:   "Perfect! I'll process your order and generate a receipt for you.",
			Action: models.Action{Kind: models.ActionPlaceOrder},
		}

	case checkoutPattern.MatchString(text):
		if cart.Empty() {
			return emptyCartReply()
		}
		return models.Reply{
			Text:   "Great! Let's get your order ready.",
			Action: models.Action{Kind: models.ActionCheckout},
		}

	case decreasePattern.MatchString(text):
		if reply, ok := f.update(text, models.OperationDecrease, decreasePattern); ok {
			return reply
		}

	case removePattern.MatchString(text):
		if reply, ok := f.remove(text); ok {
			return reply
		}

	case increasePattern.MatchString(text):
		if reply, ok := f.update(text, models.OperationIncrease, increasePattern); ok {
			return reply
		}
	}

	if !mentionsOrder(text) {
		if reply, ok := browseReply(text); ok {
			return reply
		}
	}

	if reply, ok := f.order(text); ok {
		return reply
	}

	if reply, ok := browseReply(text); ok {
		return reply
	}

	if category, ok := f.matcher.Category(text); ok {
		return models.Reply{
			Text:   fmt.Sprintf("Here are our %s options!", strings.ToLower(category)),
			Action: models.Action{Kind: models.ActionShowCategory, Category: category},
		}
	}

	return models.Reply{
		Text:   "I didn't quite catch that, but I can still help! Here's our menu to choose from.",
		Action: models.Action{Kind: models.ActionUnknown},
	}
}

// order turns item mentions into add, bulk or not-found actions.
func (f *FallbackResponder) order(text string) (models.Reply, bool) {
	parsed := f.parser.ParseItems(text)
	if len(parsed) == 0 {
		return models.Reply{}, false
	}

	var (
		resolved   []models.ActionItem
		categories []models.CategoryQuantity
		notFound   []string
	)
	for _, p := range parsed {
		item, category := f.resolve(p.Name)
		switch {
		case item != nil:
			resolved = append(resolved, models.ActionItem{ID: item.ID, Name: item.Name, Quantity: p.Quantity, Price: item.Price})
		case category != "":
			categories = append(categories, models.CategoryQuantity{Category: category, Quantity: p.Quantity})
		default:
			notFound = append(notFound, p.Name)
		}
	}

	switch {
	case len(resolved) > 0 && len(notFound) > 0:
		return models.Reply{
			Text: fmt.Sprintf("I've added %s to your cart. However, I couldn't find %s on our menu.",
				DescribeItems(resolved), strings.Join(notFound, " and ")),
			Action: models.Action{Kind: models.ActionAddMultiplePartial, Items: resolved, NotFoundItems: notFound},
		}, true

	case len(resolved) == 1:
		return models.Reply{
			Text:   fmt.Sprintf("Great! I've added %s to your cart.", DescribeItems(resolved)),
			Action: models.Action{Kind: models.ActionAdd, Items: resolved},
		}, true

	case len(resolved) > 1:
		return models.Reply{
			Text:   fmt.Sprintf("Excellent! I've added %s to your cart.", DescribeItems(resolved)),
			Action: models.Action{Kind: models.ActionAddMultiple, Items: resolved},
		}, true

	case len(categories) > 1:
		return models.Reply{
			Text: fmt.Sprintf("Perfect! I'll help you order from multiple categories. Let's start with %s!",
				strings.ToLower(categories[0].Category)),
			Action: models.Action{Kind: models.ActionMultiCategoryBulk, MultiCategories: categories},
		}, true

	case len(categories) == 1 && categories[0].Quantity >= 2:
		c := categories[0]
		return models.Reply{
			Text: fmt.Sprintf("Great choice! I'll show you our %s options so you can select your %d items.",
				strings.ToLower(c.Category), c.Quantity),
			Action: models.Action{Kind: models.ActionBulkMenu, Category: c.Category, BulkQuantity: c.Quantity, ItemType: strings.ToLower(c.Category)},
		}, true

	case len(categories) == 1:
		return models.Reply{
			Text:   fmt.Sprintf("Here are our %s options!", strings.ToLower(categories[0].Category)),
			Action: models.Action{Kind: models.ActionShowCategory, Category: categories[0].Category},
		}, true

	case len(notFound) > 0 && f.wantsUnknownItem(text):
		return models.Reply{
			Text: fmt.Sprintf("I'm sorry, I couldn't find %s on our menu. Would you like me to show you our available items?",
				strings.Join(notFound, " and ")),
			Action: models.Action{Kind: models.ActionItemNotFound, NotFoundItems: notFound},
		}, true
	}
	return models.Reply{}, false
}

// resolve decides whether name refers to a menu item or a whole category. A bare category
// label beats a subset match, while exact and synonym matches beat a category alias.
func (f *FallbackResponder) resolve(name string) (*models.MenuItem, string) {
	cleaned := f.matcher.Clean(name)
	category, isCategory := f.matcher.CategoryOf(name)
	if isCategory && f.matcher.Clean(category) == cleaned {
		return nil, category
	}

	match := f.matcher.Match(name)
	if isNamed(match) {
		return &match.Item, ""
	}
	if isCategory {
		return nil, category
	}
	switch match.Strategy {
	case matching.StrategySubset:
		return &match.Item, ""
	case matching.StrategyScore:
		if len(cleaned) >= minScoredQuery {
			return &match.Item, ""
		}
	}
	return nil, ""
}

// mentionsOrder reports whether text carries a quantity or an ordering verb.
func mentionsOrder(text string) bool {
	return anchorPattern.MatchString(matching.ReplaceQuantityWords(text)) || orderVerbPattern.MatchString(text)
}

func browseReply(text string) (models.Reply, bool) {
	switch {
	case greetingPattern.MatchString(text):
		return models.Reply{
			Text:   fmt.Sprintf("Hello! Welcome to %s. What can I get for you today?", models.RestaurantName),
			Action: models.Action{Kind: models.ActionGreeting},
		}, true
	case menuPattern.MatchString(text):
		return models.Reply{
			Text:   "I'd love to show you our delicious menu! Let me display all our categories for you.",
			Action: models.Action{Kind: models.ActionShowMenu},
		}, true
	}
	return models.Reply{}, false
}

// wantsUnknownItem reports whether text asks for something by name rather than browsing.
func (f *FallbackResponder) wantsUnknownItem(text string) bool {
	if !orderVerbPattern.MatchString(text) || menuPattern.MatchString(text) {
		return false
	}
	_, browsing := f.matcher.Category(text)
	return !browsing
}

// isNamed reports whether a match names one specific item. "pizza" resolves by subset
// but could mean any pizza in the cart, so it is left for the cart to resolve.
func isNamed(m matching.Match) bool {
	return m.Strategy == matching.StrategyExact || m.Strategy == matching.StrategySynonym
}

func (f *FallbackResponder) remove(text string) (models.Reply, bool) {
	parsed := f.parser.ParseItems(text)
	if len(parsed) == 0 {
		return models.Reply{}, false
	}
	explicit := anchorPattern.MatchString(matching.ReplaceQuantityWords(text))

	items := make([]models.ActionItem, 0, len(parsed))
	for _, p := range parsed {
		item := models.ActionItem{Name: p.Name}
		if match := f.matcher.Match(p.Name); isNamed(match) {
			item.ID, item.Name = match.Item.ID, match.Item.Name
		}
		if explicit {
			item.Quantity = p.Quantity
		}
		items = append(items, item)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return models.Reply{
		Text:   fmt.Sprintf("I'll remove %s from your cart.", strings.Join(names, " and ")),
		Action: models.Action{Kind: models.ActionRemove, Items: items},
	}, true
}

func (f *FallbackResponder) update(text, operation string, verb *regexp.Regexp) (models.Reply, bool) {
	quantity := matching.ExtractQuantity(text)
	rest := verb.ReplaceAllString(text, " ")
	rest = byQuantityPattern.ReplaceAllString(matching.ReplaceQuantityWords(rest), " ")

	parsed := f.parser.ParseItems(rest)
	if len(parsed) == 0 {
		return models.Reply{}, false
	}
	target := parsed[0].Name
	if match := f.matcher.Match(target); isNamed(match) {
		target = match.Item.Name
	}

	return models.Reply{
		Text:   fmt.Sprintf("I'll %s %s by %d. Let me update your cart.", operation, target, quantity),
		Action: models.Action{Kind: models.ActionUpdate, TargetItem: target, Operation: operation, Quantity: quantity},
	}, true
}

func clearCartReply() models.Reply {
	return models.Reply{
		Text:   "I'll clear your cart for you.",
		Action: models.Action{Kind: models.ActionClearCart},
	}
}

func emptyCartReply() models.Reply {
	return models.Reply{
		Text:   "Your cart is empty. Please add some items before placing an order.",
		Action: models.TextAction(),
	}
}

func isCartWord(s string) bool {
	switch strings.ToLower(s) {
	case "items", "item", "cart", "things", "stuff", "order":
		return true
	}
	return false
}

func pluralItems(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}
