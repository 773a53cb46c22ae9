package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind tags the variant carried by an Action.
type ActionKind string

const (
	ActionAdd                ActionKind = "add"
	ActionAddMultiple        ActionKind = "add_multiple"
	ActionAddMultiplePartial ActionKind = "add_multiple_partial"
	ActionItemNotFound       ActionKind = "item_not_found"
	ActionRemove             ActionKind = "remove"
	ActionRemoveAll          ActionKind = "remove_all"
	ActionUpdate             ActionKind = "update"
	ActionShowMenu           ActionKind = "show_menu"
	ActionShowCategory       ActionKind = "show_category"
	ActionShowCart           ActionKind = "show_cart"
	ActionClearCart          ActionKind = "clear_cart"
	ActionClearChat          ActionKind = "clear_chat"
	ActionCheckout           ActionKind = "checkout"
	ActionPlaceOrder         ActionKind = "place_order"
	ActionBulkQuantity       ActionKind = "bulk_quantity"
	ActionBulkMenu           ActionKind = "bulk_menu"
	ActionMultiCategoryBulk  ActionKind = "multi_category_bulk"
	ActionAskAddons          ActionKind = "ask_addons"
	ActionConfirmAddons      ActionKind = "confirm_addons"
	ActionCancelAddons       ActionKind = "cancel_addons"
	ActionGreeting           ActionKind = "greeting"
	ActionUnknown            ActionKind = "unknown"

	// ActionText is a reply without any action.
	ActionText ActionKind = "text"
	// ActionUnrecognized is an action name the engine does not know; RawKind keeps it.
	ActionUnrecognized ActionKind = "unrecognized"
)

var recognizedKinds = map[ActionKind]bool{
	ActionAdd: true, ActionAddMultiple: true, ActionAddMultiplePartial: true, ActionItemNotFound: true,
	ActionRemove: true, ActionRemoveAll: true, ActionUpdate: true, ActionShowMenu: true,
	ActionShowCategory: true, ActionShowCart: true, ActionClearCart: true, ActionClearChat: true,
	ActionCheckout: true, ActionPlaceOrder: true, ActionBulkQuantity: true, ActionBulkMenu: true,
	ActionMultiCategoryBulk: true, ActionAskAddons: true, ActionConfirmAddons: true,
	ActionCancelAddons: true, ActionGreeting: true, ActionUnknown: true,
}

// ParseActionKind maps a wire action name onto a kind. Empty and "none" mean text.
func ParseActionKind(name string) ActionKind {
	k := ActionKind(strings.ToLower(strings.TrimSpace(name)))
	switch {
	case k == "" || k == "none" || k == ActionText:
		return ActionText
	case recognizedKinds[k]:
		return k
	default:
		return ActionUnrecognized
	}
}

// Update operations
const (
	OperationIncrease = "increase"
	OperationDecrease = "decrease"
)

// DefaultResponseDelay is the assistant message delay in milliseconds when none is given.
const DefaultResponseDelay = 1500

// ActionItem is an item reference inside an action.
type ActionItem struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// CategoryQuantity is one step of a multi-category order.
type CategoryQuantity struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// Action is the structured intent attached to an assistant reply.
// Only the fields relevant to Kind are populated.
type Action struct {
	Kind            ActionKind
	RawKind         string
	Items           []ActionItem
	TargetItem      string
	Operation       string
	Quantity        int
	Category        string
	ItemType        string
	BulkQuantity    int
	MultiCategories []CategoryQuantity
	NotFoundItems   []string
	OrderID         string
	OrderTotal      float64
	MessageType     string
	ResponseDelay   int
}

// TextAction returns an action that only displays text.
func TextAction() Action {
	return Action{Kind: ActionText}
}

// IsCartMutation reports whether the action changes the cart.
func (a Action) IsCartMutation() bool {
	switch a.Kind {
	case ActionAdd, ActionAddMultiple, ActionAddMultiplePartial, ActionRemove, ActionRemoveAll,
		ActionUpdate, ActionClearCart, ActionPlaceOrder:
		return true
	}
	return false
}

// IsAdd reports whether the action is one of the add variants.
func (a Action) IsAdd() bool {
	return a.Kind == ActionAdd || a.Kind == ActionAddMultiple || a.Kind == ActionAddMultiplePartial
}

// Delay returns the response delay, falling back to DefaultResponseDelay.
func (a Action) Delay() int {
	if a.ResponseDelay > 0 {
		return a.ResponseDelay
	}
	return DefaultResponseDelay
}

// Name returns the wire name of the action.
func (a Action) Name() string {
	if a.Kind == ActionUnrecognized && a.RawKind != "" {
		return a.RawKind
	}
	return string(a.Kind)
}

type actionWire struct {
	Action          string             `json:"action"`
	Items           []json.RawMessage  `json:"items,omitempty"`
	TargetItem      string             `json:"target_item,omitempty"`
	Target          string             `json:"target,omitempty"`
	Operation       string             `json:"operation,omitempty"`
	Quantity        flexInt            `json:"quantity,omitempty"`
	Category        string             `json:"category,omitempty"`
	ItemType        string             `json:"item_type,omitempty"`
	BulkQuantity    flexInt            `json:"bulk_quantity,omitempty"`
	MultiCategories []CategoryQuantity `json:"multi_categories,omitempty"`
	NotFoundItems   []string           `json:"not_found_items,omitempty"`
	OrderID         string             `json:"order_id,omitempty"`
	OrderTotal      float64            `json:"order_total,omitempty"`
	MessageType     string             `json:"message_type,omitempty"`
	ResponseDelay   flexInt            `json:"response_delay,omitempty"`
}

// UnmarshalJSON decodes the chatbot service wire format. Items may be objects or bare names.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("invalid action payload: %w", err)
	}

	*a = Action{
		Kind:            ParseActionKind(w.Action),
		TargetItem:      strings.TrimSpace(w.TargetItem),
		Operation:       strings.ToLower(strings.TrimSpace(w.Operation)),
		Quantity:        int(w.Quantity),
		Category:        strings.TrimSpace(w.Category),
		ItemType:        strings.TrimSpace(w.ItemType),
		BulkQuantity:    int(w.BulkQuantity),
		MultiCategories: w.MultiCategories,
		NotFoundItems:   w.NotFoundItems,
		OrderID:         w.OrderID,
		OrderTotal:      w.OrderTotal,
		MessageType:     w.MessageType,
		ResponseDelay:   int(w.ResponseDelay),
	}
	if a.Kind == ActionUnrecognized {
		a.RawKind = w.Action
	}
	if a.TargetItem == "" {
		a.TargetItem = strings.TrimSpace(w.Target)
	}

	for _, raw := range w.Items {
		item, ok := decodeActionItem(raw)
		if ok {
			a.Items = append(a.Items, item)
		}
	}
	return nil
}

// MarshalJSON encodes the action in the chatbot service wire format.
func (a Action) MarshalJSON() ([]byte, error) {
	w := actionWire{
		Action:          a.Name(),
		TargetItem:      a.TargetItem,
		Operation:       a.Operation,
		Quantity:        flexInt(a.Quantity),
		Category:        a.Category,
		ItemType:        a.ItemType,
		BulkQuantity:    flexInt(a.BulkQuantity),
		MultiCategories: a.MultiCategories,
		NotFoundItems:   a.NotFoundItems,
		OrderID:         a.OrderID,
		OrderTotal:      a.OrderTotal,
		MessageType:     a.MessageType,
		ResponseDelay:   flexInt(a.ResponseDelay),
	}
	for _, item := range a.Items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		w.Items = append(w.Items, raw)
	}
	return json.Marshal(w)
}

func decodeActionItem(raw json.RawMessage) (ActionItem, bool) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		name = strings.TrimSpace(name)
		return ActionItem{Name: name, Quantity: 1}, name != ""
	}

	var obj struct {
		ID       json.RawMessage `json:"id"`
		Name     string          `json:"name"`
		Quantity flexInt         `json:"quantity"`
		Price    float64         `json:"price"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ActionItem{}, false
	}
	item := ActionItem{
		ID:       flexString(obj.ID),
		Name:     strings.TrimSpace(obj.Name),
		Quantity: int(obj.Quantity),
		Price:    obj.Price,
	}
	return item, item.Name != "" || item.ID != ""
}

// flexInt accepts JSON numbers and numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*f = flexInt(v)
	}
	return nil
}

func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Reply is an assistant reply: display text plus the action to dispatch.
type Reply struct {
	Text     string `json:"response"`
	Action   Action `json:"action_data"`
	Emotion  *Mood  `json:"emotional_state,omitempty"`
	Fallback bool   `json:"fallback_mode,omitempty"`
}
