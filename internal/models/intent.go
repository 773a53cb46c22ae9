package models

// Item actions a parsed utterance may carry
const (
	ItemActionAdd      = "add"
	ItemActionRemove   = "remove"
	ItemActionIncrease = "increase"
	ItemActionDecrease = "decrease"
)

// ParsedItem is a (quantity, name) pair found in an utterance, not yet resolved.
type ParsedItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Action   string `json:"action,omitempty"`
}
