package models

import "time"

// Emotion values detected on user text
const (
	EmotionPositive = "positive"
	EmotionNegative = "negative"
	EmotionNeutral  = "neutral"
)

// Intensity values for a detected emotion
const (
	IntensityLow    = "low"
	IntensityMedium = "medium"
	IntensityHigh   = "high"
)

// Empathy levels influencing response tone
const (
	EmpathyStandard = "standard"
	EmpathyHigh     = "high"
)

// Mood is the outcome of keyword sentiment detection.
type Mood struct {
	Emotion   string `json:"emotion"`
	Intensity string `json:"intensity"`
}

// BulkQuantityMode multiplies every selection by Quantity until it is exited.
type BulkQuantityMode struct {
	Quantity int    `json:"quantity"`
	ItemType string `json:"itemType,omitempty"`
	Category string `json:"category,omitempty"`
}

// MultiCategoryMode walks Categories in order, one bulk step each.
type MultiCategoryMode struct {
	Categories   []CategoryQuantity `json:"categories"`
	CurrentIndex int                `json:"currentIndex"`
}

// Current returns the active step, false once every category is done.
func (m *MultiCategoryMode) Current() (CategoryQuantity, bool) {
	if m == nil || m.CurrentIndex < 0 || m.CurrentIndex >= len(m.Categories) {
		return CategoryQuantity{}, false
	}
	return m.Categories[m.CurrentIndex], true
}

// ConversationState is the per-session conversational state.
type ConversationState struct {
	BulkQuantity        *BulkQuantityMode  `json:"bulkQuantityMode,omitempty"`
	MultiCategory       *MultiCategoryMode `json:"multiCategoryBulkMode,omitempty"`
	UserMood            *Mood              `json:"userMood,omitempty"`
	EmpathyLevel        string             `json:"empathyLevel"`
	AskedForAddons      bool               `json:"askedForAddons"`
	AwaitingAddonAnswer bool               `json:"awaitingAddonAnswer"`
}

// NewConversationState returns the state of a fresh session.
func NewConversationState() ConversationState {
	return ConversationState{EmpathyLevel: EmpathyStandard}
}

// Clone returns a deep copy safe to hand out of a lock.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.BulkQuantity != nil {
		b := *s.BulkQuantity
		out.BulkQuantity = &b
	}
	if s.MultiCategory != nil {
		m := *s.MultiCategory
		m.Categories = append([]CategoryQuantity(nil), s.MultiCategory.Categories...)
		out.MultiCategory = &m
	}
	if s.UserMood != nil {
		mood := *s.UserMood
		out.UserMood = &mood
	}
	return out
}

// Message authors
const (
	MessageFromUser      = "user"
	MessageFromAssistant = "assistant"
)

// MessageType selects how a chat message is rendered.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageMenu         MessageType = "menu"
	MessageCategory     MessageType = "category"
	MessageCart         MessageType = "cart"
	MessageReceipt      MessageType = "receipt"
	MessageCartConfirm  MessageType = "cart_confirm"
	MessageAddons       MessageType = "addons"
	MessageAlternatives MessageType = "alternatives"
	MessageBulkMenu     MessageType = "bulk_menu"
	MessageMultiBulk    MessageType = "multi_bulk"
)

// ChatMessage is one entry of the append-only transcript.
type ChatMessage struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	Payload     interface{} `json:"payload,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Turn        uint64      `json:"turn"`
}

// CategoryPayload is attached to category and bulk menu messages.
type CategoryPayload struct {
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
	Quantity int        `json:"quantity,omitempty"`
}

// MenuPayload is attached to menu messages.
type MenuPayload struct {
	Categories []CategoryItems `json:"categories"`
}

// AlternativesPayload is attached when a requested item is unavailable.
type AlternativesPayload struct {
	Requested    string     `json:"requested"`
	Alternatives []MenuItem `json:"alternatives"`
}

// MultiBulkPayload describes the active step of a multi-category order.
type MultiBulkPayload struct {
	Categories   []CategoryQuantity `json:"categories"`
	CurrentIndex int                `json:"currentIndex"`
	Items        []MenuItem         `json:"items"`
}
