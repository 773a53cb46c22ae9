// Package gateway talks to the AI chatbot service and normalizes its replies.
package gateway

import (
	"encoding/json"
	"errors"

	"bellavista/internal/models"
)

// ErrUnavailable signals that the AI service could not produce a reply for this turn.
var ErrUnavailable = errors.New("ai service unavailable")

// Status is the connectivity of the AI service as seen by the health poller.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusRateLimited  Status = "rate_limited"
	StatusDisconnected Status = "disconnected"
	StatusChecking     Status = "checking"
)

// Request is one chat turn sent to the service.
type Request struct {
	Message      string
	SessionID    string
	Cart         models.CartSnapshot
	Mood         *models.Mood
	EmpathyLevel string
}

// CartItem is a cart line in the chat request.
type CartItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message      string       `json:"message"`
	SessionID    string       `json:"session_id"`
	CartItems    []CartItem   `json:"cart_items"`
	UserMood     *models.Mood `json:"user_mood,omitempty"`
	EmpathyLevel string       `json:"empathy_level,omitempty"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Success        bool            `json:"success"`
	Response       string          `json:"response"`
	ActionData     json.RawMessage `json:"action_data,omitempty"`
	EmotionalState *models.Mood    `json:"emotional_state,omitempty"`
	FallbackMode   bool            `json:"fallback_mode,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// ClearSessionRequest is the POST /clear_session body.
type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ClearSessionResponse is the POST /clear_session reply.
type ClearSessionResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status    string `json:"status,omitempty"`
	AIStatus  string `json:"ai_status"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewChatRequest converts a turn into its wire form.
func NewChatRequest(req Request) ChatRequest {
	items := make([]CartItem, 0, len(req.Cart.Lines))
	for _, line := range req.Cart.Lines {
		items = append(items, CartItem{
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Price,
			Total:    line.TotalPrice,
		})
	}
	return ChatRequest{
		Message:      req.Message,
		SessionID:    req.SessionID,
		CartItems:    items,
		UserMood:     req.Mood,
		EmpathyLevel: req.EmpathyLevel,
	}
}
