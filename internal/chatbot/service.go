// Package chatbot is the reference AI chatbot service consumed by the storefront gateway.
// It wraps an OpenAI-compatible chat model and answers with a keyword fallback when the
// model is missing or failing.
package chatbot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"bellavista/internal/config"
	"bellavista/internal/gateway"
	"bellavista/internal/intent"
	"bellavista/internal/models"
)

const (
	clearedMessage   = "Chat cleared! How can I help you today?"
	rateLimitPrefix  = "I'm currently experiencing high demand, but I can still help you! "
	rateLimitWindow  = time.Minute
	aiStatusReady    = "ready"
	aiStatusNoKey    = "api_key_required"
	aiStatusLimited  = "rate_limited"
	menuSourceConfig = "catalog"
)

// MenuInfo is the menu summary served on GET /menu and written into the system prompt.
type MenuInfo struct {
	Items       []string  `json:"items"`
	Categories  []string  `json:"categories"`
	Addons      []string  `json:"addons"`
	DataSource  string    `json:"data_source"`
	LastUpdated time.Time `json:"last_updated"`
}

// Server is the chatbot HTTP service.
type Server struct {
	Router *gin.Engine

	model    llms.Model
	catalog  *models.Catalog
	fallback intent.Responder
	settings config.ChatbotConfig
	logger   *zap.Logger
	now      func() time.Time

	mu            sync.Mutex
	histories     map[string][]llms.MessageContent
	menu          *MenuInfo
	rateLimitedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates the service. model may be nil, in which case every chat is answered by
// the fallback responder.
func NewServer(model llms.Model, catalog *models.Catalog, parser *intent.Parser, settings config.ChatbotConfig, opts ...Option) *Server {
	s := &Server{
		Router:    gin.Default(),
		model:     model,
		catalog:   catalog,
		fallback:  intent.NewFallbackResponder(parser),
		settings:  settings,
		now:       time.Now,
		histories: make(map[string][]llms.MessageContent),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.Router.POST("/chat", s.Chat)
	s.Router.POST("/clear_session", s.ClearSession)
	s.Router.GET("/health", s.Health)
	s.Router.GET("/menu", s.Menu)
	s.Router.POST("/menu/refresh", s.RefreshMenu)
	return s
}

// Chat answers one user turn.
func (s *Server) Chat(c *gin.Context) {
	var req gateway.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gateway.ChatResponse{
			Response: "Invalid request data",
			Error:    err.Error(),
		})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	cart := cartSnapshot(req.CartItems)
	if s.model == nil {
		c.JSON(http.StatusOK, s.fallbackResponse(req, cart, false))
		return
	}

	history := s.appendUser(req.SessionID, req.Message+cartContext(req.CartItems))

	resp, err := s.model.GenerateContent(c.Request.Context(), history, s.callOptions()...)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = fmt.Errorf("empty response from chat model")
	}
	if err != nil {
		limited := IsRateLimit(err)
		if limited {
			s.mu.Lock()
			s.rateLimitedAt = s.now()
			s.mu.Unlock()
		}
		s.logger.Warn("chat model failed, using fallback",
			zap.String("session", req.SessionID),
			zap.Bool("rate_limited", limited),
			zap.Error(err))
		c.JSON(http.StatusOK, s.fallbackResponse(req, cart, limited))
		return
	}

	raw := resp.Choices[0].Content
	action, rest, found := gateway.ExtractAction(raw)
	text := CleanResponse(rest)
	if !found {
		action = s.fallback.Respond(req.Message, cart, req.EmpathyLevel).Action
	}
	s.appendAssistant(req.SessionID, text)

	data, err := json.Marshal(action)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gateway.ChatResponse{
			Response: "I'm sorry, I encountered an error. Please try again.",
			Error:    err.Error(),
		})
		return
	}

	mood := intent.DetectMood(req.Message)
	c.JSON(http.StatusOK, gateway.ChatResponse{
		Success:        true,
		Response:       text,
		ActionData:     data,
		EmotionalState: &mood,
	})
}

// ClearSession resets the history of a session to the system prompt.
func (s *Server) ClearSession(c *gin.Context) {
	var req gateway.ClearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request data"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	s.mu.Lock()
	delete(s.histories, req.SessionID)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gateway.ClearSessionResponse{Success: true, Message: clearedMessage})
}

// Health reports whether the chat model is configured and not rate limited.
func (s *Server) Health(c *gin.Context) {
	aiStatus, message := aiStatusReady, "AI service ready"
	s.mu.Lock()
	limited := !s.rateLimitedAt.IsZero() && s.now().Sub(s.rateLimitedAt) < rateLimitWindow
	s.mu.Unlock()

	switch {
	case s.model == nil:
		aiStatus, message = aiStatusNoKey, "Please configure an API token"
	case limited:
		aiStatus, message = aiStatusLimited, "Chat model is rate limited, fallback responses in use"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"service":            "chatbot",
		"ai_status":          aiStatus,
		"model":              s.Describe(),
		"message":            message,
		"fallback_available": true,
		"timestamp":          s.now().UTC().Format(time.RFC3339),
	})
}

// Menu serves the cached menu summary.
func (s *Server) Menu(c *gin.Context) {
	menu := s.menuInfo()
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"items":            menu.Items,
		"categories":       menu.Categories,
		"addons":           menu.Addons,
		"total_items":      len(menu.Items),
		"total_categories": len(menu.Categories),
		"data_source":      menu.DataSource,
		"last_updated":     menu.LastUpdated,
	})
}

// RefreshMenu drops the cached menu so the next read rebuilds it.
func (s *Server) RefreshMenu(c *gin.Context) {
	s.mu.Lock()
	s.menu = nil
	s.mu.Unlock()

	menu := s.menuInfo()
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Menu data refreshed successfully",
		"items_count":      len(menu.Items),
		"categories_count": len(menu.Categories),
	})
}

// Sessions returns the number of sessions holding history.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories)
}

func (s *Server) menuInfo() MenuInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.menu != nil && s.now().Sub(s.menu.LastUpdated) < s.settings.MenuCacheTTL {
		return *s.menu
	}

	menu := &MenuInfo{
		Categories:  s.catalog.Categories(),
		DataSource:  menuSourceConfig,
		LastUpdated: s.now(),
	}
	for _, item := range s.catalog.Items() {
		if !item.Available {
			continue
		}
		if item.IsAddon {
			menu.Addons = append(menu.Addons, item.Name)
		} else {
			menu.Items = append(menu.Items, item.Name)
		}
	}
	s.menu = menu
	return *menu
}

// appendUser adds a user message to the session history and returns a copy to send.
func (s *Server) appendUser(sessionID, text string) []llms.MessageContent {
	prompt := SystemPrompt(s.menuInfo())

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.histories[sessionID]
	if !ok {
		history = []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeSystem, prompt)}
	}
	history = append(history, llms.TextParts(schema.ChatMessageTypeHuman, text))
	s.histories[sessionID] = s.trim(history)

	out := make([]llms.MessageContent, len(s.histories[sessionID]))
	copy(out, s.histories[sessionID])
	return out
}

func (s *Server) appendAssistant(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.histories[sessionID]
	if !ok {
		return
	}
	s.histories[sessionID] = s.trim(append(history, llms.TextParts(schema.ChatMessageTypeAI, text)))
}

// trim keeps the system prompt plus the most recent HistoryLimit messages.
func (s *Server) trim(history []llms.MessageContent) []llms.MessageContent {
	limit := s.settings.HistoryLimit
	if limit <= 0 || len(history) <= limit+1 {
		return history
	}
	out := make([]llms.MessageContent, 0, limit+1)
	out = append(out, history[0])
	return append(out, history[len(history)-limit:]...)
}

func (s *Server) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(s.settings.Temperature)}
	if s.settings.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.settings.MaxTokens))
	}
	if s.settings.Model != "" {
		opts = append(opts, llms.WithModel(s.settings.Model))
	}
	return opts
}

func (s *Server) fallbackResponse(req gateway.ChatRequest, cart models.CartSnapshot, rateLimited bool) gateway.ChatResponse {
	reply := s.fallback.Respond(req.Message, cart, req.EmpathyLevel)
	if rateLimited && reply.Action.Kind == models.ActionText {
		reply.Text = rateLimitPrefix + reply.Text
	}
	data, _ := json.Marshal(reply.Action)
	mood := intent.DetectMood(req.Message)
	return gateway.ChatResponse{
		Success:        true,
		Response:       reply.Text,
		ActionData:     data,
		EmotionalState: &mood,
		FallbackMode:   true,
	}
}

func cartSnapshot(items []gateway.CartItem) models.CartSnapshot {
	lines := make([]models.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.CartLine{
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   item.Quantity,
			TotalPrice: item.Total,
		})
	}
	return models.NewCartSnapshot(lines)
}

func cartContext(items []gateway.CartItem) string {
	if len(items) == 0 {
		return "\nCart is empty."
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return "\nCurrent cart: " + string(data)
}

// Describe returns the configured model, or the raw id when it is not a known one.
func (s *Server) Describe() ModelInfo {
	if info, ok := LookupModel(s.settings.Model); ok {
		return info
	}
	return ModelInfo{ID: s.settings.Model, Name: strings.TrimSpace(s.settings.Model)}
}
