// Package api serves the storefront HTTP API: chat sessions, carts, the menu and receipts.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bellavista/internal/cart"
	"bellavista/internal/database"
	"bellavista/internal/gateway"
	"bellavista/internal/models"
	"bellavista/internal/monitoring"
	"bellavista/internal/session"
)

// OrderLookup finds receipts by order number
type OrderLookup interface {
	GetOrder(ctx context.Context, number string) (*models.Order, error)
}

// StatusSource reports the last known AI service status
type StatusSource interface {
	Status() (gateway.Status, time.Time)
}

// Storefront represents the main API handler for the restaurant
type Storefront struct {
	Router   *gin.Engine
	sessions *session.Manager
	orders   OrderLookup
	health   StatusSource
	monitor  *monitoring.Monitor
	logger   *zap.Logger
}

// Option configures a Storefront
type Option func(*Storefront)

// WithOrders sets the receipt lookup behind GET /orders/:number
func WithOrders(o OrderLookup) Option {
	return func(s *Storefront) { s.orders = o }
}

// WithHealth sets the AI status source behind GET /assistant/status
func WithHealth(h StatusSource) Option {
	return func(s *Storefront) { s.health = h }
}

// WithMonitor sets the metrics monitor
func WithMonitor(m *monitoring.Monitor) Option {
	return func(s *Storefront) { s.monitor = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Storefront) { s.logger = l }
}

// NewStorefront creates a new storefront API instance
func NewStorefront(sessions *session.Manager, opts ...Option) *Storefront {
	s := &Storefront{
		Router:   gin.Default(),
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API endpoints
func (s *Storefront) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Bella Vista API is running"})
	})

	v1 := s.Router.Group("/api/v1")
	{
		// Chat sessions
		v1.POST("/sessions", s.StartSession)
		v1.DELETE("/sessions/:id", s.EndSession)
		v1.GET("/sessions/:id/messages", s.GetMessages)
		v1.POST("/sessions/:id/messages", s.PostMessage)
		v1.POST("/sessions/:id/clear", s.ClearChat)
		v1.GET("/sessions/:id/ws", s.StreamSession)

		// Manual cart operations
		v1.GET("/sessions/:id/cart", s.GetCart)
		v1.POST("/sessions/:id/cart/items", s.AddCartItem)
		v1.PUT("/sessions/:id/cart/items/:item", s.UpdateCartItem)
		v1.DELETE("/sessions/:id/cart/items/:item", s.RemoveCartItem)
		v1.DELETE("/sessions/:id/cart", s.ClearCart)

		// Menu
		v1.GET("/menu", s.GetMenu)
		v1.GET("/menu/categories", s.GetCategories)
		v1.GET("/menu/categories/:name", s.GetCategory)
		v1.GET("/menu/search", s.SearchMenu)

		// Receipts and status
		v1.GET("/orders/:number", s.GetOrder)
		v1.GET("/assistant/status", s.GetAssistantStatus)
	}
}

// Session handlers

func (s *Storefront) StartSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		ctrl    *session.Controller
		created = true
	)
	if id := strings.TrimSpace(req.SessionID); id != "" {
		ctrl, created = s.sessions.StartWithID(id)
	} else {
		ctrl = s.sessions.Start()
	}
	s.countSessions()

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"session_id": ctrl.ID(),
		"state":      ctrl.State(),
		"messages":   ctrl.Transcript(),
	})
}

func (s *Storefront) EndSession(c *gin.Context) {
	if err := s.sessions.End(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	s.countSessions()
	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

func (s *Storefront) GetMessages(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":     ctrl.Transcript(),
		"state":        ctrl.State(),
		"conversation": ctrl.Conversation(),
	})
}

// PostMessage runs a chat turn and answers with the messages it produced.
func (s *Storefront) PostMessage(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}

	var req struct {
		Text  string `json:"text" binding:"required"`
		Voice bool   `json:"voice"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be empty"})
		return
	}

	ctx := c.Request.Context()
	before := len(ctrl.Transcript())
	if err := ctrl.HandleInput(ctx, req.Text, req.Voice); err != nil {
		s.sessionError(c, err)
		return
	}
	if err := ctrl.Flush(ctx); err != nil {
		s.sessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": since(ctrl.Transcript(), before),
		"cart":     ctrl.Cart().Snapshot(),
		"state":    ctrl.State(),
	})
}

func (s *Storefront) ClearChat(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := ctrl.ClearChat(ctx); err != nil {
		s.sessionError(c, err)
		return
	}
	if err := ctrl.Flush(ctx); err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": ctrl.Transcript()})
}

// Cart handlers

func (s *Storefront) GetCart(c *gin.Context) {
	store, ok := s.sessions.Cart(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
		return
	}
	c.JSON(http.StatusOK, s.cartBody(store.Snapshot()))
}

func (s *Storefront) AddCartItem(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}

	var req struct {
		ID       string `json:"id" binding:"required"`
		Quantity int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, found := s.sessions.Catalog().ByID(req.ID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	if !item.Available {
		c.JSON(http.StatusConflict, gin.H{
			"error":        item.Name + " is currently unavailable",
			"alternatives": s.sessions.Catalog().Alternatives(item),
		})
		return
	}

	line := models.CartLine{ID: item.ID, Name: item.Name, Price: item.Price}
	if _, err := ctrl.Cart().Add(line, req.Quantity); err != nil {
		s.cartError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.cartBody(ctrl.Cart().Snapshot()))
}

func (s *Storefront) UpdateCartItem(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}

	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := ctrl.Cart().SetQuantity(c.Param("item"), *req.Quantity); err != nil {
		s.cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.cartBody(ctrl.Cart().Snapshot()))
}

func (s *Storefront) RemoveCartItem(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}
	if !ctrl.Cart().Remove(c.Param("item")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}
	c.JSON(http.StatusOK, s.cartBody(ctrl.Cart().Snapshot()))
}

func (s *Storefront) ClearCart(c *gin.Context) {
	ctrl, ok := s.session(c)
	if !ok {
		return
	}
	ctrl.Cart().Clear()
	c.JSON(http.StatusOK, s.cartBody(ctrl.Cart().Snapshot()))
}

// Menu handlers

func (s *Storefront) GetMenu(c *gin.Context) {
	catalog := s.sessions.Catalog()
	var categories []models.CategoryItems
	for _, name := range catalog.Categories() {
		categories = append(categories, models.CategoryItems{Category: name, Items: catalog.InCategory(name)})
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant": models.RestaurantName,
		"categories": categories,
		"addons":     catalog.Addons(),
	})
}

func (s *Storefront) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.sessions.Catalog().Categories()})
}

func (s *Storefront) GetCategory(c *gin.Context) {
	name := c.Param("name")
	catalog := s.sessions.Catalog()
	if !catalog.HasCategory(name) {
		resolved, ok := s.sessions.Matcher().Category(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		name = resolved
	}
	items := catalog.InCategory(name)
	if len(items) > 0 {
		name = items[0].Category
	}
	c.JSON(http.StatusOK, models.CategoryPayload{Category: name, Items: items})
}

func (s *Storefront) SearchMenu(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	match := s.sessions.Matcher().Match(q)
	if !match.Found() {
		c.JSON(http.StatusNotFound, gin.H{"error": "No menu item matches " + q})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":     match.Item,
		"strategy": match.Strategy.String(),
		"score":    match.Score,
	})
}

// Receipt and status handlers

func (s *Storefront) GetOrder(c *gin.Context) {
	if s.orders == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	order, err := s.orders.GetOrder(c.Request.Context(), c.Param("number"))
	if errors.Is(err, database.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Storefront) GetAssistantStatus(c *gin.Context) {
	body := gin.H{
		"status":          gateway.StatusDisconnected,
		"active_sessions": s.sessions.Len(),
	}
	if s.health != nil {
		status, checkedAt := s.health.Status()
		body["status"] = status
		if !checkedAt.IsZero() {
			body["checked_at"] = checkedAt
		}
	}
	if s.monitor != nil {
		body["metrics"] = s.monitor.GetMetrics()
	}
	c.JSON(http.StatusOK, body)
}

// Helpers

func (s *Storefront) session(c *gin.Context) (*session.Controller, bool) {
	ctrl, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return ctrl, true
}

func (s *Storefront) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	default:
		s.logger.Error("chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Storefront) cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Storefront) cartBody(snapshot models.CartSnapshot) gin.H {
	return gin.H{"cart": snapshot, "summary": snapshot.Summary()}
}

func (s *Storefront) countSessions() {
	if s.monitor != nil {
		s.monitor.SetSessions(s.sessions.Len())
	}
}

func since(msgs []models.ChatMessage, n int) []models.ChatMessage {
	if n > len(msgs) {
		return msgs
	}
	return msgs[n:]
}
