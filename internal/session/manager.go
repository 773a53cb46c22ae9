package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"bellavista/internal/cart"
	"bellavista/internal/gateway"
	"bellavista/internal/idgen"
	"bellavista/internal/intent"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

// ErrSessionNotFound is returned when a session id is not active.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the active session controllers. Carts live in a Registry keyed by session id
// and outlive the controller that used them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Controller

	carts       *cart.Registry
	catalog     *models.Catalog
	parser      *intent.Parser
	fallback    intent.Responder
	service     gateway.Service
	recorders   []cart.Recorder
	settings    cart.Settings
	recognizer  func(id string) Recognizer
	synthesizer func(id string) Synthesizer
	observer    Observer
	actions     func(kind models.ActionKind, changed bool)
	delayScale  float64
	logger      *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithService sets the AI service; without one every turn is answered by the fallback.
func WithService(s gateway.Service) ManagerOption {
	return func(m *Manager) { m.service = s }
}

// WithRecorders sets the order recorders shared by every session.
func WithRecorders(r ...cart.Recorder) ManagerOption {
	return func(m *Manager) { m.recorders = append(m.recorders, r...) }
}

// WithSettings overrides the cart pricing settings.
func WithSettings(s cart.Settings) ManagerOption {
	return func(m *Manager) { m.settings = s }
}

// WithObserver sets the turn observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithActionObserver is called for every action applied to a cart.
func WithActionObserver(fn func(kind models.ActionKind, changed bool)) ManagerOption {
	return func(m *Manager) { m.actions = fn }
}

// WithVoice sets factories for per-session speech capabilities.
func WithVoice(rec func(id string) Recognizer, syn func(id string) Synthesizer) ManagerOption {
	return func(m *Manager) {
		m.recognizer = rec
		m.synthesizer = syn
	}
}

// WithDelayScale multiplies assistant response delays. 0 disables them.
func WithDelayScale(scale float64) ManagerOption {
	return func(m *Manager) { m.delayScale = scale }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager over catalog and parser.
func NewManager(catalog *models.Catalog, parser *intent.Parser, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Controller),
		carts:      cart.NewRegistry(),
		catalog:    catalog,
		parser:     parser,
		settings:   cart.DefaultSettings(),
		delayScale: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.fallback = intent.NewFallbackResponder(parser)
	return m
}

// Start opens a session with a fresh id.
func (m *Manager) Start() *Controller {
	c, _ := m.StartWithID(idgen.NewID())
	return c
}

// StartWithID returns the session with id, creating it when needed. The bool is true when
// the session was created.
func (m *Manager) StartWithID(id string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[id]; ok {
		return c, false
	}

	applierOpts := []cart.ApplierOption{
		cart.WithSession(id),
		cart.WithSettings(m.settings),
		cart.WithRecorders(m.recorders...),
		cart.WithLogger(m.logger),
	}
	if m.actions != nil {
		applierOpts = append(applierOpts, cart.WithActionObserver(m.actions))
	}

	deps := Deps{
		Service:    m.service,
		Fallback:   m.fallback,
		Parser:     m.parser,
		Catalog:    m.catalog,
		Applier:    cart.NewApplier(m.carts.Get(id), m.catalog, m.parser.Matcher(), applierOpts...),
		Observer:   m.observer,
		DelayScale: m.delayScale,
		Logger:     m.logger,
	}
	if m.recognizer != nil {
		deps.Recognizer = m.recognizer(id)
	}
	if m.synthesizer != nil {
		deps.Synthesizer = m.synthesizer(id)
	}

	c := NewController(id, deps)
	m.sessions[id] = c
	m.logger.Info("session started", zap.String("session", id))
	return c, true
}

// Get returns an active session.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// End closes a session. Its cart is kept.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	m.logger.Info("session ended", zap.String("session", id))
	return nil
}

// Cart returns the cart of a session, active or ended.
func (m *Manager) Cart(id string) (cart.Store, bool) {
	return m.carts.Lookup(id)
}

// Catalog returns the menu.
func (m *Manager) Catalog() *models.Catalog {
	return m.catalog
}

// Matcher returns the menu matcher shared by the sessions.
func (m *Manager) Matcher() *matching.Matcher {
	return m.parser.Matcher()
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}
