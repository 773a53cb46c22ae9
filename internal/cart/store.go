// Package cart owns cart state and applies structured actions to it.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"bellavista/internal/models"
)

var (
	// ErrInvalidQuantity is returned when a line would be added with a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrLineNotFound is returned when a cart line id does not exist.
	ErrLineNotFound = errors.New("cart line not found")
)

// Store is the cart collaborator. Implementations must be safe for concurrent use.
type Store interface {
	// Add increments the line with item.ID or creates it.
	Add(item models.CartLine, quantity int) (models.CartLine, error)
	// Remove deletes a line. Removing a missing line is a no-op.
	Remove(id string) bool
	// SetQuantity replaces a line's quantity; zero or less removes the line.
	SetQuantity(id string, quantity int) (models.CartLine, error)
	Clear()
	// Drain returns the current contents and empties the cart in one step.
	Drain() models.CartSnapshot
	Lines() []models.CartLine
	Snapshot() models.CartSnapshot
	Get(id string) (models.CartLine, bool)
}

// MemoryStore keeps cart lines in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	lines []models.CartLine
}

// NewMemoryStore creates an empty cart.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add increments the line with item.ID or appends a new one.
func (s *MemoryStore) Add(item models.CartLine, quantity int) (models.CartLine, error) {
	if quantity <= 0 {
		return models.CartLine{}, fmt.Errorf("add %q: %w", item.ID, ErrInvalidQuantity)
	}
	if item.ID == "" {
		return models.CartLine{}, fmt.Errorf("add %q: cart line id is required", item.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(item.ID); i >= 0 {
		s.lines[i].Quantity += quantity
		s.lines[i].Recompute()
		return s.lines[i], nil
	}

	line := models.CartLine{
		ID:       item.ID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: quantity,
		Custom:   item.Custom,
	}
	line.Recompute()
	s.lines = append(s.lines, line)
	return line, nil
}

// Remove deletes the line with id.
func (s *MemoryStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return true
}

// SetQuantity sets the quantity of a line. A quantity of zero or less removes it and
// returns the removed line with Quantity 0.
func (s *MemoryStore) SetQuantity(id string, quantity int) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return models.CartLine{}, fmt.Errorf("set quantity of %q: %w", id, ErrLineNotFound)
	}
	if quantity <= 0 {
		removed := s.lines[i]
		removed.Quantity = 0
		removed.Recompute()
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
		return removed, nil
	}
	s.lines[i].Quantity = quantity
	s.lines[i].Recompute()
	return s.lines[i], nil
}

// Clear empties the cart.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Drain snapshots and empties the cart under one lock.
func (s *MemoryStore) Drain() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.lines
	s.lines = nil
	return models.NewCartSnapshot(lines)
}

// Lines returns a copy of the cart lines.
func (s *MemoryStore) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Snapshot returns the lines with their totals.
func (s *MemoryStore) Snapshot() models.CartSnapshot {
	return models.NewCartSnapshot(s.Lines())
}

// Get returns the line with id.
func (s *MemoryStore) Get(id string) (models.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.lines[i], true
	}
	return models.CartLine{}, false
}

func (s *MemoryStore) index(id string) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

// Registry maps session ids to carts. A cart outlives the conversation that filled it.
type Registry struct {
	mu    sync.RWMutex
	carts map[string]Store
	newFn func() Store
}

// NewRegistry creates a registry that makes MemoryStore carts.
func NewRegistry() *Registry {
	return &Registry{
		carts: make(map[string]Store),
		newFn: func() Store { return NewMemoryStore() },
	}
}

// Get returns the cart for a session, creating it on first use.
func (r *Registry) Get(sessionID string) Store {
	r.mu.RLock()
	store, ok := r.carts[sessionID]
	r.mu.RUnlock()
	if ok {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.carts[sessionID]; ok {
		return store
	}
	store = r.newFn()
	r.carts[sessionID] = store
	return store
}

// Lookup returns the cart for a session without creating one.
func (r *Registry) Lookup(sessionID string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.carts[sessionID]
	return store, ok
}

// Delete drops a session's cart.
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
}

// Len returns the number of carts held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
