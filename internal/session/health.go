package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bellavista/internal/gateway"
)

// DefaultHealthInterval is how often the AI service health is polled.
const DefaultHealthInterval = 30 * time.Second

// HealthMonitor polls the AI service and keeps the last known status.
type HealthMonitor struct {
	service  gateway.Service
	interval time.Duration
	onChange func(gateway.Status)
	logger   *zap.Logger

	mu        sync.RWMutex
	status    gateway.Status
	checkedAt time.Time
}

// NewHealthMonitor creates a monitor in the checking state. onChange may be nil.
func NewHealthMonitor(service gateway.Service, interval time.Duration, onChange func(gateway.Status), logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		service:  service,
		interval: interval,
		onChange: onChange,
		logger:   logger,
		status:   gateway.StatusChecking,
	}
}

// Run checks immediately and then on every tick until ctx is done.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check polls the service once and returns the new status.
func (h *HealthMonitor) Check(ctx context.Context) gateway.Status {
	status, err := h.service.Health(ctx)
	if err != nil {
		h.logger.Debug("ai health check failed", zap.Error(err))
		status = gateway.StatusDisconnected
	}

	h.mu.Lock()
	changed := status != h.status
	h.status = status
	h.checkedAt = time.Now()
	h.mu.Unlock()

	if changed {
		h.logger.Info("ai service status changed", zap.String("status", string(status)))
		if h.onChange != nil {
			h.onChange(status)
		}
	}
	return status
}

// Status returns the last known status and when it was checked.
func (h *HealthMonitor) Status() (gateway.Status, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status, h.checkedAt
}
