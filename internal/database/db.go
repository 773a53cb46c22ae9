// Package database keeps the receipt ledger of placed orders.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"bellavista/internal/models"
)

// MemoryDSN keeps the ledger in process memory.
const MemoryDSN = ":memory:"

// ErrOrderNotFound is returned when no receipt has the requested order number.
var ErrOrderNotFound = errors.New("order not found")

// Ledger stores receipts in SQLite.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to dsn and migrates the receipt tables.
func Open(dsn string, logger *zap.Logger) (*Ledger, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// every connection to :memory: is its own database
	db.DB().SetMaxOpenConns(1)
	db.LogMode(false)

	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return &Ledger{db: db, logger: logger}, nil
}

// RecordOrder stores a receipt. The caller's order is not modified.
func (l *Ledger) RecordOrder(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := *order
	rec.Items = make([]models.OrderItem, len(order.Items))
	copy(rec.Items, order.Items)

	if err := l.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record order %s: %w", order.OrderNumber, err)
	}
	l.logger.Info("order recorded",
		zap.String("order", rec.OrderNumber),
		zap.String("session", rec.SessionID),
		zap.Float64("total", rec.Total))
	return nil
}

// GetOrder returns the receipt with the given order number.
func (l *Ledger) GetOrder(ctx context.Context, number string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var order models.Order
	err := l.db.Preload("Items").Where("order_number = ?", number).First(&order).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", number, err)
	}
	return &order, nil
}

// SessionOrders returns the receipts of a session, oldest first.
func (l *Ledger) SessionOrders(ctx context.Context, sessionID string) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := l.db.Preload("Items").Where("session_id = ?", sessionID).Order("id").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders of session %s: %w", sessionID, err)
	}
	return orders, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
