package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hl_gateway/internal/domain"
)

var _ domain.AgentRepository = (*Storage)(nil)

// Storage is the SQLite-backed agent registry
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (and migrates) the database at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.AgentRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordAgent stores a new agent and marks the owner's earlier agents on
// the same network as superseded. Superseded agents stay approved on the
// exchange; the registry only makes them visible.
func (s *Storage) RecordAgent(ctx context.Context, rec domain.AgentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.AgentRecord{}).
			Where("network = ? AND owner = ? AND address <> ? AND superseded_at IS NULL", rec.Network, rec.Owner, rec.Address).
			Update("superseded_at", rec.CreatedAt).Error
		if err != nil {
			return err
		}
		return tx.Save(&rec).Error
	})
}

// ListAgents returns the agents of a network, newest first
func (s *Storage) ListAgents(ctx context.Context, network string) ([]domain.AgentRecord, error) {
	var recs []domain.AgentRecord
	err := s.db.WithContext(ctx).
		Where("network = ?", network).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}

// LatestAgent returns the active agent of a network, or nil if none
func (s *Storage) LatestAgent(ctx context.Context, network string) (*domain.AgentRecord, error) {
	var rec domain.AgentRecord
	err := s.db.WithContext(ctx).
		Where("network = ? AND superseded_at IS NULL", network).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
