package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Summary is the compact persisted record of one completed backtest run.
type Summary struct {
	ID           uint   `gorm:"primaryKey"`
	Strategy     string `gorm:"index"`
	Symbol       string
	Timeframe    string
	StartBalance float64
	EndBalance   float64
	Sharpe       float64
	MaxDrawdown  float64
	CreatedAt    time.Time
}

// Persistence stores run summaries. Saving is best-effort from the
// backtester's point of view: failures are logged by the caller, never
// fatal to the run.
type Persistence interface {
	SaveSummary(ctx context.Context, summary *Summary) error
}

// NullPersistence discards summaries.
type NullPersistence struct{}

func (NullPersistence) SaveSummary(context.Context, *Summary) error { return nil }

// SQLPersistence stores summaries in a SQL database via GORM. The dialector
// is injected by the caller.
type SQLPersistence struct {
	db *gorm.DB
}

func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLPersistence, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Summary{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLPersistence{db: db}, nil
}

// SaveSummary implements Persistence.
func (s *SQLPersistence) SaveSummary(ctx context.Context, summary *Summary) error {
	result := s.db.WithContext(ctx).Create(summary)
	if result.Error != nil {
		return fmt.Errorf("failed to save summary: %w", result.Error)
	}
	return nil
}
