// Package history records which source clips have already been processed so
// repeated SD card imports can skip them.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smazurov/dropzone/internal/cache"
	"github.com/smazurov/dropzone/internal/logging"
)

// Status is the processing outcome of a clip.
type Status string

// Record statuses.
const (
	StatusProcessed Status = "processed"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
)

// Done reports whether a clip with this status can be skipped on import.
func (s Status) Done() bool {
	return s == StatusProcessed || s == StatusUploaded
}

// Record is one processed clip, keyed by its identity.
type Record struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Name        string    `gorm:"uniqueIndex:idx_identity;not null" json:"name"`
	Size        int64     `gorm:"uniqueIndex:idx_identity;not null" json:"size"`
	Status      Status    `gorm:"index;not null" json:"status"`
	Source      string    `json:"source,omitempty"`
	Message     string    `json:"message,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName implements gorm's tabler.
func (Record) TableName() string {
	return "processed_clips"
}

// Identity returns the cache identity of the record.
func (r Record) Identity() cache.Identity {
	return cache.Identity{Name: r.Name, Size: r.Size}
}

// Store is a sqlite-backed processed-files history.
type Store struct {
	db     *gorm.DB
	logger logging.Logger
	now    func() time.Time
}

var gormConfig = &gorm.Config{
	Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	SkipDefaultTransaction: true,
}

// DefaultPath returns <user config dir>/dropzone/history.db.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dropzone", "history.db")
}

// Open opens (creating if needed) the history database at path. The path
// ":memory:" gives a private in-memory database.
func Open(path string, logger logging.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return New(db, logger)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, logger logging.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsProcessed reports whether id was processed or uploaded before.
func (s *Store) IsProcessed(ctx context.Context, id cache.Identity) (bool, error) {
	rec, ok, err := s.Status(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	return rec.Status.Done(), nil
}

// MarkProcessed records the outcome for id, replacing any earlier record.
func (s *Store) MarkProcessed(ctx context.Context, id cache.Identity, status Status, source, message string) error {
	rec := Record{
		Name:        id.Name,
		Size:        id.Size,
		Status:      status,
		Source:      source,
		Message:     message,
		ProcessedAt: s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "size"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "source", "message", "processed_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	s.logger.Debug("History updated", "identity", id.String(), "status", status)
	return nil
}

// Status returns the record for id.
func (s *Store) Status(ctx context.Context, id cache.Identity) (Record, bool, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("name = ? AND size = ?", id.Name, id.Size).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns the most recently processed records, newest first. A
// non-positive limit returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	var recs []Record
	q := s.db.WithContext(ctx).Order("processed_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return recs, nil
}

// Forget deletes the record for id. It reports whether one existed.
func (s *Store) Forget(ctx context.Context, id cache.Identity) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("name = ? AND size = ?", id.Name, id.Size).
		Delete(&Record{})
	if res.Error != nil {
		return false, fmt.Errorf("forget %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Pending filters ids down to those not yet processed, keeping order.
func (s *Store) Pending(ctx context.Context, ids []cache.Identity) ([]cache.Identity, error) {
	out := make([]cache.Identity, 0, len(ids))
	for _, id := range ids {
		done, err := s.IsProcessed(ctx, id)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, id)
		}
	}
	return out, nil
}
