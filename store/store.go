// Package store persists scan history in SQLite through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoaudit/scanner/interceptor"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a scan record does not exist.
var ErrNotFound = errors.New("store: scan not found")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ScanRecord is one finished scan.
type ScanRecord struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	URL             string    `gorm:"index;not null"`
	TotalBytes      int64     `gorm:"not null"`
	ImageBytes      int64     `gorm:"not null"`
	ScriptBytes     int64     `gorm:"not null"`
	StylesheetBytes int64     `gorm:"not null"`
	OtherBytes      int64     `gorm:"not null"`
	ResourceCount   int64     `gorm:"not null"`
	UnresolvedCount int64     `gorm:"not null"`
	AbandonedCount  int64     `gorm:"not null;default:0"`
	Settled         bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index"`
}

// TableName keeps the table name stable across struct renames.
func (ScanRecord) TableName() string { return "scan_results" }

// NewRecord builds a record from a finalized scan.
func NewRecord(r interceptor.Result) *ScanRecord {
	return &ScanRecord{
		ID:              uuid.NewString(),
		URL:             r.URL,
		TotalBytes:      r.TotalBytes,
		ImageBytes:      r.Resources.Image,
		ScriptBytes:     r.Resources.Script,
		StylesheetBytes: r.Resources.Stylesheet,
		OtherBytes:      r.Resources.Other,
		ResourceCount:   r.ResourceCount,
		UnresolvedCount: r.UnresolvedCount,
		AbandonedCount:  r.AbandonedCount,
		Settled:         r.Settled,
	}
}

// Result converts the record back into a scan snapshot.
func (r *ScanRecord) Result() interceptor.Result {
	return interceptor.Result{
		URL:        r.URL,
		TotalBytes: r.TotalBytes,
		Resources: interceptor.Breakdown{
			Image:      r.ImageBytes,
			Script:     r.ScriptBytes,
			Stylesheet: r.StylesheetBytes,
			Other:      r.OtherBytes,
		},
		ResourceCount:   r.ResourceCount,
		UnresolvedCount: r.UnresolvedCount,
		AbandonedCount:  r.AbandonedCount,
		Settled:         r.Settled,
	}
}

// Store is the scan history repository. It is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at dsn and migrates
// the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ScanRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Save inserts rec. An empty ID is filled in.
func (s *Store) Save(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("store: save scan: %w", err)
	}
	return nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*ScanRecord, error) {
	var rec ScanRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get scan: %w", err)
	}
	return &rec, nil
}

// List returns the newest records first, optionally filtered by exact URL.
// limit is clamped to [1, 100]; 0 means the default of 20.
func (s *Store) List(ctx context.Context, url string, limit int) ([]ScanRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if url != "" {
		q = q.Where("url = ?", url)
	}

	var recs []ScanRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list scans: %w", err)
	}
	return recs, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
