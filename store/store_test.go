package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ecoaudit/scanner/interceptor"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: NewGormLogger().LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := New(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(url string, total int64) interceptor.Result {
	return interceptor.Result{
		URL:        url,
		TotalBytes: total,
		Resources: interceptor.Breakdown{
			Image:  total / 2,
			Script: total - total/2,
		},
		ResourceCount:   4,
		UnresolvedCount: 1,
		AbandonedCount:  2,
		Settled:         true,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := NewRecord(sampleResult("https://example.com", 2848))
	require.NoError(t, s.Save(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleResult("https://example.com", 2848), got.Result())
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, url := range []string{"https://a.example", "https://b.example", "https://a.example"} {
		rec := NewRecord(sampleResult(url, int64(100*(i+1))))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, rec))
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 300, all[0].TotalBytes)
	assert.EqualValues(t, 100, all[2].TotalBytes)

	onlyA, err := s.List(ctx, "https://a.example", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, r := range onlyA {
		assert.Equal(t, "https://a.example", r.URL)
	}

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNewRecord_AssignsUniqueIDs(t *testing.T) {
	a := NewRecord(sampleResult("https://example.com", 1))
	b := NewRecord(sampleResult("https://example.com", 1))
	assert.NotEqual(t, a.ID, b.ID)
}
