package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "history.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := Record{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Serials:   []string{"A", "B"},
			Duration:  1.5,
			Success:   i != 1,
		}
		if i == 1 {
			rec.Error = "shutter jammed"
		}
		require.NoError(t, store.Append(rec))
	}

	records, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, base.Add(2*time.Minute), records[0].Timestamp)
	assert.True(t, records[0].Success)
	assert.Equal(t, base.Add(time.Minute), records[1].Timestamp)
	assert.False(t, records[1].Success)
	assert.Equal(t, "shutter jammed", records[1].Error)
	assert.Equal(t, []string{"A", "B"}, records[0].Serials)
}

func TestRecentEmptyStore(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
