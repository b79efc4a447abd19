package history

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"suntheme/internal/mode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 6, 30, 0, 0, time.UTC)
	first := NewEntry(mode.Light, SourceScheduler, base)
	second := NewEntry(mode.Dark, SourceScheduler, base.Add(12*time.Hour+15*time.Minute))
	third := NewEntry(mode.Light, SourceToggle, base.Add(12*time.Hour+15*time.Minute+500*time.Millisecond))

	for _, e := range []Entry{first, second, third} {
		require.NoError(t, store.Record(ctx, e))
	}

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, third, entries[0])
	assert.Equal(t, second, entries[1])
	assert.Equal(t, first, entries[2])
}

func TestStore_RecentLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		m := mode.Light
		if i%2 == 1 {
			m = mode.Dark
		}
		require.NoError(t, store.Record(ctx, NewEntry(m, SourceScheduler, base.Add(time.Duration(i)*time.Hour))))
	}

	entries, err := store.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, base.Add(29*time.Hour), entries[0].AppliedAt)

	entries, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, defaultLimit)
}

func TestStore_RecordAssignsID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Entry{Mode: mode.Dark, Source: SourceSet, AppliedAt: time.Now()}))

	entries, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, SourceSet, entries[0].Source)
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, NewEntry(mode.Light, SourceScheduler, time.Now())))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_RecentClampsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxLimit+5; i++ {
		require.NoError(t, store.Record(ctx, NewEntry(mode.Light, SourceScheduler, base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := store.Recent(ctx, 1_000_000_000)
	require.NoError(t, err)
	assert.Len(t, entries, MaxLimit)
	assert.Equal(t, base.Add(time.Duration(MaxLimit+4)*time.Second), entries[0].AppliedAt)
}

func TestStore_RecentHugeLimitOnEmptyTable(t *testing.T) {
	store := openTestStore(t)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	entries, err := store.Recent(context.Background(), 1_000_000_000)
	require.NoError(t, err)
	assert.Empty(t, entries)

	runtime.ReadMemStats(&after)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20))
}
