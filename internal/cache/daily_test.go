package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"suntheme/internal/clock"
	"suntheme/internal/suntimes"
	"suntheme/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOracle struct {
	calls   int
	err     error
	sunrise time.Time
	sunset  time.Time
	clock   clock.Clock
}

func (f *fakeOracle) Fetch(ctx context.Context, latitude, longitude float64) (suntimes.SunTimes, error) {
	f.calls++
	if f.err != nil {
		return suntimes.SunTimes{}, f.err
	}
	return suntimes.New(f.sunrise, f.sunset, suntimes.DateOf(f.clock.Now(), time.UTC))
}

func setupDaily(t *testing.T, now time.Time) (*Daily, *fakeOracle, *FileStore, *clock.MockClock) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	clk := clock.NewMockClock(now)
	oracle := &fakeOracle{
		sunrise: time.Date(now.Year(), now.Month(), now.Day(), 6, 30, 0, 0, time.UTC),
		sunset:  time.Date(now.Year(), now.Month(), now.Day(), 18, 45, 0, 0, time.UTC),
		clock:   clk,
	}
	store := NewFileStore(filepath.Join(t.TempDir(), "suntheme", "sun_times.json"))
	daily := NewDaily(store, oracle, clk, logger).WithLocation(time.UTC)
	return daily, oracle, store, clk
}

func TestDaily_SecondCallSameDayIsCached(t *testing.T) {
	daily, oracle, store, clk := setupDaily(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC))

	first, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.calls)

	clk.Advance(10 * time.Hour)
	second, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.calls, "second call on the same date must not hit the oracle")
	assert.Equal(t, first, second)

	entry, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), entry.FetchedAt)
	assert.Equal(t, suntimes.Date{Year: 2024, Month: time.March, Day: 15}, entry.SunTimes.Date)
}

func TestDaily_YesterdaysEntryIsNeverAHit(t *testing.T) {
	daily, oracle, store, clk := setupDaily(t, time.Date(2024, 3, 15, 23, 58, 0, 0, time.UTC))

	_, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 1, oracle.calls)

	// Five minutes later it is a new day.
	clk.Advance(5 * time.Minute)
	oracle.sunrise = oracle.sunrise.Add(24*time.Hour + time.Minute)
	oracle.sunset = oracle.sunset.Add(24*time.Hour - time.Minute)

	st, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls)
	assert.Equal(t, suntimes.Date{Year: 2024, Month: time.March, Day: 16}, st.Date)

	entry, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, st, entry.SunTimes, "new fetch overwrites the record")
}

func TestDaily_OracleFailureLeavesCacheUntouched(t *testing.T) {
	daily, oracle, store, clk := setupDaily(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	_, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	oracle.err = fmt.Errorf("%w: connection refused", suntimes.ErrNetwork)

	_, err = daily.GetOrFetch(context.Background(), 1, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, suntimes.ErrNetwork))

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// A stale record must not be served either.
	_, ok := daily.Cached()
	assert.False(t, ok)
}

func TestDaily_CorruptRecordIsAMiss(t *testing.T) {
	daily, oracle, store, _ := setupDaily(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)

	st, err := daily.GetOrFetch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, oracle.calls)

	entry, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, st, entry.SunTimes)
}

func TestDaily_InvalidTimesInRecordAreCorrupt(t *testing.T) {
	_, _, store, _ := setupDaily(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0755))
	record := `{"sun_times":{"sunrise":"2024-03-15T18:00:00Z","sunset":"2024-03-15T06:00:00Z","date":"2024-03-15"},"fetched_at":"2024-03-15T12:00:00Z"}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(record), 0644))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_MissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	entry, err := store.Load()
	assert.NoError(t, err)
	assert.Nil(t, entry)
}

func TestDaily_WithMockOracleServer(t *testing.T) {
	server := testutil.NewMockOracleServer()
	defer server.Close()

	now := time.Date(2024, 6, 21, 9, 0, 0, 0, time.UTC)
	server.SetNow(func() time.Time { return now })

	logger, _ := zap.NewDevelopment()
	clk := clock.NewMockClock(now)
	client := suntimes.NewClient(server.URL(), time.Second, clk, logger).WithLocation(time.UTC)
	store := NewFileStore(filepath.Join(t.TempDir(), "sun_times.json"))
	daily := NewDaily(store, client, clk, logger).WithLocation(time.UTC)

	for i := 0; i < 3; i++ {
		_, err := daily.GetOrFetch(context.Background(), 40.7128, -74.0060)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, server.Calls())
}
