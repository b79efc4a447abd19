package statewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"suntheme/internal/clock"
	"suntheme/internal/history"
	"suntheme/internal/mode"
	"suntheme/internal/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collector struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (c *collector) Publish(e history.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *collector) modes() []mode.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mode.Mode, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Mode)
	}
	return out
}

func (c *collector) contains(m mode.Mode) bool {
	for _, got := range c.modes() {
		if got == m {
			return true
		}
	}
	return false
}

func TestWatcher_PublishesStateFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current_theme")
	pub := &collector{}

	w := New(path, pub, clock.NewRealClock(), zap.NewNop())
	require.NoError(t, w.Start())
	defer w.Stop()

	state := sink.NewStateFile(path, sink.ThemePair{Light: "l", Dark: "d"})

	require.NoError(t, state.Apply(context.Background(), mode.Dark))
	require.Eventually(t, func() bool { return pub.contains(mode.Dark) }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, state.Apply(context.Background(), mode.Light))
	require.Eventually(t, func() bool { return pub.contains(mode.Light) }, 3*time.Second, 20*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, e := range pub.entries {
		assert.Equal(t, history.SourceExternal, e.Source)
		assert.NotEmpty(t, e.ID)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	pub := &collector{}

	w := New(filepath.Join(dir, "current_theme"), pub, clock.NewRealClock(), zap.NewNop())
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("mode=dark\n"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, pub.modes())
}

func TestWatcher_StartFailsForMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "current_theme"), &collector{}, clock.NewRealClock(), zap.NewNop())
	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "current_theme")
	pub := &collector{}

	state := sink.NewStateFile(path, sink.ThemePair{Light: "l", Dark: "d"})
	w := New(path, pub, clock.NewRealClock(), zap.NewNop()).IgnoreOwn(state)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, state.Apply(context.Background(), mode.Dark))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, pub.modes())

	// A different process flips the mode.
	require.NoError(t, os.WriteFile(path, []byte("mode=light\ntheme=l\nbackground=light\n"), 0644))
	require.Eventually(t, func() bool { return pub.contains(mode.Light) }, 3*time.Second, 20*time.Millisecond)

	// Our next write reverts it; that one is still ours and stays unpublished.
	require.NoError(t, state.Apply(context.Background(), mode.Dark))
	time.Sleep(200 * time.Millisecond)
	assert.NotContains(t, pub.modes(), mode.Dark)
}
