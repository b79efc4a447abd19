package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"suntheme/internal/mode"

	"go.uber.org/zap"
)

// Ghostty sets the theme line of the Ghostty terminal config and asks
// running instances to reload it.
type Ghostty struct {
	path   string
	themes ThemePair
	reload func() error
	logger *zap.Logger
}

// NewGhostty creates a Ghostty sink for the config at path
func NewGhostty(path string, themes ThemePair, logger *zap.Logger) *Ghostty {
	return &Ghostty{
		path:   path,
		themes: themes,
		reload: reloadGhostty,
		logger: logger.Named("ghostty"),
	}
}

// DefaultGhosttyConfigPath returns the platform location of the Ghostty config
func DefaultGhosttyConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(dir, "com.mitchellh.ghostty", "config"), nil
	}
	return filepath.Join(dir, "ghostty", "config"), nil
}

// Name returns the sink name
func (g *Ghostty) Name() string {
	return "ghostty"
}

// Apply rewrites the config and triggers a reload. A failed reload is
// logged only; the config is correct and will be picked up on next start.
func (g *Ghostty) Apply(ctx context.Context, m mode.Mode) error {
	theme := g.themes.For(m)

	data, err := os.ReadFile(g.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read ghostty config %s: %w", g.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return fmt.Errorf("create ghostty config dir: %w", err)
	}
	if err := os.WriteFile(g.path, []byte(UpdateThemeLine(string(data), theme)), 0644); err != nil {
		return fmt.Errorf("write ghostty config: %w", err)
	}

	if g.reload != nil {
		if err := g.reload(); err != nil {
			g.logger.Warn("Failed to reload Ghostty", zap.Error(err))
		}
	}

	g.logger.Debug("Ghostty theme set", zap.String("theme", theme), zap.Stringer("mode", m))
	return nil
}

// UpdateThemeLine replaces the first "theme = ..." line of a Ghostty config,
// or prepends one when none exists. Other lines are preserved.
func UpdateThemeLine(content, theme string) string {
	var lines []string
	if trimmed := strings.TrimSuffix(content, "\n"); trimmed != "" {
		lines = strings.Split(trimmed, "\n")
	}

	replacement := "theme = " + theme
	found := false
	for i, line := range lines {
		key, _, hasEq := strings.Cut(strings.TrimSpace(line), "=")
		if hasEq && strings.TrimSpace(key) == "theme" {
			lines[i] = replacement
			found = true
			break
		}
	}

	if !found {
		lines = append([]string{replacement}, lines...)
	}
	return strings.Join(lines, "\n") + "\n"
}
