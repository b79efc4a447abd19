package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"suntheme/internal/mode"
)

// StateFile writes the last applied mode as key=value lines. Editor plugins
// read it to pick their colorscheme, and toggle reads it to know the
// current state.
type StateFile struct {
	path   string
	themes ThemePair

	mu      sync.Mutex
	written mode.Mode
}

// NewStateFile creates a state file sink writing to path
func NewStateFile(path string, themes ThemePair) *StateFile {
	return &StateFile{path: path, themes: themes}
}

// Name returns the sink name
func (s *StateFile) Name() string {
	return "statefile"
}

// Path returns the state file path
func (s *StateFile) Path() string {
	return s.path
}

// Apply overwrites the state file with m
func (s *StateFile) Apply(ctx context.Context, m mode.Mode) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// Set before writing: a watcher may see the file change before
	// WriteFile returns.
	s.mu.Lock()
	prev := s.written
	s.written = m
	s.mu.Unlock()

	content := fmt.Sprintf("mode=%s\ntheme=%s\nbackground=%s\n", m, s.themes.For(m), m)
	if err := os.WriteFile(s.path, []byte(content), 0644); err != nil {
		s.mu.Lock()
		s.written = prev
		s.mu.Unlock()
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}

// LastWritten returns the mode this instance last wrote
func (s *StateFile) LastWritten() (mode.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.written != ""
}

// Current returns the mode persisted in the file, whoever wrote it
func (s *StateFile) Current() (mode.Mode, bool, error) {
	return ReadMode(s.path)
}

// ReadMode returns the mode recorded in the state file at path.
// ok is false when the file or its mode line does not exist.
func ReadMode(path string) (m mode.Mode, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		value, found := strings.CutPrefix(scanner.Text(), "mode=")
		if !found {
			continue
		}
		parsed, err := mode.Parse(value)
		if err != nil {
			return "", false, fmt.Errorf("state file %s: %w", path, err)
		}
		return parsed, true, nil
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("read state file: %w", err)
	}
	return "", false, nil
}
