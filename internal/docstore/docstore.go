// Package docstore reads and writes the flat JSON documents kept in the
// data directory (settings, webhook settings, bump jobs, watched ids).
//
// Documents are read as JSONC so operators may annotate them by hand, and
// written atomically through a temporary file and rename.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

const (
	// SettingsDocument stores display and prefix settings.
	SettingsDocument = "settings.json"
	// WebhookDocument stores webhook settings.
	WebhookDocument = "webhook_settings.json"
	// BumpsDocument stores scheduled bump jobs.
	BumpsDocument = "bumps.json"
	// SpyDocument stores watched user ids.
	SpyDocument = "spy.json"
)

// ErrInvalidName reports a document name that would escape the data directory.
var ErrInvalidName = errors.New("docstore: invalid document name")

// Store resolves document names inside one data directory.
//
// Writes through one Store are serialized so concurrent savers of the same
// document never interleave temporary files.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a Store rooted at dir; an empty dir means the working directory.
func New(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}

	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute-or-relative file path for name.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// Load decodes document name into target.
// It reports false without error when the document does not exist yet.
func (s *Store) Load(name string, target any) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}

	return ReadFile(path, target)
}

// Save encodes value as indented JSON into document name.
func (s *Store) Save(name string, value any) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return WriteFile(path, value)
}

// ReadFile decodes the JSONC document at path into target.
// It reports false without error when the file does not exist.
func ReadFile(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read document %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return false, nil
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), target); err != nil {
		return false, fmt.Errorf("decode document %s: %w", path, err)
	}

	return true, nil
}

// WriteFile atomically replaces path with the indented JSON encoding of value.
func WriteFile(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create document dir %s: %w", dir, err)
		}
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temporary document %s: %w", temporaryPath, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("write temporary document %s: %w", temporaryPath, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("sync temporary document %s: %w", temporaryPath, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("close temporary document %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("replace document %s: %w", path, err)
	}

	return nil
}
