package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/sat8bit/janus/world"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the snapshot in a single human-readable file. Files ending
// in .yaml or .yml are YAML, anything else is indented JSON.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) *world.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.WarnContext(ctx, "snapshot unreadable, starting a fresh world", "path", s.path, "error", err)
		}
		return world.New()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return world.New()
	}

	sn := newSnapshot()
	if err := s.unmarshal(data, &sn); err != nil {
		slog.WarnContext(ctx, "snapshot malformed, starting a fresh world", "path", s.path, "error", err)
		return world.New()
	}
	return sn.toState()
}

func (s *FileStore) Save(ctx context.Context, st *world.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.marshal(fromState(st, s.now()))
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %w", ErrWrite, s.path, err)
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

func (s *FileStore) marshal(sn snapshot) ([]byte, error) {
	if s.isYAML() {
		return yaml.Marshal(sn)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sn); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *FileStore) unmarshal(data []byte, sn *snapshot) error {
	if s.isYAML() {
		return yaml.Unmarshal(data, sn)
	}
	return json.Unmarshal(data, sn)
}

// WriteFileAtomic replaces path with data through a synced temporary file,
// so a crash never leaves a half-written file behind. Missing directories
// are created.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
