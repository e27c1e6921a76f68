package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/marcin-skalski/repo-manager/internal/notify"
)

// Storage is a key-value document persisted as a single JSON file.
// It is unusable until Activate succeeds: Get reports every key as missing
// and Set/Remove do nothing.
type Storage struct {
	logger *slog.Logger

	mu          sync.Mutex
	path        string
	values      map[string]json.RawMessage
	ready       bool
	lastWritten []byte

	activated notify.Listeners
}

func New(logger *slog.Logger) *Storage {
	return &Storage{
		logger: logger,
		values: make(map[string]json.RawMessage),
	}
}

// Key joins an item name and its sub keys with dots, e.g. "hiddenCloned.state".
func Key(item string, sub ...string) string {
	return strings.Join(append([]string{item}, sub...), ".")
}

// Activate loads the file at path (a missing file is an empty document),
// marks the storage ready and fires the activation listeners.
// Activating again re-reads the file and fires the listeners again.
func (s *Storage) Activate(path string) error {
	values, raw, err := readFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.path = path
	s.values = values
	s.lastWritten = raw
	s.ready = true
	s.mu.Unlock()

	s.logger.Debug("storage activated", "path", path, "keys", len(values))
	s.activated.Fire()
	return nil
}

func (s *Storage) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Path returns the backing file, empty before activation.
func (s *Storage) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// OnActivate registers fn to run after every successful activation.
func (s *Storage) OnActivate(fn func()) (unsubscribe func()) {
	return s.activated.Add(fn)
}

// Get decodes the value stored under key into dst.
// It returns false when the key is absent or the storage is not ready.
func (s *Storage) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	ready := s.ready
	s.mu.Unlock()

	if !ready || !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetRaw returns the undecoded JSON stored under key.
func (s *Storage) GetRaw(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil, false
	}
	raw, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

func (s *Storage) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.values[key] = raw
	return s.flushLocked()
}

func (s *Storage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// Keys lists the stored keys in lexical order.
func (s *Storage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Storage) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.lastWritten = data
	return nil
}

// reload re-reads the backing file after an external change. Writes made by
// this process are recognised and skipped. The read and the comparison happen
// under the lock so an event for an older own write sees the newest file.
func (s *Storage) reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("read storage: %w", err)
		}
		data = nil
	}
	if bytes.Equal(data, s.lastWritten) {
		return false, nil
	}

	values, raw, err := decode(data)
	if err != nil {
		return false, err
	}
	s.values = values
	s.lastWritten = raw
	return true, nil
}

func readFile(path string) (map[string]json.RawMessage, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("read storage: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (map[string]json.RawMessage, []byte, error) {
	values := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) == 0 {
		return values, data, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, nil, fmt.Errorf("parse storage: %w", err)
	}
	return values, data, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close storage: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace storage: %w", err)
	}
	return nil
}
