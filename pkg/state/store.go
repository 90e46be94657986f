package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/krrrr38/github-2-github/pkg/logger"
)

// ErrLocked is returned when another process holds the state file lock
var ErrLocked = errors.New("state file is locked by another process")

// Store reads and writes the state document as a whole
type Store struct {
	path string
	lock *flock.Flock
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (s *Store) Path() string {
	return s.path
}

// Lock takes the exclusive lock for the life of the process. It does not wait.
func (s *Store) Lock() error {
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock state file %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, s.lock.Path())
	}
	logger.Debug("Acquired state file lock", "path", s.lock.Path())
	return nil
}

// Unlock releases the lock, safe to call when not held
func (s *Store) Unlock() error {
	if !s.lock.Locked() {
		return nil
	}
	return s.lock.Unlock()
}

// Load reads the state file, returning an empty state if it does not exist
func (s *Store) Load() (*MigrationState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("State file not found, starting fresh", "path", s.path)
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	st := &MigrationState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}
	st.normalize()
	return st, nil
}

// Save stamps last_run and rewrites the whole document via a temp file and rename
func (s *Store) Save(st *MigrationState) error {
	st.LastRun = &Timestamp{s.now().UTC().Truncate(time.Second)}
	st.normalize()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	logger.Debug("State file updated", "path", s.path)
	return nil
}
