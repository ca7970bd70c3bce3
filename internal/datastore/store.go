package datastore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alexflint/go-filemutex"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/utils"
)

var (
	// ErrLocked is returned when another writer holds the datastore lock.
	ErrLocked = errors.New("datastore is locked by another writer")

	// ErrDuplicateID is returned when two records share an id.
	ErrDuplicateID = errors.New("duplicate bookmark id")

	// ErrUnsupportedVersion is returned for a file written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported datastore version")
)

const lockSuffix = ".lock"

// Store reads and writes the YAML datastore file.
type Store struct {
	path        string
	lockTimeout time.Duration
	log         logger.Logger

	// mu orders in-process readers using View against Update.
	mu sync.RWMutex
}

// New creates a store for path. lockTimeout bounds how long a writer waits for
// the lock before giving up with ErrLocked.
func New(path string, lockTimeout time.Duration, log logger.Logger) *Store {
	return &Store{
		path:        path,
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// Path returns the datastore file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the datastore. A missing file is reported with an
// error wrapping fs.ErrNotExist.
func (s *Store) Load() ([]*domain.Bookmark, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datastore: %w", err)
	}
	return Decode(data)
}

// View reads the raw datastore and hands it to fn. No Update of this store
// can commit until fn returns, so whatever fn publishes from data cannot
// overwrite a newer write.
func (s *Store) View(fn func(data []byte, err error) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	return fn(data, err)
}

// Decode parses and validates datastore content. Missing short ids are derived
// and tags are canonicalised.
func Decode(data []byte) ([]*domain.Bookmark, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse datastore yaml: %w", err)
	}
	if file.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, file.Version)
	}

	seen := make(map[int]struct{}, len(file.Bookmarks))
	out := make([]*domain.Bookmark, 0, len(file.Bookmarks))
	for i, b := range file.Bookmarks {
		if b == nil {
			continue
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("record %d: %w: %d", i, ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}

		if b.ShortID == "" {
			b.ShortID = domain.ShortIDFor(b.ID)
		}
		if b.URL == "" {
			b.URL = domain.NoteURL(b.ShortID)
		}
		b.Tags = domain.NormalizeTags(b.Tags)
		out = append(out, b)
	}
	return out, nil
}

// Encode renders bookmarks in the datastore format.
func Encode(bookmarks []*domain.Bookmark) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Version: FormatVersion, Bookmarks: bookmarks}); err != nil {
		return nil, fmt.Errorf("failed to encode datastore: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode datastore: %w", err)
	}
	return buf.Bytes(), nil
}

// Save replaces the datastore atomically: the content goes to a temporary file
// in the same directory which is then renamed over the datastore.
// Callers mutating the collection should go through Update instead.
func (s *Store) Save(bookmarks []*domain.Bookmark) error {
	data, err := Encode(bookmarks)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create datastore dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		utils.Close(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		utils.Close(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace datastore: %w", err)
	}
	committed = true
	return nil
}

// Update runs the load-mutate-save cycle under the datastore lock. When the file
// does not exist yet, seed provides the starting collection (it may be nil).
// The lock is held for the whole cycle and never during plain reads.
func (s *Store) Update(seed func() []*domain.Bookmark, mutate func([]*domain.Bookmark) ([]*domain.Bookmark, error)) ([]*domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer utils.MustClose(lock, s.log, "datastore lock")

	current, err := s.Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if seed != nil {
			current = seed()
		}
	case err != nil:
		return nil, err
	}

	next, err := mutate(current)
	if err != nil {
		return nil, err
	}
	if err := s.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

// acquire takes an flock on the lock file next to the datastore. The kernel
// drops it when the holder exits, so a crashed writer never leaves the
// datastore locked. The lock file itself stays on disk.
func (s *Store) acquire() (*filemutex.FileMutex, error) {
	path := s.path + lockSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create datastore dir: %w", err)
	}

	m, err := filemutex.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(s.lockTimeout)
	backoff := 10 * time.Millisecond
	for {
		err := m.TryLock()
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, filemutex.AlreadyLocked) {
			utils.Close(m)
			return nil, fmt.Errorf("failed to lock datastore: %w", err)
		}
		if time.Now().After(deadline) {
			utils.Close(m)
			return nil, ErrLocked
		}
		time.Sleep(backoff)
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}
