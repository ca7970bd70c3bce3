package datastore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexflint/go-filemutex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func TestStoreLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bookmarks.yaml")

	yamlContent := `version: 1
bookmarks:
  - id: 1
    url: https://go.dev
    title: Go
    tags: [go, Go, -lang]
    created: 2024-03-01T09:00:00Z
  - id: 2
    title: A note
    created: 2024-03-02T09:00:00Z
    private: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	bookmarks, err := New(path, time.Second, nil).Load()
	require.NoError(t, err)
	require.Len(t, bookmarks, 2)

	assert.Equal(t, []string{"go", "lang"}, bookmarks[0].Tags)
	assert.Equal(t, domain.ShortIDFor(1), bookmarks[0].ShortID)
	assert.True(t, bookmarks[1].IsNote())
	assert.Equal(t, domain.NoteURL(domain.ShortIDFor(2)), bookmarks[1].URL)
	assert.True(t, bookmarks[1].Private)
}

func TestStoreLoadFileNotFound(t *testing.T) {
	_, err := New("/nonexistent/path/bookmarks.yaml", time.Second, nil).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDecodeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "duplicate id",
			yaml: `bookmarks:
  - {id: 1, created: 2024-03-01T09:00:00Z}
  - {id: 1, created: 2024-03-02T09:00:00Z}
`,
			wantErr: ErrDuplicateID,
		},
		{
			name:    "missing created",
			yaml:    "bookmarks:\n  - {id: 1, title: x}\n",
			wantErr: domain.ErrMissingCreated,
		},
		{
			name:    "newer format",
			yaml:    "version: 9\nbookmarks: []\n",
			wantErr: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStoreSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bookmarks.yaml")
	store := New(path, time.Second, nil)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	in := []*domain.Bookmark{
		{ID: 2, ShortID: domain.ShortIDFor(2), URL: "https://go.dev", Title: "Go", Tags: []string{"go"}, Created: created, Sticky: true},
		{ID: 1, ShortID: domain.ShortIDFor(1), URL: "https://example.org", Title: "Ex", Created: created.Add(time.Hour)},
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].ID, "order is preserved")
	assert.True(t, out[0].Sticky)
	assert.True(t, out[1].Created.Equal(created.Add(time.Hour)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp or lock file left behind")
}

func TestStoreUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	store := New(path, time.Second, nil)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	seeded := false
	next, err := store.Update(
		func() []*domain.Bookmark {
			seeded = true
			return []*domain.Bookmark{{ID: 1, Created: created}}
		},
		func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
			return append(cur, &domain.Bookmark{ID: 2, Created: created}), nil
		},
	)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Len(t, next, 2)

	_, err = store.Update(nil, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
		assert.Len(t, cur, 2, "second update reads the file")
		return nil, errors.New("abort")
	})
	require.Error(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2, "failed mutation leaves the file untouched")

	m, err := filemutex.New(path + lockSuffix)
	require.NoError(t, err)
	defer m.Close()
	assert.NoError(t, m.TryLock(), "lock released")
}

func TestStoreUpdateLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	held, err := filemutex.New(path + lockSuffix)
	require.NoError(t, err)
	defer held.Close()
	require.NoError(t, held.TryLock())

	store := New(path, 30*time.Millisecond, nil)
	_, err = store.Update(nil, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
		t.Fatal("mutate must not run without the lock")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestStoreUpdateIgnoresStaleLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	// left behind by a writer that died mid-update
	require.NoError(t, os.WriteFile(path+lockSuffix, []byte("999999"), 0o600))

	store := New(path, 100*time.Millisecond, nil)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		next, err := store.Update(nil, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
			return append(cur, &domain.Bookmark{ID: i, Created: created}), nil
		})
		require.NoError(t, err)
		assert.Len(t, next, i)
	}
}

func TestStoreViewWaitsForUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	store := New(path, time.Second, nil)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	inMutate := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := store.Update(nil, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
			close(inMutate)
			<-release
			return append(cur, &domain.Bookmark{ID: 1, Created: created}), nil
		})
		done <- err
	}()
	<-inMutate

	viewed := make(chan []byte, 1)
	go func() {
		_ = store.View(func(data []byte, err error) error {
			viewed <- data
			return err
		})
	}()

	select {
	case <-viewed:
		t.Fatal("view ran while an update was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	data := <-viewed
	bookmarks, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, bookmarks, 1, "view sees the committed write")
}
