package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/search"
)

type fakeMirror struct {
	saved   []int
	deleted []int
	flushes int
	err     error
}

func (m *fakeMirror) SaveBookmark(_ context.Context, b *domain.Bookmark) error {
	m.saved = append(m.saved, b.ID)
	return m.err
}

func (m *fakeMirror) DeleteBookmark(_ context.Context, id int) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *fakeMirror) FlushTagClouds(context.Context) error {
	m.flushes++
	return m.err
}

func newService(t *testing.T) (*Service, *index.MemoryIndex, *datastore.Store, *fakeMirror) {
	t.Helper()
	log := logger.New("error", false)
	store := datastore.New(filepath.Join(t.TempDir(), "bookmarks.yaml"), time.Second, log)
	idx := index.NewMemoryIndex()
	mirror := &fakeMirror{}

	svc := NewService(store, idx, mirror, " ", log)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, idx, store, mirror
}

func TestAdd(t *testing.T) {
	svc, idx, store, mirror := newService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, Draft{URL: "https://go.dev", Title: "Go", Tags: "go Go -lang"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, domain.ShortIDFor(1), first.ShortID)
	assert.Equal(t, []string{"go", "lang"}, first.Tags)

	note, err := svc.Add(ctx, Draft{Description: "just text"})
	require.NoError(t, err)
	assert.Equal(t, 2, note.ID)
	assert.True(t, note.IsNote())

	assert.Equal(t, 2, idx.Count())
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	assert.Equal(t, []int{1, 2}, mirror.saved)
	assert.Equal(t, 2, mirror.flushes)
}

func TestAddRejectsInvalidDrafts(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.Add(context.Background(), Draft{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = svc.Add(context.Background(), Draft{URL: "javascript:alert(1)"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestAddTakesMaxIDPlusOne(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Add(ctx, Draft{Title: "x"})
		require.NoError(t, err)
	}
	require.NoError(t, svc.Delete(ctx, 3))

	b, err := svc.Add(ctx, Draft{Title: "y"})
	require.NoError(t, err)
	assert.Equal(t, 3, b.ID, "max id + 1 over the current collection")
}

func TestUpdate(t *testing.T) {
	svc, idx, _, _ := newService(t)
	ctx := context.Background()

	b, err := svc.Add(ctx, Draft{URL: "https://go.dev", Title: "Go"})
	require.NoError(t, err)
	before, _ := idx.Get(b.ID)

	up, err := svc.Update(ctx, b.ID, Draft{URL: "https://go.dev/doc", Title: "Docs", Tags: "doc", Sticky: true})
	require.NoError(t, err)
	assert.Equal(t, "Docs", up.Title)
	assert.True(t, up.Sticky)
	require.NotNil(t, up.Updated)
	assert.True(t, up.Updated.After(up.Created))
	assert.Equal(t, b.Created, up.Created)

	assert.Equal(t, "Go", before.Title, "stored bookmarks are replaced, not edited")
	got, err := svc.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Docs", got.Title)

	_, err = svc.Update(ctx, 99, Draft{Title: "x"})
	assert.True(t, errors.Is(err, search.ErrNotFound))
}

func TestDelete(t *testing.T) {
	svc, idx, _, mirror := newService(t)
	ctx := context.Background()

	b, err := svc.Add(ctx, Draft{Title: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, b.ID))
	assert.Equal(t, 0, idx.Count())
	assert.Equal(t, []int{b.ID}, mirror.deleted)

	err = svc.Delete(ctx, b.ID)
	assert.ErrorIs(t, err, search.ErrNotFound)

	_, err = svc.Get(b.ID)
	assert.ErrorIs(t, err, search.ErrNotFound)
}

func TestMirrorFailureIsNotFatal(t *testing.T) {
	svc, idx, _, mirror := newService(t)
	mirror.err = errors.New("redis down")

	_, err := svc.Add(context.Background(), Draft{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Count())
}

func TestSeedFromIndex(t *testing.T) {
	svc, idx, store, _ := newService(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.Replace([]*domain.Bookmark{{ID: 7, ShortID: domain.ShortIDFor(7), Title: "hydrated", Created: created}})

	b, err := svc.Add(context.Background(), Draft{Title: "new"})
	require.NoError(t, err)
	assert.Equal(t, 8, b.ID)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 2, "the first write keeps the hydrated bookmarks")
}
