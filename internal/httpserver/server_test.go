package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/library"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/search"
)

const secret = "s3cret"

func fixture() []*domain.Bookmark {
	at := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }
	return []*domain.Bookmark{
		{ID: 1, ShortID: domain.ShortIDFor(1), Title: "Go docs", URL: "https://go.dev/doc",
			Tags: []string{"go", "web"}, Created: at(1, 9)},
		{ID: 2, ShortID: domain.ShortIDFor(2), Title: "Secret plans", URL: "https://example.org/plans",
			Tags: []string{"web", ".hidden"}, Created: at(2, 9), Private: true},
		{ID: 3, ShortID: domain.ShortIDFor(3), Title: "Cartoon strips", URL: "https://example.org/strips",
			Tags: []string{"cartoon", "web"}, Created: at(2, 10)},
		{ID: 4, ShortID: domain.ShortIDFor(4), Title: "A note", URL: domain.NoteURL(domain.ShortIDFor(4)),
			Created: at(3, 9)},
	}
}

type memCache struct {
	mu    sync.Mutex
	data  map[string][]search.TagCount
	reads int
}

func (c *memCache) CacheTagCloud(_ context.Context, key string, counts []search.TagCount, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = counts
	return nil
}

func (c *memCache) GetCachedTagCloud(_ context.Context, key string) ([]search.TagCount, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	counts, ok := c.data[key]
	return counts, ok, nil
}

type env struct {
	handler http.Handler
	index   *index.MemoryIndex
	cache   *memCache
	trigger chan struct{}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Nop()
	idx := index.NewMemoryIndex()
	idx.Replace(fixture())

	store := datastore.New(filepath.Join(t.TempDir(), "bookmarks.yaml"), time.Second, log)
	cache := &memCache{data: map[string][]search.TagCount{}}
	trigger := make(chan struct{}, 1)

	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		APISecret:     secret,
		MemoryIndex:   idx,
		Engine:        search.NewEngine(func() search.Collection { return idx.Snapshot() }, " ", 20),
		Library:       library.NewService(store, idx, nil, " ", log),
		TagClouds:     cache,
		TagCloudTTL:   time.Minute,
		ReloadTrigger: trigger,
	}
	return &env{handler: NewRouter(d, time.Second), index: idx, cache: cache, trigger: trigger}
}

func (e *env) do(t *testing.T, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Total     int `json:"total"`
	Page      int `json:"page"`
	PerPage   int `json:"per_page"`
	LastPage  int `json:"last_page"`
	Bookmarks []struct {
		ID         int                      `json:"id"`
		Tags       []string                 `json:"tags"`
		Highlights map[string][]search.Span `json:"highlights"`
	} `json:"bookmarks"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func listIDs(body listBody) []int {
	out := make([]int, 0, len(body.Bookmarks))
	for _, b := range body.Bookmarks {
		out = append(out, b.ID)
	}
	return out
}

func TestListBookmarksVisibility(t *testing.T) {
	e := newEnv(t)

	anon := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks?searchtags=web", "", false))
	assert.Equal(t, []int{3, 1}, listIDs(anon))
	assert.Equal(t, 2, anon.Total)

	// anonymous callers cannot ask for private bookmarks
	none := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks?searchtags=web&visibility=private", "", false))
	assert.Equal(t, []int{3, 1}, listIDs(none))

	authed := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks?searchtags=web", "", true))
	assert.Equal(t, []int{3, 2, 1}, listIDs(authed))
	assert.Equal(t, []string{"web", ".hidden"}, authed.Bookmarks[1].Tags)
}

func TestListBookmarksPaging(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name     string
		query    string
		wantIDs  []int
		wantPage int
		wantPer  int
	}{
		{name: "limit", query: "limit=2", wantIDs: []int{4, 3}, wantPage: 1, wantPer: 2},
		{name: "page", query: "limit=2&page=2", wantIDs: []int{1}, wantPage: 2, wantPer: 2},
		{name: "offset", query: "limit=1&offset=2", wantIDs: []int{1}, wantPage: 3, wantPer: 1},
		{name: "page clamped", query: "limit=2&page=9", wantIDs: []int{1}, wantPage: 2, wantPer: 2},
		{name: "all", query: "limit=all", wantIDs: []int{4, 3, 1}, wantPage: 1, wantPer: search.PerPageAll},
		{name: "bad limit", query: "limit=abc&page=-3", wantIDs: []int{4, 3, 1}, wantPage: 1, wantPer: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks?"+tt.query, "", false))
			assert.Equal(t, tt.wantIDs, listIDs(body))
			assert.Equal(t, tt.wantPage, body.Page)
			assert.Equal(t, tt.wantPer, body.PerPage)
			assert.Equal(t, 3, body.Total)
		})
	}
}

func TestListBookmarksHighlights(t *testing.T) {
	e := newEnv(t)

	body := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks?searchterm=cartoon", "", false))
	require.Equal(t, []int{3}, listIDs(body))
	assert.Equal(t, []search.Span{{Start: 0, End: 7}}, body.Bookmarks[0].Highlights[search.FieldTitle])

	plain := decodeList(t, e.do(t, http.MethodGet, "/api/v1/bookmarks", "", false))
	assert.Empty(t, plain.Bookmarks[0].Highlights)
}

func TestListBookmarksBadVisibility(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/v1/bookmarks?visibility=secret", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"visibility"`)
}

func TestWrongTokenRejected(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetBookmarkByShortID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/bookmarks/"+domain.ShortIDFor(3), "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Cartoon strips"`)

	private := "/api/v1/bookmarks/" + domain.ShortIDFor(2)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, private, "", false).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, private, "", true).Code)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/v1/bookmarks/zzzzzz", "", true).Code)
}

func TestMutations(t *testing.T) {
	e := newEnv(t)

	draft := `{"url":"https://pkg.go.dev","title":"Packages","tags":"go docs"}`
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/v1/bookmarks", draft, false).Code)

	rec := e.do(t, http.MethodPost, "/api/v1/bookmarks", draft, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/bookmarks/"+domain.ShortIDFor(5), rec.Header().Get("Location"))
	assert.Equal(t, 5, e.index.Count())

	rec = e.do(t, http.MethodPut, "/api/v1/bookmarks/5", `{"url":"https://pkg.go.dev","title":"Go packages","private":true}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b, ok := e.index.Get(5)
	require.True(t, ok)
	assert.Equal(t, "Go packages", b.Title)
	assert.True(t, b.Private)
	assert.NotNil(t, b.Updated)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/v1/bookmarks/x", draft, true).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/v1/bookmarks", `{"bogus":1}`, true).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/api/v1/bookmarks", `{"url":"ftp://x"}`, true).Code)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/v1/bookmarks/5", "", true).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/v1/bookmarks/5", "", true).Code)
	assert.Equal(t, 4, e.index.Count())
}

func TestTagsCached(t *testing.T) {
	e := newEnv(t)

	var body struct {
		Sort string            `json:"sort"`
		Tags []search.TagCount `json:"tags"`
	}

	rec := e.do(t, http.MethodGet, "/api/v1/tags", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "usage", body.Sort)
	assert.Equal(t, []search.TagCount{{Tag: "web", Count: 2}, {Tag: "cartoon", Count: 1}, {Tag: "go", Count: 1}}, body.Tags)
	assert.Len(t, e.cache.data, 1)

	// second call is served from the cache
	rec = e.do(t, http.MethodGet, "/api/v1/tags", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, e.cache.reads)
	assert.Len(t, e.cache.data, 1)

	// authenticated callers get their own entry
	rec = e.do(t, http.MethodGet, "/api/v1/tags?sort=alpha&searchtags=web", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []search.TagCount{{Tag: ".hidden", Count: 1}, {Tag: "cartoon", Count: 1}, {Tag: "go", Count: 1}, {Tag: "web", Count: 3}}, body.Tags)
	assert.Len(t, e.cache.data, 2)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/v1/tags?sort=random", "", false).Code)
}

func TestDays(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/days", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"days":["20240301","20240302","20240303"]}`, rec.Body.String())

	var day struct {
		Previous  string `json:"previous"`
		Next      string `json:"next"`
		Bookmarks []struct {
			ID int `json:"id"`
		} `json:"bookmarks"`
	}
	rec = e.do(t, http.MethodGet, "/api/v1/days/20240302", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, "20240301", day.Previous)
	assert.Equal(t, "20240303", day.Next)
	require.Len(t, day.Bookmarks, 2)
	assert.Equal(t, 3, day.Bookmarks[0].ID)
	assert.Equal(t, 2, day.Bookmarks[1].ID)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/v1/days/2024-03-02", "", false).Code)
}

func TestProbes(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "", false).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz", "", false).Code)

	rec := e.do(t, http.MethodGet, "/infra", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", "", false).Code)

	empty := NewRouter(deps.Deps{Logger: logger.Nop(), MemoryIndex: index.NewMemoryIndex()}, time.Second)
	rec = httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/reload", "", false).Code)
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/reload", "", true).Code)
	// trigger buffer is full until the reloader drains it
	assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/reload", "", true).Code)
	<-e.trigger
}
