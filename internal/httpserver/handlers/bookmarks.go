package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/library"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/metrics"
	"github.com/MrSnakeDoc/marks/internal/search"
)

// maxBodyBytes caps a bookmark payload.
const maxBodyBytes = 1 << 20

type bookmarkView struct {
	*domain.Bookmark
	Highlights search.Highlights `json:"highlights,omitempty"`
}

type listResponse struct {
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PerPage   int            `json:"per_page"`
	LastPage  int            `json:"last_page"`
	Bookmarks []bookmarkView `json:"bookmarks"`
}

func view(b *domain.Bookmark) bookmarkView {
	v := bookmarkView{Bookmark: b}
	if hl, ok := b.AdditionalContent[search.HighlightKey].(search.Highlights); ok {
		v.Highlights = hl
	}
	return v
}

func views(bookmarks []*domain.Bookmark) []bookmarkView {
	out := make([]bookmarkView, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, view(b))
	}
	return out
}

// ListBookmarks runs a search: GET /api/v1/bookmarks
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := parseCriteria(r.URL.Query(), d.Engine.DefaultPerPage())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		c.Authenticated = mw.Authenticated(r.Context())

		timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("search"))
		res, err := d.Engine.Search(c)
		timer.ObserveDuration()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		metrics.SearchResults.Observe(float64(res.TotalCount))

		d.Logger.Debug("search",
			logger.Int("total", res.TotalCount),
			logger.Int("page", res.Page),
			logger.Bool("authenticated", c.Authenticated))

		writeJSON(w, http.StatusOK, listResponse{
			Total:     res.TotalCount,
			Page:      res.Page,
			PerPage:   res.PerPage,
			LastPage:  res.LastPage,
			Bookmarks: views(res.Bookmarks),
		})
	}
}

// GetBookmark resolves a permalink: GET /api/v1/bookmarks/{shortid}
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("shortid"))
		b, err := d.Engine.FindByShortID(chi.URLParam(r, "shortid"), mw.Authenticated(r.Context()))
		timer.ObserveDuration()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view(b))
	}
}

// CreateBookmark: POST /api/v1/bookmarks
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, err := decodeDraft(w, r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		b, err := d.Library.Add(r.Context(), draft)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.Header().Set("Location", "/api/v1/bookmarks/"+b.ShortID)
		writeJSON(w, http.StatusCreated, view(b))
	}
}

// UpdateBookmark: PUT /api/v1/bookmarks/{id}
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		draft, err := decodeDraft(w, r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		b, err := d.Library.Update(r.Context(), id, draft)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view(b))
	}
}

// DeleteBookmark: DELETE /api/v1/bookmarks/{id}
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Library.Delete(r.Context(), id); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (library.Draft, error) {
	var draft library.Draft
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&draft); err != nil {
		return draft, &search.QueryError{Field: "body", Value: "", Reason: err.Error()}
	}
	return draft, nil
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &search.QueryError{Field: "id", Value: raw, Reason: "expected a positive integer"}
	}
	return id, nil
}

// parseCriteria reads the search query string. Paging input is forgiving:
// a bad limit falls back to the default, a bad page to the first one.
func parseCriteria(q url.Values, defaultPerPage int) (search.Criteria, error) {
	v, err := search.ParseVisibility(q.Get("visibility"))
	if err != nil {
		return search.Criteria{}, err
	}

	c := search.Criteria{
		SearchTags:    q.Get("searchtags"),
		SearchTerms:   q.Get("searchterm"),
		Visibility:    v,
		UntaggedOnly:  flag(q.Get("untaggedonly")),
		CaseSensitive: flag(q.Get("casesensitive")),
	}

	c.Pagination.PerPage = parseLimit(q.Get("limit"), defaultPerPage)
	c.Pagination.Page = 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		c.Pagination.Page = p
	}
	if raw := q.Get("offset"); raw != "" && c.Pagination.PerPage > 0 {
		if off, err := strconv.Atoi(raw); err == nil && off >= 0 {
			c.Pagination.Page = off/c.Pagination.PerPage + 1
		}
	}
	return c, nil
}

func parseLimit(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") {
		return search.PerPageAll
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func flag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseVisibility(r *http.Request) (domain.Visibility, error) {
	v, err := search.ParseVisibility(r.URL.Query().Get("visibility"))
	if err != nil {
		return v, fmt.Errorf("query: %w", err)
	}
	return v, nil
}
