package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/metrics"
)

type daysResponse struct {
	Days []string `json:"days"`
}

type dayResponse struct {
	Day       string         `json:"day"`
	Previous  string         `json:"previous,omitempty"`
	Next      string         `json:"next,omitempty"`
	Bookmarks []bookmarkView `json:"bookmarks"`
}

// Days lists the days holding bookmarks: GET /api/v1/days
func Days(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseVisibility(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, daysResponse{Days: d.Engine.Days(v, mw.Authenticated(r.Context()))})
	}
}

// Day returns the bookmarks of one day, newest first: GET /api/v1/days/{day}
func Day(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := parseVisibility(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		auth := mw.Authenticated(r.Context())
		day := chi.URLParam(r, "day")

		timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("day"))
		bookmarks, err := d.Engine.FilterDay(day, v, auth)
		timer.ObserveDuration()
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := dayResponse{Day: day, Bookmarks: views(bookmarks)}
		resp.Previous, resp.Next = neighbours(d.Engine.Days(v, auth), day)
		writeJSON(w, http.StatusOK, resp)
	}
}

// neighbours returns the closest days before and after day in the ascending list.
func neighbours(days []string, day string) (prev, next string) {
	for _, d := range days {
		if d < day {
			prev = d
		} else if d > day && next == "" {
			next = d
		}
	}
	return prev, next
}
