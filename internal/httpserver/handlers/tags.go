package handlers

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/metrics"
	"github.com/MrSnakeDoc/marks/internal/search"
	redisstore "github.com/MrSnakeDoc/marks/internal/store/redis"
)

type tagsResponse struct {
	Sort string            `json:"sort"`
	Tags []search.TagCount `json:"tags"`
}

// Tags returns the tag cloud: GET /api/v1/tags?searchtags&visibility&sort=usage|alpha
// Clouds are cached in redis when it is enabled; concurrent misses on the same
// cloud are computed once.
func Tags(d deps.Deps) http.HandlerFunc {
	var group singleflight.Group
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		order := strings.ToLower(q.Get("sort"))
		switch order {
		case "":
			order = "usage"
		case "usage", "alpha":
		default:
			writeError(w, d.Logger, &search.QueryError{Field: "sort", Value: q.Get("sort"), Reason: "expected usage or alpha"})
			return
		}

		v, err := parseVisibility(r)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		auth := mw.Authenticated(ctx)
		if !auth {
			v = domain.VisibilityPublic
		}

		raw := q.Get("searchtags")
		opts := search.AggregateOptions{
			FilterTags:    domain.SplitTags(raw, d.Engine.TagSeparator()),
			Visibility:    v,
			Authenticated: auth,
		}

		key := redisstore.TagCloudKey(order, v.String(), auth, strings.Join(opts.FilterTags, "\x00"))
		if d.TagClouds != nil {
			counts, ok, err := d.TagClouds.GetCachedTagCloud(ctx, key)
			switch {
			case err != nil:
				metrics.TagCloudCache.WithLabelValues("error").Inc()
				d.Logger.Warn("tag cloud cache read failed", logger.Error(err))
			case ok:
				metrics.TagCloudCache.WithLabelValues("hit").Inc()
				writeJSON(w, http.StatusOK, tagsResponse{Sort: order, Tags: counts})
				return
			default:
				metrics.TagCloudCache.WithLabelValues("miss").Inc()
			}
		}

		res, _, _ := group.Do(key, func() (any, error) {
			timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("tags"))
			defer timer.ObserveDuration()
			if order == "alpha" {
				return d.Engine.ListTags(opts), nil
			}
			return d.Engine.CountPerTag(opts), nil
		})
		counts := res.([]search.TagCount)

		if d.TagClouds != nil {
			if err := d.TagClouds.CacheTagCloud(ctx, key, counts, d.TagCloudTTL); err != nil {
				d.Logger.Warn("tag cloud cache write failed", logger.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, tagsResponse{Sort: order, Tags: counts})
	}
}
