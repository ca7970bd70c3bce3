package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

func echoAuth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Authenticated(r.Context()) {
			_, _ = w.Write([]byte("auth"))
			return
		}
		_, _ = w.Write([]byte("anon"))
	})
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "no header", secret: "s", wantStatus: http.StatusOK, wantBody: "anon"},
		{name: "valid token", secret: "s", header: "Bearer s", wantStatus: http.StatusOK, wantBody: "auth"},
		{name: "wrong token", secret: "s", header: "Bearer x", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", secret: "s", header: "Basic s", wantStatus: http.StatusUnauthorized},
		{name: "no secret configured", secret: "", header: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(tt.secret, false, logger.Nop())(echoAuth())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(echoAuth())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithAuthenticated(req.Context()))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"marks.local", "marks.local", true},
		{"Marks.Local", "marks.local", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "marks.local", false},
	}

	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestRateLimiterBucket(t *testing.T) {
	l := newLimiter(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 60})
	now := time.Now()

	if ok, _, _ := l.allow("1.2.3.4", now); !ok {
		t.Fatal("first request rejected")
	}
	if ok, _, _ := l.allow("1.2.3.4", now); !ok {
		t.Fatal("second request rejected")
	}
	ok, _, retry := l.allow("1.2.3.4", now)
	if ok || retry < 1 {
		t.Fatalf("third request: ok=%v retry=%d, want rejected with retry", ok, retry)
	}
	if ok, _, _ := l.allow("5.6.7.8", now); !ok {
		t.Error("other client shares the bucket")
	}
	if ok, _, _ := l.allow("1.2.3.4", now.Add(time.Second)); !ok {
		t.Error("bucket not refilled after one second")
	}
}

func TestRateLimitExemptAndSurface(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, Exempt: []string{"/healthz"}})(echoAuth())

	serve := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := serve("/api/v1/tags"); rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("first request: status %d remaining %q", rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
	}
	rec := serve("/api/v1/bookmarks/abc")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	for i := 0; i < 3; i++ {
		if rec := serve("/healthz"); rec.Code != http.StatusOK {
			t.Fatalf("exempt path status = %d, want 200", rec.Code)
		}
	}
}

func TestAPISurface(t *testing.T) {
	tests := map[string]string{
		"/api/v1/bookmarks":       "bookmarks",
		"/api/v1/bookmarks/Xy_12": "bookmarks",
		"/api/v1/tags":            "tags",
		"/api/v1/days/20240301":   "days",
		"/api/v1/unknown":         "ops",
		"/reload":                 "ops",
		"/api/v2/bookmarks":       "ops",
	}
	for path, want := range tests {
		if got := apiSurface(path); got != want {
			t.Errorf("apiSurface(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestLogRouteAndLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := chi.NewRouter()
	r.Use(Log(logger.FromZap(zap.New(core)), false))
	r.Get("/api/v1/bookmarks/{shortid}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "shortid") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if chi.URLParam(r, "shortid") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		path  string
		level zapcore.Level
	}{
		{path: "/api/v1/bookmarks/abc", level: zapcore.InfoLevel},
		{path: "/api/v1/bookmarks/missing", level: zapcore.WarnLevel},
		{path: "/api/v1/bookmarks/broken", level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

		entries := logs.TakeAll()
		if len(entries) != 1 {
			t.Fatalf("%s: %d log entries, want 1", tt.path, len(entries))
		}
		e := entries[0]
		if e.Level != tt.level {
			t.Errorf("%s: level = %v, want %v", tt.path, e.Level, tt.level)
		}
		if got := e.ContextMap()["route"]; got != "/api/v1/bookmarks/{shortid}" {
			t.Errorf("%s: route = %v", tt.path, got)
		}
	}
}

func TestCORS(t *testing.T) {
	h := CORS()(echoAuth())

	tests := []struct {
		name        string
		method      string
		reqMethod   string
		reqHeaders  string
		wantStatus  int
		wantHeaders []string
		wantBody    string
	}{
		{name: "preflight", method: http.MethodOptions, reqMethod: "POST", reqHeaders: "Authorization, Content-Type", wantStatus: http.StatusNoContent, wantHeaders: []string{"Authorization", "Content-Type"}},
		{name: "preflight delete", method: http.MethodOptions, reqMethod: "DELETE", reqHeaders: "Authorization", wantStatus: http.StatusNoContent, wantHeaders: []string{"Authorization"}},
		{name: "unknown header", method: http.MethodOptions, reqMethod: "POST", reqHeaders: "X-Secret", wantStatus: http.StatusForbidden},
		{name: "simple request", method: http.MethodGet, wantStatus: http.StatusOK, wantBody: "anon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/bookmarks", nil)
			req.Header.Set("Origin", "https://reader.example")
			if tt.reqMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.reqMethod)
			}
			if tt.reqHeaders != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.reqHeaders)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus >= 400 {
				return
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
			}
			allowed := rec.Header().Get("Access-Control-Allow-Headers")
			for _, name := range tt.wantHeaders {
				if !strings.Contains(allowed, name) {
					t.Errorf("Access-Control-Allow-Headers = %q, missing %s", allowed, name)
				}
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
