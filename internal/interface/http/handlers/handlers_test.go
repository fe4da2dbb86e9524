package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name        string
		db, rdb     Pinger
		wantHealthy bool
		wantReady   bool
	}{
		{"all up", ok, ok, true, true},
		{"redis down degrades", ok, down, false, true},
		{"database down", down, ok, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("1.2.3")
			c.AddCheck("database", NewDatabaseCheck(tt.db))
			c.AddCheck("redis", NewRedisCheck(tt.rdb))

			status := c.Check(context.Background())
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantReady, status.Ready)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Len(t, status.Checks, 2)
		})
	}
}

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.AddCheck("x", NewDatabaseCheck(pingFunc(func(context.Context) error { return nil })))
	c.RemoveCheck("x")

	status := c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Equal(t, "No health checks registered", status.Message)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.URL.Path))
}

func TestCaseInsensitivePrefixMiddleware(t *testing.T) {
	h := CaseInsensitivePrefixMiddleware("/api")(http.HandlerFunc(okHandler))

	for path, want := range map[string]string{
		"/API/Students/5": "/api/students/5",
		"/api/grades":     "/api/grades",
		"/Health":         "/Health",
		"/apiary":         "/apiary",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Body.String(), path)
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/students", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/students", strings.NewReader(`{"name":"too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"message":"Request body too large."}`, rec.Body.String())
}

func TestChain_FirstIsOutermost(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainHandler(http.HandlerFunc(okHandler), mw("a"), mw("b"), SecurityHeadersMiddleware)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
