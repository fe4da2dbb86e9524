package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentgrades/studentgrades-api/internal/application/service"
	"github.com/studentgrades/studentgrades-api/internal/infrastructure/persistence/sqlite"
	"github.com/studentgrades/studentgrades-api/internal/interface/http/handlers"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

var fixedNow = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate ...func(*Config, *Dependencies)) *Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	svcDeps := service.Deps{
		Students: sqlite.NewStudentRepository(store),
		Grades:   sqlite.NewGradeRepository(store),
		Logger:   logger.Nop(),
		Now:      func() time.Time { return fixedNow },
	}

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("database", handlers.NewDatabaseCheck(store))

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	deps := Dependencies{
		Students:      service.NewStudentService(svcDeps),
		Grades:        service.NewGradeService(svcDeps),
		Logger:        logger.Nop(),
		HealthChecker: health,
		Version:       "1.4.0",
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}

	s := NewServer(cfg, deps)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// seedJohn creates John Doe (id 1) with a Mathematics 8.5 grade (id 1).
func seedJohn(t *testing.T, s *Server) {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/students", `{"name":"John Doe","email":"john.doe@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/api/grades", `{"value":8.5,"subject":"Mathematics","studentId":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACT PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

func TestPayloads_Golden(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"create_student_missing_fields", http.MethodPost, "/api/students", `{}`, http.StatusBadRequest},
		{"create_student_duplicate_email", http.MethodPost, "/api/students", `{"name":"Other","email":"john.doe@example.com"}`, http.StatusBadRequest},
		{"student_not_found", http.MethodGet, "/api/students/99", "", http.StatusNotFound},
		{"grade_not_found", http.MethodDelete, "/api/grades/99", "", http.StatusNotFound},
		{"create_grade_missing_student", http.MethodPost, "/api/grades", `{"value":5,"subject":"Math","studentId":42}`, http.StatusBadRequest},
		{"create_grade_invalid", http.MethodPost, "/api/grades", `{"value":11,"subject":"","studentId":0}`, http.StatusBadRequest},
		{"create_grade", http.MethodPost, "/api/grades", `{"value":9,"subject":"Physics","studentId":1}`, http.StatusCreated},
		{"grades_by_student", http.MethodGet, "/api/grades/student/1", "", http.StatusOK},
		{"malformed_json", http.MethodPost, "/api/students", `{"name":`, http.StatusBadRequest},
		{"invalid_id", http.MethodGet, "/api/students/abc", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			seedJohn(t, s)

			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			golden(t).Assert(t, tt.name, rec.Body.Bytes())
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestCreateStudent_LocationAndEmptyGrades(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/students", `{"name":"  Jane Smith ","email":"jane.smith@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/students/1", rec.Header().Get("Location"))

	body := decode[studentResponse](t, rec)
	assert.Equal(t, "Jane Smith", body.Name)
	assert.Equal(t, 0.0, body.AverageGrade)
	assert.NotNil(t, body.Grades)
	assert.Empty(t, body.Grades)
	assert.Contains(t, rec.Body.String(), `"grades":[]`)
}

func TestRoutes_CaseInsensitivePrefix(t *testing.T) {
	s := newTestServer(t)
	seedJohn(t, s)

	rec := do(t, s, http.MethodGet, "/API/Students/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "John Doe", decode[studentResponse](t, rec).Name)
}

func TestUpdateStudent_PartialAndOwnEmail(t *testing.T) {
	s := newTestServer(t)
	seedJohn(t, s)

	rec := do(t, s, http.MethodPut, "/api/students/1", `{"name":"","email":"john.doe@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[studentResponse](t, rec)
	assert.Equal(t, "John Doe", body.Name)
	assert.Equal(t, 8.5, body.AverageGrade)
	assert.Len(t, body.Grades, 1)

	rec = do(t, s, http.MethodPut, "/api/students/1", `{"name":"Johnny"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Johnny", decode[studentResponse](t, rec).Name)

	rec = do(t, s, http.MethodPut, "/api/students/7", `{"name":"Nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStudent_CascadesGrades(t *testing.T) {
	s := newTestServer(t)
	seedJohn(t, s)

	rec := do(t, s, http.MethodDelete, "/api/students/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Student with ID 1 has been deleted successfully.", decode[messageResponse](t, rec).Message)

	rec = do(t, s, http.MethodGet, "/api/grades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/grades/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Grade with ID 1 not found.", decode[errorResponse](t, rec).Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

func TestGradeLifecycle_AveragesRoundedAtBoundary(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/students", `{"name":"A","email":"a@example.com"}`)

	for _, v := range []string{"7", "8", "8"} {
		rec := do(t, s, http.MethodPost, "/api/grades", `{"value":`+v+`,"subject":"Math","studentId":1}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/students/1", "")
	assert.Equal(t, 7.67, decode[studentResponse](t, rec).AverageGrade)

	rec = do(t, s, http.MethodPut, "/api/grades/1", `{"value":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[gradeMutationResponse](t, rec)
	assert.Equal(t, 0.0, updated.Grade.Value)
	assert.Equal(t, 5.33, updated.StudentInfo.NewAverageGrade)
	assert.Equal(t, "Grade updated successfully. New average: 5.33", updated.Message)

	rec = do(t, s, http.MethodPut, "/api/grades/2", `{"value":10.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, id := range []string{"1", "2"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodDelete, "/api/grades/"+id, "").Code)
	}
	rec = do(t, s, http.MethodDelete, "/api/grades/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := decode[gradeMutationResponse](t, rec)
	assert.Nil(t, deleted.Grade)
	assert.Equal(t, 0, deleted.StudentInfo.TotalGrades)
	assert.Equal(t, "Grade with ID 3 has been deleted successfully. New average: 0", deleted.Message)
	assert.NotContains(t, rec.Body.String(), `"grade"`)
}

func TestGradesByStudent_MissingStudentIsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/grades/student/5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Student with ID 5 not found.", decode[errorResponse](t, rec).Message)
}

func TestCreateGrade_MissingValueIsValidationError(t *testing.T) {
	s := newTestServer(t)
	seedJohn(t, s)

	rec := do(t, s, http.MethodPost, "/api/grades", `{"subject":"Math","studentId":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, msgValidation, body.Message)
	assert.Contains(t, body.Errors, "value")
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE ROUTES & MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

func TestVersionAndHealthRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/version/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.4.0"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/live", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRateLimit_InProcess(t *testing.T) {
	s := newTestServer(t, func(c *Config, _ *Dependencies) { c.RateLimitPerMinute = 2 })

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
	rec := do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func TestRateLimit_BackendFailureAdmits(t *testing.T) {
	s := newTestServer(t, func(c *Config, d *Dependencies) {
		c.RateLimitPerMinute = 1
		d.RateLimiter = failingLimiter{}
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/live", "").Code)
	}
}

func liveFrom(t *testing.T, s *Server, forwardedFor string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	s := newTestServer(t, func(c *Config, _ *Dependencies) { c.RateLimitPerMinute = 1 })

	// Every request comes from the same RemoteAddr; rotating the header
	// must not buy a fresh allowance.
	assert.Equal(t, http.StatusOK, liveFrom(t, s, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, liveFrom(t, s, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, liveFrom(t, s, "203.0.113.3, 10.0.0.1"))
}

func TestRateLimit_ForwardedHeadersTrustedBehindProxy(t *testing.T) {
	s := newTestServer(t, func(c *Config, _ *Dependencies) {
		c.RateLimitPerMinute = 1
		c.TrustProxyHeaders = true
	})

	assert.Equal(t, http.StatusOK, liveFrom(t, s, "203.0.113.1, 10.0.0.1"))
	assert.Equal(t, http.StatusOK, liveFrom(t, s, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, liveFrom(t, s, "203.0.113.1"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.RemoteAddr = "192.0.2.7:4411"
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")

	direct := &Server{config: DefaultConfig()}
	assert.Equal(t, "192.0.2.7", direct.clientIP(req))

	proxied := &Server{config: Config{TrustProxyHeaders: true}}
	assert.Equal(t, "203.0.113.9", proxied.clientIP(req))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "203.0.113.10", proxied.clientIP(req))
}

func TestResponses_NotCacheable(t *testing.T) {
	s := newTestServer(t)
	seedJohn(t, s)

	for _, path := range []string{"/api/students/1", "/api/grades/student/1", "/health"} {
		rec := do(t, s, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"), path)
		assert.Equal(t, "no-cache", rec.Header().Get("Pragma"), path)
	}
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	s := newTestServer(t)
	s.router.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := do(t, s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"An unexpected error occurred."}`, rec.Body.String())
}

func TestFormatAverage(t *testing.T) {
	assert.Equal(t, "8.75", formatAverage(8.75))
	assert.Equal(t, "9", formatAverage(9))
	assert.Equal(t, "7.67", formatAverage(23.0/3))
	assert.Equal(t, "0", formatAverage(0))
}
