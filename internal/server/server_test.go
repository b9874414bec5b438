package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/types"
)

type emptyProblems struct{}

func (emptyProblems) List(context.Context, store.ProblemFilter) ([]types.ProblemListItem, error) {
	return nil, nil
}
func (emptyProblems) Get(context.Context, int, store.ProblemFilter) (types.ProblemDetail, error) {
	return types.ProblemDetail{}, store.ErrNotFound
}
func (emptyProblems) Exists(context.Context, int, store.ProblemFilter) error {
	return store.ErrNotFound
}
func (emptyProblems) Create(context.Context, types.ProblemCreateInput, int) (types.ProblemDetail, error) {
	return types.ProblemDetail{}, nil
}
func (emptyProblems) ListTags(context.Context) ([]types.Tag, error) { return nil, nil }

func newTestRouter() http.Handler {
	return NewRouter(Deps{
		Problems:       emptyProblems{},
		JWTSecret:      "secret",
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func TestAmbientRoutes(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		path string
		want string
	}{
		{"/healthz", `"status":"ok"`},
		{"/api/menu/all", `"path":"/problem"`},
		{"/openapi.yaml", "openapi: 3.0.3"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), tc.want) {
			t.Fatalf("%s: unexpected response %d %s", tc.path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ojadmin_http_requests_total") {
		t.Fatalf("metrics did not record earlier requests: %d", rec.Code)
	}
}

func TestProblemRoutesAreProtected(t *testing.T) {
	router := newTestRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/problem/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodOptions, "/api/problem/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
