package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/models"
	"storefront-api/internal/paging"
	"storefront-api/internal/services"
	"storefront-api/internal/woocommerce"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeCatalog struct {
	mu     sync.Mutex
	params services.PageParams
	err    error
}

func (f *fakeCatalog) LoadPage(_ context.Context, params services.PageParams) (*models.PageResponse, error) {
	f.mu.Lock()
	f.params = params
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	next := params.Page + 1
	return &models.PageResponse{
		Query:    models.QueryInfo{Kind: "default"},
		Products: []models.Product{{ID: 1, Name: "Basil"}},
		Page:     params.Page,
		PerPage:  params.PerPage,
		NextPage: &next,
	}, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Product{ID: id, Name: "Basil"}, nil
}

func (f *fakeCatalog) ListCategories(context.Context) ([]models.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Category{{ID: 3, Name: "Herbs", Slug: "herbs"}}, nil
}

func (f *fakeCatalog) lastParams() services.PageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

// pageLoader serves three products on page 1 and nothing after it.
type pageLoader struct {
	mu      sync.Mutex
	queries []paging.Query
}

func (l *pageLoader) Load(_ context.Context, q paging.Query, token paging.Token, _ int) paging.PageResult {
	l.mu.Lock()
	l.queries = append(l.queries, q)
	l.mu.Unlock()

	if token > paging.FirstToken {
		return paging.PageResult{Prev: token - 1}
	}
	items := make([]models.Product, 3)
	for i := range items {
		items[i] = models.Product{ID: i + 1, Name: fmt.Sprintf("%s %d", q.String(), i+1)}
	}
	return paging.PageResult{Items: items, Next: token + 1}
}

func (l *pageLoader) lastQuery() paging.Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queries[len(l.queries)-1]
}

type testServer struct {
	router   *gin.Engine
	catalog  *fakeCatalog
	loader   *pageLoader
	sessions *services.BrowseSessions
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	ts := &testServer{catalog: &fakeCatalog{}, loader: &pageLoader{}}
	ts.sessions = services.NewBrowseSessions(ts.loader, paging.Config{PageSize: 20, PrefetchDistance: 5})
	t.Cleanup(ts.sessions.Close)

	d := Deps{Catalog: ts.catalog, Sessions: ts.sessions}
	if mutate != nil {
		mutate(&d)
	}
	ts.router = New(d).Router()
	return ts
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "redis unavailable", body["cache"])
	assert.Equal(t, "disabled", body["auth"])
	assert.EqualValues(t, 0, body["browse_sessions"])
}

func TestInfo(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /sessions")
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/health", "", requestIDHeader, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	w = ts.do(http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodOptions, "/products", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestListProducts_PassesParams(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/products?q=mint&category=4&page=2&per_page=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, services.PageParams{Search: "mint", CategoryID: 4, Page: 2, PerPage: 10}, ts.catalog.lastParams())

	res := decode[models.PageResponse](t, w)
	require.Len(t, res.Products, 1)
	require.NotNil(t, res.NextPage)
	assert.Equal(t, 3, *res.NextPage)
}

func TestListProducts_BadIntegers(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, q := range []string{"category=x", "page=1.5", "per_page=ten"} {
		t.Run(q, func(t *testing.T) {
			w := ts.do(http.MethodGet, "/products?"+q, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request", decode[models.ErrorResponse](t, w).Error)
		})
	}
}

func TestGetProduct(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/products/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, decode[models.Product](t, w).ID)

	w = ts.do(http.MethodGet, "/products/basil", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCategories(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, body["count"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", fmt.Errorf("%w: per_page too large", services.ErrInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"upstream not found", &woocommerce.Error{Kind: woocommerce.KindServer, StatusCode: 404}, http.StatusNotFound, "not_found"},
		{"upstream 500", &woocommerce.Error{Kind: woocommerce.KindServer, StatusCode: 500}, http.StatusBadGateway, "upstream_error"},
		{"network", &woocommerce.Error{Kind: woocommerce.KindNetwork, Err: errors.New("connection refused")}, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"mapping", &woocommerce.Error{Kind: woocommerce.KindMapping}, http.StatusBadGateway, "upstream_bad_response"},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "upstream_timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.catalog.err = tt.err

			w := ts.do(http.MethodGet, "/products/1", "")
			assert.Equal(t, tt.status, w.Code)

			res := decode[models.ErrorResponse](t, w)
			assert.Equal(t, tt.code, res.Error)
			assert.Equal(t, tt.status, res.Code)
			assert.Equal(t, tt.err.Error(), res.Message)
		})
	}
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.Limiter = NewClientLimiter(0.001, 2)
	})

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "").Code)

	w := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit_exceeded", decode[map[string]any](t, w)["error"])
}

func TestRateLimitStatus(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.Limiter = NewClientLimiter(5, 10)
	})

	w := ts.do(http.MethodGet, "/rate-limit/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 5, body["limit_per_second"])
	assert.EqualValues(t, 10, body["burst_capacity"])
}

func TestRateLimitStatusAbsentWithoutLimiter(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/rate-limit/status", "").Code)
}

func TestClientLimiter_PerClient(t *testing.T) {
	l := NewClientLimiter(0.001, 1)

	assert.True(t, l.get("10.0.0.1").Allow())
	assert.False(t, l.get("10.0.0.1").Allow())
	assert.True(t, l.get("10.0.0.2").Allow())
	assert.Same(t, l.get("10.0.0.1"), l.get("10.0.0.1"))
}

func TestClientLimiter_PruneDropsQuietClients(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewClientLimiter(0.001, 1)
	l.now = func() time.Time { return now }

	quiet := l.get("10.0.0.1")
	require.True(t, quiet.Allow())
	l.get("10.0.0.2")

	now = now.Add(8 * time.Minute)
	l.get("10.0.0.2")
	now = now.Add(3 * time.Minute)

	assert.Equal(t, 1, l.Prune(10*time.Minute))
	assert.Equal(t, 1, l.Len())

	// A client that comes back after being pruned gets a fresh bucket.
	back := l.get("10.0.0.1")
	assert.NotSame(t, quiet, back)
	assert.True(t, back.Allow())
	assert.Equal(t, 2, l.Len())
}

func TestClientLimiter_StartReaper(t *testing.T) {
	l := NewClientLimiter(5, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l.StartReaper(ctx, 20*time.Millisecond)
	l.get("10.0.0.1")
	l.get("10.0.0.2")

	require.Eventually(t, func() bool { return l.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCacheEndpointsWithoutRedis(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/cache/stats"},
		{http.MethodGet, "/cache/debug"},
		{http.MethodDelete, "/cache/flush"},
	} {
		assert.Equal(t, http.StatusServiceUnavailable, ts.do(r.method, r.path, "").Code, r.path)
	}
}

func TestBearer(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer  abc ":    "abc",
		"Basic dXNlcjpw":  "",
		"Bearer":          "",
		"BearerXabcdefgh": "",
	}
	for header, want := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearer(c), "header %q", header)
	}
}
