package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ads-api/internal/domain"
	"ads-api/internal/infrastructure/cache"
	"ads-api/internal/infrastructure/metrics"
	"ads-api/internal/repository"
	"ads-api/internal/service"
	"ads-api/internal/validation"
	"ads-api/pkg/database"
	"ads-api/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	target, err := database.ParseURL("sqlite:///" + filepath.Join(t.TempDir(), "instance", "ads.db"))
	require.NoError(t, err)

	db, err := database.NewDatabase(context.Background(), target, repository.EnsureSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := metrics.NewRegistry()
	repo := repository.NewSQLAdvertisementRepository(db, target.Dialect, cache.NewNoopCache(), time.Minute,
		metrics.NewRepositoryMetrics(registry))
	svc := service.NewAdvertisementService(repo, validation.New(), metrics.NewServiceMetrics(registry))

	srv := httptest.NewServer(NewRouter(svc, logger.NewDiscardLoggers(), metrics.NewHandlerMetrics(registry), registry))
	t.Cleanup(srv.Close)

	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func createAdvertisement(t *testing.T, srv *httptest.Server, title, description, owner string) domain.Advertisement {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"title": title, "description": description, "owner": owner})
	require.NoError(t, err)

	resp, body := call(t, srv, http.MethodPost, "/api/advertisements", string(payload))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var ad domain.Advertisement
	require.NoError(t, json.Unmarshal(body, &ad))
	return ad
}

func assertCORS(t *testing.T, resp *http.Response) {
	t.Helper()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestAdvertisementLifecycle(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := call(t, srv, http.MethodPost, "/api/advertisements",
		`{"title":"Sale","description":"50% off","owner":"alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assertCORS(t, resp)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.IsType(t, float64(0), raw["id"])
	assert.Equal(t, "Sale", raw["title"])
	assert.Equal(t, "50% off", raw["description"])
	assert.Equal(t, "alice", raw["owner"])
	require.NotNil(t, raw["created_at"])

	createdAt, err := time.Parse(time.RFC3339Nano, raw["created_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), createdAt, time.Minute)

	path := fmt.Sprintf("/api/advertisements/%d", int64(raw["id"].(float64)))

	resp, fetched := call(t, srv, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(body), string(fetched))

	resp, deleted := call(t, srv, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, deleted)
	assertCORS(t, resp)

	resp, missing := call(t, srv, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Advertisement not found"}`, string(missing))
}

func TestListNewestFirst(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := call(t, srv, http.MethodGet, "/api/advertisements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	for _, title := range []string{"A", "B", "C"} {
		createAdvertisement(t, srv, title, "desc", "owner")
	}

	resp, body = call(t, srv, http.MethodGet, "/api/advertisements", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ads []domain.Advertisement
	require.NoError(t, json.Unmarshal(body, &ads))
	require.Len(t, ads, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{ads[0].Title, ads[1].Title, ads[2].Title})
}

func TestPartialUpdate(t *testing.T) {
	srv := newTestAPI(t)
	created := createAdvertisement(t, srv, "Bike", "Red bike", "bob")
	path := fmt.Sprintf("/api/advertisements/%d", created.ID)

	resp, body := call(t, srv, http.MethodPut, path, `{"title":"Blue bike"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated domain.Advertisement
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Blue bike", updated.Title)
	assert.Equal(t, "Red bike", updated.Description)
	assert.Equal(t, "bob", updated.Owner)
	require.NotNil(t, updated.CreatedAt)
	assert.True(t, created.CreatedAt.Equal(*updated.CreatedAt))

	resp, body = call(t, srv, http.MethodPut, path, `{"owner":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"field":"owner"`)

	resp, _ = call(t, srv, http.MethodPut, path, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTitleLengthBoundary(t *testing.T) {
	srv := newTestAPI(t)

	tests := []struct {
		name       string
		title      string
		wantStatus int
	}{
		{name: "empty", title: "", wantStatus: http.StatusBadRequest},
		{name: "256 chars", title: strings.Repeat("t", 256), wantStatus: http.StatusCreated},
		{name: "257 chars", title: strings.Repeat("t", 257), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]string{"title": tt.title, "description": "d", "owner": "o"})
			require.NoError(t, err)

			resp, body := call(t, srv, http.MethodPost, "/api/advertisements", string(payload))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusBadRequest {
				var verrs struct {
					Errors []struct {
						Field string `json:"field"`
					} `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(body, &verrs))
				require.NotEmpty(t, verrs.Errors)
				assert.Equal(t, "title", verrs.Errors[0].Field)
			}
		})
	}
}

func TestCreateMalformedBody(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := call(t, srv, http.MethodPost, "/api/advertisements", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Invalid JSON or missing fields"}`, string(body))
}

func TestUnknownIDIsUniform404(t *testing.T) {
	srv := newTestAPI(t)

	for _, id := range []string{"4242", "0", "-1"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			resp, body := call(t, srv, method, "/api/advertisements/"+id, `{"title":"x"}`)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, method+" "+id)
			assert.JSONEq(t, `{"error":"Advertisement not found"}`, string(body), method+" "+id)
		}
	}
}

func TestUpdateRejectsNullBody(t *testing.T) {
	srv := newTestAPI(t)
	created := createAdvertisement(t, srv, "Lamp", "Desk lamp", "dave")

	resp, body := call(t, srv, http.MethodPut, fmt.Sprintf("/api/advertisements/%d", created.ID), `null`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, string(body))
}

func TestOptionsShortCircuits(t *testing.T) {
	srv := newTestAPI(t)

	for _, path := range []string{"/", "/api/advertisements", "/api/advertisements/1", "/does/not/exist"} {
		resp, body := call(t, srv, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
		assert.Empty(t, body, path)
		assertCORS(t, resp)
	}
}

func TestFallbackRoutes(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := call(t, srv, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Not found"}`, string(body))
	assertCORS(t, resp)

	resp, body = call(t, srv, http.MethodPatch, "/api/advertisements", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, string(body))
	assertCORS(t, resp)
}

func TestIndexAndMetrics(t *testing.T) {
	srv := newTestAPI(t)

	resp, body := call(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, string(body), "/api/advertisements")
	assertCORS(t, resp)

	call(t, srv, http.MethodGet, "/api/advertisements", "")

	resp, body = call(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ads_api_handler_requests_total")
	assert.Contains(t, string(body), "ads_api_repository_queries_total")
}
