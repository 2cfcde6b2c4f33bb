package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/photocache/internal/config"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/metadata"
	"github.com/timmy/photocache/internal/repository"
	"github.com/timmy/photocache/internal/sampler"
	"github.com/timmy/photocache/internal/service"
	"github.com/timmy/photocache/internal/source"
)

type offlineFetcher struct{}

func (offlineFetcher) GetSourceID() string { return "offline" }

func (offlineFetcher) FetchCandidates(context.Context, int) ([]source.Candidate, error) {
	return nil, source.NewFetchError(source.KindNetwork, "fetch", errors.New("offline"))
}

func (offlineFetcher) Download(context.Context, string) ([]byte, error) {
	return nil, source.NewFetchError(source.KindNetwork, "download", errors.New("offline"))
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := metadata.NewStore(afero.NewMemMapFs(), "/cache/photos")
	cache := service.NewCacheService(store, offlineFetcher{}, sampler.New(nil), logger.Discard(), nil)

	return SetupRouter(&Dependencies{
		Cache:  cache,
		Files:  store,
		Logger: logger.Discard(),
	}, RouterConfig{Mode: "test"})
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/photos", http.StatusOK},
		{http.MethodPost, "/api/v1/photos/refresh", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/stats", http.StatusOK},
		{http.MethodGet, "/api/v1/refreshes", http.StatusNotFound},
		{http.MethodGet, "/api/v1/refreshes/some-id", http.StatusNotFound},
		{http.MethodGet, "/photos/files/none.jpg", http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.want, w.Code)
			require.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouterServesRecordedRefreshes(t *testing.T) {
	db, err := repository.InitDB(&config.HistoryConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "history.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	runs := repository.NewRefreshRunRepository(db)

	store := metadata.NewStore(afero.NewMemMapFs(), "/cache/photos")
	cache := service.NewCacheService(store, offlineFetcher{}, sampler.New(nil), logger.Discard(), nil, service.WithRecorder(runs))
	r := SetupRouter(&Dependencies{
		Cache:  cache,
		Files:  store,
		Runs:   runs,
		Logger: logger.Discard(),
	}, RouterConfig{Mode: "test"})

	serve := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	require.Equal(t, http.StatusServiceUnavailable, serve(http.MethodPost, "/api/v1/photos/refresh").Code)

	w := serve(http.MethodGet, "/api/v1/refreshes")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs     []domain.RefreshRun        `json:"runs"`
		ByStatus map[domain.RunStatus]int64 `json:"by_status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, map[domain.RunStatus]int64{domain.RunStatusExhausted: 1}, list.ByStatus)

	w = serve(http.MethodGet, "/api/v1/refreshes/"+list.Runs[0].ID)
	require.Equal(t, http.StatusOK, w.Code)
	var run domain.RefreshRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusExhausted, run.Status)
	assert.NotEmpty(t, run.FetchError)

	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/api/v1/refreshes/unknown").Code)
}
