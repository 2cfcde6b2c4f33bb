package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/photocache/internal/app"
	"github.com/timmy/photocache/internal/config"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/service"
	"github.com/timmy/photocache/internal/source"
)

type offline struct{}

func (offline) GetSourceID() string { return "offline" }

func (offline) FetchCandidates(context.Context, int) ([]source.Candidate, error) {
	return nil, source.NewFetchError(source.KindNetwork, "fetch", errors.New("offline"))
}

func (offline) Download(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

func newApp(t *testing.T, fs afero.Fs) *app.App {
	t.Helper()
	cfg := &config.Config{Cache: config.CacheConfig{Root: "/cache", MaxItems: 100, BatchSize: 10, SampleSize: 10}}
	a, err := app.New(context.Background(), cfg, logger.Discard(), &app.Options{Fs: fs, Fetcher: offline{}})
	require.NoError(t, err)
	return a
}

func TestRunRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := newApp(t, fs)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, a.Store.WritePayload(id+".jpg", []byte("x")))
	}
	require.NoError(t, a.Store.Save(context.Background(), domain.Catalog{
		{ID: "a", Filename: "a.jpg"}, {ID: "b", Filename: "b.jpg"}, {ID: "c", Filename: "c.jpg"},
	}))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), a, "read", 2, &out))

	var photos []domain.Photo
	require.NoError(t, json.Unmarshal(out.Bytes(), &photos))
	assert.Len(t, photos, 2)
}

func TestRunRefreshExhausted(t *testing.T) {
	a := newApp(t, afero.NewMemMapFs())

	var out bytes.Buffer
	err := run(context.Background(), a, "refresh", 0, &out)

	assert.ErrorIs(t, err, service.ErrNoItemsAvailable)
	assert.JSONEq(t, `{"error":"no items available"}`, out.String())
}

func TestRunStats(t *testing.T) {
	a := newApp(t, afero.NewMemMapFs())

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), a, "stats", 0, &out))

	assert.JSONEq(t, `{"total":0,"live":0,"max_items":100,"cache_dir":"/cache/photos"}`, out.String())
}

func TestRunUnknownAndHistoryDisabled(t *testing.T) {
	a := newApp(t, afero.NewMemMapFs())

	assert.Error(t, run(context.Background(), a, "bogus", 0, &bytes.Buffer{}))
	assert.Error(t, run(context.Background(), a, "history", 0, &bytes.Buffer{}))
}

func TestCLILogConfigKeepsFileOutput(t *testing.T) {
	t.Setenv("LOG_FILE", "/tmp/photocache-cli.log")

	cfg := cliLogConfig()

	assert.Nil(t, cfg.Output)
	assert.Same(t, os.Stderr, cfg.Console)
	assert.Equal(t, "photocache-cli", cfg.ServiceName)
	assert.Equal(t, "/tmp/photocache-cli.log", cfg.LogFile)
}
