package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/timmy/photocache/internal/logger"
)

// Mirror copies cached payloads to an object store under a key prefix.
type Mirror struct {
	store  ObjectStorage
	prefix string
}

// NewMirror wraps store. Keys are "<prefix>/<filename>"; an empty prefix
// stores objects at the bucket root.
func NewMirror(store ObjectStorage, prefix string) *Mirror {
	return &Mirror{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for a cached filename.
func (m *Mirror) Key(filename string) string {
	if m.prefix == "" {
		return filename
	}
	return path.Join(m.prefix, filename)
}

// Put uploads data for filename and returns the object's URL. Objects that
// already exist are left alone.
func (m *Mirror) Put(ctx context.Context, filename string, data []byte) (string, error) {
	key := m.Key(filename)

	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("mirror %s: %w", key, err)
	}
	if exists {
		logger.CtxDebug(ctx, "Mirror already has %s", key)
		return m.store.GetURL(key), nil
	}

	start := time.Now()
	if err := m.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), http.DetectContentType(data)); err != nil {
		return "", fmt.Errorf("mirror %s: %w", key, err)
	}

	logger.With(logger.Fields{
		logger.FieldSize:       len(data),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug(ctx, "Mirrored %s", key)

	return m.store.GetURL(key), nil
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// EnsureReady creates the target bucket when the backing store supports it.
func (m *Mirror) EnsureReady(ctx context.Context) error {
	if e, ok := m.store.(bucketEnsurer); ok {
		return e.EnsureBucket(ctx)
	}
	return nil
}
