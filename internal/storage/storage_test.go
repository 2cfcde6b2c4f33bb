package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/photocache/internal/config"
)

type memStorage struct {
	objects     map[string][]byte
	types       map[string]string
	uploadErr   error
	existsErr   error
	uploadCalls int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.uploadCalls++
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) GetURL(key string) string {
	return "https://cdn.example/" + key
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeR2, detectStorageType("https://abc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.eu-west-1.AmazonAWS.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("localhost:9000"))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:9000", normalizeEndpoint("http://localhost:9000/"))
	assert.Equal(t, "bucket.example.com", normalizeEndpoint("https://bucket.example.com/some/path"))
	assert.Equal(t, "minio:9000", normalizeEndpoint("minio:9000"))
}

func TestMirrorKey(t *testing.T) {
	assert.Equal(t, "photos/a.jpg", NewMirror(newMemStorage(), "/photos/").Key("a.jpg"))
	assert.Equal(t, "a.jpg", NewMirror(newMemStorage(), "").Key("a.jpg"))
}

func TestMirrorPutUploadsOnce(t *testing.T) {
	store := newMemStorage()
	m := NewMirror(store, "photos")
	png := []byte("\x89PNG\r\n\x1a\n rest")

	url, err := m.Put(context.Background(), "p.png", png)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/photos/p.png", url)
	assert.Equal(t, png, store.objects["photos/p.png"])
	assert.Equal(t, "image/png", store.types["photos/p.png"])

	_, err = m.Put(context.Background(), "p.png", png)
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploadCalls)
}

func TestMirrorPutErrors(t *testing.T) {
	store := newMemStorage()
	store.uploadErr = errors.New("denied")
	_, err := NewMirror(store, "photos").Put(context.Background(), "a.jpg", []byte("x"))
	assert.ErrorContains(t, err, "photos/a.jpg")

	store = newMemStorage()
	store.existsErr = errors.New("timeout")
	_, err = NewMirror(store, "photos").Put(context.Background(), "a.jpg", []byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, store.uploadCalls)
}

func TestNewMirrorFromConfigDisabled(t *testing.T) {
	m, err := NewMirrorFromConfig(&config.MirrorConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewMirrorFromConfig(nil)
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewS3StorageGetURL(t *testing.T) {
	s, err := NewS3Storage(&S3Config{
		Endpoint:  "http://localhost:9000/",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "photos",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/photos/a.jpg", s.GetURL("a.jpg"))

	s, err = NewS3Storage(&S3Config{
		Endpoint:  "abc.r2.cloudflarestorage.com",
		Type:      StorageTypeR2,
		Bucket:    "photos",
		UseSSL:    true,
		PublicURL: "https://pub.r2.dev/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pub.r2.dev/a.jpg", s.GetURL("a.jpg"))

	_, err = NewS3Storage(&S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

type ensuringStorage struct {
	*memStorage
	ensured bool
}

func (e *ensuringStorage) EnsureBucket(context.Context) error {
	e.ensured = true
	return nil
}

func TestMirrorEnsureReady(t *testing.T) {
	assert.NoError(t, NewMirror(newMemStorage(), "p").EnsureReady(context.Background()))

	store := &ensuringStorage{memStorage: newMemStorage()}
	require.NoError(t, NewMirror(store, "p").EnsureReady(context.Background()))
	assert.True(t, store.ensured)
}
