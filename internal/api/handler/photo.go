package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/timmy/photocache/internal/api/middleware"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/service"
)

// FilesPrefix is the route prefix under which cached payloads are served.
const FilesPrefix = "/photos/files"

// PhotoCache is the cache surface exposed over HTTP. *service.CacheService implements it.
type PhotoCache interface {
	Read(ctx context.Context) []domain.Photo
	Refresh(ctx context.Context) ([]domain.Photo, error)
	Stats(ctx context.Context) service.CacheStats
}

// PayloadOpener opens cached payload files. *metadata.Store implements it.
type PayloadOpener interface {
	OpenPayload(filename string) (afero.File, error)
}

// PhotoResponse is a photo plus the HTTP path of its cached file.
type PhotoResponse struct {
	domain.Photo
	FileURL string `json:"file_url"`
}

// PhotoListResponse is returned by list and refresh.
type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos"`
	Total  int             `json:"total"`
}

// PhotoHandler handles photo endpoints.
type PhotoHandler struct {
	cache PhotoCache
	files PayloadOpener
}

// NewPhotoHandler creates a new photo handler.
// Parameters:
//   - cache: photo cache service.
//   - files: opener for cached payloads.
//
// Returns:
//   - *PhotoHandler: initialized handler.
func NewPhotoHandler(cache PhotoCache, files PayloadOpener) *PhotoHandler {
	return &PhotoHandler{cache: cache, files: files}
}

// ListPhotos handles GET /api/v1/photos.
// It only reads the local cache and always succeeds.
func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	photos := h.cache.Read(c.Request.Context())
	c.JSON(http.StatusOK, newPhotoList(photos))
}

// RefreshPhotos handles POST /api/v1/photos/refresh.
func (h *PhotoHandler) RefreshPhotos(c *gin.Context) {
	ctx := c.Request.Context()

	photos, err := h.cache.Refresh(ctx)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoItemsAvailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			middleware.GetLogger(c).WithError(err).Warn("Refresh interrupted")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh interrupted"})
		default:
			middleware.GetLogger(c).WithError(err).Error("Refresh failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh photos: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, newPhotoList(photos))
}

// GetStats handles GET /api/v1/stats.
func (h *PhotoHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats(c.Request.Context()))
}

// ServeFile handles GET /photos/files/:filename.
func (h *PhotoHandler) ServeFile(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	f, err := h.files.OpenPayload(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).WithField("filename", name).Error("Failed to open payload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open photo"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

func newPhotoList(photos []domain.Photo) PhotoListResponse {
	out := make([]PhotoResponse, len(photos))
	for i, p := range photos {
		out[i] = PhotoResponse{
			Photo:   p,
			FileURL: path.Join(FilesPrefix, filepath.Base(p.URL)),
		}
	}
	return PhotoListResponse{Photos: out, Total: len(out)}
}
