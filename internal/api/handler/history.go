package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/photocache/internal/api/middleware"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/repository"
)

// RunHistory reads refresh history. *repository.RefreshRunRepository implements it.
type RunHistory interface {
	ListRecent(ctx context.Context, limit int) ([]domain.RefreshRun, error)
	GetByID(ctx context.Context, id string) (*domain.RefreshRun, error)
	CountByStatus(ctx context.Context) (map[domain.RunStatus]int64, error)
}

// HistoryHandler serves the refresh run history.
type HistoryHandler struct {
	runs RunHistory
}

// NewHistoryHandler creates a new history handler. runs may be nil when
// history is disabled.
func NewHistoryHandler(runs RunHistory) *HistoryHandler {
	return &HistoryHandler{runs: runs}
}

// ListRefreshes handles GET /api/v1/refreshes.
func (h *HistoryHandler) ListRefreshes(c *gin.Context) {
	if h.runs == nil {
		historyDisabled(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	ctx := c.Request.Context()
	runs, err := h.runs.ListRecent(ctx, limit)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list refresh runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list refresh runs"})
		return
	}
	if runs == nil {
		runs = []domain.RefreshRun{}
	}

	counts, err := h.runs.CountByStatus(ctx)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to count refresh runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list refresh runs"})
		return
	}
	if counts == nil {
		counts = map[domain.RunStatus]int64{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":      runs,
		"total":     len(runs),
		"by_status": counts,
	})
}

// GetRefresh handles GET /api/v1/refreshes/:id.
func (h *HistoryHandler) GetRefresh(c *gin.Context) {
	if h.runs == nil {
		historyDisabled(c)
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Refresh run not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to load refresh run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load refresh run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func historyDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Refresh history is disabled"})
}
