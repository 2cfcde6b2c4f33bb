package repository

import (
	"context"
	"errors"

	"github.com/timmy/photocache/internal/domain"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when a refresh run does not exist.
var ErrRunNotFound = errors.New("refresh run not found")

const maxListLimit = 200

// RefreshRunRepository stores the history of refresh runs.
type RefreshRunRepository struct {
	db *gorm.DB
}

// NewRefreshRunRepository creates a new RefreshRunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *RefreshRunRepository: repository instance bound to db.
func NewRefreshRunRepository(db *gorm.DB) *RefreshRunRepository {
	return &RefreshRunRepository{db: db}
}

// Create inserts a new run record.
func (r *RefreshRunRepository) Create(ctx context.Context, run *domain.RefreshRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves all fields of an existing run.
func (r *RefreshRunRepository) Update(ctx context.Context, run *domain.RefreshRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetByID retrieves a run by its ID.
// Returns:
//   - *domain.RefreshRun: run record if found.
//   - error: ErrRunNotFound when no such run exists.
func (r *RefreshRunRepository) GetByID(ctx context.Context, id string) (*domain.RefreshRun, error) {
	var run domain.RefreshRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListRecent returns the newest runs first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of runs; values outside 1..200 are clamped.
//
// Returns:
//   - []domain.RefreshRun: runs ordered by start time descending.
//   - error: non-nil if the query fails.
func (r *RefreshRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var runs []domain.RefreshRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// CountByStatus returns the number of runs per status.
func (r *RefreshRunRepository) CountByStatus(ctx context.Context) (map[domain.RunStatus]int64, error) {
	var rows []struct {
		Status domain.RunStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.RefreshRun{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.RunStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
