package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/sampler"
	"github.com/timmy/photocache/internal/source"
)

// ErrNoItemsAvailable is returned by Refresh when nothing new could be fetched
// and no cached photo is available either.
var ErrNoItemsAvailable = errors.New("no items available")

// CatalogStore is the persistence the cache needs. *metadata.Store implements it.
type CatalogStore interface {
	Dir() string
	Load(ctx context.Context) domain.Catalog
	Save(ctx context.Context, catalog domain.Catalog) error
	Exists(filename string) bool
	WritePayload(filename string, data []byte) error
}

// RunRecorder stores refresh run history. *repository.RefreshRunRepository implements it.
type RunRecorder interface {
	Create(ctx context.Context, run *domain.RefreshRun) error
	Update(ctx context.Context, run *domain.RefreshRun) error
}

// PayloadMirror copies new payloads elsewhere. *storage.Mirror implements it.
type PayloadMirror interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
}

// CacheConfig holds the sizing knobs of the cache.
type CacheConfig struct {
	MaxItems   int // catalog bound; refreshes stop downloading once reached
	BatchSize  int // candidates requested per refresh
	SampleSize int // photos returned by cache-full and fallback refreshes
}

// CacheStats summarizes the catalog.
type CacheStats struct {
	Total    int    `json:"total"`
	Live     int    `json:"live"`
	MaxItems int    `json:"max_items"`
	CacheDir string `json:"cache_dir"`
}

// Option configures optional collaborators of CacheService.
type Option func(*CacheService)

// WithRecorder enables refresh run history.
func WithRecorder(r RunRecorder) Option {
	return func(s *CacheService) { s.recorder = r }
}

// WithMirror enables mirroring of newly downloaded payloads.
func WithMirror(m PayloadMirror) Option {
	return func(s *CacheService) { s.mirror = m }
}

// CacheService keeps a bounded local catalog of photos fresh from a remote
// provider and serves views of it.
type CacheService struct {
	store    CatalogStore
	fetcher  source.Fetcher
	sampler  *sampler.Sampler
	recorder RunRecorder
	mirror   PayloadMirror
	logger   *logger.Logger

	maxItems   int
	batchSize  int
	sampleSize int

	// Serializes Refresh within the process.
	mu sync.Mutex
}

// NewCacheService creates a new cache service.
// Parameters:
//   - store: catalog and payload persistence.
//   - fetcher: remote photo provider.
//   - smp: sampler used for every returned view.
//   - log: base logger; request fields carried by ctx are kept.
//   - cfg: sizing; zero values fall back to 1000 / 10 / 10.
//   - opts: optional recorder and mirror.
//
// Returns:
//   - *CacheService: ready to use service.
func NewCacheService(store CatalogStore, fetcher source.Fetcher, smp *sampler.Sampler, log *logger.Logger, cfg *CacheConfig, opts ...Option) *CacheService {
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	if smp == nil {
		smp = sampler.New(nil)
	}
	if log == nil {
		log = logger.GetDefault()
	}

	s := &CacheService{
		store:      store,
		fetcher:    fetcher,
		sampler:    smp,
		logger:     log,
		maxItems:   cfg.MaxItems,
		batchSize:  cfg.BatchSize,
		sampleSize: cfg.SampleSize,
	}
	if s.maxItems <= 0 {
		s.maxItems = domain.MaxItems
	}
	if s.batchSize <= 0 {
		s.batchSize = 10
	}
	if s.sampleSize <= 0 {
		s.sampleSize = 10
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scope binds the service logger to ctx, keeping any fields ctx already carries.
func (s *CacheService) scope(ctx context.Context) context.Context {
	fields := logger.Fields(logger.FromContext(ctx).Data)
	return s.logger.WithFields(fields).WithContext(ctx)
}

// Read returns every cached photo whose payload is still on disk, rotated by
// the sampler. It never touches the network and never fails.
func (s *CacheService) Read(ctx context.Context) []domain.Photo {
	ctx = s.scope(ctx)
	records := s.store.Load(ctx)
	return s.sampler.Sample(s.live(records), sampler.Unbounded)
}

// Stats reports catalog size against its bound.
func (s *CacheService) Stats(ctx context.Context) CacheStats {
	ctx = s.scope(ctx)
	records := s.store.Load(ctx)
	return CacheStats{
		Total:    len(records),
		Live:     len(s.live(records)),
		MaxItems: s.maxItems,
		CacheDir: s.store.Dir(),
	}
}

// Refresh tries to add new photos to the cache.
// Parameters:
//   - ctx: cancelling it during the fetch phase aborts without touching the catalog.
//
// Returns:
//   - []domain.Photo: the newly added photos; or a sample of cached ones when
//     the catalog is full or nothing new could be fetched.
//   - error: ErrNoItemsAvailable, or the context error on cancellation.
func (s *CacheService) Refresh(ctx context.Context) ([]domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New().String()
	ctx = logger.SetRunID(s.scope(ctx), runID)
	ctx = logger.SetSource(ctx, s.fetcher.GetSourceID())

	run := &domain.RefreshRun{
		ID:        runID,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	}
	s.recordStart(ctx, run)

	photos, err := s.refresh(ctx, run)

	run.Returned = len(photos)
	s.recordFinish(ctx, run)

	logger.With(logger.Fields{
		"added":        run.Added,
		"catalog_size": run.CatalogSize,
	}).WithDuration(time.Since(run.StartedAt).Milliseconds()).
		WithCount(len(photos)).
		WithStatus(string(run.Status)).
		Info(ctx, "Refresh finished")

	return photos, err
}

func (s *CacheService) refresh(ctx context.Context, run *domain.RefreshRun) ([]domain.Photo, error) {
	records := s.store.Load(ctx)
	run.CatalogSize = len(records)

	if len(records) >= s.maxItems {
		logger.CtxInfo(ctx, "Catalog holds %d of %d photos, skipping fetch", len(records), s.maxItems)
		run.Status = domain.RunStatusCacheFull
		return s.sampler.Sample(s.live(records), s.sampleSize), nil
	}

	candidates, err := s.fetcher.FetchCandidates(ctx, s.batchSize)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, s.canceled(run, ctxErr)
		}
		run.FetchError = err.Error()
		logger.FromContext(ctx).WithError(err).
			WithField("kind", source.KindOf(err).String()).
			Warn("Failed to fetch candidates, serving cached photos")
		return s.fallback(ctx, run, records)
	}
	run.Candidates = len(candidates)

	working := records.Clone()
	known := records.IDs()
	added := make([]domain.Photo, 0, len(candidates))
	dir := s.store.Dir()

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, s.canceled(run, err)
		}
		if _, dup := known[c.ID]; dup {
			run.SkippedDuplicate++
			continue
		}
		if c.DownloadURL == "" {
			run.SkippedNoURL++
			continue
		}
		if !safeID(c.ID) {
			run.Failed++
			logger.FromContext(ctx).WithField(logger.FieldPhotoID, c.ID).
				Warn("Skipping photo with unusable id")
			continue
		}

		run.Attempted++
		record, data, err := s.admit(ctx, c)
		if err != nil {
			run.Failed++
			logger.FromContext(ctx).WithError(err).
				WithField(logger.FieldPhotoID, c.ID).
				Warn("Skipping photo")
			continue
		}

		known[record.ID] = struct{}{}
		working = append(working, record)
		added = append(added, record.ToPhoto(dir))
		run.AddedIDs = append(run.AddedIDs, record.ID)
		s.mirrorPayload(ctx, record.Filename, data)

		if len(working) >= s.maxItems {
			logger.CtxInfo(ctx, "Catalog reached %d photos, stopping batch", s.maxItems)
			break
		}
	}

	// A download interrupted by cancellation looks like a per-item failure.
	if err := ctx.Err(); err != nil {
		return nil, s.canceled(run, err)
	}

	run.Added = len(added)
	run.CatalogSize = len(working)
	if err := s.store.Save(ctx, working); err != nil {
		logger.CtxError(ctx, "Failed to persist catalog of %d photos: %v", len(working), err)
	}

	if len(added) > 0 {
		run.Status = domain.RunStatusCompleted
		return added, nil
	}
	return s.fallback(ctx, run, records)
}

// admit downloads one candidate and writes its payload to the cache directory.
// c.ID must already have passed safeID.
func (s *CacheService) admit(ctx context.Context, c source.Candidate) (domain.PhotoRecord, []byte, error) {
	data, err := s.fetcher.Download(ctx, c.DownloadURL)
	if err != nil {
		return domain.PhotoRecord{}, nil, err
	}

	ext, err := inspectPayload(data)
	if err != nil {
		return domain.PhotoRecord{}, nil, source.NewFetchError(source.KindMalformed, "download", err)
	}

	filename := c.ID + "." + ext
	if err := s.store.WritePayload(filename, data); err != nil {
		return domain.PhotoRecord{}, nil, fmt.Errorf("failed to store payload: %w", err)
	}

	return domain.PhotoRecord{
		ID:           c.ID,
		Photographer: c.Photographer,
		ProfileURL:   c.ProfileURL,
		Filename:     filename,
	}, data, nil
}

// fallback serves a sample of the pre-refresh catalog.
func (s *CacheService) fallback(ctx context.Context, run *domain.RefreshRun, records domain.Catalog) ([]domain.Photo, error) {
	sample := s.sampler.Sample(s.live(records), s.sampleSize)
	if len(sample) == 0 {
		run.Status = domain.RunStatusExhausted
		logger.CtxWarn(ctx, "Nothing new fetched and no cached photos available")
		return nil, ErrNoItemsAvailable
	}
	run.Status = domain.RunStatusFallback
	return sample, nil
}

func (s *CacheService) canceled(run *domain.RefreshRun, err error) error {
	run.Status = domain.RunStatusCanceled
	return fmt.Errorf("refresh canceled: %w", err)
}

// live resolves records whose payload file exists. Missing files are skipped,
// not pruned from the catalog.
func (s *CacheService) live(records domain.Catalog) []domain.Photo {
	dir := s.store.Dir()
	out := make([]domain.Photo, 0, len(records))
	for _, r := range records {
		if s.store.Exists(r.Filename) {
			out = append(out, r.ToPhoto(dir))
		}
	}
	return out
}

func (s *CacheService) mirrorPayload(ctx context.Context, filename string, data []byte) {
	if s.mirror == nil {
		return
	}
	url, err := s.mirror.Put(ctx, filename, data)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("filename", filename).Warn("Failed to mirror payload")
		return
	}
	logger.CtxDebug(ctx, "Mirrored %s to %s", filename, url)
}

func (s *CacheService) recordStart(ctx context.Context, run *domain.RefreshRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Create(ctx, run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record refresh run")
	}
}

func (s *CacheService) recordFinish(ctx context.Context, run *domain.RefreshRun) {
	if s.recorder == nil {
		return
	}
	now := time.Now()
	run.CompletedAt = &now
	// Canceled runs are still written.
	if err := s.recorder.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to update refresh run")
	}
}

// safeID rejects ids that cannot be used verbatim as a file name.
func safeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}
