// Package app wires configuration into a ready photo cache for the commands.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/timmy/photocache/internal/config"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/metadata"
	"github.com/timmy/photocache/internal/repository"
	"github.com/timmy/photocache/internal/sampler"
	"github.com/timmy/photocache/internal/service"
	"github.com/timmy/photocache/internal/source"
	"github.com/timmy/photocache/internal/source/unsplash"
	"github.com/timmy/photocache/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components.
type App struct {
	Cache *service.CacheService
	Store *metadata.Store
	Runs  *repository.RefreshRunRepository // nil when history is disabled

	db *gorm.DB
}

// Options override parts of the wiring, mainly for tests.
type Options struct {
	Fs      afero.Fs       // nil uses the OS filesystem
	Fetcher source.Fetcher // nil builds the Unsplash client
	Clock   sampler.Clock  // nil uses the system clock
}

// New builds the cache service and its optional history and mirror.
// Parameters:
//   - ctx: used for startup checks such as the mirror bucket.
//   - cfg: loaded configuration.
//   - log: base logger.
//   - opts: optional overrides; may be nil.
//
// Returns:
//   - *App: wired components; call Close when done.
//   - error: non-nil if an enabled component cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = unsplash.NewClient(&unsplash.Config{
			AccessKey:        cfg.Unsplash.AccessKey,
			BaseURL:          cfg.Unsplash.BaseURL,
			Query:            cfg.Unsplash.Query,
			Timeout:          cfg.Unsplash.Timeout,
			MaxDownloadBytes: cfg.Unsplash.MaxDownloadBytes,
			UserAgent:        cfg.Unsplash.UserAgent,
		})
	}
	if cfg.Unsplash.AccessKey == "" && opts.Fetcher == nil {
		log.Warn("UNSPLASH_ACCESS_KEY is not set; refreshes will serve cached photos only")
	}

	store := metadata.NewStore(opts.Fs, cfg.Cache.Dir())
	a := &App{Store: store}

	var svcOpts []service.Option

	if cfg.History.Enabled {
		db, err := repository.InitDB(&cfg.History)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
		a.db = db
		a.Runs = repository.NewRefreshRunRepository(db)
		svcOpts = append(svcOpts, service.WithRecorder(a.Runs))
	}

	mirror, err := storage.NewMirrorFromConfig(&cfg.Mirror)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize mirror: %w", err)
	}
	if mirror != nil {
		if err := mirror.EnsureReady(ctx); err != nil {
			log.WithError(err).Warn("Mirror bucket is not ready; uploads may fail")
		}
		svcOpts = append(svcOpts, service.WithMirror(mirror))
		log.WithField("bucket", cfg.Mirror.Bucket).Info("Payload mirror enabled")
	}

	a.Cache = service.NewCacheService(
		store,
		fetcher,
		sampler.New(opts.Clock),
		log,
		&service.CacheConfig{
			MaxItems:   cfg.Cache.MaxItems,
			BatchSize:  cfg.Cache.BatchSize,
			SampleSize: cfg.Cache.SampleSize,
		},
		svcOpts...,
	)

	log.WithFields(logger.Fields{
		"cache_dir": store.Dir(),
		"max_items": cfg.Cache.MaxItems,
		"history":   cfg.History.Enabled,
	}).Info("Photo cache ready")

	return a, nil
}

// Close releases the history database, if open.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
