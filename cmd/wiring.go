package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matching"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/web"
)

// services is the fully wired application stack shared by the commands.
type services struct {
	cfg      *config.Config
	repo     web.Repository
	detector *extractor.Client
	store    *gallery.Store
	cache    *gallery.Cache
	engine   *matching.Engine
	marker   *attendance.Marker
	trainer  *session.Trainer
	manager  *session.Manager

	closeRepo func() error
}

// connectRepository opens the configured backend: PostgreSQL when
// DATABASE_URL is set, MariaDB as the fallback for deployments that
// already run one.
func connectRepository(ctx context.Context, cfg *config.Config) (web.Repository, func() error, error) {
	if cfg.Database.URL != "" {
		fmt.Println("Connecting to PostgreSQL database...")
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate PostgreSQL schema: %w", err)
		}
		return pool, pool.Close, nil
	}

	if cfg.MariaDB.DSN != "" {
		fmt.Println("Connecting to MariaDB database...")
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate MariaDB schema: %w", err)
		}
		return pool, pool.Close, nil
	}

	return nil, nil, errors.New("DATABASE_URL or MARIADB_DSN environment variable is required")
}

// initServices wires the full stack from configuration.
func initServices(ctx context.Context) (*services, error) {
	cfg := config.Load()

	repo, closeRepo, err := connectRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	detector, err := extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.Provider, cfg.Extractor.Dim)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("failed to create extractor client: %w", err)
	}

	store, err := gallery.NewStore(cfg.Gallery.Dir)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("failed to open gallery store: %w", err)
	}
	cache := gallery.NewCache(store)

	engine := matching.NewEngine(cache, detector, cfg.Extractor.Resize)
	marker := attendance.NewMarker(repo, repo)
	trainer := session.NewTrainer(repo, repo, detector, store, cache,
		session.FileLoader{Base: cfg.Gallery.SamplesDir})
	manager := session.NewManager(engine, marker,
		cfg.Threshold("stream"),
		cfg.Session.FrameDecimation,
		time.Duration(cfg.Session.SuppressSeconds)*time.Second)

	return &services{
		cfg:       cfg,
		repo:      repo,
		detector:  detector,
		store:     store,
		cache:     cache,
		engine:    engine,
		marker:    marker,
		trainer:   trainer,
		manager:   manager,
		closeRepo: closeRepo,
	}, nil
}

// Close releases the backing connections.
func (s *services) Close() error {
	return s.closeRepo()
}
