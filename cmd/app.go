package cmd

import (
	"context"
	"fmt"
	"time"

	"deck-sync/core/config"
	"deck-sync/core/database"
	"deck-sync/core/logger"
	"deck-sync/core/storage"
	"deck-sync/core/worker"
	"deck-sync/feature/deck"
	"deck-sync/feature/deck/store"

	"go.uber.org/zap"
)

// app is what every command needs: configuration, logger, local store and
// the sync service.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	pool    *worker.Pool
	service *deck.Service
}

// openApp loads the configuration and starts the engine. close must be called.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	st := store.New(db, logg)
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	// Attachment contents are optional; without a blob store only metadata syncs.
	var blobs storage.Client
	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewClient(cfg.Storage)
		if err == nil {
			err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
		}
		if err != nil {
			logg.Warn("Attachment storage unavailable, syncing metadata only", zap.Error(err))
		} else {
			blobs = client
		}
	}

	pool := worker.New(cfg.Pool, logg)
	svc := deck.NewService(
		st,
		pool,
		deck.NewDialer(cfg.Sync, logg),
		blobs,
		cfg.Storage.Bucket,
		time.Duration(cfg.Sync.CapabilitiesTTLSeconds)*time.Second,
		logg,
	)

	return &app{cfg: cfg, logger: logg, store: st, pool: pool, service: svc}, nil
}

func (a *app) close() {
	a.pool.Close()
	_ = a.logger.Sync()
}
