package provider

import (
	"context"
	"strconv"
	"time"

	"deck-sync/core/cache"
	"deck-sync/core/storage"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/store"

	"go.uber.org/zap"
)

// Env holds what the providers of one session share.
type Env struct {
	Store   *store.Store
	API     remote.API
	Account *models.Account
	// Blobs holds attachment contents. Without it attachments sync metadata only.
	Blobs  storage.Client
	Bucket string
	// Caps caches server capabilities per account. Nil disables caching.
	Caps   *cache.Cache[remote.Capabilities]
	Logger *zap.Logger
	Now    func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// capabilities checks that the server is reachable and not in maintenance.
func (e *Env) capabilities(ctx context.Context) (remote.Capabilities, error) {
	if e.Caps == nil {
		return e.API.Capabilities(ctx)
	}
	return e.Caps.GetOrLoad(ctx, strconv.FormatInt(e.Account.ID, 10), e.API.Capabilities)
}

func (e *Env) checkServer(ctx context.Context) error {
	_, err := e.capabilities(ctx)
	return err
}
