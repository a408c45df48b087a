package deck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"deck-sync/core/cache"
	"deck-sync/core/config"
	"deck-sync/core/errs"
	"deck-sync/core/storage"
	"deck-sync/core/worker"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/provider"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/session"
	"deck-sync/feature/deck/store"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Dialer returns the remote API client of an account.
type Dialer func(a *models.Account) remote.API

// NewDialer returns a Dialer building HTTP clients with the given settings.
func NewDialer(cfg config.SyncConfig, logger *zap.Logger) Dialer {
	return func(a *models.Account) remote.API {
		return remote.New(remote.Config{
			URL:       a.URL,
			User:      a.UserName,
			Token:     a.Token,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			UserAgent: cfg.UserAgent,
		}, logger.With(zap.String("account", a.Name)))
	}
}

// AccountInput holds what is needed to add an account.
type AccountInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	UserName string `json:"user_name"`
	Token    string `json:"token"`
	Color    string `json:"color"`
}

// Service is the entry point of the engine. Every operation runs on the
// worker pool and reports through a Callback; an error returned directly
// means the callback will not be called.
type Service struct {
	store  *store.Store
	pool   *worker.Pool
	dial   Dialer
	blobs  storage.Client
	bucket string
	caps   *cache.Cache[remote.Capabilities]
	logger *zap.Logger
	slots  *slots
}

// NewService creates a service. blobs may be nil, in which case attachments
// are synchronized without their content.
func NewService(st *store.Store, pool *worker.Pool, dial Dialer, blobs storage.Client, bucket string, capsTTL time.Duration, logger *zap.Logger) *Service {
	s := &Service{
		store:  st,
		pool:   pool,
		dial:   dial,
		blobs:  blobs,
		bucket: bucket,
		caps:   cache.New[remote.Capabilities](capsTTL),
		logger: logger,
		slots:  newSlots(),
	}
	if blobs != nil {
		st.OnBlobsReleased(s.removeBlobs)
	}
	return s
}

func (s *Service) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !storage.IsNotFound(err) {
			s.logger.Warn("Failed to remove attachment content", zap.String("key", key), zap.Error(err))
		}
	}
}

// precondition turns a failed lookup into errs.ErrPrecondition, keeping the cause.
func precondition(err error) error {
	if err == nil || errors.Is(err, errs.ErrPrecondition) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrPrecondition, err)
}

func (s *Service) account(id int64) (*models.Account, error) {
	a, err := s.store.Account(context.Background(), id)
	return a, precondition(err)
}

// HasAccounts reports whether any account is configured.
func (s *Service) HasAccounts(cb Callback[bool]) error {
	return submit(s, "has accounts", cb, s.store.HasAccounts)
}

// ReadAccount returns one account.
func (s *Service) ReadAccount(id int64, cb Callback[*models.Account]) error {
	return submit(s, "read account", cb, func(ctx context.Context) (*models.Account, error) {
		return s.store.Account(ctx, id)
	})
}

// ReadAccountByName returns the account with the given name.
func (s *Service) ReadAccountByName(name string, cb Callback[*models.Account]) error {
	return submit(s, "read account", cb, func(ctx context.Context) (*models.Account, error) {
		return s.store.AccountByName(ctx, name)
	})
}

// ReadAccounts lists every account.
func (s *Service) ReadAccounts(cb Callback[[]models.Account]) error {
	return submit(s, "read accounts", cb, s.store.Accounts)
}

// CreateAccount stores a new account. Nothing is fetched until the first sync.
func (s *Service) CreateAccount(in AccountInput, cb Callback[*models.Account]) error {
	a := &models.Account{
		Name:     strings.TrimSpace(in.Name),
		URL:      strings.TrimRight(strings.TrimSpace(in.URL), "/"),
		UserName: strings.TrimSpace(in.UserName),
		Token:    in.Token,
		Color:    in.Color,
	}
	if a.Name == "" || a.URL == "" || a.UserName == "" {
		return fmt.Errorf("account name, url and user name are required: %w", errs.ErrPrecondition)
	}
	return submit(s, "create account", cb, func(ctx context.Context) (*models.Account, error) {
		if err := s.store.CreateAccount(ctx, a); err != nil {
			return nil, err
		}
		s.logger.Info("Account created", zap.Int64("account", a.ID), zap.String("name", a.Name))
		return a, nil
	})
}

// DeleteAccount removes an account with all its data. A session running for
// it at the same time sees its writes fail with errs.ErrNotFound.
func (s *Service) DeleteAccount(id int64, cb Callback[struct{}]) error {
	if _, err := s.account(id); err != nil {
		return err
	}
	return submit(s, "delete account", cb, func(ctx context.Context) (struct{}, error) {
		s.caps.Invalidate(capsKey(id))
		if err := s.store.DeleteAccount(ctx, id); err != nil {
			return struct{}{}, err
		}
		s.logger.Info("Account deleted", zap.Int64("account", id))
		return struct{}{}, nil
	})
}

func capsKey(accountID int64) string {
	return fmt.Sprint(accountID)
}

// SynchronizeAccount runs a full pass over every board of the account.
func (s *Service) SynchronizeAccount(accountID int64, cb Callback[session.Report]) error {
	a, err := s.account(accountID)
	if err != nil {
		return err
	}
	return s.synchronize(a, cb, provider.Account)
}

// SynchronizeBoard synchronizes one board and everything below it.
func (s *Service) SynchronizeBoard(accountID, boardID int64, cb Callback[session.Report]) error {
	a, err := s.account(accountID)
	if err != nil {
		return err
	}
	b, err := s.store.Boards.ByLocalID(context.Background(), boardID)
	if err != nil {
		return precondition(err)
	}
	if b.AccountID != accountID {
		return fmt.Errorf("board %d is not in account %d: %w", boardID, accountID, errs.ErrPrecondition)
	}
	return s.synchronize(a, cb, func(env *provider.Env) session.Step {
		return provider.Board(env, boardID)
	})
}

// SynchronizeCard synchronizes one card with its comments and attachments.
func (s *Service) SynchronizeCard(cardID int64, cb Callback[session.Report]) error {
	c, err := s.store.Cards.ByLocalID(context.Background(), cardID)
	if err != nil {
		return precondition(err)
	}
	a, err := s.account(c.AccountID)
	if err != nil {
		return err
	}
	return s.synchronize(a, cb, func(env *provider.Env) session.Step {
		return provider.Card(env, cardID)
	})
}

// synchronize holds the account's slot for the duration of the session.
func (s *Service) synchronize(a *models.Account, cb Callback[session.Report], root func(env *provider.Env) session.Step) error {
	if !s.slots.TryAcquire(a.ID) {
		return fmt.Errorf("account %d: %w", a.ID, errs.ErrSyncInProgress)
	}

	err := submit(s, "synchronize", cb, func(ctx context.Context) (session.Report, error) {
		defer s.slots.Release(a.ID)

		env := &provider.Env{
			Store:   s.store,
			API:     s.dial(a),
			Account: a,
			Blobs:   s.blobs,
			Bucket:  s.bucket,
			Caps:    s.caps,
			Logger:  s.logger,
		}
		sess := session.New(a.ID, s.logger)
		report := sess.Run(ctx, root(env))
		return report, report.Err
	})
	if err != nil {
		s.slots.Release(a.ID)
	}
	return err
}

// ListConflicts returns the unresolved conflicts of an account.
func (s *Service) ListConflicts(accountID int64, cb Callback[[]models.Conflict]) error {
	if _, err := s.account(accountID); err != nil {
		return err
	}
	return submit(s, "list conflicts", cb, func(ctx context.Context) ([]models.Conflict, error) {
		return s.store.Conflicts(ctx, accountID)
	})
}

// ResolveConflict settles the entity a conflict belongs to, keeping either
// the local or the remote values. The result reaches the server on the next sync.
func (s *Service) ResolveConflict(conflictID int64, keepLocal bool, cb Callback[struct{}]) error {
	c, err := s.store.Conflict(context.Background(), conflictID)
	if err != nil {
		return precondition(err)
	}
	return submit(s, "resolve conflict", cb, func(ctx context.Context) (struct{}, error) {
		if err := s.store.ResolveConflict(ctx, c.Kind, c.EntityID, keepLocal); err != nil {
			return struct{}{}, err
		}
		s.logger.Info("Conflict resolved",
			zap.String("kind", c.Kind),
			zap.Int64("entity", c.EntityID),
			zap.Bool("keep_local", keepLocal),
		)
		return struct{}{}, nil
	})
}

// AddAttachment stores content in the blob store and records it as a new
// attachment of the card. r is read on a worker and must stay valid until cb runs.
func (s *Service) AddAttachment(accountID, cardID int64, name, mimeType string, r io.Reader, size int64, cb Callback[*models.Attachment]) error {
	if s.blobs == nil {
		return fmt.Errorf("no attachment storage configured: %w", errs.ErrPrecondition)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("attachment name is required: %w", errs.ErrPrecondition)
	}
	c, err := s.store.Cards.ByLocalID(context.Background(), cardID)
	if err != nil {
		return precondition(err)
	}
	if c.AccountID != accountID {
		return fmt.Errorf("card %d is not in account %d: %w", cardID, accountID, errs.ErrPrecondition)
	}

	return submit(s, "add attachment", cb, func(ctx context.Context) (*models.Attachment, error) {
		key := fmt.Sprintf("%d/%s", accountID, uuid.NewString())
		info, err := s.blobs.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: mimeType})
		if err != nil {
			return nil, fmt.Errorf("store attachment content: %w", err)
		}

		a := &models.Attachment{CardID: cardID, Filename: name, MimeType: mimeType, Size: info.Size, ObjectKey: key}
		if a.Size == 0 {
			a.Size = size
		}
		if err := s.store.CreateAttachment(ctx, a); err != nil {
			s.removeBlobs(ctx, []string{key})
			return nil, err
		}
		return a, nil
	})
}
