package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"deck-sync/core/database"
	"deck-sync/core/errs"
	"deck-sync/feature/deck/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the local replica. All writes go through it so each row's
// read-modify-write is serialized by the database connection.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	writes atomic.Int64

	releaser func(ctx context.Context, objectKeys []string)

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int

	Boards      *Repo[models.Board, *models.Board]
	Stacks      *Repo[models.Stack, *models.Stack]
	Cards       *Repo[models.Card, *models.Card]
	Labels      *Repo[models.Label, *models.Label]
	Users       *Repo[models.User, *models.User]
	Comments    *Repo[models.Comment, *models.Comment]
	Attachments *Repo[models.Attachment, *models.Attachment]
}

// New wraps an open database. Call Migrate before first use.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	s := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan Change),
	}

	s.Boards = &Repo[models.Board, *models.Board]{store: s, kind: models.KindBoard, parentColumn: "account_id", purge: purgeBoards}
	s.Stacks = &Repo[models.Stack, *models.Stack]{store: s, kind: models.KindStack, parentColumn: "board_id", purge: purgeStacks}
	s.Cards = &Repo[models.Card, *models.Card]{store: s, kind: models.KindCard, parentColumn: "stack_id", purge: purgeCards,
		afterLoad: loadCardSets, afterSave: saveCardSets}
	s.Labels = &Repo[models.Label, *models.Label]{store: s, kind: models.KindLabel, parentColumn: "board_id", purge: purgeLabels}
	s.Users = &Repo[models.User, *models.User]{store: s, kind: models.KindUser, parentColumn: "account_id", purge: purgeUsers}
	s.Comments = &Repo[models.Comment, *models.Comment]{store: s, kind: models.KindComment, parentColumn: "card_id", purge: purgeComments}
	s.Attachments = &Repo[models.Attachment, *models.Attachment]{store: s, kind: models.KindAttachment, parentColumn: "card_id", purge: purgeAttachments}

	return s
}

// tables lists every model, in creation order.
var tables = []any{
	&models.Account{},
	&models.Board{},
	&models.Stack{},
	&models.Card{},
	&models.Label{},
	&models.User{},
	&models.Comment{},
	&models.Attachment{},
	&models.CardLabel{},
	&models.CardAssignee{},
	&models.Conflict{},
}

// syncColumns must exist on every synchronizable table.
var syncColumns = []string{"local_id", "remote_id", "account_id", "status", "last_modified_local", "local_version", "last_modified_remote", "synced"}

// Migrate creates or updates the schema and verifies the synchronization columns.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}

	for _, table := range []string{"boards", "stacks", "cards", "labels", "users", "comments", "attachments"} {
		missing, err := database.MissingColumns(s.db.WithContext(ctx), table, syncColumns)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("table %s lacks columns %v", table, missing)
		}
	}
	return nil
}

// OnBlobsReleased registers fn to receive the object keys of attachments removed
// by a purge, so their contents can be deleted from object storage.
func (s *Store) OnBlobsReleased(fn func(ctx context.Context, objectKeys []string)) {
	s.releaser = fn
}

func (s *Store) release(ctx context.Context, objectKeys []string) {
	if len(objectKeys) == 0 || s.releaser == nil {
		return
	}
	s.releaser(ctx, objectKeys)
}

// Writes returns the number of committed entity writes since the store was
// created. Account bookkeeping is not counted.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

// commit runs fn in a transaction and counts it as one write.
func (s *Store) commit(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := s.transaction(ctx, fn); err != nil {
		return err
	}
	s.writes.Add(1)
	return nil
}

func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// read returns a session for queries outside a transaction.
func (s *Store) read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound maps gorm's missing-record error to errs.ErrNotFound.
func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, errs.ErrNotFound)
	}
	return err
}
