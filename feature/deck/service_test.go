package deck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"deck-sync/core/database"
	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/core/storage/mocks"
	"deck-sync/core/worker"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/remote/fake"
	"deck-sync/feature/deck/session"
	"deck-sync/feature/deck/store"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc    *Service
	store  *store.Store
	server *fake.Server
	blobs  *mocks.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db, zap.NewNop())
	require.NoError(t, st.Migrate(context.Background()))

	pool := worker.New(worker.Config{Workers: 2, QueueSize: 8}, zap.NewNop())
	t.Cleanup(pool.Close)

	server := fake.New("alice")
	blobs := &mocks.Client{}
	dial := func(*models.Account) remote.API { return server }
	svc := NewService(st, pool, dial, blobs, "deck-attachments", time.Minute, zap.NewNop())
	return &fixture{svc: svc, store: st, server: server, blobs: blobs}
}

func (f *fixture) account(t *testing.T) *models.Account {
	t.Helper()
	a, err := Await(context.Background(), func(cb Callback[*models.Account]) error {
		return f.svc.CreateAccount(AccountInput{Name: "alice@cloud", URL: "https://cloud.example.com/", UserName: "alice"}, cb)
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) sync(t *testing.T, accountID int64) session.Report {
	t.Helper()
	report, err := Await(context.Background(), func(cb Callback[session.Report]) error {
		return f.svc.SynchronizeAccount(accountID, cb)
	})
	require.NoError(t, err)
	return report
}

// seedCard puts a board with one card on the server and pulls it.
func (f *fixture) seedCard(t *testing.T, a *models.Account) (remote.Board, remote.Card) {
	t.Helper()
	ctx := context.Background()
	b, err := f.server.CreateBoard(ctx, remote.Board{Title: "Roadmap"})
	require.NoError(t, err)
	st, err := f.server.CreateStack(ctx, b.ID, remote.Stack{Title: "To do"})
	require.NoError(t, err)
	c, err := f.server.CreateCard(ctx, b.ID, remote.Card{Title: "Write docs", StackID: st.ID})
	require.NoError(t, err)
	f.sync(t, a.ID)
	return b, c
}

func TestService_Accounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	has, err := Await(ctx, f.svc.HasAccounts)
	require.NoError(t, err)
	assert.False(t, has)

	a := f.account(t)
	assert.Equal(t, "https://cloud.example.com", a.URL)

	t.Run("InvalidInputFailsSynchronously", func(t *testing.T) {
		called := false
		err := f.svc.CreateAccount(AccountInput{Name: " "}, func(*models.Account, error) { called = true })
		assert.ErrorIs(t, err, errs.ErrPrecondition)
		assert.False(t, called)
	})

	t.Run("Lookups", func(t *testing.T) {
		has, err := Await(ctx, f.svc.HasAccounts)
		require.NoError(t, err)
		assert.True(t, has)

		byName, err := Await(ctx, func(cb Callback[*models.Account]) error {
			return f.svc.ReadAccountByName("alice@cloud", cb)
		})
		require.NoError(t, err)
		assert.Equal(t, a.ID, byName.ID)

		all, err := Await(ctx, f.svc.ReadAccounts)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		_, err := Await(ctx, func(cb Callback[struct{}]) error { return f.svc.DeleteAccount(a.ID, cb) })
		require.NoError(t, err)

		_, err = Await(ctx, func(cb Callback[*models.Account]) error { return f.svc.ReadAccount(a.ID, cb) })
		assert.ErrorIs(t, err, errs.ErrNotFound)

		err = f.svc.DeleteAccount(a.ID, func(struct{}, error) { t.Error("callback must not run") })
		assert.ErrorIs(t, err, errs.ErrPrecondition)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestService_Synchronize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t)
	rb, c := f.seedCard(t, a)

	local, err := f.store.Cards.ByRemoteID(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write docs", local.Title)

	t.Run("Card", func(t *testing.T) {
		local.Title = "Write more docs"
		require.NoError(t, f.store.Cards.Edit(ctx, local))

		report, err := Await(ctx, func(cb Callback[session.Report]) error {
			return f.svc.SynchronizeCard(local.LocalID, cb)
		})
		require.NoError(t, err)
		assert.Equal(t, session.StateCompleted, report.State)

		got, err := f.store.Cards.ByLocalID(ctx, local.LocalID)
		require.NoError(t, err)
		assert.Equal(t, reconcile.StatusUpToDate, got.Status)
	})

	t.Run("Board", func(t *testing.T) {
		b, err := f.store.Boards.ByRemoteID(ctx, a.ID, rb.ID)
		require.NoError(t, err)
		report, err := Await(ctx, func(cb Callback[session.Report]) error {
			return f.svc.SynchronizeBoard(a.ID, b.LocalID, cb)
		})
		require.NoError(t, err)
		assert.Equal(t, session.StateCompleted, report.State)

		err = f.svc.SynchronizeBoard(a.ID+1, b.LocalID, func(session.Report, error) {})
		assert.ErrorIs(t, err, errs.ErrPrecondition)
	})

	t.Run("OfflineReportsFailure", func(t *testing.T) {
		f.server.SetOffline(true)
		defer f.server.SetOffline(false)

		report, err := Await(ctx, func(cb Callback[session.Report]) error {
			return f.svc.SynchronizeAccount(a.ID, cb)
		})
		assert.ErrorIs(t, err, errs.ErrOffline)
		assert.Equal(t, session.StateFailed, report.State)
	})

	t.Run("OneSessionPerAccount", func(t *testing.T) {
		require.True(t, f.svc.slots.TryAcquire(a.ID))
		err := f.svc.SynchronizeAccount(a.ID, func(session.Report, error) { t.Error("callback must not run") })
		assert.ErrorIs(t, err, errs.ErrSyncInProgress)
		f.svc.slots.Release(a.ID)

		f.sync(t, a.ID)
	})
}

func TestService_Conflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t)
	b, c := f.seedCard(t, a)

	local, err := f.store.Cards.ByRemoteID(ctx, a.ID, c.ID)
	require.NoError(t, err)
	local.Title = "mine"
	require.NoError(t, f.store.Cards.Edit(ctx, local))
	c.Title = "theirs"
	_, err = f.server.UpdateCard(ctx, b.ID, c)
	require.NoError(t, err)

	report := f.sync(t, a.ID)
	assert.True(t, report.HasConflicts())

	conflicts, err := Await(ctx, func(cb Callback[[]models.Conflict]) error {
		return f.svc.ListConflicts(a.ID, cb)
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	_, err = Await(ctx, func(cb Callback[struct{}]) error {
		return f.svc.ResolveConflict(conflicts[0].ID, false, cb)
	})
	require.NoError(t, err)

	got, err := f.store.Cards.ByLocalID(ctx, local.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "theirs", got.Title)
	assert.Equal(t, reconcile.StatusUpToDate, got.Status)

	err = f.svc.ResolveConflict(conflicts[0].ID, true, func(struct{}, error) {})
	assert.ErrorIs(t, err, errs.ErrPrecondition, "the conflict is gone")
}

func TestService_AddAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.account(t)
	_, c := f.seedCard(t, a)
	local, err := f.store.Cards.ByRemoteID(ctx, a.ID, c.ID)
	require.NoError(t, err)

	f.blobs.On("PutObject", mock.Anything, "deck-attachments", mock.AnythingOfType("string"), mock.Anything, int64(5), mock.Anything).
		Return(minio.UploadInfo{Size: 5}, nil).Once()

	att, err := Await(ctx, func(cb Callback[*models.Attachment]) error {
		return f.svc.AddAttachment(a.ID, local.LocalID, "notes.txt", "text/plain", strings.NewReader("hello"), 5, cb)
	})
	require.NoError(t, err)
	f.blobs.AssertExpectations(t)

	assert.True(t, strings.HasPrefix(att.ObjectKey, fmt.Sprintf("%d/", a.ID)))
	assert.Equal(t, reconcile.StatusLocalEdited, att.Status)
	assert.Equal(t, int64(5), att.Size)

	t.Run("WrongAccount", func(t *testing.T) {
		err := f.svc.AddAttachment(a.ID+1, local.LocalID, "x", "", strings.NewReader(""), 0, func(*models.Attachment, error) {})
		assert.ErrorIs(t, err, errs.ErrPrecondition)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		f.blobs.On("PutObject", mock.Anything, "deck-attachments", mock.AnythingOfType("string"), mock.Anything, int64(1), mock.Anything).
			Return(minio.UploadInfo{}, errors.New("bucket gone")).Once()

		_, err := Await(ctx, func(cb Callback[*models.Attachment]) error {
			return f.svc.AddAttachment(a.ID, local.LocalID, "y.txt", "text/plain", strings.NewReader("y"), 1, cb)
		})
		assert.ErrorContains(t, err, "bucket gone")
	})
}

func TestSubmit_CallbackRunsOnceOnPanic(t *testing.T) {
	f := newFixture(t)

	var calls atomic.Int32
	done := make(chan error, 2)
	err := submit(f.svc, "boom", func(_ int, err error) {
		calls.Add(1)
		done <- err
	}, func(context.Context) (int, error) {
		panic("boom")
	})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "panic: boom")
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestAwait_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Await(ctx, func(cb Callback[int]) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
