package provider

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"deck-sync/core/database"
	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/core/storage/mocks"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/remote/fake"
	"deck-sync/feature/deck/session"
	"deck-sync/feature/deck/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	t       *testing.T
	store   *store.Store
	server  *fake.Server
	account *models.Account
	env     *Env
}

// newHarness returns a fresh local store linked to server, like a new device.
func newHarness(t *testing.T, server *fake.Server) *harness {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.New(db, zap.NewNop())
	require.NoError(t, st.Migrate(context.Background()))

	account := &models.Account{Name: "alice@cloud", UserName: "alice", URL: "https://cloud.example.com"}
	require.NoError(t, st.CreateAccount(context.Background(), account))

	return &harness{
		t:       t,
		store:   st,
		server:  server,
		account: account,
		env: &Env{
			Store:   st,
			API:     server,
			Account: account,
			Bucket:  "deck-attachments",
			Logger:  zap.NewNop(),
		},
	}
}

func (h *harness) run(root session.Step) session.Report {
	return session.New(h.account.ID, zap.NewNop()).Run(context.Background(), root)
}

// sync runs a full pass and requires it to complete without item errors.
func (h *harness) sync() session.Report {
	h.t.Helper()
	report := h.run(Account(h.env))
	require.NoError(h.t, report.Err)
	require.Equal(h.t, session.StateCompleted, report.State)
	require.Empty(h.t, report.Items)
	return report
}

type seeded struct {
	board  remote.Board
	todo   remote.Stack
	done   remote.Stack
	label  remote.Label
	card   remote.Card
	commit remote.Comment
}

// seed fills the server with one board of two stacks, a labelled card and a comment.
func seed(t *testing.T, server *fake.Server) seeded {
	t.Helper()
	ctx := context.Background()
	var s seeded
	var err error

	s.board, err = server.CreateBoard(ctx, remote.Board{Title: "Roadmap", Color: "0082c9"})
	require.NoError(t, err)
	s.todo, err = server.CreateStack(ctx, s.board.ID, remote.Stack{Title: "To do", Order: 1})
	require.NoError(t, err)
	s.done, err = server.CreateStack(ctx, s.board.ID, remote.Stack{Title: "Done", Order: 2})
	require.NoError(t, err)
	s.label, err = server.CreateLabel(ctx, s.board.ID, remote.Label{Title: "urgent", Color: "ff0000"})
	require.NoError(t, err)
	s.card, err = server.CreateCard(ctx, s.board.ID, remote.Card{Title: "Write docs", StackID: s.todo.ID, Order: 1})
	require.NoError(t, err)
	require.NoError(t, server.AssignLabel(ctx, s.board.ID, s.todo.ID, s.card.ID, s.label.ID))
	require.NoError(t, server.AssignUser(ctx, s.board.ID, s.todo.ID, s.card.ID, "alice"))
	s.commit, err = server.CreateComment(ctx, s.card.ID, "first!", nil)
	require.NoError(t, err)
	return s
}

func (h *harness) card(remoteID int64) *models.Card {
	h.t.Helper()
	c, err := h.store.Cards.ByRemoteID(context.Background(), h.account.ID, remoteID)
	require.NoError(h.t, err)
	return c
}

func TestSyncPullsServerState(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	s := seed(t, server)
	h := newHarness(t, server)

	report := h.sync()
	assert.Equal(t, 1, report.Summary[models.KindCard].Inserts)

	boards, err := h.store.Boards.ForAccount(ctx, h.account.ID)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "Roadmap", boards[0].Title)
	assert.Equal(t, reconcile.StatusUpToDate, boards[0].Status)
	assert.NotEmpty(t, boards[0].ETag)

	stacks, err := h.store.Stacks.ForParent(ctx, boards[0].LocalID)
	require.NoError(t, err)
	assert.Len(t, stacks, 2)

	c := h.card(s.card.ID)
	todo, err := h.store.Stacks.ByRemoteID(ctx, h.account.ID, s.todo.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.LocalID, c.StackID)
	assert.Equal(t, "Write docs", c.Title)
	assert.Equal(t, []string{key(s.label.ID)}, c.LabelKeys)
	assert.Equal(t, []string{"alice"}, c.AssigneeKeys)

	comments, err := h.store.Comments.ForParent(ctx, c.LocalID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "first!", comments[0].Message)
	assert.Equal(t, "alice", comments[0].ActorID)

	users, err := h.store.Users.ForAccount(ctx, h.account.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].UID)
	assert.Nil(t, users[0].RemoteID)

	account, err := h.store.Account(ctx, h.account.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, account.BoardsETag)
	assert.NotNil(t, account.LastSyncAt)
	assert.Equal(t, "27.1.0", account.ServerVersion)
}

func TestSyncIsIdempotent(t *testing.T) {
	server := fake.New("alice")
	seed(t, server)
	h := newHarness(t, server)
	h.sync()

	localWrites, remoteWrites := h.store.Writes(), server.Writes()
	listings := server.Calls("ListStacks")

	h.sync()
	assert.Equal(t, localWrites, h.store.Writes())
	assert.Equal(t, remoteWrites, server.Writes())
	assert.Equal(t, listings, server.Calls("ListStacks"), "an unchanged listing is not descended")
}

func TestLocalChangesReachServer(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	h := newHarness(t, server)

	b := &models.Board{Title: "Holidays"}
	require.NoError(t, h.store.CreateBoard(ctx, h.account.ID, b))
	st := &models.Stack{BoardID: b.LocalID, Title: "Ideas", Order: 1}
	require.NoError(t, h.store.CreateStack(ctx, st))
	l := &models.Label{BoardID: b.LocalID, Title: "beach", Color: "00ff00"}
	require.NoError(t, h.store.CreateLabel(ctx, l))
	c := &models.Card{StackID: st.LocalID, Title: "Book flights", Archived: true}
	require.NoError(t, h.store.CreateCard(ctx, c))
	require.NoError(t, h.store.AssignLabel(ctx, c.LocalID, l.LocalID))
	parent := &models.Comment{CardID: c.LocalID, Message: "which airport?"}
	require.NoError(t, h.store.CreateComment(ctx, parent))
	reply := &models.Comment{CardID: c.LocalID, Message: "the closest", ParentID: &parent.LocalID}
	require.NoError(t, h.store.CreateComment(ctx, reply))

	h.sync()

	assert.Equal(t, 1, server.Calls("CreateBoard"))
	assert.Equal(t, 1, server.Calls("CreateStack"))
	assert.Equal(t, 1, server.Calls("CreateCard"))
	assert.Equal(t, 2, server.Calls("CreateComment"))

	stored := h.card(*mustCard(t, h, c.LocalID).RemoteID)
	assert.Equal(t, reconcile.StatusUpToDate, stored.Status)
	assert.True(t, stored.Archived)

	t.Run("SecondDeviceSeesTheSameData", func(t *testing.T) {
		other := newHarness(t, server)
		other.sync()

		got := other.card(*stored.RemoteID)
		assert.Equal(t, "Book flights", got.Title)
		assert.True(t, got.Archived)
		require.Len(t, got.LabelKeys, 1)

		label, err := other.store.Labels.ByRemoteID(ctx, other.account.ID, mustParse(t, got.LabelKeys[0]))
		require.NoError(t, err)
		assert.Equal(t, "beach", label.Title)

		comments, err := other.store.Comments.ForParent(ctx, got.LocalID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Nil(t, comments[0].ParentID)
		require.NotNil(t, comments[1].ParentID)
		assert.Equal(t, comments[0].LocalID, *comments[1].ParentID)
	})
}

func mustCard(t *testing.T, h *harness, localID int64) *models.Card {
	t.Helper()
	c, err := h.store.Cards.ByLocalID(context.Background(), localID)
	require.NoError(t, err)
	require.NotNil(t, c.RemoteID)
	return c
}

func mustParse(t *testing.T, s string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return id
}

// editRemote changes a card directly on the server.
func editRemote(t *testing.T, server *fake.Server, boardID, cardID int64, fn func(c *remote.Card)) {
	t.Helper()
	ctx := context.Background()
	c, err := server.GetCard(ctx, boardID, 0, cardID)
	require.NoError(t, err)
	fn(&c)
	_, err = server.UpdateCard(ctx, boardID, c)
	require.NoError(t, err)
}

func TestConcurrentEdits(t *testing.T) {
	ctx := context.Background()

	t.Run("DifferentFieldsMerge", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		c.Description = "local notes"
		require.NoError(t, h.store.Cards.Edit(ctx, c))
		editRemote(t, server, s.board.ID, s.card.ID, func(c *remote.Card) { c.Title = "Write the docs" })

		h.sync()

		got := h.card(s.card.ID)
		assert.Equal(t, reconcile.StatusUpToDate, got.Status)
		assert.Equal(t, "Write the docs", got.Title)
		assert.Equal(t, "local notes", got.Description)

		onServer, err := server.GetCard(ctx, s.board.ID, 0, s.card.ID)
		require.NoError(t, err)
		assert.Equal(t, "Write the docs", onServer.Title)
		assert.Equal(t, "local notes", onServer.Description)
	})

	t.Run("SameFieldConflicts", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		c.Title = "local title"
		c.Description = "local notes"
		require.NoError(t, h.store.Cards.Edit(ctx, c))
		editRemote(t, server, s.board.ID, s.card.ID, func(c *remote.Card) { c.Title = "remote title" })

		report := h.sync()
		assert.True(t, report.HasConflicts())

		got := h.card(s.card.ID)
		assert.Equal(t, reconcile.StatusConflict, got.Status)
		assert.Equal(t, "local title", got.Title)

		conflicts, err := h.store.Conflicts(ctx, h.account.ID)
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, models.KindCard, conflicts[0].Kind)
		assert.Equal(t, "title", conflicts[0].Field)
		assert.Equal(t, "local title", conflicts[0].LocalValue)
		assert.Equal(t, "remote title", conflicts[0].RemoteValue)

		// Entities in conflict are left alone until resolved.
		writes := server.Writes()
		h.sync()
		assert.Equal(t, writes, server.Writes())

		t.Run("KeepRemote", func(t *testing.T) {
			require.NoError(t, h.store.ResolveConflict(ctx, models.KindCard, got.LocalID, false))

			resolved := h.card(s.card.ID)
			assert.Equal(t, "remote title", resolved.Title)
			assert.Equal(t, "local notes", resolved.Description)
			assert.Equal(t, reconcile.StatusLocalEdited, resolved.Status, "the description is still unpushed")

			h.sync()
			onServer, err := server.GetCard(ctx, s.board.ID, 0, s.card.ID)
			require.NoError(t, err)
			assert.Equal(t, "remote title", onServer.Title)
			assert.Equal(t, "local notes", onServer.Description)

			conflicts, err := h.store.Conflicts(ctx, h.account.ID)
			require.NoError(t, err)
			assert.Empty(t, conflicts)
		})
	})

	t.Run("KeepLocalPushesOnNextSync", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		c.Title = "local title"
		require.NoError(t, h.store.Cards.Edit(ctx, c))
		editRemote(t, server, s.board.ID, s.card.ID, func(c *remote.Card) { c.Title = "remote title" })
		h.sync()

		require.NoError(t, h.store.ResolveConflict(ctx, models.KindCard, c.LocalID, true))
		assert.Equal(t, reconcile.StatusLocalEdited, h.card(s.card.ID).Status)

		h.sync()
		onServer, err := server.GetCard(ctx, s.board.ID, 0, s.card.ID)
		require.NoError(t, err)
		assert.Equal(t, "local title", onServer.Title)
		assert.Equal(t, reconcile.StatusUpToDate, h.card(s.card.ID).Status)
	})

	t.Run("ResolveRequiresConflict", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		err := h.store.ResolveConflict(ctx, models.KindCard, h.card(s.card.ID).LocalID, true)
		assert.ErrorIs(t, err, errs.ErrPrecondition)
	})
}

func TestDeletions(t *testing.T) {
	ctx := context.Background()

	t.Run("LocalTombstoneDeletesOnServer", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		require.NoError(t, h.store.Cards.Remove(ctx, c.LocalID))
		assert.Equal(t, reconcile.StatusLocalDeleted, h.card(s.card.ID).Status)

		h.sync()
		_, err := server.GetCard(ctx, s.board.ID, 0, s.card.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		_, err = h.store.Cards.ByLocalID(ctx, c.LocalID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("RemoteDeletionPurgesSubtree", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		require.NoError(t, server.DeleteStack(ctx, s.board.ID, s.todo.ID))
		h.sync()

		_, err := h.store.Stacks.ByRemoteID(ctx, h.account.ID, s.todo.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		_, err = h.store.Cards.ByLocalID(ctx, c.LocalID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		comments, err := h.store.Comments.ForParent(ctx, c.LocalID)
		require.NoError(t, err)
		assert.Empty(t, comments)
	})

	t.Run("EditOfRemotelyDeletedCardIsDropped", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		c.Title = "too late"
		require.NoError(t, h.store.Cards.Edit(ctx, c))
		require.NoError(t, server.DeleteCard(ctx, s.board.ID, s.todo.ID, s.card.ID))

		report := h.run(Account(h.env))
		assert.Equal(t, session.StateCompleted, report.State)
		require.Len(t, report.Items, 1)
		assert.ErrorIs(t, report.Items[0].Err, errs.ErrNotFound)
		_, err := h.store.Cards.ByLocalID(ctx, c.LocalID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestOfflineLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	s := seed(t, server)
	h := newHarness(t, server)
	h.sync()

	c := h.card(s.card.ID)
	c.Title = "offline edit"
	require.NoError(t, h.store.Cards.Edit(ctx, c))
	writes := h.store.Writes()

	for _, tc := range []struct {
		name  string
		setup func(on bool)
		want  error
	}{
		{"Offline", server.SetOffline, errs.ErrOffline},
		{"Maintenance", server.SetMaintenance, errs.ErrMaintenance},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.setup(true)
			defer tc.setup(false)

			report := h.run(Account(h.env))
			assert.Equal(t, session.StateFailed, report.State)
			assert.True(t, errors.Is(report.Err, tc.want))
			assert.Equal(t, writes, h.store.Writes())
			assert.Equal(t, reconcile.StatusLocalEdited, h.card(s.card.ID).Status)
		})
	}

	h.sync()
	assert.Equal(t, reconcile.StatusUpToDate, h.card(s.card.ID).Status)
}

func TestCardMovedOnServerKeepsRow(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	s := seed(t, server)
	h := newHarness(t, server)
	h.sync()

	before := h.card(s.card.ID)
	editRemote(t, server, s.board.ID, s.card.ID, func(c *remote.Card) { c.StackID = s.done.ID })
	h.sync()

	after := h.card(s.card.ID)
	done, err := h.store.Stacks.ByRemoteID(ctx, h.account.ID, s.done.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LocalID, after.LocalID)
	assert.Equal(t, done.LocalID, after.StackID)

	comments, err := h.store.Comments.ForParent(ctx, after.LocalID)
	require.NoError(t, err)
	assert.Len(t, comments, 1, "the card keeps its comments")
}

func TestItemErrorsDoNotAbort(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	s := seed(t, server)
	h := newHarness(t, server)
	h.sync()

	todo, err := h.store.Stacks.ByRemoteID(ctx, h.account.ID, s.todo.ID)
	require.NoError(t, err)
	fresh := &models.Card{StackID: todo.LocalID, Title: "New card"}
	require.NoError(t, h.store.CreateCard(ctx, fresh))
	c := h.card(s.card.ID)
	c.Title = "renamed"
	require.NoError(t, h.store.Cards.Edit(ctx, c))

	server.Fail("CreateCard", errs.ErrRejected)
	report := h.run(Account(h.env))
	assert.Equal(t, session.StateCompleted, report.State)
	require.Len(t, report.Items, 1)
	assert.ErrorIs(t, report.Items[0].Err, errs.ErrRejected)

	got, err := h.store.Cards.ByLocalID(ctx, fresh.LocalID)
	require.NoError(t, err)
	assert.Nil(t, got.RemoteID)
	assert.Equal(t, reconcile.StatusUpToDate, h.card(s.card.ID).Status, "other cards still sync")

	server.Fail("CreateCard", nil)
	h.sync()
	got, err = h.store.Cards.ByLocalID(ctx, fresh.LocalID)
	require.NoError(t, err)
	assert.NotNil(t, got.RemoteID)
}

func TestPartialSync(t *testing.T) {
	ctx := context.Background()

	t.Run("Card", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		c := h.card(s.card.ID)
		c.Title = "only this card"
		require.NoError(t, h.store.Cards.Edit(ctx, c))
		listings := server.Calls("ListBoards")

		report := h.run(Card(h.env, c.LocalID))
		require.NoError(t, report.Err)
		assert.Equal(t, listings, server.Calls("ListBoards"))

		onServer, err := server.GetCard(ctx, s.board.ID, 0, s.card.ID)
		require.NoError(t, err)
		assert.Equal(t, "only this card", onServer.Title)
	})

	t.Run("CardOfNewBoardEscalates", func(t *testing.T) {
		server := fake.New("alice")
		h := newHarness(t, server)

		b := &models.Board{Title: "Fresh"}
		require.NoError(t, h.store.CreateBoard(ctx, h.account.ID, b))
		st := &models.Stack{BoardID: b.LocalID, Title: "Inbox"}
		require.NoError(t, h.store.CreateStack(ctx, st))
		c := &models.Card{StackID: st.LocalID, Title: "First"}
		require.NoError(t, h.store.CreateCard(ctx, c))

		report := h.run(Card(h.env, c.LocalID))
		require.NoError(t, report.Err)
		require.Empty(t, report.Items)

		assert.NotNil(t, mustCard(t, h, c.LocalID).RemoteID)
		assert.Equal(t, 1, server.Calls("CreateBoard"))
	})

	t.Run("BoardDeletedOnServer", func(t *testing.T) {
		server := fake.New("alice")
		s := seed(t, server)
		h := newHarness(t, server)
		h.sync()

		b, err := h.store.Boards.ByRemoteID(ctx, h.account.ID, s.board.ID)
		require.NoError(t, err)
		require.NoError(t, server.DeleteBoard(ctx, s.board.ID))

		report := h.run(Board(h.env, b.LocalID))
		require.NoError(t, report.Err)
		_, err = h.store.Boards.ByLocalID(ctx, b.LocalID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	server := fake.New("alice")
	s := seed(t, server)
	h := newHarness(t, server)
	h.sync()

	blobs := &mocks.Client{}
	blobs.On("GetObject", mock.Anything, "deck-attachments", "card/notes", mock.Anything).
		Return(io.NopCloser(strings.NewReader("hello")), nil).Once()
	h.env.Blobs = blobs

	var released []string
	h.store.OnBlobsReleased(func(_ context.Context, keys []string) { released = append(released, keys...) })

	c := h.card(s.card.ID)
	a := &models.Attachment{CardID: c.LocalID, Filename: "notes.txt", MimeType: "text/plain", Size: 5, ObjectKey: "card/notes"}
	require.NoError(t, h.store.CreateAttachment(ctx, a))

	h.sync()
	blobs.AssertExpectations(t)

	got, err := h.store.Attachments.ByLocalID(ctx, a.LocalID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, "hello", string(server.AttachmentContent(*got.RemoteID)))
	assert.Equal(t, "card/notes", got.ObjectKey)

	t.Run("MissingContentIsAnItemError", func(t *testing.T) {
		orphan := &models.Attachment{CardID: c.LocalID, Filename: "lost.txt"}
		require.NoError(t, h.store.CreateAttachment(ctx, orphan))

		report := h.run(Account(h.env))
		require.Len(t, report.Items, 1)
		assert.ErrorIs(t, report.Items[0].Err, errs.ErrPrecondition)
		require.NoError(t, h.store.Attachments.Remove(ctx, orphan.LocalID))
	})

	t.Run("RemoteDeletionReleasesContent", func(t *testing.T) {
		require.NoError(t, server.DeleteAttachment(ctx, s.board.ID, s.todo.ID, s.card.ID, *got.RemoteID))
		h.sync()

		_, err := h.store.Attachments.ByLocalID(ctx, a.LocalID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		assert.Equal(t, []string{"card/notes"}, released)
	})
}
