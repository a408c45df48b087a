package fake

import (
	"context"
	"strings"
	"testing"

	"deck-sync/core/errs"
	"deck-sync/feature/deck/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardListingETag(t *testing.T) {
	ctx := context.Background()
	s := New("alice")

	b, err := s.CreateBoard(ctx, remote.Board{Title: "Plans"})
	require.NoError(t, err)

	first, err := s.ListBoards(ctx, "")
	require.NoError(t, err)
	require.Len(t, first.Records, 1)
	assert.Equal(t, "alice", first.Records[0].Users[0].UID)

	again, err := s.ListBoards(ctx, first.ETag)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)

	st, err := s.CreateStack(ctx, b.ID, remote.Stack{Title: "Todo"})
	require.NoError(t, err)
	_, err = s.CreateCard(ctx, b.ID, remote.Card{StackID: st.ID, Title: "card"})
	require.NoError(t, err)

	changed, err := s.ListBoards(ctx, first.ETag)
	require.NoError(t, err)
	assert.False(t, changed.Unchanged)
	assert.NotEqual(t, first.Records[0].ETag, changed.Records[0].ETag)
}

func TestFailures(t *testing.T) {
	ctx := context.Background()
	s := New("alice")

	s.SetOffline(true)
	_, err := s.ListBoards(ctx, "")
	assert.ErrorIs(t, err, errs.ErrOffline)
	s.SetOffline(false)

	s.Fail("CreateBoard", errs.ErrRejected)
	_, err = s.CreateBoard(ctx, remote.Board{Title: "x"})
	assert.ErrorIs(t, err, errs.ErrRejected)
	s.Fail("CreateBoard", nil)

	_, err = s.CreateBoard(ctx, remote.Board{Title: "x"})
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Calls("CreateBoard"))
	assert.Equal(t, 1, s.Writes())

	s.SetMaintenance(true)
	_, err = s.Capabilities(ctx)
	assert.ErrorIs(t, err, errs.ErrMaintenance)
}

func TestCardRelations(t *testing.T) {
	ctx := context.Background()
	s := New("alice")
	b, _ := s.CreateBoard(ctx, remote.Board{Title: "Plans"})
	other, _ := s.CreateBoard(ctx, remote.Board{Title: "Other"})
	st, _ := s.CreateStack(ctx, b.ID, remote.Stack{Title: "Todo"})
	foreign, _ := s.CreateStack(ctx, other.ID, remote.Stack{Title: "Foreign"})
	l, _ := s.CreateLabel(ctx, b.ID, remote.Label{Title: "bug"})
	c, err := s.CreateCard(ctx, b.ID, remote.Card{StackID: st.ID, Title: "card"})
	require.NoError(t, err)

	require.NoError(t, s.AssignLabel(ctx, b.ID, st.ID, c.ID, l.ID))
	require.NoError(t, s.AssignUser(ctx, b.ID, st.ID, c.ID, "bob"))

	got, err := s.GetCard(ctx, b.ID, st.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Labels, 1)
	assert.Equal(t, l.ID, got.Labels[0].ID)
	assert.Equal(t, "bob", got.AssignedUsers[0].Participant.UID)
	assert.Greater(t, got.LastModified, c.LastModified)

	c.StackID = foreign.ID
	_, err = s.UpdateCard(ctx, b.ID, c)
	assert.ErrorIs(t, err, errs.ErrRejected)

	att, err := s.UploadAttachment(ctx, b.ID, st.ID, c.ID, "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), s.AttachmentContent(att.ID))

	require.NoError(t, s.DeleteStack(ctx, b.ID, st.ID))
	_, err = s.GetCard(ctx, b.ID, st.ID, c.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Nil(t, s.AttachmentContent(att.ID))
}
