package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"deck-sync/core/errs"
	"deck-sync/core/storage"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/session"

	"github.com/minio/minio-go/v7"
)

func key(id int64) string { return strconv.FormatInt(id, 10) }

// remoteIDOf returns the remote id of a row, 0 if it has none.
func remoteIDOf(row models.Syncable) int64 {
	if id := row.Base().RemoteID; id != nil {
		return *id
	}
	return 0
}

func isNotFound(err error) bool { return errors.Is(err, errs.ErrNotFound) }

func notPushed(kind string, localID int64) error {
	return fmt.Errorf("%s %d is not on the server yet: %w", kind, localID, errs.ErrPrecondition)
}

// stackRemoteID returns the remote id of a local stack.
func (e *Env) stackRemoteID(ctx context.Context, stackID int64) (int64, error) {
	st, err := e.Store.Stacks.ByLocalID(ctx, stackID)
	if err != nil {
		return 0, err
	}
	if st.RemoteID == nil {
		return 0, notPushed(models.KindStack, stackID)
	}
	return *st.RemoteID, nil
}

func boardSync(env *Env, sess *session.Session) *entitySync[*models.Board, remote.Board] {
	toLocal := func(r remote.Board) *models.Board {
		return &models.Board{Title: r.Title, Color: r.Color, Archived: r.Archived}
	}
	toRemote := func(l *models.Board) remote.Board {
		return remote.Board{ID: remoteIDOf(l), Title: l.Title, Color: l.Color, Archived: l.Archived}
	}

	return &entitySync[*models.Board, remote.Board]{
		env:       env,
		sess:      sess,
		name:      models.KindBoard,
		repo:      env.Store.Boards,
		remoteKey: func(r remote.Board) string { return key(r.ID) },
		remoteID:  func(r remote.Board) int64 { return r.ID },
		modified:  func(r remote.Board) time.Time { return remote.ModifiedAt(r.LastModified) },
		snapshot: func(_ context.Context, r remote.Board) (models.Snapshot, error) {
			return toLocal(r).Snapshot(), nil
		},
		build: func(context.Context, remote.Board) (*models.Board, error) {
			return &models.Board{}, nil
		},
		create: func(ctx context.Context, l *models.Board) (remote.Board, error) {
			return env.API.CreateBoard(ctx, toRemote(l))
		},
		update: func(ctx context.Context, l *models.Board) (remote.Board, error) {
			return env.API.UpdateBoard(ctx, toRemote(l))
		},
		remove: func(ctx context.Context, l *models.Board) error {
			return env.API.DeleteBoard(ctx, remoteIDOf(l))
		},
	}
}

func labelSync(env *Env, sess *session.Session, board *models.Board) *entitySync[*models.Label, remote.Label] {
	boardID := remoteIDOf(board)
	toRemote := func(l *models.Label) remote.Label {
		return remote.Label{ID: remoteIDOf(l), Title: l.Title, Color: l.Color, BoardID: boardID}
	}

	return &entitySync[*models.Label, remote.Label]{
		env:       env,
		sess:      sess,
		name:      models.KindLabel,
		repo:      env.Store.Labels,
		remoteKey: func(r remote.Label) string { return key(r.ID) },
		remoteID:  func(r remote.Label) int64 { return r.ID },
		modified:  func(r remote.Label) time.Time { return remote.ModifiedAt(r.LastModified) },
		snapshot: func(_ context.Context, r remote.Label) (models.Snapshot, error) {
			return (&models.Label{Title: r.Title, Color: r.Color}).Snapshot(), nil
		},
		build: func(context.Context, remote.Label) (*models.Label, error) {
			return &models.Label{BoardID: board.LocalID}, nil
		},
		create: func(ctx context.Context, l *models.Label) (remote.Label, error) {
			return env.API.CreateLabel(ctx, boardID, toRemote(l))
		},
		update: func(ctx context.Context, l *models.Label) (remote.Label, error) {
			return env.API.UpdateLabel(ctx, boardID, toRemote(l))
		},
		remove: func(ctx context.Context, l *models.Label) error {
			return env.API.DeleteLabel(ctx, boardID, remoteIDOf(l))
		},
	}
}

// userSync is pull-only: users are identified by uid and never written remotely.
func userSync(env *Env, sess *session.Session) *entitySync[*models.User, remote.User] {
	readOnly := fmt.Errorf("users cannot be changed on the server: %w", errs.ErrRejected)

	return &entitySync[*models.User, remote.User]{
		env:       env,
		sess:      sess,
		name:      models.KindUser,
		repo:      env.Store.Users,
		pullOnly:  true,
		remoteKey: func(r remote.User) string { return r.UID },
		remoteID:  func(remote.User) int64 { return 0 },
		localKey:  func(l *models.User) (string, bool) { return l.UID, true },
		modified:  func(remote.User) time.Time { return time.Time{} },
		snapshot: func(_ context.Context, r remote.User) (models.Snapshot, error) {
			name := r.DisplayName
			if name == "" {
				name = r.UID
			}
			return (&models.User{DisplayName: name}).Snapshot(), nil
		},
		build: func(_ context.Context, r remote.User) (*models.User, error) {
			return &models.User{UID: r.UID}, nil
		},
		create: func(context.Context, *models.User) (remote.User, error) { return remote.User{}, readOnly },
		update: func(context.Context, *models.User) (remote.User, error) { return remote.User{}, readOnly },
		remove: func(context.Context, *models.User) error { return readOnly },
	}
}

func stackSync(env *Env, sess *session.Session, board *models.Board) *entitySync[*models.Stack, remote.Stack] {
	boardID := remoteIDOf(board)
	toRemote := func(l *models.Stack) remote.Stack {
		return remote.Stack{ID: remoteIDOf(l), Title: l.Title, BoardID: boardID, Order: l.Order}
	}

	return &entitySync[*models.Stack, remote.Stack]{
		env:       env,
		sess:      sess,
		name:      models.KindStack,
		repo:      env.Store.Stacks,
		remoteKey: func(r remote.Stack) string { return key(r.ID) },
		remoteID:  func(r remote.Stack) int64 { return r.ID },
		modified:  func(r remote.Stack) time.Time { return remote.ModifiedAt(r.LastModified) },
		snapshot: func(_ context.Context, r remote.Stack) (models.Snapshot, error) {
			return (&models.Stack{Title: r.Title, Order: r.Order}).Snapshot(), nil
		},
		build: func(context.Context, remote.Stack) (*models.Stack, error) {
			return &models.Stack{BoardID: board.LocalID}, nil
		},
		create: func(ctx context.Context, l *models.Stack) (remote.Stack, error) {
			return env.API.CreateStack(ctx, boardID, toRemote(l))
		},
		update: func(ctx context.Context, l *models.Stack) (remote.Stack, error) {
			return env.API.UpdateStack(ctx, boardID, toRemote(l))
		},
		remove: func(ctx context.Context, l *models.Stack) error {
			return env.API.DeleteStack(ctx, boardID, remoteIDOf(l))
		},
	}
}

func cardSync(env *Env, sess *session.Session, board *models.Board) *entitySync[*models.Card, remote.Card] {
	boardID := remoteIDOf(board)

	toRemote := func(ctx context.Context, l *models.Card) (remote.Card, error) {
		stackID, err := env.stackRemoteID(ctx, l.StackID)
		if err != nil {
			return remote.Card{}, err
		}
		return remote.Card{
			ID:          remoteIDOf(l),
			Title:       l.Title,
			Description: l.Description,
			StackID:     stackID,
			Order:       l.Order,
			Archived:    l.Archived,
			DueDate:     l.DueDate,
		}, nil
	}

	return &entitySync[*models.Card, remote.Card]{
		env:       env,
		sess:      sess,
		name:      models.KindCard,
		repo:      env.Store.Cards,
		remoteKey: func(r remote.Card) string { return key(r.ID) },
		remoteID:  func(r remote.Card) int64 { return r.ID },
		modified:  func(r remote.Card) time.Time { return remote.ModifiedAt(r.LastModified) },
		snapshot: func(ctx context.Context, r remote.Card) (models.Snapshot, error) {
			stack, err := env.Store.Stacks.ByRemoteID(ctx, env.Account.ID, r.StackID)
			if err != nil {
				return models.Snapshot{}, fmt.Errorf("card %d: stack %d: %w", r.ID, r.StackID, errs.ErrPrecondition)
			}
			c := &models.Card{
				StackID:     stack.LocalID,
				Title:       r.Title,
				Description: r.Description,
				DueDate:     r.DueDate,
				Order:       r.Order,
				Archived:    r.Archived,
			}
			for _, l := range r.Labels {
				c.LabelKeys = append(c.LabelKeys, key(l.ID))
			}
			for _, a := range r.AssignedUsers {
				c.AssigneeKeys = append(c.AssigneeKeys, a.Participant.UID)
			}
			return c.Snapshot(), nil
		},
		build: func(context.Context, remote.Card) (*models.Card, error) {
			return &models.Card{}, nil
		},
		create: func(ctx context.Context, l *models.Card) (remote.Card, error) {
			in, err := toRemote(ctx, l)
			if err != nil {
				return remote.Card{}, err
			}
			return env.API.CreateCard(ctx, boardID, in)
		},
		update: func(ctx context.Context, l *models.Card) (remote.Card, error) {
			in, err := toRemote(ctx, l)
			if err != nil {
				return remote.Card{}, err
			}
			return env.API.UpdateCard(ctx, boardID, in)
		},
		remove: func(ctx context.Context, l *models.Card) error {
			stackID, err := env.stackRemoteID(ctx, l.StackID)
			if err != nil {
				return err
			}
			return env.API.DeleteCard(ctx, boardID, stackID, remoteIDOf(l))
		},
		pushSets: func(ctx context.Context, l *models.Card, known models.Snapshot) error {
			stackID, err := env.stackRemoteID(ctx, l.StackID)
			if err != nil {
				return err
			}
			cardID := remoteIDOf(l)

			add, drop := diff(known.Sets[models.SetLabels], l.LabelKeys)
			for _, k := range add {
				id, err := strconv.ParseInt(k, 10, 64)
				if err != nil {
					continue
				}
				if err := env.API.AssignLabel(ctx, boardID, stackID, cardID, id); err != nil {
					return err
				}
			}
			for _, k := range drop {
				id, err := strconv.ParseInt(k, 10, 64)
				if err != nil {
					continue
				}
				if err := env.API.UnassignLabel(ctx, boardID, stackID, cardID, id); err != nil && !isNotFound(err) {
					return err
				}
			}

			add, drop = diff(known.Sets[models.SetAssignees], l.AssigneeKeys)
			for _, uid := range add {
				if err := env.API.AssignUser(ctx, boardID, stackID, cardID, uid); err != nil {
					return err
				}
			}
			for _, uid := range drop {
				if err := env.API.UnassignUser(ctx, boardID, stackID, cardID, uid); err != nil && !isNotFound(err) {
					return err
				}
			}
			return nil
		},
	}
}

func commentSync(env *Env, sess *session.Session, card *models.Card) *entitySync[*models.Comment, remote.Comment] {
	cardID := remoteIDOf(card)

	return &entitySync[*models.Comment, remote.Comment]{
		env:       env,
		sess:      sess,
		name:      models.KindComment,
		repo:      env.Store.Comments,
		remoteKey: func(r remote.Comment) string { return key(r.ID) },
		remoteID:  func(r remote.Comment) int64 { return r.ID },
		modified:  func(r remote.Comment) time.Time { return r.CreationDateTime },
		snapshot: func(_ context.Context, r remote.Comment) (models.Snapshot, error) {
			return (&models.Comment{Message: r.Message}).Snapshot(), nil
		},
		build: func(ctx context.Context, r remote.Comment) (*models.Comment, error) {
			c := &models.Comment{CardID: card.LocalID, ActorID: r.ActorID, CreatedAt: r.CreationDateTime}
			if r.ReplyTo != nil {
				if parent, err := env.Store.Comments.ByRemoteID(ctx, env.Account.ID, r.ReplyTo.ID); err == nil {
					c.ParentID = &parent.LocalID
				}
			}
			return c, nil
		},
		create: func(ctx context.Context, l *models.Comment) (remote.Comment, error) {
			var parentID *int64
			if l.ParentID != nil {
				parent, err := env.Store.Comments.ByLocalID(ctx, *l.ParentID)
				if err != nil {
					return remote.Comment{}, err
				}
				if parent.RemoteID == nil {
					return remote.Comment{}, notPushed(models.KindComment, parent.LocalID)
				}
				parentID = parent.RemoteID
			}
			return env.API.CreateComment(ctx, cardID, l.Message, parentID)
		},
		update: func(ctx context.Context, l *models.Comment) (remote.Comment, error) {
			return env.API.UpdateComment(ctx, cardID, remoteIDOf(l), l.Message)
		},
		remove: func(ctx context.Context, l *models.Comment) error {
			return env.API.DeleteComment(ctx, cardID, remoteIDOf(l))
		},
	}
}

func attachmentSync(env *Env, sess *session.Session, board *models.Board, card *models.Card) *entitySync[*models.Attachment, remote.Attachment] {
	boardID := remoteIDOf(board)
	cardID := remoteIDOf(card)
	toLocal := func(r remote.Attachment) *models.Attachment {
		return &models.Attachment{Filename: r.Data, MimeType: r.ExtendedData.MimeType, Size: r.ExtendedData.FileSize}
	}

	return &entitySync[*models.Attachment, remote.Attachment]{
		env:       env,
		sess:      sess,
		name:      models.KindAttachment,
		repo:      env.Store.Attachments,
		remoteKey: func(r remote.Attachment) string { return key(r.ID) },
		remoteID:  func(r remote.Attachment) int64 { return r.ID },
		modified:  func(r remote.Attachment) time.Time { return remote.ModifiedAt(r.LastModified) },
		snapshot: func(_ context.Context, r remote.Attachment) (models.Snapshot, error) {
			return toLocal(r).Snapshot(), nil
		},
		build: func(context.Context, remote.Attachment) (*models.Attachment, error) {
			return &models.Attachment{CardID: card.LocalID}, nil
		},
		create: func(ctx context.Context, l *models.Attachment) (remote.Attachment, error) {
			if env.Blobs == nil || l.ObjectKey == "" {
				return remote.Attachment{}, fmt.Errorf("attachment %d has no stored content: %w", l.LocalID, errs.ErrPrecondition)
			}
			stackID, err := env.stackRemoteID(ctx, card.StackID)
			if err != nil {
				return remote.Attachment{}, err
			}
			content, err := env.Blobs.GetObject(ctx, env.Bucket, l.ObjectKey, minio.GetObjectOptions{})
			if err != nil {
				if storage.IsNotFound(err) {
					return remote.Attachment{}, fmt.Errorf("attachment %d content: %w", l.LocalID, errs.ErrPrecondition)
				}
				return remote.Attachment{}, fmt.Errorf("read attachment %d content: %w", l.LocalID, err)
			}
			defer content.Close()
			return env.API.UploadAttachment(ctx, boardID, stackID, cardID, l.Filename, content)
		},
		// The server cannot edit attachments; its metadata wins on the next pull.
		update: func(_ context.Context, l *models.Attachment) (remote.Attachment, error) {
			return remote.Attachment{
				ID:           remoteIDOf(l),
				CardID:       cardID,
				Data:         l.Filename,
				ExtendedData: remote.AttachmentInfo{FileSize: l.Size, MimeType: l.MimeType},
			}, nil
		},
		remove: func(ctx context.Context, l *models.Attachment) error {
			stackID, err := env.stackRemoteID(ctx, card.StackID)
			if err != nil {
				return err
			}
			return env.API.DeleteAttachment(ctx, boardID, stackID, cardID, remoteIDOf(l))
		},
	}
}

// diff returns the keys to add to and drop from have to obtain want.
func diff(have, want []string) (add, drop []string) {
	in := func(set []string, k string) bool {
		for _, s := range set {
			if s == k {
				return true
			}
		}
		return false
	}
	for _, k := range models.SortedSet(want) {
		if !in(have, k) {
			add = append(add, k)
		}
	}
	for _, k := range models.SortedSet(have) {
		if !in(want, k) {
			drop = append(drop, k)
		}
	}
	return add, drop
}
