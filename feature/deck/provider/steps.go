package provider

import (
	"context"
	"fmt"

	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/remote"
	"deck-sync/feature/deck/session"

	"go.uber.org/zap"
)

// step adapts a closure to session.Step.
type step struct {
	name string
	run  func(ctx context.Context, s *session.Session) ([]session.Step, error)
}

func (s step) Name() string { return s.name }

func (s step) Run(ctx context.Context, sess *session.Session) ([]session.Step, error) {
	return s.run(ctx, sess)
}

// live reports whether a row exists on the server and is not being deleted.
func live(row models.Syncable) bool {
	base := row.Base()
	return base.RemoteID != nil && base.Status != reconcile.StatusLocalDeleted
}

// Account returns the root step of a full synchronization of env.Account:
// boards first, then every board's labels, users, stacks, cards, comments
// and attachments. Boards whose ETag did not change are only pushed.
func Account(env *Env) session.Step {
	return step{
		name: fmt.Sprintf("account/%d", env.Account.ID),
		run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			mark := sess.ItemErrorCount()
			caps, err := env.capabilities(ctx)
			if err != nil {
				return nil, err
			}

			listing, err := env.API.ListBoards(ctx, env.Account.BoardsETag)
			if err != nil {
				return nil, err
			}
			locals, err := env.Store.Boards.ForAccount(ctx, env.Account.ID)
			if err != nil {
				return nil, err
			}
			if err := boardSync(env, sess).run(ctx, locals, listing.Records, listing.Unchanged); err != nil {
				return nil, err
			}

			remotes := make(map[int64]*remote.Board, len(listing.Records))
			for i := range listing.Records {
				remotes[listing.Records[i].ID] = &listing.Records[i]
			}

			boards, err := env.Store.Boards.ForAccount(ctx, env.Account.ID)
			if err != nil {
				return nil, err
			}
			var children []session.Step
			for _, b := range boards {
				if !live(b) {
					continue
				}
				r := remotes[*b.RemoteID]
				pushOnly := listing.Unchanged || (r != nil && r.ETag != "" && r.ETag == b.ETag)
				children = append(children, boardTree(env, b, r, pushOnly))
			}

			return append(children, step{
				name: fmt.Sprintf("account/%d/finish", env.Account.ID),
				run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
					account, err := env.Store.Account(ctx, env.Account.ID)
					if err != nil {
						return nil, err
					}
					if !listing.Unchanged && sess.ItemErrorCount() == mark {
						account.BoardsETag = listing.ETag
					}
					if caps.Version != "" {
						account.ServerVersion = caps.Version
					}
					now := env.now().UTC()
					account.LastSyncAt = &now
					if err := env.Store.UpdateAccount(ctx, account); err != nil {
						return nil, err
					}
					*env.Account = *account
					return nil, nil
				},
			}), nil
		},
	}
}

// Board returns the root step of a synchronization of one board and its content.
func Board(env *Env, boardID int64) session.Step {
	return step{
		name: fmt.Sprintf("board/%d", boardID),
		run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			if err := env.checkServer(ctx); err != nil {
				return nil, err
			}
			return boardRoot(ctx, env, sess, boardID)
		},
	}
}

func boardRoot(ctx context.Context, env *Env, sess *session.Session, boardID int64) ([]session.Step, error) {
	b, err := env.Store.Boards.ByLocalID(ctx, boardID)
	if err != nil {
		return nil, err
	}

	bs := boardSync(env, sess)
	var r *remote.Board
	switch {
	case b.RemoteID == nil:
		err = bs.run(ctx, []*models.Board{b}, nil, true)
	default:
		got, gerr := env.API.GetBoard(ctx, *b.RemoteID)
		switch {
		case isNotFound(gerr):
			err = bs.run(ctx, []*models.Board{b}, nil, false)
		case gerr != nil:
			return nil, gerr
		default:
			r = &got
			err = bs.run(ctx, []*models.Board{b}, []remote.Board{got}, false)
		}
	}
	if err != nil {
		return nil, err
	}

	b, err = env.Store.Boards.ByLocalID(ctx, boardID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !live(b) {
		return nil, nil
	}
	pushOnly := r != nil && r.ETag != "" && r.ETag == b.ETag
	return []session.Step{boardTree(env, b, r, pushOnly)}, nil
}

// boardTree synchronizes what lives under a board. r is the board as listed by
// the server, nil when it was not part of the listing.
func boardTree(env *Env, b *models.Board, r *remote.Board, pushOnly bool) session.Step {
	name := fmt.Sprintf("board/%d", b.LocalID)
	return step{
		name: name,
		run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			mark := sess.ItemErrorCount()
			if !pushOnly && r == nil {
				got, err := env.API.GetBoard(ctx, *b.RemoteID)
				if err != nil {
					return nil, err
				}
				r = &got
			}

			var stacks []remote.Stack
			labels := step{name: name + "/labels", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
				locals, err := env.Store.Labels.ForParent(ctx, b.LocalID)
				if err != nil {
					return nil, err
				}
				var remotes []remote.Label
				if !pushOnly {
					remotes = r.Labels
				}
				return nil, labelSync(env, sess, b).run(ctx, locals, remotes, pushOnly)
			}}
			users := step{name: name + "/users", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
				locals, err := env.Store.Users.ForAccount(ctx, env.Account.ID)
				if err != nil {
					return nil, err
				}
				return nil, userSync(env, sess).run(ctx, locals, r.Users, false)
			}}
			stacksStep := step{name: name + "/stacks", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
				locals, err := env.Store.Stacks.ForParent(ctx, b.LocalID)
				if err != nil {
					return nil, err
				}
				if !pushOnly {
					if stacks, err = env.API.ListStacks(ctx, *b.RemoteID); err != nil {
						return nil, err
					}
				}
				if err := stackSync(env, sess, b).run(ctx, locals, stacks, pushOnly); err != nil {
					return nil, err
				}
				return []session.Step{cardsStep(env, b, func() []remote.Stack { return stacks }, pushOnly)}, nil
			}}
			finish := step{name: name + "/finish", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
				if pushOnly || sess.ItemErrorCount() != mark || r.ETag == "" {
					return nil, nil
				}
				current, err := env.Store.Boards.ByLocalID(ctx, b.LocalID)
				if isNotFound(err) {
					return nil, nil
				}
				if err != nil || current.ETag == r.ETag {
					return nil, err
				}
				seen := current.Stamp()
				current.ETag = r.ETag
				return nil, env.Store.Boards.Sync(ctx, current, seen, false)
			}}

			// Users are pulled only, so there is nothing to do for them when pushing.
			children := []session.Step{labels, users, stacksStep, finish}
			if pushOnly {
				children = []session.Step{labels, stacksStep}
			}

			sess.Logger().Debug("Syncing board",
				zap.Int64("board", b.LocalID),
				zap.Bool("push_only", pushOnly),
			)
			return children, nil
		},
	}
}

// cardsStep reconciles the cards of a whole board at once so a card moved to
// another stack stays the same row.
func cardsStep(env *Env, b *models.Board, stacks func() []remote.Stack, pushOnly bool) session.Step {
	return step{
		name: fmt.Sprintf("board/%d/cards", b.LocalID),
		run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			locals, err := boardCards(ctx, env, b.LocalID)
			if err != nil {
				return nil, err
			}
			var remotes []remote.Card
			for _, st := range stacks() {
				remotes = append(remotes, st.Cards...)
			}
			if err := cardSync(env, sess, b).run(ctx, locals, remotes, pushOnly); err != nil {
				return nil, err
			}

			cards, err := boardCards(ctx, env, b.LocalID)
			if err != nil {
				return nil, err
			}
			var children []session.Step
			for _, c := range cards {
				if live(c) {
					children = append(children, cardTree(env, b, c, pushOnly)...)
				}
			}
			return children, nil
		},
	}
}

func boardCards(ctx context.Context, env *Env, boardID int64) ([]*models.Card, error) {
	stacks, err := env.Store.Stacks.ForParent(ctx, boardID)
	if err != nil {
		return nil, err
	}
	var out []*models.Card
	for _, st := range stacks {
		cards, err := env.Store.Cards.ForParent(ctx, st.LocalID)
		if err != nil {
			return nil, err
		}
		out = append(out, cards...)
	}
	return out, nil
}

// cardTree synchronizes the comments and attachments of a card.
func cardTree(env *Env, b *models.Board, c *models.Card, pushOnly bool) []session.Step {
	name := fmt.Sprintf("card/%d", c.LocalID)
	return []session.Step{
		step{name: name + "/comments", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			locals, err := env.Store.Comments.ForParent(ctx, c.LocalID)
			if err != nil {
				return nil, err
			}
			var remotes []remote.Comment
			if !pushOnly {
				if remotes, err = env.API.ListComments(ctx, *c.RemoteID); err != nil {
					return nil, err
				}
			}
			return nil, commentSync(env, sess, c).run(ctx, parentsFirst(locals), remotes, pushOnly)
		}},
		step{name: name + "/attachments", run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			locals, err := env.Store.Attachments.ForParent(ctx, c.LocalID)
			if err != nil {
				return nil, err
			}
			var remotes []remote.Attachment
			if !pushOnly {
				stackID, err := env.stackRemoteID(ctx, c.StackID)
				if err != nil {
					return nil, err
				}
				if remotes, err = env.API.ListAttachments(ctx, *b.RemoteID, stackID, *c.RemoteID); err != nil {
					return nil, err
				}
			}
			return nil, attachmentSync(env, sess, b, c).run(ctx, locals, remotes, pushOnly)
		}},
	}
}

// parentsFirst orders comments so a reply is pushed after the comment it answers.
func parentsFirst(comments []*models.Comment) []*models.Comment {
	var roots, replies []*models.Comment
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			replies = append(replies, c)
		}
	}
	return append(roots, replies...)
}

// Card returns the root step of a synchronization of one card, its comments
// and attachments. A card whose board or stack never reached the server is
// synchronized with its whole board.
func Card(env *Env, cardID int64) session.Step {
	return step{
		name: fmt.Sprintf("card/%d", cardID),
		run: func(ctx context.Context, sess *session.Session) ([]session.Step, error) {
			if err := env.checkServer(ctx); err != nil {
				return nil, err
			}

			c, err := env.Store.Cards.ByLocalID(ctx, cardID)
			if err != nil {
				return nil, err
			}
			st, err := env.Store.Stacks.ByLocalID(ctx, c.StackID)
			if err != nil {
				return nil, err
			}
			b, err := env.Store.Boards.ByLocalID(ctx, st.BoardID)
			if err != nil {
				return nil, err
			}
			if b.RemoteID == nil || st.RemoteID == nil {
				sess.Logger().Debug("Escalating card sync to its board", zap.Int64("card", cardID))
				return boardRoot(ctx, env, sess, b.LocalID)
			}

			cs := cardSync(env, sess, b)
			if c.RemoteID == nil {
				err = cs.run(ctx, []*models.Card{c}, nil, true)
			} else {
				got, gerr := env.API.GetCard(ctx, *b.RemoteID, *st.RemoteID, *c.RemoteID)
				switch {
				case isNotFound(gerr):
					err = cs.run(ctx, []*models.Card{c}, nil, false)
				case gerr != nil:
					return nil, gerr
				default:
					err = cs.run(ctx, []*models.Card{c}, []remote.Card{got}, false)
				}
			}
			if err != nil {
				return nil, err
			}

			c, err = env.Store.Cards.ByLocalID(ctx, cardID)
			if isNotFound(err) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if !live(c) {
				return nil, nil
			}
			return cardTree(env, b, c, false), nil
		},
	}
}
