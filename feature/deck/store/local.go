package store

import (
	"context"
	"fmt"
	"time"

	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// live loads a synchronizable row inside tx and rejects tombstones.
func live(tx *gorm.DB, row models.Syncable, id int64) error {
	if err := tx.Where("local_id = ?", id).Take(row).Error; err != nil {
		return notFound(err, row.Kind(), id)
	}
	if row.Base().Status == reconcile.StatusLocalDeleted {
		return fmt.Errorf("%s %d is deleted: %w", row.Kind(), id, errs.ErrPrecondition)
	}
	return nil
}

// CreateBoard adds a board to an account.
func (s *Store) CreateBoard(ctx context.Context, accountID int64, b *models.Board) error {
	return s.Boards.create(ctx, b, func(tx *gorm.DB) (int64, error) {
		var account models.Account
		if err := tx.Where("id = ?", accountID).Take(&account).Error; err != nil {
			return 0, notFound(err, "account", accountID)
		}
		return account.ID, nil
	})
}

// CreateStack adds a stack to the board s.BoardID.
func (s *Store) CreateStack(ctx context.Context, st *models.Stack) error {
	return s.Stacks.create(ctx, st, func(tx *gorm.DB) (int64, error) {
		var board models.Board
		if err := live(tx, &board, st.BoardID); err != nil {
			return 0, err
		}
		return board.AccountID, nil
	})
}

// CreateCard adds a card to the stack c.StackID.
func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	return s.Cards.create(ctx, c, func(tx *gorm.DB) (int64, error) {
		var stack models.Stack
		if err := live(tx, &stack, c.StackID); err != nil {
			return 0, err
		}
		return stack.AccountID, nil
	})
}

// CreateLabel adds a label to the board l.BoardID.
func (s *Store) CreateLabel(ctx context.Context, l *models.Label) error {
	return s.Labels.create(ctx, l, func(tx *gorm.DB) (int64, error) {
		var board models.Board
		if err := live(tx, &board, l.BoardID); err != nil {
			return 0, err
		}
		return board.AccountID, nil
	})
}

// CreateComment adds a comment to the card c.CardID. A reply must target a
// comment of the same card.
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	return s.Comments.create(ctx, c, func(tx *gorm.DB) (int64, error) {
		var card models.Card
		if err := live(tx, &card, c.CardID); err != nil {
			return 0, err
		}
		if c.ParentID != nil {
			var parent models.Comment
			if err := live(tx, &parent, *c.ParentID); err != nil {
				return 0, err
			}
			if parent.CardID != c.CardID {
				return 0, fmt.Errorf("comment %d belongs to another card: %w", parent.LocalID, errs.ErrPrecondition)
			}
		}
		return card.AccountID, nil
	})
}

// CreateAttachment records an attachment whose content is already stored under a.ObjectKey.
func (s *Store) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	return s.Attachments.create(ctx, a, func(tx *gorm.DB) (int64, error) {
		var card models.Card
		if err := live(tx, &card, a.CardID); err != nil {
			return 0, err
		}
		return card.AccountID, nil
	})
}

// MoveCard puts a card into another stack of the same board at the given order.
func (s *Store) MoveCard(ctx context.Context, cardID, stackID, order int64) error {
	card, err := s.Cards.ByLocalID(ctx, cardID)
	if err != nil {
		return err
	}

	var n int64
	err = s.read(ctx).Raw(
		"SELECT COUNT(*) FROM stacks a JOIN stacks b ON a.board_id = b.board_id WHERE a.local_id = ? AND b.local_id = ? AND b.status <> ?",
		card.StackID, stackID, reconcile.StatusLocalDeleted,
	).Scan(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("stack %d is not on the card's board: %w", stackID, errs.ErrPrecondition)
	}

	card.StackID = stackID
	card.Order = order
	return s.Cards.applyLocal(ctx, card, reconcile.TriggerLocalMove)
}

// AssignLabel links a label of the card's board to the card.
func (s *Store) AssignLabel(ctx context.Context, cardID, labelID int64) error {
	return s.editLinks(ctx, cardID, func(tx *gorm.DB, card *models.Card) error {
		var label models.Label
		if err := live(tx, &label, labelID); err != nil {
			return err
		}
		var stack models.Stack
		if err := tx.Where("local_id = ?", card.StackID).Take(&stack).Error; err != nil {
			return notFound(err, models.KindStack, card.StackID)
		}
		if stack.BoardID != label.BoardID {
			return fmt.Errorf("label %d is not on the card's board: %w", labelID, errs.ErrPrecondition)
		}
		return tx.Where(models.CardLabel{CardID: cardID, LabelID: labelID}).
			FirstOrCreate(&models.CardLabel{CardID: cardID, LabelID: labelID}).Error
	})
}

// UnassignLabel removes a label from the card.
func (s *Store) UnassignLabel(ctx context.Context, cardID, labelID int64) error {
	return s.editLinks(ctx, cardID, func(tx *gorm.DB, _ *models.Card) error {
		return tx.Where("card_id = ? AND label_id = ?", cardID, labelID).Delete(&models.CardLabel{}).Error
	})
}

// AssignUser assigns a known user to the card.
func (s *Store) AssignUser(ctx context.Context, cardID, userID int64) error {
	return s.editLinks(ctx, cardID, func(tx *gorm.DB, card *models.Card) error {
		var user models.User
		if err := tx.Where("local_id = ?", userID).Take(&user).Error; err != nil {
			return notFound(err, models.KindUser, userID)
		}
		if user.AccountID != card.AccountID {
			return fmt.Errorf("user %d belongs to another account: %w", userID, errs.ErrPrecondition)
		}
		return tx.Where(models.CardAssignee{CardID: cardID, UserID: userID}).
			FirstOrCreate(&models.CardAssignee{CardID: cardID, UserID: userID}).Error
	})
}

// UnassignUser removes an assignee from the card.
func (s *Store) UnassignUser(ctx context.Context, cardID, userID int64) error {
	return s.editLinks(ctx, cardID, func(tx *gorm.DB, _ *models.Card) error {
		return tx.Where("card_id = ? AND user_id = ?", cardID, userID).Delete(&models.CardAssignee{}).Error
	})
}

// editLinks changes a card's join rows and marks the card edited.
func (s *Store) editLinks(ctx context.Context, cardID int64, fn func(tx *gorm.DB, card *models.Card) error) error {
	var accountID int64
	err := s.commit(ctx, func(tx *gorm.DB) error {
		var card models.Card
		if err := live(tx, &card, cardID); err != nil {
			return err
		}
		if err := fn(tx, &card); err != nil {
			return err
		}
		next, err := reconcile.Transition(card.Status, reconcile.TriggerLocalEdit)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
		}
		accountID = card.AccountID
		return tx.Model(&models.Card{}).Where("local_id = ?", cardID).Updates(map[string]any{
			"status":              next,
			"last_modified_local": s.now().UTC(),
			"local_version":       gorm.Expr("local_version + 1"),
		}).Error
	})
	if err != nil {
		return err
	}

	s.publish(Change{Kind: models.KindCard, Op: OpUpdate, AccountID: accountID, LocalID: cardID})
	return nil
}

// SetNow replaces the clock used for local modification times.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}
