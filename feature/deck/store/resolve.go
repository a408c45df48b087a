package store

import (
	"context"
	"fmt"

	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// ResolveConflict settles an entity in CONFLICT. Keeping the local side marks
// the row LOCAL_EDITED so the next sync pushes it; keeping the remote side
// restores the server values of the conflicting fields. Non-conflicting local
// edits survive either way.
func (s *Store) ResolveConflict(ctx context.Context, kind string, entityID int64, keepLocal bool) error {
	switch kind {
	case models.KindBoard:
		return resolve(ctx, s.Boards, entityID, keepLocal)
	case models.KindStack:
		return resolve(ctx, s.Stacks, entityID, keepLocal)
	case models.KindCard:
		return resolve(ctx, s.Cards, entityID, keepLocal)
	case models.KindLabel:
		return resolve(ctx, s.Labels, entityID, keepLocal)
	case models.KindUser:
		return resolve(ctx, s.Users, entityID, keepLocal)
	case models.KindComment:
		return resolve(ctx, s.Comments, entityID, keepLocal)
	case models.KindAttachment:
		return resolve(ctx, s.Attachments, entityID, keepLocal)
	}
	return fmt.Errorf("unknown entity kind %q: %w", kind, errs.ErrPrecondition)
}

func resolve[T any, P record[T]](ctx context.Context, r *Repo[T, P], id int64, keepLocal bool) error {
	var accountID int64
	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		var current T
		if err := tx.Where("local_id = ?", id).Take(&current).Error; err != nil {
			return notFound(err, r.kind, id)
		}
		rows, err := r.load(tx, []P{P(&current)})
		if err != nil {
			return err
		}
		row := rows[0]
		base := row.Base()
		accountID = base.AccountID
		if base.Status != reconcile.StatusConflict {
			return fmt.Errorf("%s %d is %s, not in conflict: %w", r.kind, id, base.Status, errs.ErrPrecondition)
		}

		var fields []models.Conflict
		if err := tx.Where("kind = ? AND entity_id = ?", r.kind, id).Find(&fields).Error; err != nil {
			return err
		}

		if keepLocal {
			if err := base.Transition(reconcile.TriggerKeepLocal); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
			}
		} else {
			snap := row.Snapshot()
			for _, f := range fields {
				snap.Fields[f.Field] = f.RemoteValue
			}
			if err := row.Apply(snap); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
			}
			if err := base.Transition(reconcile.TriggerKeepRemote); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
			}
			// Other fields may still hold local edits waiting to be pushed.
			if synced, ok := models.DecodeSnapshot(base.Synced); !ok || !synced.Equal(snap) {
				if err := base.Transition(reconcile.TriggerLocalEdit); err != nil {
					return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
				}
			}
		}
		base.LastModifiedLocal = r.store.now().UTC()
		base.LocalVersion++

		if err := r.update(tx, row); err != nil {
			return err
		}
		return tx.Where("kind = ? AND entity_id = ?", r.kind, id).Delete(&models.Conflict{}).Error
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpUpdate, AccountID: accountID, LocalID: id})
	return nil
}
