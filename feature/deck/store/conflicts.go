package store

import (
	"context"
	"fmt"

	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// ReplaceConflicts stores the field conflicts of one entity, dropping older ones.
func (s *Store) ReplaceConflicts(ctx context.Context, kind string, entityID int64, conflicts []models.Conflict) error {
	return s.commit(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("kind = ? AND entity_id = ?", kind, entityID).Delete(&models.Conflict{}).Error; err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range conflicts {
			c := &conflicts[i]
			c.ID = 0
			c.Kind = kind
			c.EntityID = entityID
			if c.DetectedAt.IsZero() {
				c.DetectedAt = now
			}
			if err := tx.Create(c).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Conflicts returns the open conflicts of an account.
func (s *Store) Conflicts(ctx context.Context, accountID int64) ([]models.Conflict, error) {
	var out []models.Conflict
	if err := s.read(ctx).Where("account_id = ?", accountID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Conflict returns one conflict row or errs.ErrNotFound.
func (s *Store) Conflict(ctx context.Context, id int64) (*models.Conflict, error) {
	var c models.Conflict
	if err := s.read(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, notFound(err, "conflict", id)
	}
	return &c, nil
}

// ConflictsFor returns the conflicts recorded for one entity.
func (s *Store) ConflictsFor(ctx context.Context, kind string, entityID int64) ([]models.Conflict, error) {
	var out []models.Conflict
	if err := s.read(ctx).Where("kind = ? AND entity_id = ?", kind, entityID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClearConflicts forgets every conflict of one entity.
func (s *Store) ClearConflicts(ctx context.Context, kind string, entityID int64) error {
	return s.commit(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("kind = ? AND entity_id = ?", kind, entityID).Delete(&models.Conflict{}).Error; err != nil {
			return fmt.Errorf("clear %s %d conflicts: %w", kind, entityID, err)
		}
		return nil
	})
}
