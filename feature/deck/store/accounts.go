package store

import (
	"context"
	"fmt"
	"strings"

	"deck-sync/core/errs"
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// CreateAccount stores a new account. Names are unique.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" || a.URL == "" || a.UserName == "" {
		return fmt.Errorf("account needs name, url and user name: %w", errs.ErrPrecondition)
	}
	a.ID = 0
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}

	return s.transaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Account{}).Where("name = ?", a.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("account %q already exists: %w", a.Name, errs.ErrPrecondition)
		}
		return tx.Create(a).Error
	})
}

// HasAccounts reports whether at least one account exists.
func (s *Store) HasAccounts(ctx context.Context) (bool, error) {
	var n int64
	if err := s.read(ctx).Model(&models.Account{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Account returns an account by id or errs.ErrNotFound.
func (s *Store) Account(ctx context.Context, id int64) (*models.Account, error) {
	var a models.Account
	if err := s.read(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, notFound(err, "account", id)
	}
	return &a, nil
}

// AccountByName returns an account by its unique name or errs.ErrNotFound.
func (s *Store) AccountByName(ctx context.Context, name string) (*models.Account, error) {
	var a models.Account
	if err := s.read(ctx).Where("name = ?", name).Take(&a).Error; err != nil {
		return nil, notFound(err, "account", name)
	}
	return &a, nil
}

// Accounts returns every account ordered by id.
func (s *Store) Accounts(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	if err := s.read(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccount writes every column of an existing account.
func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(a).Select("*").Updates(a)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Account{}).Where("id = ?", a.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("account %d: %w", a.ID, errs.ErrNotFound)
			}
		}
		return nil
	})
}

// DeleteAccount removes an account and every row it owns.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	var released []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var a models.Account
		if err := tx.Where("id = ?", id).Take(&a).Error; err != nil {
			return notFound(err, "account", id)
		}

		var boardIDs, userIDs []int64
		if err := tx.Model(&models.Board{}).Where("account_id = ?", id).Pluck("local_id", &boardIDs).Error; err != nil {
			return err
		}
		if err := purgeBoards(tx, boardIDs, &released); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("account_id = ?", id).Pluck("local_id", &userIDs).Error; err != nil {
			return err
		}
		if err := purgeUsers(tx, userIDs, &released); err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Conflict{}).Error; err != nil {
			return err
		}
		return tx.Delete(&a).Error
	})
	if err != nil {
		return err
	}

	s.release(ctx, released)
	return nil
}
