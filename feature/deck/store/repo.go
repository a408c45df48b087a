package store

import (
	"context"
	"fmt"

	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// record is satisfied by pointers to synchronizable models.
type record[T any] interface {
	*T
	models.Syncable
}

// Repo is the CRUD surface for one synchronizable table.
type Repo[T any, P record[T]] struct {
	store        *Store
	kind         string
	parentColumn string

	// purge deletes rows with the given ids and their dependants, collecting
	// the object keys of removed attachments.
	purge func(tx *gorm.DB, ids []int64, released *[]string) error
	// afterLoad and afterSave maintain data kept outside the row (card sets).
	afterLoad func(tx *gorm.DB, rows []P) error
	afterSave func(tx *gorm.DB, row P) error
}

// Kind returns the entity kind stored by this repo.
func (r *Repo[T, P]) Kind() string { return r.kind }

func (r *Repo[T, P]) wrap(rows []T) []P {
	out := make([]P, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out
}

func (r *Repo[T, P]) load(tx *gorm.DB, rows []P) ([]P, error) {
	if r.afterLoad != nil && len(rows) > 0 {
		if err := r.afterLoad(tx, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// ByLocalID returns one row or errs.ErrNotFound.
func (r *Repo[T, P]) ByLocalID(ctx context.Context, id int64) (P, error) {
	var row T
	tx := r.store.read(ctx)
	if err := tx.Where("local_id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, r.kind, id)
	}
	rows, err := r.load(tx, []P{P(&row)})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// ByRemoteID returns the account's row with the given remote id or errs.ErrNotFound.
func (r *Repo[T, P]) ByRemoteID(ctx context.Context, accountID, remoteID int64) (P, error) {
	var row T
	tx := r.store.read(ctx)
	if err := tx.Where("account_id = ? AND remote_id = ?", accountID, remoteID).Take(&row).Error; err != nil {
		return nil, notFound(err, r.kind, fmt.Sprintf("remote %d", remoteID))
	}
	rows, err := r.load(tx, []P{P(&row)})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// ForParent returns every row under a parent, tombstones included, by local id.
func (r *Repo[T, P]) ForParent(ctx context.Context, parentID int64) ([]P, error) {
	var rows []T
	tx := r.store.read(ctx)
	if err := tx.Where(r.parentColumn+" = ?", parentID).Order("local_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.load(tx, r.wrap(rows))
}

// ForAccount returns every row of an account by local id.
func (r *Repo[T, P]) ForAccount(ctx context.Context, accountID int64) ([]P, error) {
	var rows []T
	tx := r.store.read(ctx)
	if err := tx.Where("account_id = ?", accountID).Order("local_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.load(tx, r.wrap(rows))
}

// WithStatus returns the account's rows in one of the given statuses.
func (r *Repo[T, P]) WithStatus(ctx context.Context, accountID int64, statuses ...reconcile.Status) ([]P, error) {
	var rows []T
	tx := r.store.read(ctx)
	if err := tx.Where("account_id = ? AND status IN ?", accountID, statuses).Order("local_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.load(tx, r.wrap(rows))
}

// Insert stores a new row. (account_id, remote_id) must be unique when remote_id is set.
func (r *Repo[T, P]) Insert(ctx context.Context, row P) error {
	base := row.Base()
	if !base.Status.Valid() {
		return fmt.Errorf("insert %s: invalid status %q", r.kind, base.Status)
	}

	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		return r.insert(tx, row)
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpInsert, AccountID: base.AccountID, LocalID: base.LocalID})
	return nil
}

func (r *Repo[T, P]) insert(tx *gorm.DB, row P) error {
	base := row.Base()
	if err := owned(tx, row); err != nil {
		return err
	}
	if base.RemoteID != nil {
		var n int64
		if err := tx.Model(new(T)).Where("account_id = ? AND remote_id = ?", base.AccountID, *base.RemoteID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s remote %d already stored: %w", r.kind, *base.RemoteID, errs.ErrPrecondition)
		}
	}
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	if r.afterSave != nil {
		return r.afterSave(tx, row)
	}
	return nil
}

// Sync writes the result of a synchronization step for a row whose stamp was
// seen when the step loaded it. If a local edit or delete landed since, the
// user's columns and status are kept and errs.ErrStale is returned. With pushed
// set the server now holds what was sent, so the remote id and merge base are
// still recorded; otherwise nothing is written.
func (r *Repo[T, P]) Sync(ctx context.Context, row P, seen models.Stamp, pushed bool) error {
	base := row.Base()
	if !base.Status.Valid() {
		return fmt.Errorf("sync %s: invalid status %q", r.kind, base.Status)
	}

	stale := false
	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		var current T
		if err := tx.Where("local_id = ?", base.LocalID).Take(&current).Error; err != nil {
			return notFound(err, r.kind, base.LocalID)
		}
		if P(&current).Base().Stamp() == seen {
			return r.update(tx, row)
		}

		stale = true
		if !pushed {
			return nil
		}
		return tx.Model(new(T)).Where("local_id = ?", base.LocalID).Updates(map[string]any{
			"remote_id":            base.RemoteID,
			"synced":               base.Synced,
			"last_modified_remote": base.LastModifiedRemote,
		}).Error
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpUpdate, AccountID: base.AccountID, LocalID: base.LocalID})
	if stale {
		return fmt.Errorf("%s %d: %w", r.kind, base.LocalID, errs.ErrStale)
	}
	return nil
}

// Update writes every column of an existing row. A row deleted in the meantime
// yields errs.ErrNotFound instead of being recreated.
func (r *Repo[T, P]) Update(ctx context.Context, row P) error {
	base := row.Base()
	if !base.Status.Valid() {
		return fmt.Errorf("update %s: invalid status %q", r.kind, base.Status)
	}

	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		return r.update(tx, row)
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpUpdate, AccountID: base.AccountID, LocalID: base.LocalID})
	return nil
}

func (r *Repo[T, P]) update(tx *gorm.DB, row P) error {
	base := row.Base()
	res := tx.Model(row).Select("*").Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Some drivers report changed rather than matched rows.
		var n int64
		if err := tx.Model(new(T)).Where("local_id = ?", base.LocalID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s %d: %w", r.kind, base.LocalID, errs.ErrNotFound)
		}
	}
	if r.afterSave != nil {
		return r.afterSave(tx, row)
	}
	return nil
}

// Purge physically deletes a row and everything below it.
func (r *Repo[T, P]) Purge(ctx context.Context, row P) error {
	base := row.Base()
	var released []string
	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(new(T)).Where("local_id = ?", base.LocalID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s %d: %w", r.kind, base.LocalID, errs.ErrNotFound)
		}
		return r.purge(tx, []int64{base.LocalID}, &released)
	})
	if err != nil {
		return err
	}

	r.store.release(ctx, released)
	r.store.publish(Change{Kind: r.kind, Op: OpDelete, AccountID: base.AccountID, LocalID: base.LocalID})
	return nil
}

// create stores a row created by the user: LOCAL_EDITED without remote id.
// parent validates the parent inside the transaction and returns its account.
func (r *Repo[T, P]) create(ctx context.Context, row P, parent func(tx *gorm.DB) (int64, error)) error {
	base := row.Base()
	base.LocalID = 0
	base.RemoteID = nil
	base.Status = reconcile.StatusLocalEdited
	base.LastModifiedLocal = r.store.now().UTC()
	base.Synced = ""

	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		accountID, err := parent(tx)
		if err != nil {
			return err
		}
		base.AccountID = accountID
		return r.insert(tx, row)
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpInsert, AccountID: base.AccountID, LocalID: base.LocalID})
	return nil
}

// Edit stores user changes to a loaded row and marks it LOCAL_EDITED.
// Synchronization columns are taken from the stored row, not from the argument.
func (r *Repo[T, P]) Edit(ctx context.Context, row P) error {
	return r.applyLocal(ctx, row, reconcile.TriggerLocalEdit)
}

func (r *Repo[T, P]) applyLocal(ctx context.Context, row P, trigger reconcile.Trigger) error {
	base := row.Base()
	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		var current T
		if err := tx.Where("local_id = ?", base.LocalID).Take(&current).Error; err != nil {
			return notFound(err, r.kind, base.LocalID)
		}
		stored := P(&current).Base()
		if stored.Status == reconcile.StatusLocalDeleted {
			return fmt.Errorf("%s %d is deleted: %w", r.kind, base.LocalID, errs.ErrPrecondition)
		}

		next, err := reconcile.Transition(stored.Status, trigger)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
		}

		base.RemoteID = stored.RemoteID
		base.AccountID = stored.AccountID
		base.Synced = stored.Synced
		base.LastModifiedRemote = stored.LastModifiedRemote
		base.Status = next
		base.LastModifiedLocal = r.store.now().UTC()
		base.LocalVersion = stored.LocalVersion + 1
		return r.update(tx, row)
	})
	if err != nil {
		return err
	}

	r.store.publish(Change{Kind: r.kind, Op: OpUpdate, AccountID: base.AccountID, LocalID: base.LocalID})
	return nil
}

// Remove deletes a row on behalf of the user. A row that never reached the
// server is purged at once; otherwise it becomes a tombstone until the remote
// delete is acknowledged.
func (r *Repo[T, P]) Remove(ctx context.Context, localID int64) error {
	var (
		accountID int64
		purged    bool
		released  []string
	)
	err := r.store.commit(ctx, func(tx *gorm.DB) error {
		var current T
		if err := tx.Where("local_id = ?", localID).Take(&current).Error; err != nil {
			return notFound(err, r.kind, localID)
		}
		base := P(&current).Base()
		accountID = base.AccountID
		if base.RemoteID == nil {
			purged = true
			return r.purge(tx, []int64{localID}, &released)
		}

		next, err := reconcile.Transition(base.Status, reconcile.TriggerLocalDelete)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
		}
		return tx.Model(new(T)).Where("local_id = ?", localID).Updates(map[string]any{
			"status":              next,
			"last_modified_local": r.store.now().UTC(),
			"local_version":       gorm.Expr("local_version + 1"),
		}).Error
	})
	if err != nil {
		return err
	}

	op := OpUpdate
	if purged {
		r.store.release(ctx, released)
		op = OpDelete
	}
	r.store.publish(Change{Kind: r.kind, Op: op, AccountID: accountID, LocalID: localID})
	return nil
}

// owned checks that the row's account and parent still exist, so a write
// racing an account deletion fails instead of leaving orphans behind.
func owned(tx *gorm.DB, row models.Syncable) error {
	base := row.Base()
	var n int64
	if err := tx.Model(&models.Account{}).Where("id = ?", base.AccountID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", base.AccountID, errs.ErrNotFound)
	}

	child, ok := row.(models.Child)
	if !ok {
		return nil
	}
	table, parentID := child.Parent()
	if err := tx.Table(table).Where("local_id = ? AND account_id = ?", parentID, base.AccountID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s parent %d in %s: %w", row.Kind(), parentID, table, errs.ErrNotFound)
	}
	return nil
}
