package store

import (
	"strconv"

	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

type labelLink struct {
	CardID   int64
	RemoteID int64
}

type assigneeLink struct {
	CardID int64
	UID    string
}

// loadCardSets fills LabelKeys with the remote ids of assigned labels and
// AssigneeKeys with the uids of assigned users. Labels not yet on the server
// are left out; their links survive saveCardSets.
func loadCardSets(tx *gorm.DB, rows []*models.Card) error {
	ids := make([]int64, 0, len(rows))
	byID := make(map[int64]*models.Card, len(rows))
	for _, c := range rows {
		ids = append(ids, c.LocalID)
		byID[c.LocalID] = c
		c.LabelKeys = []string{}
		c.AssigneeKeys = []string{}
	}

	var labels []labelLink
	err := tx.Table("card_labels").
		Select("card_labels.card_id AS card_id, labels.remote_id AS remote_id").
		Joins("JOIN labels ON labels.local_id = card_labels.label_id").
		Where("card_labels.card_id IN ? AND labels.remote_id IS NOT NULL", ids).
		Scan(&labels).Error
	if err != nil {
		return err
	}
	for _, l := range labels {
		c := byID[l.CardID]
		c.LabelKeys = append(c.LabelKeys, strconv.FormatInt(l.RemoteID, 10))
	}

	var assignees []assigneeLink
	err = tx.Table("card_assignees").
		Select("card_assignees.card_id AS card_id, users.uid AS uid").
		Joins("JOIN users ON users.local_id = card_assignees.user_id").
		Where("card_assignees.card_id IN ?", ids).
		Scan(&assignees).Error
	if err != nil {
		return err
	}
	for _, a := range assignees {
		c := byID[a.CardID]
		c.AssigneeKeys = append(c.AssigneeKeys, a.UID)
	}

	for _, c := range rows {
		c.LabelKeys = models.SortedSet(c.LabelKeys)
		c.AssigneeKeys = models.SortedSet(c.AssigneeKeys)
	}
	return nil
}

// saveCardSets replaces the card's links with LabelKeys and AssigneeKeys.
// Label keys without a matching label of the account are dropped. Unknown
// users are created, since the server may assign users we have not listed yet.
func saveCardSets(tx *gorm.DB, card *models.Card) error {
	if err := saveCardLabels(tx, card); err != nil {
		return err
	}
	return saveCardAssignees(tx, card)
}

func saveCardLabels(tx *gorm.DB, card *models.Card) error {
	remoteIDs := make([]int64, 0, len(card.LabelKeys))
	for _, k := range models.SortedSet(card.LabelKeys) {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		remoteIDs = append(remoteIDs, id)
	}

	var want []int64
	if len(remoteIDs) > 0 {
		err := tx.Model(&models.Label{}).
			Where("account_id = ? AND remote_id IN ?", card.AccountID, remoteIDs).
			Pluck("local_id", &want).Error
		if err != nil {
			return err
		}
	}

	// Links to labels that reached the server are rewritten; others are kept.
	synced := tx.Model(&models.Label{}).Select("local_id").Where("remote_id IS NOT NULL")
	if err := tx.Where("card_id = ? AND label_id IN (?)", card.LocalID, synced).Delete(&models.CardLabel{}).Error; err != nil {
		return err
	}
	for _, labelID := range want {
		if err := tx.Create(&models.CardLabel{CardID: card.LocalID, LabelID: labelID}).Error; err != nil {
			return err
		}
	}
	return nil
}

func saveCardAssignees(tx *gorm.DB, card *models.Card) error {
	if err := tx.Where("card_id = ?", card.LocalID).Delete(&models.CardAssignee{}).Error; err != nil {
		return err
	}

	for _, uid := range models.SortedSet(card.AssigneeKeys) {
		if uid == "" {
			continue
		}
		var user models.User
		res := tx.Where("account_id = ? AND uid = ?", card.AccountID, uid).Limit(1).Find(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			user = models.User{UID: uid, DisplayName: uid}
			user.AccountID = card.AccountID
			user.Status = reconcile.StatusUpToDate
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&models.CardAssignee{CardID: card.LocalID, UserID: user.LocalID}).Error; err != nil {
			return err
		}
	}
	return nil
}
