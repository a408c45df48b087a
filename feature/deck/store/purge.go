package store

import (
	"deck-sync/feature/deck/models"

	"gorm.io/gorm"
)

// Cascading deletes. Every function deletes the rows with the given local ids and
// everything that references them, inside the caller's transaction.

func purgeBoards(tx *gorm.DB, ids []int64, released *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	var stackIDs, labelIDs []int64
	if err := tx.Model(&models.Stack{}).Where("board_id IN ?", ids).Pluck("local_id", &stackIDs).Error; err != nil {
		return err
	}
	if err := purgeStacks(tx, stackIDs, released); err != nil {
		return err
	}
	if err := tx.Model(&models.Label{}).Where("board_id IN ?", ids).Pluck("local_id", &labelIDs).Error; err != nil {
		return err
	}
	if err := purgeLabels(tx, labelIDs, released); err != nil {
		return err
	}
	return deleteEntities(tx, &models.Board{}, models.KindBoard, ids)
}

func purgeStacks(tx *gorm.DB, ids []int64, released *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	var cardIDs []int64
	if err := tx.Model(&models.Card{}).Where("stack_id IN ?", ids).Pluck("local_id", &cardIDs).Error; err != nil {
		return err
	}
	if err := purgeCards(tx, cardIDs, released); err != nil {
		return err
	}
	return deleteEntities(tx, &models.Stack{}, models.KindStack, ids)
}

func purgeCards(tx *gorm.DB, ids []int64, released *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	var attachmentIDs, commentIDs []int64
	if err := tx.Model(&models.Attachment{}).Where("card_id IN ?", ids).Pluck("local_id", &attachmentIDs).Error; err != nil {
		return err
	}
	if err := purgeAttachments(tx, attachmentIDs, released); err != nil {
		return err
	}
	if err := tx.Model(&models.Comment{}).Where("card_id IN ?", ids).Pluck("local_id", &commentIDs).Error; err != nil {
		return err
	}
	if err := purgeComments(tx, commentIDs, released); err != nil {
		return err
	}
	if err := tx.Where("card_id IN ?", ids).Delete(&models.CardLabel{}).Error; err != nil {
		return err
	}
	if err := tx.Where("card_id IN ?", ids).Delete(&models.CardAssignee{}).Error; err != nil {
		return err
	}
	return deleteEntities(tx, &models.Card{}, models.KindCard, ids)
}

func purgeLabels(tx *gorm.DB, ids []int64, _ *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("label_id IN ?", ids).Delete(&models.CardLabel{}).Error; err != nil {
		return err
	}
	return deleteEntities(tx, &models.Label{}, models.KindLabel, ids)
}

func purgeUsers(tx *gorm.DB, ids []int64, _ *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("user_id IN ?", ids).Delete(&models.CardAssignee{}).Error; err != nil {
		return err
	}
	return deleteEntities(tx, &models.User{}, models.KindUser, ids)
}

// purgeComments detaches replies instead of deleting them.
func purgeComments(tx *gorm.DB, ids []int64, _ *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", ids).Update("parent_id", nil).Error; err != nil {
		return err
	}
	return deleteEntities(tx, &models.Comment{}, models.KindComment, ids)
}

func purgeAttachments(tx *gorm.DB, ids []int64, released *[]string) error {
	if len(ids) == 0 {
		return nil
	}
	var keys []string
	if err := tx.Model(&models.Attachment{}).Where("local_id IN ? AND object_key <> ''", ids).Pluck("object_key", &keys).Error; err != nil {
		return err
	}
	*released = append(*released, keys...)
	return deleteEntities(tx, &models.Attachment{}, models.KindAttachment, ids)
}

func deleteEntities(tx *gorm.DB, model any, kind string, ids []int64) error {
	if err := tx.Where("kind = ? AND entity_id IN ?", kind, ids).Delete(&models.Conflict{}).Error; err != nil {
		return err
	}
	return tx.Where("local_id IN ?", ids).Delete(model).Error
}
