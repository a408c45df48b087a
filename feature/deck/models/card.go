package models

import (
	"time"

	"deck-sync/core/utils"
)

// Set names used in card snapshots.
const (
	SetLabels    = "labels"
	SetAssignees = "assignees"
)

// Card belongs to a stack. Labels and assignees are kept in join tables and
// loaded into LabelKeys/AssigneeKeys by the store.
type Card struct {
	Entity      `gorm:"embedded"`
	StackID     int64      `gorm:"index;not null" json:"stack_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Order       int64      `gorm:"column:sort_order" json:"order"`
	Archived    bool       `json:"archived"`

	// LabelKeys are the remote ids of the assigned labels.
	LabelKeys []string `gorm:"-" json:"labels"`
	// AssigneeKeys are the user ids of the assigned users.
	AssigneeKeys []string `gorm:"-" json:"assignees"`
}

func (Card) TableName() string { return "cards" }

func (c *Card) Kind() string { return KindCard }

func (c *Card) Parent() (string, int64) { return "stacks", c.StackID }

func (c *Card) Snapshot() Snapshot {
	return Snapshot{
		Fields: map[string]string{
			"title":       c.Title,
			"description": c.Description,
			"due_date":    utils.FormatTime(c.DueDate),
			"order":       utils.FormatInt(c.Order),
			"archived":    utils.FormatBool(c.Archived),
			"stack_id":    utils.FormatInt(c.StackID),
		},
		Sets: map[string][]string{
			SetLabels:    SortedSet(c.LabelKeys),
			SetAssignees: SortedSet(c.AssigneeKeys),
		},
	}
}

func (c *Card) Apply(s Snapshot) error {
	due, err := utils.ParseTime(s.Fields["due_date"])
	if err != nil {
		return err
	}
	order, err := utils.ParseInt(s.Fields["order"])
	if err != nil {
		return err
	}
	stackID, err := utils.ParseInt(s.Fields["stack_id"])
	if err != nil {
		return err
	}

	c.Title = s.Fields["title"]
	c.Description = s.Fields["description"]
	c.DueDate = due
	c.Order = order
	c.Archived = utils.ParseBool(s.Fields["archived"])
	if stackID != 0 {
		c.StackID = stackID
	}
	c.LabelKeys = SortedSet(s.Sets[SetLabels])
	c.AssigneeKeys = SortedSet(s.Sets[SetAssignees])
	return nil
}

// CardLabel links a card to a label of the same board.
type CardLabel struct {
	CardID  int64 `gorm:"primaryKey;autoIncrement:false"`
	LabelID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (CardLabel) TableName() string { return "card_labels" }

// CardAssignee links a card to an assigned user.
type CardAssignee struct {
	CardID int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (CardAssignee) TableName() string { return "card_assignees" }
