package models

import "time"

// Comment is a message on a card, optionally replying to another comment.
type Comment struct {
	Entity `gorm:"embedded"`
	CardID int64 `gorm:"index;not null" json:"card_id"`
	// ParentID is the local id of the comment this one replies to.
	ParentID  *int64    `json:"parent_id,omitempty"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	ActorID   string    `gorm:"size:255" json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Comment) TableName() string { return "comments" }

func (c *Comment) Kind() string { return KindComment }

func (c *Comment) Parent() (string, int64) { return "cards", c.CardID }

func (c *Comment) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{"message": c.Message}}
}

func (c *Comment) Apply(s Snapshot) error {
	c.Message = s.Fields["message"]
	return nil
}
