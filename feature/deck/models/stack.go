package models

import "deck-sync/core/utils"

// Stack is a column of cards on a board.
type Stack struct {
	Entity  `gorm:"embedded"`
	BoardID int64  `gorm:"index;not null" json:"board_id"`
	Title   string `gorm:"size:255;not null" json:"title"`
	Order   int64  `gorm:"column:sort_order" json:"order"`
}

func (Stack) TableName() string { return "stacks" }

func (s *Stack) Kind() string { return KindStack }

func (s *Stack) Parent() (string, int64) { return "boards", s.BoardID }

func (s *Stack) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{
		"title": s.Title,
		"order": utils.FormatInt(s.Order),
	}}
}

func (s *Stack) Apply(snap Snapshot) error {
	order, err := utils.ParseInt(snap.Fields["order"])
	if err != nil {
		return err
	}
	s.Title = snap.Fields["title"]
	s.Order = order
	return nil
}
