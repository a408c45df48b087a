package models

import "deck-sync/core/utils"

// Board is the root of a board tree.
type Board struct {
	Entity   `gorm:"embedded"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Color    string `gorm:"size:16" json:"color"`
	Archived bool   `json:"archived"`
	// ETag is the board version seen after its last complete sync.
	ETag string `gorm:"column:etag;size:255" json:"etag"`
}

func (Board) TableName() string { return "boards" }

func (b *Board) Kind() string { return KindBoard }

func (b *Board) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{
		"title":    b.Title,
		"color":    b.Color,
		"archived": utils.FormatBool(b.Archived),
	}}
}

func (b *Board) Apply(s Snapshot) error {
	b.Title = s.Fields["title"]
	b.Color = s.Fields["color"]
	b.Archived = utils.ParseBool(s.Fields["archived"])
	return nil
}
