package models

// Label is part of a board's label catalog.
type Label struct {
	Entity  `gorm:"embedded"`
	BoardID int64  `gorm:"index;not null" json:"board_id"`
	Title   string `gorm:"size:255;not null" json:"title"`
	Color   string `gorm:"size:16" json:"color"`
}

func (Label) TableName() string { return "labels" }

func (l *Label) Kind() string { return KindLabel }

func (l *Label) Parent() (string, int64) { return "boards", l.BoardID }

func (l *Label) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{"title": l.Title, "color": l.Color}}
}

func (l *Label) Apply(s Snapshot) error {
	l.Title = s.Fields["title"]
	l.Color = s.Fields["color"]
	return nil
}
