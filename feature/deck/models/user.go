package models

// User is a server user seen as board participant or card assignee.
// Users are identified by UID and never created from this side, so RemoteID stays nil.
type User struct {
	Entity      `gorm:"embedded"`
	UID         string `gorm:"column:uid;size:255;index;not null" json:"uid"`
	DisplayName string `gorm:"size:255" json:"display_name"`
}

func (User) TableName() string { return "users" }

func (u *User) Kind() string { return KindUser }

func (u *User) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{"display_name": u.DisplayName}}
}

func (u *User) Apply(s Snapshot) error {
	u.DisplayName = s.Fields["display_name"]
	return nil
}
