package models

import "time"

// Account is a server login. All other rows belong to exactly one account.
type Account struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// Name is unique, conventionally "user@host".
	Name     string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	UserName string `gorm:"size:255;not null" json:"user_name"`
	URL      string `gorm:"size:1024;not null" json:"url"`
	// Token is an app password used for basic auth.
	Token         string `gorm:"size:255" json:"-"`
	Color         string `gorm:"size:16" json:"color"`
	ServerVersion string `gorm:"size:64" json:"server_version"`
	// BoardsETag is the version of the board listing seen at the last complete sync.
	BoardsETag string     `gorm:"column:boards_etag;size:255" json:"boards_etag"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Account) TableName() string { return "accounts" }
