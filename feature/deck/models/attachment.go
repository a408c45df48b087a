package models

import "deck-sync/core/utils"

// Attachment is a file on a card. The content lives in object storage under ObjectKey.
type Attachment struct {
	Entity    `gorm:"embedded"`
	CardID    int64  `gorm:"index;not null" json:"card_id"`
	Filename  string `gorm:"size:255;not null" json:"filename"`
	MimeType  string `gorm:"size:255" json:"mime_type"`
	Size      int64  `json:"size"`
	ObjectKey string `gorm:"size:512" json:"object_key"`
}

func (Attachment) TableName() string { return "attachments" }

func (a *Attachment) Kind() string { return KindAttachment }

func (a *Attachment) Parent() (string, int64) { return "cards", a.CardID }

func (a *Attachment) Snapshot() Snapshot {
	return Snapshot{Fields: map[string]string{
		"filename":  a.Filename,
		"mime_type": a.MimeType,
		"size":      utils.FormatInt(a.Size),
	}}
}

func (a *Attachment) Apply(s Snapshot) error {
	size, err := utils.ParseInt(s.Fields["size"])
	if err != nil {
		return err
	}
	a.Filename = s.Fields["filename"]
	a.MimeType = s.Fields["mime_type"]
	a.Size = size
	return nil
}
