package model

import "time"

type Media struct {
	ID           string      `gorm:"primaryKey;size:16" json:"id"`
	UserID       string      `gorm:"index;not null" json:"-"`
	Title        string      `gorm:"not null" json:"title"`
	Description  string      `json:"description"`
	Tags         StringSlice `gorm:"type:text" json:"tags"`
	IsShared     bool        `gorm:"column:is_shared;index;not null" json:"isShared"`
	FileName     string      `json:"filename"`     // Object name inside the store
	OriginalName string      `json:"originalName"` // Name of the file as it was uploaded
	MimeType     string      `json:"mimeType"`
	Size         int64       `json:"size"`
	URL          string      `json:"url"`
	StoreKey     string      `gorm:"uniqueIndex;not null" json:"-"` // Used to delete the object from the store
	CreatedAt    time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	UploadedBy *UserSummary `gorm:"-" json:"uploadedBy,omitempty"`
}

func (m *Media) OwnedBy(userID string) bool {
	return m != nil && userID != "" && m.UserID == userID
}
