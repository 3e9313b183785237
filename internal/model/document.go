package model

import "time"

// UploadedDocument is a user-provided file attached to a non-terminal
// session. ExtractedText is the truncated raw text; ExtractedSummary is the
// bounded digest fed into context assembly. A document with an empty summary
// is excluded from assembly until a summary exists.
type UploadedDocument struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID        string    `gorm:"size:36;not null;index" json:"session_id"`
	Filename         string    `gorm:"size:255;not null" json:"filename"`
	ExtractedText    string    `gorm:"type:longtext" json:"-"`
	ExtractedSummary string    `gorm:"type:text" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

func (d *UploadedDocument) SummaryReady() bool {
	return d.ExtractedSummary != ""
}
