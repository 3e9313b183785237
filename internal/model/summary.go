package model

import "time"

// ResearchSummary is the bounded digest of a session's report, used as
// continuation context for child sessions.
type ResearchSummary struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	Summary   string    `gorm:"type:text;not null" json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
