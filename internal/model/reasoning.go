package model

import "time"

// ResearchReasoning stores the pipeline's high-level reasoning trace verbatim
// for audit. It is never fed back into continuation context. Failed runs
// store the failure reason here.
type ResearchReasoning struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	Reasoning string    `gorm:"type:text;not null" json:"reasoning"`
	CreatedAt time.Time `json:"created_at"`
}
