package model

import "time"

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// ResearchSession is one research job, either a root query or a continuation
// of a COMPLETED parent. Rows are append-only; only the status, trace id and
// updated_at mutate, and never out of a terminal state.
type ResearchSession struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ParentID      *string   `gorm:"size:36;index" json:"parent_research_id"`
	OriginalQuery string    `gorm:"type:text;not null" json:"original_query"`
	Status        string    `gorm:"size:20;not null;index" json:"status"`
	TraceID       string    `gorm:"size:128" json:"trace_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *ResearchSession) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
