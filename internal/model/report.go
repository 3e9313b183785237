package model

import (
	"encoding/json"
	"time"
)

// Source is one cited source, in the order the pipeline produced it.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ResearchReport holds the full report text for a completed session.
// Sources are stored as a JSON array for portability.
type ResearchReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	Report    string    `gorm:"type:longtext;not null" json:"report"`
	Sources   string    `gorm:"type:text" json:"-"` // JSON array of Source
	CreatedAt time.Time `json:"created_at"`
}

// SourceList returns the parsed source slice; empty on parse error.
func (r *ResearchReport) SourceList() []Source {
	if r.Sources == "" {
		return nil
	}
	var list []Source
	_ = json.Unmarshal([]byte(r.Sources), &list)
	return list
}

// SetSources stores the sources as JSON.
func (r *ResearchReport) SetSources(sources []Source) {
	if len(sources) == 0 {
		r.Sources = "[]"
		return
	}
	b, _ := json.Marshal(sources)
	r.Sources = string(b)
}
