package model

import "time"

// ResearchCost is the token and money accounting for a single session's
// pipeline invocation. The USD estimate is derived once, from the rate table
// active at completion time, and never recomputed.
type ResearchCost struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SessionID        string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	InputTokens      int       `gorm:"not null" json:"input_tokens"`
	OutputTokens     int       `gorm:"not null" json:"output_tokens"`
	TotalTokens      int       `gorm:"not null" json:"total_tokens"`
	EstimatedCostUSD float64   `gorm:"column:estimated_cost_usd" json:"estimated_cost_usd"`
	ModelName        string    `gorm:"size:128" json:"model_name"`
	CreatedAt        time.Time `json:"created_at"`
}
