package app

import (
	"context"
	"time"

	"deepresearch/internal/model"
)

// TokenUsageView is the client-facing token accounting block.
type TokenUsageView struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type DocumentView struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	SummaryReady bool      `json:"summary_ready"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ResearchDetail is the full poll-path bundle. Report, sources, summary,
// reasoning and cost are absent until the session is terminal; a FAILED
// session carries only the reasoning with its failure reason.
type ResearchDetail struct {
	ID               string          `json:"id"`
	ParentID         *string         `json:"parent_research_id"`
	OriginalQuery    string          `json:"original_query"`
	Status           string          `json:"status"`
	TraceID          string          `json:"trace_id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Report           *string         `json:"report,omitempty"`
	Sources          []model.Source  `json:"sources,omitempty"`
	Summary          *string         `json:"summary,omitempty"`
	Reasoning        *string         `json:"reasoning,omitempty"`
	TokenUsage       *TokenUsageView `json:"token_usage,omitempty"`
	EstimatedCostUSD *float64        `json:"estimated_cost_usd,omitempty"`
	Documents        []DocumentView  `json:"documents"`
}

// Detail returns the session's current status and whatever terminal fields
// exist. Terminal bundles are immutable, so they are served from the cache
// when possible and cached after the first load.
func (s *ResearchService) Detail(ctx context.Context, sessionID string) (*ResearchDetail, error) {
	if s.cache != nil {
		if cached, hit, err := s.cache.GetDetail(ctx, sessionID); err == nil && hit {
			return cached, nil
		}
	}

	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	detail := &ResearchDetail{
		ID:            session.ID,
		ParentID:      session.ParentID,
		OriginalQuery: session.OriginalQuery,
		Status:        session.Status,
		TraceID:       session.TraceID,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}

	docs, err := s.documents.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	detail.Documents = make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		detail.Documents = append(detail.Documents, DocumentView{
			ID:           doc.ID,
			Filename:     doc.Filename,
			SummaryReady: doc.SummaryReady(),
			UploadedAt:   doc.CreatedAt,
		})
	}

	if !session.Terminal() {
		return detail, nil
	}

	result, err := s.sessions.GetResult(sessionID)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if result.Report != nil {
			detail.Report = &result.Report.Report
			detail.Sources = result.Report.SourceList()
		}
		if result.Summary != nil {
			detail.Summary = &result.Summary.Summary
		}
		if result.Reasoning != nil {
			detail.Reasoning = &result.Reasoning.Reasoning
		}
		if result.Cost != nil {
			detail.TokenUsage = &TokenUsageView{
				InputTokens:  result.Cost.InputTokens,
				OutputTokens: result.Cost.OutputTokens,
				TotalTokens:  result.Cost.TotalTokens,
			}
			detail.EstimatedCostUSD = &result.Cost.EstimatedCostUSD
		}
	}

	if s.cache != nil {
		if err := s.cache.SetDetail(ctx, sessionID, detail); err != nil {
			s.logger.Debug().Err(err).Str("session_id", sessionID).Msg("cache terminal detail failed")
		}
	}
	return detail, nil
}

// History lists all sessions newest-first.
func (s *ResearchService) History() ([]model.ResearchSession, error) {
	return s.sessions.List()
}
