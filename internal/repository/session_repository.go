package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"deepresearch/internal/model"
)

// ErrStaleTransition reports a terminal write against a session that is no
// longer RUNNING. The write is rolled back; terminal states are final.
var ErrStaleTransition = errors.New("session is not in the expected state")

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.ResearchSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create research session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(id string) (*model.ResearchSession, error) {
	var session model.ResearchSession
	if err := r.db.Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) List() ([]model.ResearchSession, error) {
	var sessions []model.ResearchSession
	if err := r.db.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list research sessions failed: %w", err)
	}
	return sessions, nil
}

// MarkRunning flips PENDING to RUNNING as a compare-and-swap on the status
// column. It returns false when the session already left PENDING, which the
// caller treats as a duplicate delivery. No lock is held past the UPDATE, so
// a crashed worker cannot deadlock the row.
func (r *SessionRepository) MarkRunning(id string) (bool, error) {
	res := r.db.Model(&model.ResearchSession{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("status", model.StatusRunning)
	if res.Error != nil {
		return false, fmt.Errorf("mark session running failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SaveResult writes the COMPLETED status together with the report, summary,
// reasoning and cost rows in one transaction, guarded on the session still
// being RUNNING. A reader can never observe COMPLETED without its report.
func (r *SessionRepository) SaveResult(id, traceID string, result *model.ResearchResult) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ResearchSession{}).
			Where("id = ? AND status = ?", id, model.StatusRunning).
			Updates(map[string]interface{}{
				"status":   model.StatusCompleted,
				"trace_id": traceID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}

		if err := tx.Create(result.Report).Error; err != nil {
			return err
		}
		if err := tx.Create(result.Summary).Error; err != nil {
			return err
		}
		if err := tx.Create(result.Reasoning).Error; err != nil {
			return err
		}
		if err := tx.Create(result.Cost).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save research result failed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with its reason stored as the
// session's reasoning row. A session already out of RUNNING is left alone.
func (r *SessionRepository) MarkFailed(id, traceID, reason string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ResearchSession{}).
			Where("id = ? AND status = ?", id, model.StatusRunning).
			Updates(map[string]interface{}{
				"status":   model.StatusFailed,
				"trace_id": traceID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Create(&model.ResearchReasoning{
			SessionID: id,
			Reasoning: reason,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("mark session failed failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSummary(id string) (*model.ResearchSummary, error) {
	var summary model.ResearchSummary
	if err := r.db.Where("session_id = ?", id).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research summary failed: %w", err)
	}
	return &summary, nil
}

// GetResult loads whichever terminal rows exist for the session. Missing
// rows come back nil; a FAILED session typically has only reasoning.
func (r *SessionRepository) GetResult(id string) (*model.ResearchResult, error) {
	result := &model.ResearchResult{}

	var report model.ResearchReport
	if err := r.db.Where("session_id = ?", id).First(&report).Error; err == nil {
		result.Report = &report
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get research report failed: %w", err)
	}

	var summary model.ResearchSummary
	if err := r.db.Where("session_id = ?", id).First(&summary).Error; err == nil {
		result.Summary = &summary
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get research summary failed: %w", err)
	}

	var reasoning model.ResearchReasoning
	if err := r.db.Where("session_id = ?", id).First(&reasoning).Error; err == nil {
		result.Reasoning = &reasoning
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get research reasoning failed: %w", err)
	}

	var cost model.ResearchCost
	if err := r.db.Where("session_id = ?", id).First(&cost).Error; err == nil {
		result.Cost = &cost
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get research cost failed: %w", err)
	}

	return result, nil
}
