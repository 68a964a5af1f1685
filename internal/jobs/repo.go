package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type IntentRepo interface {
	// Enqueue returns the campaign's active intent if one exists, else a new
	// queued one. created reports which.
	Enqueue(ctx context.Context, campaignID string) (intent *RunIntent, created bool, err error)
	// ClaimNext marks the oldest queued intent running. It returns nil when
	// nothing is queued.
	ClaimNext(ctx context.Context) (*RunIntent, error)
	Finish(ctx context.Context, id string, status IntentStatus, errMsg string, result any) error
	ListRunning(ctx context.Context) ([]*RunIntent, error)
	Requeue(ctx context.Context, id string) error
	LatestForCampaign(ctx context.Context, campaignID string) (*RunIntent, error)
}

type intentRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewIntentRepo(db *gorm.DB, baseLog *logger.Logger) IntentRepo {
	return &intentRepo{
		db:  db,
		log: baseLog.With("repo", "RunIntentRepo"),
		now: time.Now,
	}
}

func (r *intentRepo) Enqueue(ctx context.Context, campaignID string) (*RunIntent, bool, error) {
	if campaignID == "" {
		return nil, false, fmt.Errorf("campaign id required")
	}
	var out *RunIntent
	created := false
	err := r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var existing RunIntent
		qErr := txx.
			Where("campaign_id = ? AND status IN ?", campaignID, []IntentStatus{IntentQueued, IntentRunning}).
			Order("created_at ASC").
			First(&existing).Error
		if qErr == nil {
			out = &existing
			return nil
		}
		if !errors.Is(qErr, gorm.ErrRecordNotFound) {
			return qErr
		}
		now := r.now().UTC()
		intent := &RunIntent{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			Status:     IntentQueued,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := txx.Create(intent).Error; err != nil {
			return err
		}
		out = intent
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *intentRepo) ClaimNext(ctx context.Context) (*RunIntent, error) {
	var claimed *RunIntent
	err := r.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		q := txx
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var intent RunIntent
		qErr := q.Where("status = ?", IntentQueued).Order("created_at ASC").First(&intent).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		now := r.now().UTC()
		// Conditional on status so two claimers without row locks cannot both win.
		res := txx.Model(&RunIntent{}).
			Where("id = ? AND status = ?", intent.ID, IntentQueued).
			Updates(map[string]interface{}{
				"status":     IntentRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		intent.Status = IntentRunning
		intent.Attempts++
		intent.LockedAt = &now
		intent.UpdatedAt = now
		claimed = &intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *intentRepo) Finish(ctx context.Context, id string, status IntentStatus, errMsg string, result any) error {
	if id == "" {
		return nil
	}
	now := r.now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"error":       errMsg,
		"finished_at": now,
		"updated_at":  now,
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode intent result: %w", err)
		}
		updates["result"] = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).
		Model(&RunIntent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *intentRepo) ListRunning(ctx context.Context) ([]*RunIntent, error) {
	var out []*RunIntent
	if err := r.db.WithContext(ctx).
		Where("status = ?", IntentRunning).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *intentRepo) Requeue(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&RunIntent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     IntentQueued,
			"locked_at":  nil,
			"updated_at": r.now().UTC(),
		}).Error
}

func (r *intentRepo) LatestForCampaign(ctx context.Context, campaignID string) (*RunIntent, error) {
	var intent RunIntent
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(1).
		Find(&intent).Error
	if err != nil {
		return nil, err
	}
	if intent.ID == "" {
		return nil, nil
	}
	return &intent, nil
}
