// Package jobs schedules generation runs in the background. Run intents are
// kept in a SQL table through gorm so a restart can find runs that were cut
// short.
package jobs

import (
	"time"

	"gorm.io/datatypes"
)

type IntentStatus string

const (
	IntentQueued    IntentStatus = "queued"
	IntentRunning   IntentStatus = "running"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
	// IntentSkipped means another run already held the campaign.
	IntentSkipped IntentStatus = "skipped"
)

// Active reports whether the intent still occupies its campaign.
func (s IntentStatus) Active() bool {
	return s == IntentQueued || s == IntentRunning
}

type RunIntent struct {
	ID         string         `gorm:"column:id;primaryKey;size:36" json:"id"`
	CampaignID string         `gorm:"column:campaign_id;not null;index" json:"campaign_id"`
	Status     IntentStatus   `gorm:"column:status;not null;index" json:"status"`
	Attempts   int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Result     datatypes.JSON `gorm:"column:result" json:"result,omitempty"`
	LockedAt   *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (RunIntent) TableName() string { return "generation_run_intent" }
