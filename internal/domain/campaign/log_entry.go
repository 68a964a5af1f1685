package campaign

import "time"

type Event string

const (
	EventGenerationStart       Event = "generation-start"
	EventGenerationInitiated   Event = "generation-initiated"
	EventGenerationCompleted   Event = "generation-completed"
	EventGenerationFailed      Event = "generation-failed"
	EventGenerationComplete    Event = "generation-complete"
	EventGenerationInterrupted Event = "generation-interrupted"
)

// LogEntry is one append-only generation log record.
type LogEntry struct {
	Event      Event          `json:"event"`
	CampaignID string         `json:"campaign_id"`
	ProductID  string         `json:"product_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}
