package campaign

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no run is active for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusProcessing, StatusCompleted},
	StatusFailed:     {StatusProcessing, StatusCompleted},
}

// CanTransition reports whether from -> to is an allowed status move.
// pending/failed -> completed covers a run that found nothing to generate.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

type Metadata struct {
	CampaignID string    `json:"campaign_id"`
	UploadedAt time.Time `json:"uploaded_at"`
	Version    string    `json:"version"`
	Status     Status    `json:"status"`
	Revision   int       `json:"revision"`
	UpdatedAt  time.Time `json:"updated_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewMetadata returns metadata for a freshly uploaded brief.
func NewMetadata(campaignID string, now time.Time) Metadata {
	now = now.UTC()
	return Metadata{
		CampaignID: campaignID,
		UploadedAt: now,
		Version:    SchemaVersion,
		Status:     StatusPending,
		Revision:   1,
		UpdatedAt:  now,
	}
}

// Transition moves the metadata to status to, or returns a *TransitionError.
func (m *Metadata) Transition(to Status, now time.Time) error {
	if !CanTransition(m.Status, to) {
		return &TransitionError{From: m.Status, To: to}
	}
	m.Status = to
	m.UpdatedAt = now.UTC()
	if to != StatusFailed {
		m.LastError = ""
	}
	return nil
}

// StatusChange is announced after every persisted transition.
type StatusChange struct {
	CampaignID string    `json:"campaign_id"`
	Previous   Status    `json:"previous"`
	Status     Status    `json:"status"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}
