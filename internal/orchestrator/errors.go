package orchestrator

import (
	"errors"
	"fmt"

	"github.com/yungbote/creatives-backend/internal/store"
)

var (
	// ErrNotFound is returned when the campaign has no brief document.
	ErrNotFound = store.ErrNotFound
	// ErrRunInProgress is returned when a run for the campaign is already active.
	ErrRunInProgress = errors.New("generation already in progress")
	// ErrGenerationFailed matches every *GenerationError.
	ErrGenerationFailed = errors.New("generation failed")
)

// GenerationError aborts a run. ProductID is empty when the failure was not
// tied to one product (for example persisting status).
type GenerationError struct {
	CampaignID string
	ProductID  string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("campaign %s: %v", e.CampaignID, e.Err)
	}
	return fmt.Sprintf("campaign %s product %s: %v", e.CampaignID, e.ProductID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }
