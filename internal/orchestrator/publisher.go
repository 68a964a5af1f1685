package orchestrator

import (
	"context"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

// StatusPublisher announces persisted status transitions.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, change campaign.StatusChange) error
}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(context.Context, campaign.StatusChange) error { return nil }
