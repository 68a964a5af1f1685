package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

// Scheduler starts a generation run without waiting for it.
type Scheduler interface {
	Schedule(ctx context.Context, campaignID string) error
}

// Runner is satisfied by *orchestrator.Orchestrator.
type Runner interface {
	Generate(ctx context.Context, campaignID string) (*orchestrator.Result, error)
	Recover(ctx context.Context, campaignID string) (bool, error)
}

// GoScheduler runs each scheduled campaign on its own goroutine. Nothing is
// persisted: runs in flight at shutdown are lost and recovered as
// interrupted on the next start.
type GoScheduler struct {
	base   context.Context
	runner Runner
	log    *logger.Logger
	wg     sync.WaitGroup
}

// NewGoScheduler ties run lifetimes to base rather than to the request that
// scheduled them.
func NewGoScheduler(base context.Context, runner Runner, log *logger.Logger) *GoScheduler {
	return &GoScheduler{base: base, runner: runner, log: log.With("component", "GoScheduler")}
}

func (s *GoScheduler) Schedule(ctx context.Context, campaignID string) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Generation run panic", "campaign_id", campaignID, "panic", r)
			}
		}()
		_, err := s.runner.Generate(s.base, campaignID)
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrRunInProgress):
			s.log.Info("Generation already running, schedule ignored", "campaign_id", campaignID)
		default:
			s.log.Warn("Background generation failed", "campaign_id", campaignID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every scheduled run has returned.
func (s *GoScheduler) Wait() { s.wg.Wait() }
