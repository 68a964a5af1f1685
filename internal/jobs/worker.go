package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
}

// Worker drains durable run intents with a fixed pool of goroutines. It
// also implements Scheduler: scheduling enqueues an intent and wakes a loop.
type Worker struct {
	repo   IntentRepo
	runner Runner
	log    *logger.Logger
	cfg    WorkerConfig

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewWorker(repo IntentRepo, runner Runner, baseLog *logger.Logger, cfg WorkerConfig) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		repo:   repo,
		runner: runner,
		log:    baseLog.With("component", "RunWorker"),
		cfg:    cfg,
		wake:   make(chan struct{}, cfg.Concurrency),
	}
}

func (w *Worker) Schedule(ctx context.Context, campaignID string) error {
	intent, created, err := w.repo.Enqueue(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("enqueue run for %s: %w", campaignID, err)
	}
	if !created {
		w.log.Info("Run already queued", "campaign_id", campaignID, "intent_id", intent.ID, "status", intent.Status)
		return nil
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start recovers intents a dead process left running, then launches the
// loops. Loops exit when ctx ends; Wait blocks until they have.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.recoverStale(ctx); err != nil {
		return err
	}
	w.log.Info("Starting run worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	return nil
}

func (w *Worker) Wait() { w.wg.Wait() }

// LatestRun returns the newest intent recorded for the campaign, or nil.
func (w *Worker) LatestRun(ctx context.Context, campaignID string) (*RunIntent, error) {
	return w.repo.LatestForCampaign(ctx, campaignID)
}

// recoverStale fails the campaign of every running intent whose run has gone
// quiet, so the requeued intent resumes from the persisted brief.
func (w *Worker) recoverStale(ctx context.Context) error {
	stale, err := w.repo.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running intents: %w", err)
	}
	for _, intent := range stale {
		_, err := w.runner.Recover(ctx, intent.CampaignID)
		switch {
		case err == nil, errors.Is(err, orchestrator.ErrNotFound):
		case errors.Is(err, orchestrator.ErrRunInProgress):
			// Another replica sharing the intent table is still running it.
			w.log.Info("Running intent still live, leaving it", "campaign_id", intent.CampaignID, "intent_id", intent.ID)
			continue
		default:
			w.log.Warn("Recover campaign failed", "campaign_id", intent.CampaignID, "error", err)
		}
		if err := w.repo.Requeue(ctx, intent.ID); err != nil {
			return fmt.Errorf("requeue intent %s: %w", intent.ID, err)
		}
		w.log.Warn("Requeued interrupted run", "campaign_id", intent.CampaignID, "intent_id", intent.ID)
	}
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-w.wake:
		}
		for w.drainOne(ctx, workerID) {
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// drainOne claims and runs one intent. It reports whether one was found.
func (w *Worker) drainOne(ctx context.Context, workerID int) bool {
	intent, err := w.repo.ClaimNext(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("ClaimNext failed", "worker_id", workerID, "error", err)
		}
		return false
	}
	if intent == nil {
		return false
	}

	status, errMsg, result := w.run(ctx, workerID, intent)
	// The outcome is recorded even when shutdown canceled the run.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	var payload any
	if result != nil {
		payload = result
	}
	if err := w.repo.Finish(fctx, intent.ID, status, errMsg, payload); err != nil {
		w.log.Error("Finish intent failed", "intent_id", intent.ID, "error", err)
	}
	return true
}

func (w *Worker) run(ctx context.Context, workerID int, intent *RunIntent) (status IntentStatus, errMsg string, result *orchestrator.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Generation run panic",
				"worker_id", workerID,
				"intent_id", intent.ID,
				"campaign_id", intent.CampaignID,
				"panic", r,
			)
			status, errMsg, result = IntentFailed, fmt.Sprintf("panic: %v", r), nil
		}
	}()

	res, err := w.runner.Generate(ctx, intent.CampaignID)
	switch {
	case err == nil:
		return IntentSucceeded, "", res
	case errors.Is(err, orchestrator.ErrRunInProgress):
		return IntentSkipped, err.Error(), res
	default:
		w.log.Warn("Generation run failed",
			"worker_id", workerID,
			"intent_id", intent.ID,
			"campaign_id", intent.CampaignID,
			"error", err,
		)
		return IntentFailed, err.Error(), res
	}
}
