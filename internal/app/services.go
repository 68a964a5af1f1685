package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/creatives-backend/internal/genlog"
	"github.com/yungbote/creatives-backend/internal/jobs"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/services"
	"github.com/yungbote/creatives-backend/internal/store"
)

type Services struct {
	Briefs       services.BriefService
	BriefStore   *store.Briefs
	Orchestrator *orchestrator.Orchestrator
	Recorder     *genlog.Recorder
	Scheduler    jobs.Scheduler

	// Exactly one of Worker and GoScheduler is set, per JOBS_DRIVER.
	Worker      *jobs.Worker
	GoScheduler *jobs.GoScheduler
}

func wireServices(base context.Context, log *logger.Logger, cfg Config, blobs store.BlobStore, clients Clients) (Services, *gorm.DB, error) {
	var out Services
	briefs := store.NewBriefs(blobs)
	out.BriefStore = briefs

	log.Info("Wiring services...")
	out.Recorder = genlog.NewRecorder(blobs, log)
	out.Orchestrator = orchestrator.New(orchestrator.Deps{
		Briefs:     briefs,
		Gateway:    clients.Gateway,
		Logs:       out.Recorder,
		Publisher:  clients.Publisher,
		Log:        log,
		StaleAfter: cfg.RecoverStaleAfter,
	})

	var (
		scheduler jobs.Scheduler
		runs      services.RunHistory
		db        *gorm.DB
	)
	switch cfg.JobsDriver {
	case JobsDriverMemory:
		out.GoScheduler = jobs.NewGoScheduler(base, out.Orchestrator, log)
		scheduler = out.GoScheduler
	default:
		var err error
		db, err = jobs.OpenDB(log, jobs.DBConfig{Dialect: cfg.JobsDBDialect, DSN: cfg.JobsDBDSN})
		if err != nil {
			return out, nil, fmt.Errorf("init jobs db: %w", err)
		}
		out.Worker = jobs.NewWorker(jobs.NewIntentRepo(db, log), out.Orchestrator, log, jobs.WorkerConfig{
			Concurrency:  cfg.WorkerConcurrency,
			PollInterval: cfg.WorkerPoll,
		})
		scheduler = out.Worker
		runs = out.Worker
	}

	out.Scheduler = scheduler
	out.Briefs = services.NewBriefService(log, briefs, out.Recorder, out.Orchestrator, scheduler, runs)
	return out, db, nil
}
