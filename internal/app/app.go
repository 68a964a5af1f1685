package app

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	httpx "github.com/yungbote/creatives-backend/internal/http"
	httpH "github.com/yungbote/creatives-backend/internal/http/handlers"
	"github.com/yungbote/creatives-backend/internal/observability"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *httpx.Server
	Cfg      Config
	Clients  Clients
	Services Services

	ctx           context.Context
	cancel        context.CancelFunc
	started       bool
	closeStore    func()
	shutdownTrace func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, err
	}
	return NewWithConfig(log, cfg)
}

// NewWithConfig wires every component from cfg. Nothing runs until Start.
func NewWithConfig(log *logger.Logger, cfg Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{Log: log, Cfg: cfg, ctx: ctx, cancel: cancel, closeStore: func() {}}

	a.shutdownTrace = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.OtelEnvironment,
		Version:     cfg.OtelVersion,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})

	blobs, closeStore, err := resolveBlobStore(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init brief store: %w", err)
	}
	a.closeStore = closeStore

	a.Clients, err = wireClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Services, a.DB, err = wireServices(ctx, log, cfg, blobs, a.Clients)
	if err != nil {
		a.Close()
		return nil, err
	}

	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	a.Server = httpx.NewServer(cfg.HTTPAddr, httpx.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		BriefHandler:   httpH.NewBriefHandler(log, a.Services.Briefs, cfg.MaxUploadBytes),
		HealthHandler:  httpH.NewHealthHandler(),
	})
	return a, nil
}

// Start recovers runs a dead process left in processing and starts the
// background worker. Only campaigns idle past RECOVER_STALE_AFTER are
// recovered, so replicas sharing a store leave each other's runs alone. It
// is idempotent.
func (a *App) Start() error {
	if a == nil || a.started {
		return nil
	}

	// Runs without an intent (sync generate) are only found by scanning the
	// store. This happens before any worker loop can claim a campaign.
	recovered, err := a.Services.Orchestrator.RecoverAll(a.ctx)
	if err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	}
	if err := a.StartWorkers(); err != nil {
		return err
	}
	for _, id := range recovered {
		if err := a.Services.Scheduler.Schedule(a.ctx, id); err != nil {
			a.Log.Warn("Reschedule recovered campaign failed", "campaign_id", id, "error", err)
		}
	}
	return nil
}

// StartWorkers starts the background worker without scanning for
// interrupted runs. Short-lived commands use it. It is idempotent.
func (a *App) StartWorkers() error {
	if a == nil || a.started {
		return nil
	}
	a.started = true
	if w := a.Services.Worker; w != nil {
		return w.Start(a.ctx)
	}
	return nil
}

// Run starts background work and serves HTTP until ctx ends or the server
// fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr())
		return a.Server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.cancel()
		a.WaitRuns()
		return nil
	})
	return g.Wait()
}

// WaitRuns blocks until the worker loops or scheduled goroutines have returned.
func (a *App) WaitRuns() {
	if w := a.Services.Worker; w != nil {
		w.Wait()
	}
	if s := a.Services.GoScheduler; s != nil {
		s.Wait()
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Clients.StatusBus != nil {
		if err := a.Clients.StatusBus.Close(); err != nil {
			a.Log.Warn("Redis close failed", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.closeStore != nil {
		a.closeStore()
	}
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(context.Background()); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
