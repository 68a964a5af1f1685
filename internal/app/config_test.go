package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.HTTPAddr != ":1854" {
		t.Fatalf("http addr: want=%q got=%q", ":1854", cfg.HTTPAddr)
	}
	if cfg.GenAIProvider != "openai" {
		t.Fatalf("provider: want=%q got=%q", "openai", cfg.GenAIProvider)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("store driver: want=%q got=%q", StoreDriverMemory, cfg.StoreDriver)
	}
	if cfg.JobsDriver != JobsDriverGorm || cfg.JobsDBDialect != "sqlite" || cfg.JobsDBDSN != "creatives-jobs.db" {
		t.Fatalf("jobs: got driver=%q dialect=%q dsn=%q", cfg.JobsDriver, cfg.JobsDBDialect, cfg.JobsDBDSN)
	}
	if cfg.WorkerConcurrency != 2 {
		t.Fatalf("worker concurrency: want=2 got=%d", cfg.WorkerConcurrency)
	}
	if cfg.RecoverStaleAfter != 30*time.Minute {
		t.Fatalf("recover stale after: want=30m got=%s", cfg.RecoverStaleAfter)
	}
	if cfg.GenAITimeout != 120*time.Second {
		t.Fatalf("genai timeout: want=120s got=%s", cfg.GenAITimeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{
		"STORE_DRIVER":         " GCS ",
		"JOBS_DRIVER":          "memory",
		"CORS_ALLOWED_ORIGINS": "http://a.test,http://b.test",
		"OTEL_SAMPLER_RATIO":   "0.25",
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.StoreDriver != StoreDriverGCS {
		t.Fatalf("store driver: want=%q got=%q", StoreDriverGCS, cfg.StoreDriver)
	}
	if cfg.JobsDriver != JobsDriverMemory {
		t.Fatalf("jobs driver: want=%q got=%q", JobsDriverMemory, cfg.JobsDriver)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("origins: got=%v", cfg.AllowedOrigins)
	}
	if cfg.OtelSampleRatio != 0.25 {
		t.Fatalf("sample ratio: want=0.25 got=%v", cfg.OtelSampleRatio)
	}
}

func TestParseConfigRejectsUnknownDrivers(t *testing.T) {
	for _, environ := range []map[string]string{
		{"STORE_DRIVER": "ftp"},
		{"JOBS_DRIVER": "kafka"},
		{"WORKER_CONCURRENCY": "0"},
		{"WORKER_CONCURRENCY": "many"},
		{"RECOVER_STALE_AFTER": "0s"},
	} {
		if _, err := ParseConfig(environ); err == nil {
			t.Fatalf("ParseConfig(%v): expected error", environ)
		}
	}
}

func TestNewWithConfigWiresMemoryStack(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{"JOBS_DRIVER": "memory"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	a, err := NewWithConfig(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	if a.Services.GoScheduler == nil || a.Services.Worker != nil {
		t.Fatalf("scheduler: want GoScheduler only")
	}
	if a.DB != nil {
		t.Fatalf("db: want nil for memory jobs driver")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	list, err := a.Services.Briefs.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("list: want=0 got=%d", len(list))
	}
}

func TestNewWithConfigRejectsUnknownProvider(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{"JOBS_DRIVER": "memory", "GENAI_PROVIDER": "dalle"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if _, err := NewWithConfig(logger.Nop(), cfg); err == nil {
		t.Fatalf("NewWithConfig: expected error for unknown provider")
	}
}

func TestStartRecoversCampaignLeftProcessing(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{
		"JOBS_DB_DSN":          filepath.Join(t.TempDir(), "jobs.db"),
		"WORKER_POLL_INTERVAL": "10ms",
	})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	a, err := NewWithConfig(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	brief := &campaign.Brief{
		CampaignID:     "stuck",
		TargetRegion:   "US",
		TargetAudience: "runners",
		Locales:        []string{"en-US"},
		Message:        map[string]string{"en-US": "Run further"},
		CTA:            map[string]string{"en-US": "Shop now"},
		Products: []campaign.Product{
			{ID: "shoe", Name: "Shoe", Prompt: "red shoe", ImagePath: campaign.Placeholder},
			{ID: "sock", Name: "Sock", ImagePath: "/briefs/stuck/assets/sock.png"},
		},
		Brand:        campaign.Brand{PrimaryHex: "#FF0000", LogoPath: campaign.Placeholder},
		AspectRatios: []campaign.AspectRatio{campaign.AspectSquare},
		Template:     "bottom-cta@1.0.0",
	}
	if err := a.Services.BriefStore.PutBrief(ctx, brief); err != nil {
		t.Fatalf("PutBrief: %v", err)
	}
	// A sync run from a previous process died here: no intent exists.
	meta := campaign.NewMetadata("stuck", time.Now().Add(-2*time.Hour))
	meta.Status = campaign.StatusProcessing
	if err := a.Services.BriefStore.PutMetadata(ctx, &meta); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.cancel()
	a.WaitRuns()

	got, err := a.Services.BriefStore.GetMetadata(ctx, "stuck")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got.Status != campaign.StatusFailed {
		t.Fatalf("status: want=%q got=%q", campaign.StatusFailed, got.Status)
	}

	// No provider credentials are configured, so the retry fails, but it runs.
	_, err = a.Services.Orchestrator.Generate(ctx, "stuck")
	if err == nil || errors.Is(err, orchestrator.ErrRunInProgress) {
		t.Fatalf("Generate: want generation error, got %v", err)
	}
	if err := a.Services.Briefs.Trigger(ctx, "stuck"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
}

func TestStartLeavesFreshProcessingCampaign(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{"JOBS_DRIVER": "memory"})
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	a, err := NewWithConfig(logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	// Another replica is generating this campaign and wrote it a moment ago.
	meta := campaign.NewMetadata("shared", time.Now())
	meta.Status = campaign.StatusProcessing
	if err := a.Services.BriefStore.PutMetadata(ctx, &meta); err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}
	if err := a.Services.BriefStore.PutBrief(ctx, &campaign.Brief{CampaignID: "shared"}); err != nil {
		t.Fatalf("PutBrief: %v", err)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.cancel()
	a.WaitRuns()

	got, err := a.Services.BriefStore.GetMetadata(ctx, "shared")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got.Status != campaign.StatusProcessing {
		t.Fatalf("status: want=%q got=%q", campaign.StatusProcessing, got.Status)
	}
}
