package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/jobs"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/store"
)

var (
	ErrNotFound = store.ErrNotFound
	// ErrConflict is returned for writes against a campaign that is generating.
	ErrConflict = errors.New("campaign is being generated")
)

// Generator is satisfied by *orchestrator.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, campaignID string) (*orchestrator.Result, error)
	InFlight(campaignID string) bool
}

// LogReader is satisfied by *genlog.Recorder.
type LogReader interface {
	List(ctx context.Context, campaignID string) ([]campaign.LogEntry, error)
}

// RunHistory is satisfied by *jobs.Worker.
type RunHistory interface {
	LatestRun(ctx context.Context, campaignID string) (*jobs.RunIntent, error)
}

type BriefService interface {
	Upload(ctx context.Context, brief *campaign.Brief, images map[string][]byte) (*UploadResult, error)
	List(ctx context.Context) ([]BriefSummary, error)
	Get(ctx context.Context, campaignID string) (*BriefView, error)
	Status(ctx context.Context, campaignID string) (*StatusView, error)
	Logs(ctx context.Context, campaignID string) ([]campaign.LogEntry, error)
	Delete(ctx context.Context, campaignID string) error
	Trigger(ctx context.Context, campaignID string) error
	GenerateNow(ctx context.Context, campaignID string) (*orchestrator.Result, error)
}

type UploadResult struct {
	CampaignID                string          `json:"campaign_id"`
	Status                    campaign.Status `json:"status"`
	Revision                  int             `json:"revision"`
	ProductsNeedingGeneration int             `json:"products_needing_generation"`
	StoredAssets              []string        `json:"stored_assets"`
	GenerationTriggered       bool            `json:"generation_triggered"`
}

type BriefSummary struct {
	CampaignID     string          `json:"campaign_id"`
	TargetRegion   string          `json:"target_region"`
	TargetAudience string          `json:"target_audience"`
	UploadedAt     time.Time       `json:"uploaded_at"`
	Status         campaign.Status `json:"status"`
	ProductCount   int             `json:"product_count"`
	LocaleCount    int             `json:"locale_count"`
}

type BriefView struct {
	Brief    *campaign.Brief    `json:"brief"`
	Metadata *campaign.Metadata `json:"metadata"`
}

type StatusView struct {
	CampaignID      string          `json:"campaign_id"`
	Status          campaign.Status `json:"status"`
	Revision        int             `json:"revision"`
	UploadedAt      time.Time       `json:"uploaded_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastError       string          `json:"last_error,omitempty"`
	ProductsTotal   int             `json:"products_total"`
	ProductsPending int             `json:"products_pending"`
	Running         bool            `json:"running"`
	LastRun         *jobs.RunIntent `json:"last_run,omitempty"`
}

type briefService struct {
	briefs    *store.Briefs
	logs      LogReader
	generator Generator
	scheduler jobs.Scheduler
	runs      RunHistory
	log       *logger.Logger
	now       func() time.Time
}

func NewBriefService(
	baseLog *logger.Logger,
	briefs *store.Briefs,
	logs LogReader,
	generator Generator,
	scheduler jobs.Scheduler,
	runs RunHistory,
) BriefService {
	return &briefService{
		briefs:    briefs,
		logs:      logs,
		generator: generator,
		scheduler: scheduler,
		runs:      runs,
		log:       baseLog.With("service", "BriefService"),
		now:       time.Now,
	}
}

// assetExt maps a sniffed image type to the stored extension.
func assetExt(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"):
		return "png", true
	case mt.Is("image/webp"):
		return "webp", true
	case mt.Is("image/jpeg"):
		return "jpg", true
	default:
		return "jpg", false
	}
}

func (s *briefService) busy(ctx context.Context, campaignID string) (*campaign.Metadata, bool, error) {
	meta, err := s.briefs.GetMetadata(ctx, campaignID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	if s.generator.InFlight(campaignID) {
		return meta, true, nil
	}
	return meta, meta != nil && meta.Status == campaign.StatusProcessing, nil
}

func (s *briefService) Upload(ctx context.Context, brief *campaign.Brief, images map[string][]byte) (*UploadResult, error) {
	if brief == nil {
		return nil, &campaign.ValidationError{Problems: []campaign.FieldProblem{{Field: "brief", Message: "is required"}}}
	}
	brief = brief.Clone()
	if err := brief.Validate(); err != nil {
		return nil, err
	}
	id := brief.CampaignID

	prev, busy, err := s.busy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", id, err)
	}
	if busy {
		return nil, fmt.Errorf("re-upload %s: %w", id, ErrConflict)
	}

	index := make(map[string]int, len(brief.Products))
	for i, p := range brief.Products {
		index[p.ID] = i
	}
	verr := &campaign.ValidationError{}
	for pid := range images {
		if _, ok := index[pid]; !ok {
			verr.Problems = append(verr.Problems, campaign.FieldProblem{Field: "product_images." + pid, Message: "does not match a product id"})
		}
	}
	if len(verr.Problems) > 0 {
		return nil, verr
	}

	stored := []string{}
	pids := make([]string, 0, len(images))
	for pid := range images {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		data := images[pid]
		if len(data) == 0 {
			continue
		}
		ext, known := assetExt(data)
		if !known {
			s.log.Warn("Unrecognized product image type, storing as jpg", "campaign_id", id, "product_id", pid)
		}
		path := store.AssetPath(id, pid, ext)
		if err := s.briefs.Blobs().Put(ctx, path, data); err != nil {
			return nil, fmt.Errorf("store asset %s: %w", path, err)
		}
		brief.Products[index[pid]].ImagePath = path
		stored = append(stored, path)
	}

	if err := s.briefs.PutBrief(ctx, brief); err != nil {
		return nil, err
	}
	meta := campaign.NewMetadata(id, s.now())
	if prev != nil {
		meta.Revision = prev.Revision + 1
	}
	if err := s.briefs.PutMetadata(ctx, &meta); err != nil {
		return nil, err
	}

	res := &UploadResult{
		CampaignID:                id,
		Status:                    meta.Status,
		Revision:                  meta.Revision,
		ProductsNeedingGeneration: len(brief.Pending()),
		StoredAssets:              stored,
	}
	if res.ProductsNeedingGeneration > 0 {
		if err := s.scheduler.Schedule(ctx, id); err != nil {
			s.log.Warn("Failed to schedule generation", "campaign_id", id, "error", err)
		} else {
			res.GenerationTriggered = true
		}
	}
	s.log.Info("Brief uploaded",
		"campaign_id", id,
		"revision", meta.Revision,
		"assets", len(stored),
		"pending_products", res.ProductsNeedingGeneration,
		"generation_triggered", res.GenerationTriggered,
	)
	return res, nil
}

func (s *briefService) List(ctx context.Context) ([]BriefSummary, error) {
	ids, err := s.briefs.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	out := make([]BriefSummary, 0, len(ids))
	for _, id := range ids {
		b, err := s.briefs.GetBrief(ctx, id)
		if err != nil {
			s.log.Warn("Skipping unreadable brief", "campaign_id", id, "error", err)
			continue
		}
		sum := BriefSummary{
			CampaignID:     id,
			TargetRegion:   b.TargetRegion,
			TargetAudience: b.TargetAudience,
			Status:         campaign.StatusPending,
			ProductCount:   len(b.Products),
			LocaleCount:    len(b.Locales),
		}
		if meta, err := s.briefs.GetMetadata(ctx, id); err == nil {
			sum.UploadedAt = meta.UploadedAt
			sum.Status = meta.Status
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *briefService) Get(ctx context.Context, campaignID string) (*BriefView, error) {
	b, err := s.briefs.GetBrief(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	meta, err := s.briefs.GetMetadata(ctx, campaignID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &BriefView{Brief: b, Metadata: meta}, nil
}

func (s *briefService) Status(ctx context.Context, campaignID string) (*StatusView, error) {
	b, err := s.briefs.GetBrief(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		CampaignID:      campaignID,
		Status:          campaign.StatusPending,
		ProductsTotal:   len(b.Products),
		ProductsPending: len(b.Pending()),
		Running:         s.generator.InFlight(campaignID),
	}
	meta, err := s.briefs.GetMetadata(ctx, campaignID)
	switch {
	case err == nil:
		view.Status = meta.Status
		view.Revision = meta.Revision
		view.UploadedAt = meta.UploadedAt
		view.UpdatedAt = meta.UpdatedAt
		view.LastError = meta.LastError
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	if s.runs != nil {
		last, err := s.runs.LatestRun(ctx, campaignID)
		if err != nil {
			s.log.Warn("Failed to read last run", "campaign_id", campaignID, "error", err)
		} else {
			view.LastRun = last
		}
	}
	return view, nil
}

func (s *briefService) Logs(ctx context.Context, campaignID string) ([]campaign.LogEntry, error) {
	if _, err := s.briefs.GetBrief(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.logs.List(ctx, campaignID)
}

func (s *briefService) Delete(ctx context.Context, campaignID string) error {
	if _, err := s.briefs.GetBrief(ctx, campaignID); err != nil {
		return err
	}
	_, busy, err := s.busy(ctx, campaignID)
	if err != nil {
		return err
	}
	if busy {
		return fmt.Errorf("delete %s: %w", campaignID, ErrConflict)
	}
	if err := s.briefs.DeleteCampaign(ctx, campaignID); err != nil {
		return fmt.Errorf("delete %s: %w", campaignID, err)
	}
	s.log.Info("Campaign deleted", "campaign_id", campaignID)
	return nil
}

func (s *briefService) Trigger(ctx context.Context, campaignID string) error {
	if _, err := s.briefs.GetBrief(ctx, campaignID); err != nil {
		return err
	}
	_, busy, err := s.busy(ctx, campaignID)
	if err != nil {
		return err
	}
	if busy {
		return fmt.Errorf("trigger %s: %w", campaignID, ErrConflict)
	}
	return s.scheduler.Schedule(ctx, campaignID)
}

func (s *briefService) GenerateNow(ctx context.Context, campaignID string) (*orchestrator.Result, error) {
	res, err := s.generator.Generate(ctx, campaignID)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		return res, fmt.Errorf("generate %s: %w: %w", campaignID, ErrConflict, err)
	}
	return res, err
}
