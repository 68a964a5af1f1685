// Package orchestrator drives a campaign from uploaded brief to stored
// creatives: it gates on status, generates every pending product in declared
// order and records progress as it goes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/imagegen"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/store"
)

const tracerName = "github.com/yungbote/creatives-backend/internal/orchestrator"

// persistTimeout bounds status writes that must land after the run context is gone.
const persistTimeout = 15 * time.Second

// DefaultStaleAfter is how long a processing campaign may go without a
// metadata write before Recover treats its run as dead.
const DefaultStaleAfter = 30 * time.Minute

// ImageGateway is satisfied by *imagegen.Gateway.
type ImageGateway interface {
	BaseStrategy(hasLogo bool) imagegen.Strategy
	GenerateBase(ctx context.Context, req imagegen.Request, hasLogo bool) (imagegen.Image, error)
	GenerateVariant(ctx context.Context, req imagegen.Request) (imagegen.Image, error)
}

// LogRecorder is satisfied by *genlog.Recorder.
type LogRecorder interface {
	Record(ctx context.Context, event campaign.Event, campaignID, productID string, payload map[string]any)
}

type Deps struct {
	Briefs    *store.Briefs
	Gateway   ImageGateway
	Logs      LogRecorder
	Publisher StatusPublisher
	Log       *logger.Logger
	// StaleAfter defaults to DefaultStaleAfter.
	StaleAfter time.Duration
}

type Result struct {
	CampaignID        string          `json:"campaign_id"`
	Status            campaign.Status `json:"status"`
	ProductsProcessed int             `json:"products_processed"`
	TotalCreatives    int             `json:"total_creatives"`
	GeneratedAt       time.Time       `json:"generated_at"`
	DurationSeconds   float64         `json:"duration_seconds"`
	StoredPaths       []string        `json:"stored_paths,omitempty"`
	Error             string          `json:"error,omitempty"`
}

type Orchestrator struct {
	briefs     *store.Briefs
	gateway    ImageGateway
	logs       LogRecorder
	publisher  StatusPublisher
	log        *logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
	staleAfter time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(d Deps) *Orchestrator {
	pub := d.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	staleAfter := d.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Orchestrator{
		briefs:     d.Briefs,
		gateway:    d.Gateway,
		logs:       d.Logs,
		publisher:  pub,
		log:        d.Log.With("service", "Orchestrator"),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		staleAfter: staleAfter,
		inflight:   map[string]struct{}{},
	}
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return false
	}
	o.inflight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

// InFlight reports whether this process is running the campaign right now.
func (o *Orchestrator) InFlight(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[id]
	return ok
}

type runState struct {
	brief   *campaign.Brief
	meta    *campaign.Metadata
	result  *Result
	started time.Time
}

// Generate runs the pipeline for one campaign. It returns ErrNotFound when no
// brief exists, ErrRunInProgress when a run is active, and a *GenerationError
// when a product could not be produced. Images stored before a failure stay
// referenced by the brief so a later run resumes. Once started, a run is not
// cancelled by ctx; it ends in completed or failed.
func (o *Orchestrator) Generate(ctx context.Context, campaignID string) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, "orchestrator.Generate",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	res, err := o.generate(ctx, campaignID)
	if err != nil && !errors.Is(err, ErrRunInProgress) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if res != nil {
		span.SetAttributes(
			attribute.String("campaign.status", string(res.Status)),
			attribute.Int("campaign.products_processed", res.ProductsProcessed),
			attribute.Int("campaign.total_creatives", res.TotalCreatives),
		)
	}
	return res, err
}

func (o *Orchestrator) generate(ctx context.Context, campaignID string) (res *Result, err error) {
	if !o.acquire(campaignID) {
		return &Result{CampaignID: campaignID, Status: campaign.StatusProcessing}, ErrRunInProgress
	}
	defer o.release(campaignID)

	var (
		st      *runState
		current string
	)
	// A panicking backend or store must still leave the campaign failed,
	// otherwise the processing gate never reopens.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Errorf("panic: %v", r)
		if st == nil {
			o.log.Error("Generation panic", "campaign_id", campaignID, "panic", r)
			res, err = nil, &GenerationError{CampaignID: campaignID, Err: cause}
			return
		}
		res, err = o.fail(ctx, st, current, cause)
	}()

	brief, err := o.briefs.GetBrief(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}
	if err != nil {
		return nil, &GenerationError{CampaignID: campaignID, Err: fmt.Errorf("load brief: %w", err)}
	}
	meta, err := o.briefs.GetMetadata(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		m := campaign.NewMetadata(campaignID, o.now())
		meta = &m
	} else if err != nil {
		return nil, &GenerationError{CampaignID: campaignID, Err: fmt.Errorf("load metadata: %w", err)}
	}
	if meta.Status == campaign.StatusProcessing {
		return &Result{CampaignID: campaignID, Status: meta.Status}, ErrRunInProgress
	}

	st = &runState{
		brief:   brief,
		meta:    meta,
		started: o.now(),
		result:  &Result{CampaignID: campaignID, StoredPaths: []string{}},
	}

	pending := brief.Pending()
	if len(pending) == 0 {
		return o.finish(ctx, st)
	}

	if err := o.transition(ctx, meta, campaign.StatusProcessing, ""); err != nil {
		return nil, &GenerationError{CampaignID: campaignID, Err: err}
	}
	o.log.Info("Generation started",
		"campaign_id", campaignID,
		"pending_products", len(pending),
		"aspect_ratios", brief.AspectRatios,
	)
	o.logs.Record(ctx, campaign.EventGenerationStart, campaignID, "", map[string]any{
		"total_products":              len(brief.Products),
		"products_needing_generation": len(pending),
		"aspect_ratios":               brief.AspectRatios,
		"target_creatives":            len(pending) * (1 + len(brief.VariantRatios())),
	})

	logo, logoMIME := o.loadLogo(ctx, brief)

	for i := range brief.Products {
		p := &brief.Products[i]
		if !p.NeedsGeneration() {
			continue
		}
		current = p.ID
		paths, err := o.generateProduct(ctx, brief, *p, logo, logoMIME)
		if err != nil {
			return o.fail(ctx, st, p.ID, err)
		}
		p.ImagePath = paths[0]
		if err := o.briefs.PutBrief(ctx, brief); err != nil {
			return o.fail(ctx, st, p.ID, err)
		}
		if err := o.heartbeat(ctx, meta); err != nil {
			return o.fail(ctx, st, p.ID, err)
		}
		current = ""
		st.result.ProductsProcessed++
		st.result.TotalCreatives += len(paths)
		st.result.StoredPaths = append(st.result.StoredPaths, paths...)
	}
	return o.finish(ctx, st)
}

func (o *Orchestrator) generateProduct(ctx context.Context, b *campaign.Brief, p campaign.Product, logo []byte, logoMIME string) ([]string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.GenerateProduct", trace.WithAttributes(
		attribute.String("campaign.id", b.CampaignID),
		attribute.String("product.id", p.ID),
	))
	defer span.End()

	started := o.now()
	hasLogo := len(logo) > 0
	// The logo only reaches the provider when the base is image-conditioned.
	usesLogo := hasLogo && o.gateway.BaseStrategy(hasLogo) == imagegen.StrategyImageConditioned
	w, h := campaign.BaseAspect.Dimensions()
	req := imagegen.Request{
		Prompt:         EnhancePrompt(b, p, usesLogo),
		NegativePrompt: p.NegativePrompt,
		Width:          w,
		Height:         h,
	}
	if usesLogo {
		req.Reference = logo
		req.ReferenceMIME = logoMIME
	}
	o.logs.Record(ctx, campaign.EventGenerationInitiated, b.CampaignID, p.ID, map[string]any{
		"product_name":    p.Name,
		"prompt":          req.Prompt,
		"negative_prompt": p.NegativePrompt,
		"uses_logo":       usesLogo,
		"aspect_ratios":   b.AspectRatios,
	})

	base, err := o.gateway.GenerateBase(ctx, req, hasLogo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "base image")
		return nil, err
	}
	basePath := store.CreativePath(b.CampaignID, p.ID, campaign.BaseAspect)
	if err := o.briefs.Blobs().Put(ctx, basePath, base.Data); err != nil {
		return nil, fmt.Errorf("store %s: %w", basePath, err)
	}
	paths := []string{basePath}

	for _, ar := range b.VariantRatios() {
		vreq := req
		vreq.Width, vreq.Height = ar.Dimensions()
		img, err := o.gateway.GenerateVariant(ctx, vreq)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "variant "+string(ar))
			return nil, err
		}
		path := store.CreativePath(b.CampaignID, p.ID, ar)
		if err := o.briefs.Blobs().Put(ctx, path, img.Data); err != nil {
			return nil, fmt.Errorf("store %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	o.logs.Record(ctx, campaign.EventGenerationCompleted, b.CampaignID, p.ID, map[string]any{
		"stored_paths":     paths,
		"provider":         base.Provider,
		"model":            base.Model,
		"strategy":         base.Strategy,
		"duration_seconds": o.now().Sub(started).Seconds(),
	})
	o.log.Info("Product generated",
		"campaign_id", b.CampaignID,
		"product_id", p.ID,
		"creatives", len(paths),
		"strategy", base.Strategy,
	)
	return paths, nil
}

// loadLogo fetches the brand logo. A missing or unreadable logo is not fatal;
// generation continues text-to-image.
func (o *Orchestrator) loadLogo(ctx context.Context, b *campaign.Brief) ([]byte, string) {
	if !b.Brand.HasLogo() {
		return nil, ""
	}
	path := logoStorePath(b.CampaignID, b.Brand.LogoPath)
	data, err := o.briefs.Blobs().Get(ctx, path)
	if err != nil || len(data) == 0 {
		o.log.Warn("Brand logo unavailable, continuing without it",
			"campaign_id", b.CampaignID,
			"logo_path", path,
			"error", err,
		)
		return nil, ""
	}
	return data, mimetype.Detect(data).String()
}

// logoStorePath treats relative logo references as living under the campaign.
func logoStorePath(campaignID, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "/") {
		return ref
	}
	return store.CampaignPrefix(campaignID) + strings.TrimPrefix(ref, "./")
}

func (o *Orchestrator) finish(ctx context.Context, st *runState) (*Result, error) {
	id := st.meta.CampaignID
	if err := o.transition(ctx, st.meta, campaign.StatusCompleted, ""); err != nil {
		return o.fail(ctx, st, "", err)
	}
	st.result.Status = campaign.StatusCompleted
	st.result.GeneratedAt = o.now().UTC()
	st.result.DurationSeconds = st.result.GeneratedAt.Sub(st.started).Seconds()

	o.logs.Record(ctx, campaign.EventGenerationComplete, id, "", map[string]any{
		"products_processed": st.result.ProductsProcessed,
		"total_creatives":    st.result.TotalCreatives,
		"duration_seconds":   st.result.DurationSeconds,
	})
	o.log.Info("Generation completed",
		"campaign_id", id,
		"products_processed", st.result.ProductsProcessed,
		"total_creatives", st.result.TotalCreatives,
		"duration_seconds", st.result.DurationSeconds,
	)
	return st.result, nil
}

func (o *Orchestrator) fail(ctx context.Context, st *runState, productID string, cause error) (*Result, error) {
	id := st.meta.CampaignID
	gerr := &GenerationError{CampaignID: id, ProductID: productID, Err: cause}

	o.logs.Record(ctx, campaign.EventGenerationFailed, id, productID, map[string]any{
		"error":              cause.Error(),
		"products_processed": st.result.ProductsProcessed,
	})
	o.log.Error("Generation failed", "campaign_id", id, "product_id", productID, "error", cause)

	// Only a run that reached processing owns the status. Otherwise the
	// stored status is already one a later run can start from.
	if st.meta.Status == campaign.StatusProcessing {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := o.transition(pctx, st.meta, campaign.StatusFailed, gerr.Error()); err != nil {
			o.log.Error("Failed to persist failed status", "campaign_id", id, "error", err)
		}
	}

	st.result.Status = campaign.StatusFailed
	st.result.Error = gerr.Error()
	st.result.GeneratedAt = o.now().UTC()
	st.result.DurationSeconds = st.result.GeneratedAt.Sub(st.started).Seconds()
	return st.result, gerr
}

func (o *Orchestrator) transition(ctx context.Context, meta *campaign.Metadata, to campaign.Status, lastErr string) error {
	saved := *meta
	prev := meta.Status
	if err := meta.Transition(to, o.now()); err != nil {
		return err
	}
	if lastErr != "" {
		meta.LastError = lastErr
	}
	if err := o.briefs.PutMetadata(ctx, meta); err != nil {
		*meta = saved
		return fmt.Errorf("persist status %s: %w", to, err)
	}
	change := campaign.StatusChange{
		CampaignID: meta.CampaignID,
		Previous:   prev,
		Status:     to,
		At:         meta.UpdatedAt,
		Error:      meta.LastError,
	}
	if err := o.publisher.PublishStatus(ctx, change); err != nil {
		o.log.Warn("Status publish failed", "campaign_id", meta.CampaignID, "status", to, "error", err)
	}
	return nil
}

// heartbeat rewrites the processing metadata so other processes can tell
// the run is alive.
func (o *Orchestrator) heartbeat(ctx context.Context, meta *campaign.Metadata) error {
	saved := meta.UpdatedAt
	meta.UpdatedAt = o.now().UTC()
	if err := o.briefs.PutMetadata(ctx, meta); err != nil {
		meta.UpdatedAt = saved
		return fmt.Errorf("persist heartbeat: %w", err)
	}
	return nil
}

// Recover fails a campaign left processing by a run that no longer exists.
// It reports whether anything changed. It returns ErrRunInProgress when the
// run is in flight in this process or its metadata was written within the
// staleness window, since another process may still own it.
func (o *Orchestrator) Recover(ctx context.Context, campaignID string) (bool, error) {
	if !o.acquire(campaignID) {
		return false, ErrRunInProgress
	}
	defer o.release(campaignID)

	meta, err := o.briefs.GetMetadata(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if meta.Status != campaign.StatusProcessing {
		return false, nil
	}
	if idle := o.now().Sub(meta.UpdatedAt); idle < o.staleAfter {
		o.log.Info("Processing campaign still fresh, not recovering",
			"campaign_id", campaignID,
			"idle", idle.String(),
			"stale_after", o.staleAfter.String(),
		)
		return false, ErrRunInProgress
	}
	if err := o.transition(ctx, meta, campaign.StatusFailed, "generation interrupted"); err != nil {
		return false, err
	}
	o.logs.Record(ctx, campaign.EventGenerationInterrupted, campaignID, "", map[string]any{
		"previous_status": string(campaign.StatusProcessing),
	})
	o.log.Warn("Recovered interrupted generation", "campaign_id", campaignID)
	return true, nil
}

// RecoverAll runs Recover over every stored campaign and returns the ids it
// changed.
func (o *Orchestrator) RecoverAll(ctx context.Context) ([]string, error) {
	ids, err := o.briefs.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, id := range ids {
		changed, err := o.Recover(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, ErrRunInProgress) {
				continue
			}
			return out, fmt.Errorf("recover %s: %w", id, err)
		}
		if changed {
			out = append(out, id)
		}
	}
	return out, nil
}
