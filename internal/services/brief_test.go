package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/genlog"
	"github.com/yungbote/creatives-backend/internal/jobs"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/store"
)

type fakeGenerator struct {
	inflight map[string]bool
	err      error
	calls    []string
}

func (g *fakeGenerator) Generate(ctx context.Context, id string) (*orchestrator.Result, error) {
	g.calls = append(g.calls, id)
	if g.err != nil {
		return &orchestrator.Result{CampaignID: id, Status: campaign.StatusProcessing}, g.err
	}
	return &orchestrator.Result{CampaignID: id, Status: campaign.StatusCompleted}, nil
}

func (g *fakeGenerator) InFlight(id string) bool { return g.inflight[id] }

type fakeScheduler struct {
	scheduled []string
	err       error
}

func (s *fakeScheduler) Schedule(ctx context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, id)
	return nil
}

type fakeRuns struct {
	latest map[string]*jobs.RunIntent
	err    error
}

func (r *fakeRuns) LatestRun(ctx context.Context, id string) (*jobs.RunIntent, error) {
	return r.latest[id], r.err
}

type fixture struct {
	mem    *store.Memory
	briefs *store.Briefs
	gen    *fakeGenerator
	sched  *fakeScheduler
	runs   *fakeRuns
	svc    BriefService
}

func newFixture() *fixture {
	mem := store.NewMemory()
	f := &fixture{
		mem:    mem,
		briefs: store.NewBriefs(mem),
		gen:    &fakeGenerator{inflight: map[string]bool{}},
		sched:  &fakeScheduler{},
		runs:   &fakeRuns{latest: map[string]*jobs.RunIntent{}},
	}
	f.svc = NewBriefService(logger.Nop(), f.briefs, genlog.NewRecorder(mem, logger.Nop()), f.gen, f.sched, f.runs)
	return f
}

func sampleBrief(id string) *campaign.Brief {
	return &campaign.Brief{
		CampaignID:     id,
		TargetRegion:   "US",
		TargetAudience: "runners",
		Locales:        []string{"en-US"},
		Message:        map[string]string{"en-US": "Run further"},
		CTA:            map[string]string{"en-US": "Shop now"},
		Products: []campaign.Product{
			{ID: "shoe", Name: "Shoe", Prompt: "red shoe", ImagePath: campaign.Placeholder},
			{ID: "sock", Name: "Sock", Prompt: "wool sock", ImagePath: campaign.Placeholder},
		},
		Brand:        campaign.Brand{PrimaryHex: "#FF0000", LogoPath: campaign.Placeholder},
		AspectRatios: []campaign.AspectRatio{campaign.AspectSquare},
		Template:     "bottom-cta@1.0.0",
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadStoresBriefAndSchedules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, sampleBrief("summer"), map[string][]byte{"sock": pngHeader})
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPending, res.Status)
	assert.Equal(t, 1, res.Revision)
	assert.Equal(t, 1, res.ProductsNeedingGeneration)
	assert.True(t, res.GenerationTriggered)
	assert.Equal(t, []string{"/briefs/summer/assets/sock.png"}, res.StoredAssets)
	assert.Equal(t, []string{"summer"}, f.sched.scheduled)

	b, err := f.briefs.GetBrief(ctx, "summer")
	require.NoError(t, err)
	assert.Equal(t, "/briefs/summer/assets/sock.png", b.Products[1].ImagePath)
	assert.Equal(t, campaign.Placeholder, b.Products[0].ImagePath)
}

func TestUploadDoesNotMutateCallerBrief(t *testing.T) {
	f := newFixture()
	in := sampleBrief("summer")
	_, err := f.svc.Upload(context.Background(), in, map[string][]byte{"sock": pngHeader})
	require.NoError(t, err)
	assert.Equal(t, campaign.Placeholder, in.Products[1].ImagePath)
}

func TestUploadWithoutPendingSkipsScheduling(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Upload(context.Background(), sampleBrief("done"), map[string][]byte{
		"shoe": []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"),
		"sock": pngHeader,
	})
	require.NoError(t, err)
	assert.False(t, res.GenerationTriggered)
	assert.Empty(t, f.sched.scheduled)
	assert.Contains(t, res.StoredAssets, "/briefs/done/assets/shoe.jpg")
}

func TestUploadRejectsInvalidBrief(t *testing.T) {
	f := newFixture()
	b := sampleBrief("bad")
	b.Brand.PrimaryHex = "red"
	_, err := f.svc.Upload(context.Background(), b, nil)
	require.ErrorIs(t, err, campaign.ErrInvalidBrief)
	assert.Equal(t, 0, f.mem.Len())
}

func TestUploadRejectsUnknownProductImage(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Upload(context.Background(), sampleBrief("summer"), map[string][]byte{"hat": pngHeader})
	var verr *campaign.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "product_images.hat", verr.Problems[0].Field)
}

func TestReuploadBumpsRevisionAndConflictsWhileProcessing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, sampleBrief("summer"), nil)
	require.NoError(t, err)

	res, err := f.svc.Upload(ctx, sampleBrief("summer"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Revision)

	meta, err := f.briefs.GetMetadata(ctx, "summer")
	require.NoError(t, err)
	require.NoError(t, meta.Transition(campaign.StatusProcessing, time.Now()))
	require.NoError(t, f.briefs.PutMetadata(ctx, meta))

	_, err = f.svc.Upload(ctx, sampleBrief("summer"), nil)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, f.svc.Delete(ctx, "summer"), ErrConflict)
	assert.ErrorIs(t, f.svc.Trigger(ctx, "summer"), ErrConflict)
}

func TestInFlightRunConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, sampleBrief("summer"), nil)
	require.NoError(t, err)

	f.gen.inflight["summer"] = true
	assert.ErrorIs(t, f.svc.Delete(ctx, "summer"), ErrConflict)

	st, err := f.svc.Status(ctx, "summer")
	require.NoError(t, err)
	assert.True(t, st.Running)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	bs := f.svc.(*briefService)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bs.now = func() time.Time { return base }
	_, err := f.svc.Upload(ctx, sampleBrief("older"), nil)
	require.NoError(t, err)
	bs.now = func() time.Time { return base.Add(time.Hour) }
	_, err = f.svc.Upload(ctx, sampleBrief("newer"), nil)
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].CampaignID)
	assert.Equal(t, 2, list[0].ProductCount)
	assert.Equal(t, 1, list[0].LocaleCount)
}

func TestStatusGetLogsDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, sampleBrief("summer"), nil)
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, "summer")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPending, st.Status)
	assert.Equal(t, 2, st.ProductsPending)

	view, err := f.svc.Get(ctx, "summer")
	require.NoError(t, err)
	assert.Equal(t, "summer", view.Brief.CampaignID)
	assert.Equal(t, campaign.SchemaVersion, view.Metadata.Version)

	logs, err := f.svc.Logs(ctx, "summer")
	require.NoError(t, err)
	assert.Empty(t, logs)

	require.NoError(t, f.svc.Delete(ctx, "summer"))
	_, err = f.svc.Get(ctx, "summer")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "summer"), ErrNotFound)
	_, err = f.svc.Status(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateNowMapsInProgressToConflict(t *testing.T) {
	f := newFixture()
	f.gen.err = orchestrator.ErrRunInProgress
	_, err := f.svc.GenerateNow(context.Background(), "summer")
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, orchestrator.ErrRunInProgress)

	f.gen.err = nil
	res, err := f.svc.GenerateNow(context.Background(), "summer")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusCompleted, res.Status)
}

func TestUploadSurvivesSchedulerFailure(t *testing.T) {
	f := newFixture()
	f.sched.err = errors.New("queue offline")
	res, err := f.svc.Upload(context.Background(), sampleBrief("summer"), nil)
	require.NoError(t, err)
	assert.False(t, res.GenerationTriggered)
}

func TestStatusIncludesLastRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, sampleBrief("summer"), nil)
	require.NoError(t, err)

	st, err := f.svc.Status(ctx, "summer")
	require.NoError(t, err)
	assert.Nil(t, st.LastRun)

	f.runs.latest["summer"] = &jobs.RunIntent{ID: "run-1", CampaignID: "summer", Status: jobs.IntentFailed, Error: "rate limited"}
	st, err = f.svc.Status(ctx, "summer")
	require.NoError(t, err)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, jobs.IntentFailed, st.LastRun.Status)

	f.runs.err = errors.New("db locked")
	st, err = f.svc.Status(ctx, "summer")
	require.NoError(t, err)
	assert.Nil(t, st.LastRun)
}
