package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/genlog"
	"github.com/yungbote/creatives-backend/internal/http/response"
	"github.com/yungbote/creatives-backend/internal/imagegen"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/services"
	"github.com/yungbote/creatives-backend/internal/store"
)

type stubGenerator struct {
	err      error
	inflight bool
}

func (g *stubGenerator) Generate(ctx context.Context, id string) (*orchestrator.Result, error) {
	if g.err != nil {
		return &orchestrator.Result{CampaignID: id, Status: campaign.StatusFailed}, g.err
	}
	return &orchestrator.Result{CampaignID: id, Status: campaign.StatusCompleted, TotalCreatives: 2}, nil
}

func (g *stubGenerator) InFlight(string) bool { return g.inflight }

type stubScheduler struct{ ids []string }

func (s *stubScheduler) Schedule(ctx context.Context, id string) error {
	s.ids = append(s.ids, id)
	return nil
}

type env struct {
	router *gin.Engine
	gen    *stubGenerator
	sched  *stubScheduler
	briefs *store.Briefs
}

func newEnv() *env {
	gin.SetMode(gin.TestMode)
	mem := store.NewMemory()
	e := &env{gen: &stubGenerator{}, sched: &stubScheduler{}, briefs: store.NewBriefs(mem)}
	svc := services.NewBriefService(logger.Nop(), e.briefs, genlog.NewRecorder(mem, logger.Nop()), e.gen, e.sched, nil)
	h := NewBriefHandler(logger.Nop(), svc, 0)

	r := gin.New()
	r.POST("/api/briefs", h.Upload)
	r.GET("/api/briefs", h.List)
	r.GET("/api/briefs/:id", h.Get)
	r.GET("/api/briefs/:id/status", h.Status)
	r.GET("/api/briefs/:id/logs", h.Logs)
	r.POST("/api/briefs/:id/generate", h.Generate)
	r.DELETE("/api/briefs/:id", h.Delete)
	e.router = r
	return e
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

const briefJSON = `{
  "campaign": "summer",
  "target_region": "US",
  "target_audience": "runners",
  "locales": ["en-US"],
  "message": {"en-US": "Run further"},
  "cta": {"en-US": "Shop now"},
  "products": [
    {"id": "shoe", "name": "Shoe", "prompt": "red shoe", "image_path": "placeholder"},
    {"id": "sock", "name": "Sock", "prompt": "wool sock", "image_path": "placeholder"}
  ],
  "brand": {"primary_hex": "#FF0000", "logo_path": "placeholder"},
  "aspect_ratios": ["1:1", "9:16"],
  "template": "bottom-cta@1.0.0"
}`

const briefYAML = `campaign: winter
target_region: CA
target_audience: skiers
locales: [en-US]
message: {en-US: Stay warm}
cta: {en-US: Buy now}
products:
  - {id: coat, name: Coat, prompt: parka, image_path: placeholder}
  - {id: hat, name: Hat, prompt: beanie, image_path: placeholder}
brand: {primary_hex: "#0000FF", logo_path: placeholder}
aspect_ratios: ["1:1"]
template: bottom-cta@1.0.0
`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}

func (e *env) uploadJSON(t *testing.T) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewBufferString(briefJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUploadJSONBrief(t *testing.T) {
	e := newEnv()
	req := httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewBufferString(briefJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res services.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "summer", res.CampaignID)
	assert.Equal(t, 2, res.ProductsNeedingGeneration)
	assert.True(t, res.GenerationTriggered)
	assert.Equal(t, []string{"summer"}, e.sched.ids)
}

func TestUploadYAMLBrief(t *testing.T) {
	e := newEnv()
	req := httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewBufferString(briefYAML))
	req.Header.Set("Content-Type", "application/x-yaml")
	rec := e.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	b, err := e.briefs.GetBrief(context.Background(), "winter")
	require.NoError(t, err)
	assert.Equal(t, "skiers", b.TargetAudience)
}

func TestUploadMultipartWithProductImage(t *testing.T) {
	e := newEnv()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("brief", briefJSON))
	part, err := w.CreateFormFile("product_images", "sock.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/briefs", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := e.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	b, err := e.briefs.GetBrief(context.Background(), "summer")
	require.NoError(t, err)
	assert.Equal(t, "/briefs/summer/assets/sock.png", b.Products[1].ImagePath)
}

func TestUploadRejectsMalformedAndInvalid(t *testing.T) {
	e := newEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewBufferString(`{"campaign":`))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Code)

	invalid := bytes.Replace([]byte(briefJSON), []byte(`"#FF0000"`), []byte(`"red"`), 1)
	req = httptest.NewRequest(http.MethodPost, "/api/briefs", bytes.NewReader(invalid))
	req.Header.Set("Content-Type", "application/json")
	rec = e.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "invalid_brief", apiErr.Code)
	assert.NotNil(t, apiErr.Details)
}

func TestReadRoutes(t *testing.T) {
	e := newEnv()
	e.uploadJSON(t)

	rec := e.do(httptest.NewRequest(http.MethodGet, "/api/briefs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/briefs/summer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"campaign":"summer"`)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/briefs/summer/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st services.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, campaign.StatusPending, st.Status)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/briefs/summer/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/briefs/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestGenerateRoutes(t *testing.T) {
	e := newEnv()
	e.uploadJSON(t)

	rec := e.do(httptest.NewRequest(http.MethodPost, "/api/briefs/summer/generate", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/briefs/summer/generate?sync=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_creatives":2`)

	e.gen.err = &orchestrator.GenerationError{CampaignID: "summer", ProductID: "shoe", Err: &imagegen.ProviderError{Provider: imagegen.ProviderOpenAI, Err: errors.New("rate limited")}}
	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/briefs/summer/generate?sync=true", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "generation_failed", decodeError(t, rec).Code)

	e.gen.err = orchestrator.ErrRunInProgress
	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/briefs/summer/generate?sync=true", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/briefs/ghost/generate", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRoute(t *testing.T) {
	e := newEnv()
	e.uploadJSON(t)

	e.gen.inflight = true
	rec := e.do(httptest.NewRequest(http.MethodDelete, "/api/briefs/summer", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	e.gen.inflight = false
	rec = e.do(httptest.NewRequest(http.MethodDelete, "/api/briefs/summer", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(httptest.NewRequest(http.MethodGet, "/api/briefs/summer", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrConflict, http.StatusConflict},
		{store.ErrNotFound, http.StatusNotFound},
		{&imagegen.ConfigError{Provider: imagegen.ProviderGemini, Reason: "no credentials configured"}, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classify(tc.err).Status, tc.err.Error())
	}
}
