package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/http/response"
	"github.com/yungbote/creatives-backend/internal/platform/apierr"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/services"
)

// DefaultMaxUploadBytes bounds a brief upload including product images.
const DefaultMaxUploadBytes = 32 << 20

type BriefHandler struct {
	log      *logger.Logger
	svc      services.BriefService
	maxBytes int64
}

func NewBriefHandler(log *logger.Logger, svc services.BriefService, maxBytes int64) *BriefHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &BriefHandler{log: log.With("handler", "BriefHandler"), svc: svc, maxBytes: maxBytes}
}

func (h *BriefHandler) fail(c *gin.Context, err error) {
	ae := classify(err)
	if ae.Status >= http.StatusInternalServerError {
		h.log.Error("Brief request failed", "path", c.FullPath(), "campaign_id", c.Param("id"), "error", err)
	}
	response.RespondAPIError(c, ae)
}

func badRequest(err error) error {
	return apierr.New(http.StatusBadRequest, "bad_request", err)
}

// POST /api/briefs
//
// Accepts a JSON or YAML brief body, or multipart/form-data with a "brief"
// field (text or file) and "product_images" files named {product_id}.{ext}.
func (h *BriefHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	var (
		brief  *campaign.Brief
		images map[string][]byte
		err    error
	)
	if mediaType == "multipart/form-data" {
		brief, images, err = h.readMultipart(c)
	} else {
		var raw []byte
		raw, err = io.ReadAll(c.Request.Body)
		if err == nil {
			brief, err = campaign.DecodeBrief(raw, formatFor(mediaType))
			if err != nil {
				err = badRequest(err)
			}
		} else {
			err = badRequest(fmt.Errorf("read body: %w", err))
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Upload(c.Request.Context(), brief, images)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, res)
}

func formatFor(mediaType string) string {
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return "yaml"
	case "application/json":
		return "json"
	default:
		return ""
	}
}

func (h *BriefHandler) readMultipart(c *gin.Context) (*campaign.Brief, map[string][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, badRequest(fmt.Errorf("parse multipart: %w", err))
	}

	var raw []byte
	format := ""
	if vals := form.Value["brief"]; len(vals) > 0 {
		raw = []byte(vals[0])
	} else if files := form.File["brief"]; len(files) > 0 {
		raw, err = readPart(files[0])
		if err != nil {
			return nil, nil, badRequest(err)
		}
		switch strings.ToLower(filepath.Ext(files[0].Filename)) {
		case ".yaml", ".yml":
			format = "yaml"
		case ".json":
			format = "json"
		}
	} else {
		return nil, nil, badRequest(errors.New(`multipart upload needs a "brief" field`))
	}
	brief, err := campaign.DecodeBrief(raw, format)
	if err != nil {
		return nil, nil, badRequest(err)
	}

	images := map[string][]byte{}
	for _, fh := range form.File["product_images"] {
		name := filepath.Base(fh.Filename)
		pid := strings.TrimSuffix(name, filepath.Ext(name))
		if pid == "" {
			return nil, nil, badRequest(fmt.Errorf("product image %q has no product id", fh.Filename))
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, nil, badRequest(err)
		}
		images[pid] = data
	}
	return brief, images, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// GET /api/briefs
func (h *BriefHandler) List(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"briefs": out, "count": len(out)})
}

// GET /api/briefs/:id
func (h *BriefHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/briefs/:id/status
func (h *BriefHandler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/briefs/:id/logs
func (h *BriefHandler) Logs(c *gin.Context) {
	entries, err := h.svc.Logs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"campaign_id": c.Param("id"), "logs": entries})
}

// POST /api/briefs/:id/generate[?sync=true]
func (h *BriefHandler) Generate(c *gin.Context) {
	id := c.Param("id")
	sync, _ := strconv.ParseBool(c.DefaultQuery("sync", "false"))
	if !sync {
		if err := h.svc.Trigger(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
		response.RespondAccepted(c, gin.H{"campaign_id": id, "generation_triggered": true})
		return
	}

	res, err := h.svc.GenerateNow(c.Request.Context(), id)
	if err != nil {
		ae := classify(err)
		if res != nil && ae.Details == nil {
			ae.Details = res
		}
		h.fail(c, ae)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/briefs/:id
func (h *BriefHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
