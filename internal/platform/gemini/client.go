package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

const DefaultImageModel = "gemini-2.5-flash-image-preview"

type Config struct {
	APIKey     string
	ImageModel string
	Timeout    time.Duration
}

// ImageRequest asks for one image. Reference, when set, is sent as an inline
// part next to the prompt so the output is conditioned on it.
type ImageRequest struct {
	Prompt        string
	Reference     []byte
	ReferenceMIME string
}

type Client struct {
	log     *logger.Logger
	models  *genai.Models
	model   string
	timeout time.Duration
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := strings.TrimSpace(cfg.ImageModel)
	if model == "" {
		model = DefaultImageModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		log:     log.With("service", "GeminiClient"),
		models:  client.Models,
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *Client) ImageModel() string { return c.model }

// APIError carries the HTTP status the Gemini API answered with.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini http %d: %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *Client) GenerateImage(ctx context.Context, in ImageRequest) ([]byte, string, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, "", errors.New("image prompt required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(in.Reference) > 0 {
		mime := in.ReferenceMIME
		if mime == "" {
			mime = http.DetectContentType(in.Reference)
		}
		parts = append(parts, genai.NewPartFromBytes(in.Reference, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		c.log.Warn("Gemini image generation failed",
			"model", c.model,
			"with_reference", len(in.Reference) > 0,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, "", wrapAPIError(err)
	}
	data, mime, err := firstImage(resp)
	if err != nil {
		return nil, "", err
	}
	c.log.Debug("Gemini image generated",
		"model", c.model,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, mime, nil
}

func wrapAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{StatusCode: apiErrPtr.Code, Err: err}
	}
	return err
}

func firstImage(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", errors.New("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return nil, "", fmt.Errorf("gemini candidate has no content (finish_reason=%s)", cand.FinishReason)
	}
	for _, part := range cand.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", errors.New("gemini candidate did not include inline image data")
}
