package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

const (
	DefaultBaseURL    = "https://api.openai.com"
	DefaultImageModel = "dall-e-3"
)

type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	Timeout    time.Duration
}

// ImageRequest is one Images API generation call.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
}

type ImageGeneration struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

// Client calls the Images API. It never retries: one request per call.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	imageModel string
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.ImageModel)
	if model == "" {
		model = DefaultImageModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) ImageModel() string { return c.imageModel }

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w", err)
	}
	return nil
}

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// BuildPrompt folds the negative prompt into the text, since the Images API
// has no separate field for it.
func BuildPrompt(prompt, negative string) string {
	prompt = strings.TrimSpace(prompt)
	if n := strings.TrimSpace(negative); n != "" {
		return prompt + "\n\nNegative prompt: " + n
	}
	return prompt
}

func (c *Client) GenerateImage(ctx context.Context, in ImageRequest) (ImageGeneration, error) {
	var out ImageGeneration
	prompt := BuildPrompt(in.Prompt, in.NegativePrompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}

	req := imagesGenerationRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
		Size:   fmt.Sprintf("%dx%d", in.Width, in.Height),
	}
	// gpt-image models always answer with b64 and reject the parameter.
	if !strings.HasPrefix(strings.ToLower(c.imageModel), "gpt-image-") {
		req.ResponseFormat = "b64_json"
	}

	start := time.Now()
	var resp imagesGenerationResponse
	if err := c.doOnce(ctx, http.MethodPost, "/v1/images/generations", req, &resp); err != nil {
		c.log.Warn("OpenAI image generation failed",
			"model", c.imageModel,
			"size", req.Size,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(item.B64JSON))
	if err != nil {
		return out, fmt.Errorf("decode image base64: %w", err)
	}
	if len(raw) == 0 {
		return out, errors.New("image response missing b64_json")
	}
	out.Bytes = raw
	out.MimeType = "image/png"
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	c.log.Debug("OpenAI image generated",
		"model", c.imageModel,
		"size", req.Size,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
