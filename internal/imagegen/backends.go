package imagegen

import (
	"context"

	"github.com/yungbote/creatives-backend/internal/platform/gemini"
	"github.com/yungbote/creatives-backend/internal/platform/openai"
)

type openAIImages interface {
	ImageModel() string
	GenerateImage(ctx context.Context, in openai.ImageRequest) (openai.ImageGeneration, error)
}

type openAIBackend struct{ client openAIImages }

// NewOpenAIBackend adapts the Images API client. It is text-to-image only.
func NewOpenAIBackend(c openAIImages) Backend { return openAIBackend{client: c} }

func (b openAIBackend) Provider() Provider { return ProviderOpenAI }
func (b openAIBackend) Model() string { return b.client.ImageModel() }

func (b openAIBackend) Generate(ctx context.Context, req Request) ([]byte, error) {
	out, err := b.client.GenerateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes, nil
}

type geminiImages interface {
	ImageModel() string
	GenerateImage(ctx context.Context, in gemini.ImageRequest) ([]byte, string, error)
}

type geminiBackend struct{ client geminiImages }

// NewGeminiBackend adapts the Gemini client, which accepts a reference image.
// Gemini has no negative prompt field, so it is folded into the text.
func NewGeminiBackend(c geminiImages) Backend { return geminiBackend{client: c} }

func (b geminiBackend) Provider() Provider { return ProviderGemini }
func (b geminiBackend) Model() string { return b.client.ImageModel() }

func (b geminiBackend) Generate(ctx context.Context, req Request) ([]byte, error) {
	data, _, err := b.client.GenerateImage(ctx, gemini.ImageRequest{
		Prompt:        openai.BuildPrompt(req.Prompt, req.NegativePrompt),
		Reference:     req.Reference,
		ReferenceMIME: req.ReferenceMIME,
	})
	return data, err
}
