package app

import (
	"context"
	"fmt"

	"github.com/yungbote/creatives-backend/internal/imagegen"
	"github.com/yungbote/creatives-backend/internal/orchestrator"
	"github.com/yungbote/creatives-backend/internal/platform/gemini"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/platform/openai"
	"github.com/yungbote/creatives-backend/internal/platform/redis"
)

type Clients struct {
	Gateway   *imagegen.Gateway
	Publisher orchestrator.StatusPublisher
	StatusBus *redis.StatusBus
}

// wireClients builds a backend for every provider that has credentials. A
// missing provider surfaces later as a *imagegen.ConfigError on first use.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	var out Clients

	gwCfg := imagegen.Config{
		Provider:     imagegen.ParseProvider(cfg.GenAIProvider),
		TextProvider: imagegen.ParseProvider(cfg.GenAITextProvider),
		Fallback:     imagegen.ParseProvider(cfg.GenAIFallbackProvider),
	}
	if !gwCfg.Provider.Known() {
		return out, fmt.Errorf("invalid GENAI_PROVIDER=%q (allowed: openai, gemini)", cfg.GenAIProvider)
	}

	var backends []imagegen.Backend
	if cfg.OpenAIAPIKey != "" {
		oc, err := openai.NewClient(log, openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			ImageModel: cfg.OpenAIImageModel,
			Timeout:    cfg.GenAITimeout,
		})
		if err != nil {
			return out, fmt.Errorf("init openai client: %w", err)
		}
		backends = append(backends, imagegen.NewOpenAIBackend(oc))
	}
	if cfg.GeminiAPIKey != "" {
		gc, err := gemini.NewClient(ctx, log, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			ImageModel: cfg.GeminiImageModel,
			Timeout:    cfg.GenAITimeout,
		})
		if err != nil {
			return out, fmt.Errorf("init gemini client: %w", err)
		}
		backends = append(backends, imagegen.NewGeminiBackend(gc))
	}
	if len(backends) == 0 {
		log.Warn("No image provider credentials configured; generation will fail until OPENAI_API_KEY or GEMINI_API_KEY is set")
	}
	out.Gateway = imagegen.NewGateway(log, gwCfg, backends...)

	if cfg.RedisAddr != "" {
		bus, err := redis.NewStatusBus(ctx, log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			return out, fmt.Errorf("init redis status bus: %w", err)
		}
		out.StatusBus = bus
		out.Publisher = bus
	}
	return out, nil
}
