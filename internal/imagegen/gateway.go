package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

type Config struct {
	// Provider is the preferred backend for the base image.
	Provider Provider
	// TextProvider serves text-to-image calls; empty means Provider.
	TextProvider Provider
	// Fallback is tried after a provider error. Empty disables fallback.
	Fallback Provider
}

// Gateway resolves strategies to backends. Backends are injected so tests
// and deployments choose which providers exist.
type Gateway struct {
	log      *logger.Logger
	cfg      Config
	backends map[Provider]Backend
}

func NewGateway(log *logger.Logger, cfg Config, backends ...Backend) *Gateway {
	m := make(map[Provider]Backend, len(backends))
	for _, b := range backends {
		if b != nil {
			m[b.Provider()] = b
		}
	}
	if cfg.TextProvider == "" {
		cfg.TextProvider = cfg.Provider
	}
	return &Gateway{log: log.With("component", "ImageGateway"), cfg: cfg, backends: m}
}

func (g *Gateway) Config() Config { return g.cfg }

func (g *Gateway) backend(p Provider) (Backend, error) {
	if !p.Known() {
		return nil, &ConfigError{Provider: p, Reason: "unsupported provider"}
	}
	b, ok := g.backends[p]
	if !ok {
		return nil, &ConfigError{Provider: p, Reason: "no credentials configured"}
	}
	return b, nil
}

// BaseStrategy is the strategy Base would pick for hasLogo.
func (g *Gateway) BaseStrategy(hasLogo bool) Strategy {
	return SelectStrategy(g.cfg.Provider, hasLogo)
}

// Base returns the generator for the base 1:1 image.
func (g *Gateway) Base(hasLogo bool) (Generator, error) {
	s := g.BaseStrategy(hasLogo)
	p := g.cfg.Provider
	if s == StrategyTextToImage {
		p = g.cfg.TextProvider
	}
	b, err := g.backend(p)
	if err != nil {
		return nil, err
	}
	return newGenerator(s, b), nil
}

// Variant returns the text-to-image generator used for every extra ratio.
func (g *Gateway) Variant() (Generator, error) {
	b, err := g.backend(g.cfg.TextProvider)
	if err != nil {
		return nil, err
	}
	return newGenerator(StrategyTextToImage, b), nil
}

func (g *Gateway) GenerateBase(ctx context.Context, req Request, hasLogo bool) (Image, error) {
	gen, err := g.Base(hasLogo)
	if err != nil {
		return Image{}, err
	}
	return g.run(ctx, gen, req)
}

func (g *Gateway) GenerateVariant(ctx context.Context, req Request) (Image, error) {
	gen, err := g.Variant()
	if err != nil {
		return Image{}, err
	}
	return g.run(ctx, gen, req)
}

func (g *Gateway) run(ctx context.Context, gen Generator, req Request) (Image, error) {
	img, err := g.invoke(ctx, gen, req)
	if err == nil {
		return img, nil
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) || g.cfg.Fallback == "" || g.cfg.Fallback == gen.Provider() {
		return Image{}, err
	}
	fb, fbErr := g.backend(g.cfg.Fallback)
	if fbErr != nil {
		return Image{}, errors.Join(err, fbErr)
	}
	g.log.Warn("Image provider failed, using configured fallback",
		"provider", gen.Provider(),
		"fallback", fb.Provider(),
		"error", err,
	)
	img, fbErr = g.invoke(ctx, newGenerator(StrategyTextToImage, fb), req)
	if fbErr != nil {
		return Image{}, errors.Join(err, fbErr)
	}
	return img, nil
}

func (g *Gateway) invoke(ctx context.Context, gen Generator, req Request) (Image, error) {
	start := time.Now()
	raw, err := gen.Generate(ctx, req)
	if err != nil {
		return Image{}, newProviderError(gen, err)
	}
	png, err := Normalize(raw, req.Width, req.Height)
	if err != nil {
		return Image{}, newProviderError(gen, fmt.Errorf("unusable image: %w", err))
	}
	g.log.Debug("Image generated",
		"provider", gen.Provider(),
		"model", gen.Model(),
		"strategy", gen.Strategy(),
		"width", req.Width,
		"height", req.Height,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Image{Data: png, Provider: gen.Provider(), Model: gen.Model(), Strategy: gen.Strategy()}, nil
}
