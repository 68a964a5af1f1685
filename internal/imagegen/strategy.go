package imagegen

import "context"

type Strategy string

const (
	StrategyTextToImage      Strategy = "text_to_image"
	StrategyImageConditioned Strategy = "image_conditioned"
)

// SelectStrategy is the base-image decision: condition on the logo only when
// one is available and the provider can take it.
func SelectStrategy(provider Provider, hasLogo bool) Strategy {
	if hasLogo && provider.SupportsImageConditioning() {
		return StrategyImageConditioned
	}
	return StrategyTextToImage
}

// Generator produces one image. The only implementations are textToImage
// and imageConditioned.
type Generator interface {
	Strategy() Strategy
	Provider() Provider
	Model() string
	Generate(ctx context.Context, req Request) ([]byte, error)
	sealed()
}

type textToImage struct{ backend Backend }

func (g textToImage) Strategy() Strategy { return StrategyTextToImage }
func (g textToImage) Provider() Provider { return g.backend.Provider() }
func (g textToImage) Model() string { return g.backend.Model() }
func (textToImage) sealed() {}

func (g textToImage) Generate(ctx context.Context, req Request) ([]byte, error) {
	req.Reference = nil
	req.ReferenceMIME = ""
	return g.backend.Generate(ctx, req)
}

type imageConditioned struct{ backend Backend }

func (g imageConditioned) Strategy() Strategy { return StrategyImageConditioned }
func (g imageConditioned) Provider() Provider { return g.backend.Provider() }
func (g imageConditioned) Model() string { return g.backend.Model() }
func (imageConditioned) sealed() {}

func (g imageConditioned) Generate(ctx context.Context, req Request) ([]byte, error) {
	return g.backend.Generate(ctx, req)
}

func newGenerator(s Strategy, b Backend) Generator {
	if s == StrategyImageConditioned {
		return imageConditioned{backend: b}
	}
	return textToImage{backend: b}
}
