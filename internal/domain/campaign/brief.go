package campaign

import (
	"strings"
)

// Placeholder is the image_path sentinel meaning "generate me".
const Placeholder = "placeholder"

// SchemaVersion is written into every metadata document.
const SchemaVersion = "1.0.0"

// DefaultCTALocale is preferred when choosing the CTA baked into prompts.
const DefaultCTALocale = "en-US"

type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
)

// BaseAspect is the ratio generated first and referenced by image_path.
const BaseAspect = AspectSquare

func (a AspectRatio) Valid() bool {
	switch a {
	case AspectSquare, AspectPortrait, AspectLandscape:
		return true
	default:
		return false
	}
}

// Slug replaces the colon so the ratio can be used as a path segment.
func (a AspectRatio) Slug() string {
	return strings.ReplaceAll(string(a), ":", "-")
}

// Dimensions returns the pixel size generated for the ratio.
func (a AspectRatio) Dimensions() (width, height int) {
	switch a {
	case AspectLandscape:
		return 1792, 1024
	case AspectPortrait:
		return 1024, 1792
	default:
		return 1024, 1024
	}
}

type Product struct {
	ID             string `json:"id" yaml:"id" validate:"required,excludesall=/\\"`
	Name           string `json:"name" yaml:"name" validate:"required"`
	Prompt         string `json:"prompt" yaml:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty" yaml:"negative_prompt,omitempty"`
	ImagePath      string `json:"image_path" yaml:"image_path" validate:"required"`
}

// NeedsGeneration reports whether the product still has to be generated.
func (p Product) NeedsGeneration() bool {
	return NeedsGeneration(p.ImagePath)
}

// NeedsGeneration is true iff path is exactly the placeholder sentinel.
func NeedsGeneration(path string) bool {
	return path == Placeholder
}

type Brand struct {
	PrimaryHex   string `json:"primary_hex" yaml:"primary_hex" validate:"required,brandhex"`
	SecondaryHex string `json:"secondary_hex,omitempty" yaml:"secondary_hex,omitempty" validate:"omitempty,brandhex"`
	LogoPath     string `json:"logo_path" yaml:"logo_path" validate:"required"`
}

// HasLogo reports whether the logo references a concrete stored asset.
func (b Brand) HasLogo() bool {
	p := strings.TrimSpace(b.LogoPath)
	return p != "" && !NeedsGeneration(p)
}

type Brief struct {
	CampaignID     string            `json:"campaign" yaml:"campaign" validate:"required,excludesall=/\\"`
	TargetRegion   string            `json:"target_region" yaml:"target_region" validate:"required"`
	TargetAudience string            `json:"target_audience" yaml:"target_audience" validate:"required"`
	Locales        []string          `json:"locales" yaml:"locales" validate:"required,min=1,dive,min=2"`
	Message        map[string]string `json:"message" yaml:"message" validate:"required"`
	CTA            map[string]string `json:"cta" yaml:"cta" validate:"required"`
	Products       []Product         `json:"products" yaml:"products" validate:"required,min=2,dive"`
	Brand          Brand             `json:"brand" yaml:"brand"`
	AspectRatios   []AspectRatio     `json:"aspect_ratios" yaml:"aspect_ratios" validate:"required,min=1,dive,aspect"`
	Template       string            `json:"template" yaml:"template" validate:"required,template"`
}

// Pending returns the products that still need generation, in declared order.
func (b *Brief) Pending() []Product {
	out := []Product{}
	for _, p := range b.Products {
		if p.NeedsGeneration() {
			out = append(out, p)
		}
	}
	return out
}

// VariantRatios returns the declared ratios other than the base one, in order.
func (b *Brief) VariantRatios() []AspectRatio {
	out := make([]AspectRatio, 0, len(b.AspectRatios))
	seen := map[AspectRatio]bool{BaseAspect: true}
	for _, ar := range b.AspectRatios {
		if seen[ar] {
			continue
		}
		seen[ar] = true
		out = append(out, ar)
	}
	return out
}

// PrimaryCTA picks en-US when present, else the first declared locale with a CTA.
func (b *Brief) PrimaryCTA() (locale, text string) {
	if v := strings.TrimSpace(b.CTA[DefaultCTALocale]); v != "" {
		return DefaultCTALocale, v
	}
	for _, loc := range b.Locales {
		if v := strings.TrimSpace(b.CTA[loc]); v != "" {
			return loc, v
		}
	}
	return "", ""
}

// Clone returns a deep copy so callers can mutate products safely.
func (b *Brief) Clone() *Brief {
	if b == nil {
		return nil
	}
	out := *b
	out.Locales = append([]string(nil), b.Locales...)
	out.Products = append([]Product(nil), b.Products...)
	out.AspectRatios = append([]AspectRatio(nil), b.AspectRatios...)
	out.Message = make(map[string]string, len(b.Message))
	for k, v := range b.Message {
		out.Message[k] = v
	}
	out.CTA = make(map[string]string, len(b.CTA))
	for k, v := range b.CTA {
		out.CTA[k] = v
	}
	return &out
}
