// Package imagegen is the image provider gateway: it picks a generation
// strategy for a request and invokes the matching backend.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

func ParseProvider(raw string) Provider {
	return Provider(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether the gateway has a backend implementation for p.
func (p Provider) Known() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// SupportsImageConditioning reports whether the provider accepts a
// reference image next to the prompt.
func (p Provider) SupportsImageConditioning() bool {
	return p == ProviderGemini
}

type Request struct {
	Prompt         string
	NegativePrompt string
	Reference      []byte
	ReferenceMIME  string
	Width          int
	Height         int
}

type Image struct {
	Data     []byte
	Provider Provider
	Model    string
	Strategy Strategy
}

// Backend wraps one provider SDK. Backends that cannot take a reference
// image ignore Request.Reference.
type Backend interface {
	Provider() Provider
	Model() string
	Generate(ctx context.Context, req Request) ([]byte, error)
}

var (
	ErrConfig   = errors.New("image provider configuration error")
	ErrProvider = errors.New("image provider error")
)

// ConfigError covers unsupported providers and missing credentials. It is
// never retried and never triggers a fallback.
type ConfigError struct {
	Provider Provider
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("image provider %q: %s", e.Provider, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ProviderError is a failed generation call: rejection, timeout, rate limit,
// or an unusable response.
type ProviderError struct {
	Provider   Provider
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%s) failed with status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s (%s) failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

type statusCoder interface {
	HTTPStatusCode() int
}

func newProviderError(b Backend, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	out := &ProviderError{Provider: b.Provider(), Model: b.Model(), Err: err}
	var sc statusCoder
	if errors.As(err, &sc) {
		out.StatusCode = sc.HTTPStatusCode()
	}
	return out
}
