// Package analysis turns extracted PDF text into a normalized AnalysisResult by
// asking LLM providers in priority order.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PDFLibraryBot/internal/domain"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 30 * time.Second

// Provider produces an analysis from one LLM backend. Implementations own
// their response mapping and must return clamped results.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, in Input) (domain.AnalysisResult, error)
}

// Meta carries document facts computed before the LLM call.
type Meta struct {
	SourceName   string `json:"source_name,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
	ByteSize     int64  `json:"byte_size,omitempty"`
	WordCount    int    `json:"precomputed_word_count,omitempty"`
	LanguageHint string `json:"lang_hint,omitempty"`

	// Host-side reading estimate; never sent to providers.
	ReadingMinutes float64                  `json:"-"`
	Reading        *domain.ReadingBreakdown `json:"-"`
}

// Input is what every provider receives.
type Input struct {
	Text               string
	Meta               Meta
	ExistingCategories []string
}

// ProviderOutcome records one attempt of the fallback chain.
type ProviderOutcome struct {
	Provider string                 `json:"provider"`
	Latency  time.Duration          `json:"latency"`
	Result   *domain.AnalysisResult `json:"result,omitempty"`
	Err      error                  `json:"-"`
}

// Analysis is a successful router call.
type Analysis struct {
	Result   domain.AnalysisResult
	Provider string
	Attempts []ProviderOutcome
}

// RouterDeps wires providers and runtime settings into the router.
type RouterDeps struct {
	Providers   []Provider
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Router tries providers sequentially until one succeeds.
type Router struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRouter constructs the router. Provider order is the priority order.
func NewRouter(deps RouterDeps) *Router {
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	providers := make([]Provider, 0, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers = append(providers, p)
		}
	}
	return &Router{providers: providers, timeout: timeout, logger: deps.Logger}
}

// Providers returns the provider names in priority order.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// Analyze returns the first successful provider result. If every provider
// fails it returns *AggregateError; it never returns an empty result.
func (r *Router) Analyze(ctx context.Context, in Input) (Analysis, error) {
	if strings.TrimSpace(in.Text) == "" && in.Meta.WordCount == 0 {
		return Analysis{}, fmt.Errorf("empty document text: %w", domain.ErrInvalidInput)
	}
	if len(r.providers) == 0 {
		return Analysis{}, ErrNoProviders
	}

	attempts := make([]ProviderOutcome, 0, len(r.providers))
	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return Analysis{Attempts: attempts}, fmt.Errorf("analysis cancelled: %w", err)
		}

		outcome := r.call(ctx, p, in)
		attempts = append(attempts, outcome)

		if outcome.Err == nil {
			r.info("analysis succeeded", "provider", outcome.Provider, "latency", outcome.Latency)
			return Analysis{Result: *outcome.Result, Provider: outcome.Provider, Attempts: attempts}, nil
		}

		r.warn("analysis provider failed, trying next", "provider", outcome.Provider, "latency", outcome.Latency, "error", outcome.Err)
		if ctx.Err() != nil {
			return Analysis{Attempts: attempts}, fmt.Errorf("analysis cancelled: %w", ctx.Err())
		}
	}

	return Analysis{Attempts: attempts}, &AggregateError{Outcomes: attempts}
}

func (r *Router) call(ctx context.Context, p Provider, in Input) ProviderOutcome {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	result, err := p.Analyze(callCtx, in)
	outcome := ProviderOutcome{Provider: p.Name(), Latency: time.Since(started)}

	if err == nil {
		err = validate(result)
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", r.timeout, err)
		}
		outcome.Err = &ProviderError{Provider: p.Name(), Err: err}
		return outcome
	}

	result.Clamp()
	outcome.Result = &result
	return outcome
}

func validate(result domain.AnalysisResult) error {
	if result.Volume.ReadingMinutes <= 0 {
		return fmt.Errorf("non-positive reading time %v: %w", result.Volume.ReadingMinutes, ErrMalformedResponse)
	}
	return nil
}

func (r *Router) info(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Info(msg, args...)
}

func (r *Router) warn(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, args...)
}
