package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"PDFLibraryBot/internal/domain"
)

type fakeProvider struct {
	name    string
	results []domain.AnalysisResult
	err     error
	delay   time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Analyze(ctx context.Context, _ Input) (domain.AnalysisResult, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.AnalysisResult{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.AnalysisResult{}, f.err
	}
	return f.results[call%len(f.results)], nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResult(category string, level domain.ComplexityLevel, score float64) domain.AnalysisResult {
	return domain.AnalysisResult{
		Language:   "en",
		Volume:     domain.Volume{ReadingMinutes: 12},
		Complexity: domain.Complexity{Score: score, Level: level},
		Category:   domain.Category{Label: category, Score: 0.8},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var sampleInput = Input{Text: "Attention is all you need."}

func TestRouterFallsBackToNextProvider(t *testing.T) {
	t.Parallel()

	first := &fakeProvider{name: "gemini", err: errors.New("503 unavailable")}
	second := &fakeProvider{name: "perplexity", results: []domain.AnalysisResult{okResult("ML", domain.LevelHigh, 70)}}
	third := &fakeProvider{name: "gigachat", results: []domain.AnalysisResult{okResult("Other", domain.LevelLow, 10)}}

	router := NewRouter(RouterDeps{Providers: []Provider{first, second, third}, Logger: testLogger()})
	got, err := router.Analyze(context.Background(), sampleInput)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if got.Provider != "perplexity" {
		t.Fatalf("provider = %s, want perplexity", got.Provider)
	}
	if got.Result.Category.Label != "ML" {
		t.Fatalf("category = %s, want ML", got.Result.Category.Label)
	}
	if third.Calls() != 0 {
		t.Fatalf("third provider called %d times, want 0", third.Calls())
	}
	if len(got.Attempts) != 2 || got.Attempts[0].Err == nil {
		t.Fatalf("unexpected attempts: %+v", got.Attempts)
	}
}

func TestRouterReturnsAggregateErrorWhenAllFail(t *testing.T) {
	t.Parallel()

	errA := errors.New("bad key")
	errB := errors.New("rate limited")
	router := NewRouter(RouterDeps{Providers: []Provider{
		&fakeProvider{name: "gemini", err: errA},
		&fakeProvider{name: "perplexity", err: errB},
	}})

	got, err := router.Analyze(context.Background(), sampleInput)
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("err = %v, want *AggregateError", err)
	}
	if len(agg.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(agg.Outcomes))
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("aggregate error does not wrap provider errors: %v", err)
	}
	if !strings.Contains(err.Error(), "gemini") || !strings.Contains(err.Error(), "perplexity") {
		t.Fatalf("error message lacks provider names: %s", err)
	}
	want := "all 2 analysis providers failed (gemini: bad key; perplexity: rate limited)"
	if err.Error() != want {
		t.Fatalf("err.Error() = %q, want %q", err.Error(), want)
	}
	if got.Provider != "" || got.Result.Category.Label != "" {
		t.Fatalf("expected no result on failure, got %+v", got)
	}
}

func TestRouterTimesOutSlowProvider(t *testing.T) {
	t.Parallel()

	slow := &fakeProvider{name: "gemini", delay: time.Second, results: []domain.AnalysisResult{okResult("Slow", domain.LevelLow, 10)}}
	fast := &fakeProvider{name: "gigachat", results: []domain.AnalysisResult{okResult("Fast", domain.LevelLow, 10)}}

	router := NewRouter(RouterDeps{Providers: []Provider{slow, fast}, CallTimeout: 20 * time.Millisecond})
	got, err := router.Analyze(context.Background(), sampleInput)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if got.Provider != "gigachat" {
		t.Fatalf("provider = %s, want gigachat", got.Provider)
	}
	var perr *ProviderError
	if !errors.As(got.Attempts[0].Err, &perr) || !errors.Is(perr, context.DeadlineExceeded) {
		t.Fatalf("first attempt err = %v, want deadline exceeded", got.Attempts[0].Err)
	}
}

func TestRouterStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "gemini", results: []domain.AnalysisResult{okResult("ML", domain.LevelLow, 10)}}
	router := NewRouter(RouterDeps{Providers: []Provider{p}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Analyze(ctx, sampleInput)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.Calls() != 0 {
		t.Fatalf("provider called after cancellation")
	}
}

func TestRouterRejectsInvalidProviderResult(t *testing.T) {
	t.Parallel()

	bad := okResult("ML", domain.LevelLow, 10)
	bad.Volume.ReadingMinutes = 0
	router := NewRouter(RouterDeps{Providers: []Provider{&fakeProvider{name: "gemini", results: []domain.AnalysisResult{bad}}}})

	_, err := router.Analyze(context.Background(), sampleInput)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestRouterClampsProviderScores(t *testing.T) {
	t.Parallel()

	wild := okResult("ML", domain.LevelHigh, 250)
	wild.Category.Score = 7
	router := NewRouter(RouterDeps{Providers: []Provider{&fakeProvider{name: "gemini", results: []domain.AnalysisResult{wild}}}})

	got, err := router.Analyze(context.Background(), sampleInput)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if got.Result.Complexity.Score != 100 || got.Result.Category.Score != 1 {
		t.Fatalf("scores not clamped: %+v", got.Result)
	}
}

func TestRouterWithoutProviders(t *testing.T) {
	t.Parallel()

	_, err := NewRouter(RouterDeps{}).Analyze(context.Background(), sampleInput)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("err = %v, want ErrNoProviders", err)
	}
}

func TestRouterRejectsEmptyText(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterDeps{Providers: []Provider{&fakeProvider{name: "gemini"}}})
	_, err := router.Analyze(context.Background(), Input{Text: "  "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegistryOrderedSkipsUnconfigured(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&fakeProvider{name: "gigachat"})
	reg.Register(&fakeProvider{name: "gemini"})
	reg.Register(nil)

	ordered := reg.Ordered([]string{"gemini", "perplexity", "GigaChat", "gemini"})
	if len(ordered) != 2 || ordered[0].Name() != "gemini" || ordered[1].Name() != "gigachat" {
		names := make([]string, 0, len(ordered))
		for _, p := range ordered {
			names = append(names, p.Name())
		}
		t.Fatalf("ordered = %v, want [gemini gigachat]", names)
	}

	if _, err := reg.Resolve("perplexity"); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}

func TestConsistencyReportsAgreement(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "gemini", results: []domain.AnalysisResult{
		okResult("ML", domain.LevelHigh, 70),
		okResult("ml", domain.LevelHigh, 80),
		okResult("Biology", domain.LevelMedium, 50),
	}}
	router := NewRouter(RouterDeps{Providers: []Provider{p}})

	report, err := router.Consistency(context.Background(), sampleInput, 3)
	if err != nil {
		t.Fatalf("Consistency returned error: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("succeeded=%d failed=%d, want 3/0", report.Succeeded, report.Failed)
	}
	if report.ModalCategory != "ML" {
		t.Fatalf("modal category = %s, want ML", report.ModalCategory)
	}
	if report.ModalLevel != domain.LevelHigh {
		t.Fatalf("modal level = %s, want high", report.ModalLevel)
	}
	if got, want := report.CategoryAgreement, 2.0/3.0; got != want {
		t.Fatalf("category agreement = %v, want %v", got, want)
	}
	if report.ScoreSpread != 30 {
		t.Fatalf("score spread = %v, want 30", report.ScoreSpread)
	}
}

func TestConsistencyCountsFailures(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterDeps{Providers: []Provider{&fakeProvider{name: "gemini", err: errors.New("down")}}})
	report, err := router.Consistency(context.Background(), sampleInput, 2)
	if err != nil {
		t.Fatalf("Consistency returned error: %v", err)
	}
	if report.Failed != 2 || report.Succeeded != 0 || report.CategoryAgreement != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
