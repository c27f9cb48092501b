package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, data []byte, name string) (domain.ExtractedText, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return domain.ExtractedText{}, domain.ErrNotPDF
	}
	return domain.ExtractedText{SourceName: name, FirstPage: string(data), PageCount: 2, WordCount: 400, Language: "en"}, nil
}

type stubAnalyzer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	block    string
}

func (a *stubAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Analysis, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if a.block != "" && in.Meta.SourceName == a.block {
		<-ctx.Done()
		return analysis.Analysis{}, ctx.Err()
	}
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return analysis.Analysis{}, ctx.Err()
	}

	return analysis.Analysis{
		Provider: "gemini",
		Result: domain.AnalysisResult{
			Language:   "en",
			Volume:     domain.Volume{PageCount: in.Meta.PageCount, WordCount: in.Meta.WordCount, ReadingMinutes: 2.5},
			Complexity: domain.Complexity{Score: 40, Level: domain.LevelMedium, Grade: domain.GradeUndergraduate},
			Category:   domain.Category{Label: "Go", Score: 0.9, Basis: "llm"},
		},
	}, nil
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestCollectPDFs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.pdf":         "%PDF",
		"a.PDF":         "%PDF",
		"notes.txt":     "x",
		"nested/c.pdf":  "%PDF",
		"nested/readme": "x",
	})
	extra := filepath.Join(dir, "notes.txt")

	got, err := CollectPDFs([]string{dir, extra, filepath.Join(dir, "b.pdf")})
	if err != nil {
		t.Fatalf("CollectPDFs returned error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "nested", "c.pdf"),
		extra,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if _, err := CollectPDFs([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestRunWritesRecords(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	writeFiles(t, in, map[string]string{
		"good.pdf": "%PDF-1.7 text",
		"bad.pdf":  "<html>",
	})

	runner := NewRunner(RunnerDeps{
		Extractor: stubExtractor{},
		Analyzer:  &stubAnalyzer{},
		OutputDir: out,
	})
	files := []string{filepath.Join(in, "good.pdf"), filepath.Join(in, "bad.pdf")}
	records, err := runner.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !records[0].OK() || records[0].Provider != "gemini" || records[0].Volume.WordCount != 400 {
		t.Fatalf("unexpected good record %+v", records[0])
	}
	if records[1].OK() || !strings.Contains(records[1].Error, "extract") {
		t.Fatalf("expected extraction failure, got %+v", records[1])
	}

	data, err := os.ReadFile(filepath.Join(out, "good.json"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for _, key := range []string{"file", "provider", "doc_language", "volume", "complexity", "category"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("record missing %q: %s", key, data)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "bad.json")); err != nil {
		t.Fatalf("expected a record for the failed file: %v", err)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	files := make([]string, 0, 6)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		writeFiles(t, in, map[string]string{name + ".pdf": "%PDF"})
		files = append(files, filepath.Join(in, name+".pdf"))
	}

	analyzer := &stubAnalyzer{delay: 20 * time.Millisecond}
	runner := NewRunner(RunnerDeps{Extractor: stubExtractor{}, Analyzer: analyzer, Concurrency: 2})
	records, err := runner.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}
	if peak := analyzer.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent analyses, saw %d", peak)
	}
}

func TestRunTimeoutFailsOnlyThatDocument(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeFiles(t, in, map[string]string{"slow.pdf": "%PDF", "fast.pdf": "%PDF"})

	runner := NewRunner(RunnerDeps{
		Extractor: stubExtractor{},
		Analyzer:  &stubAnalyzer{block: "slow.pdf"},
		Timeout:   50 * time.Millisecond,
	})
	records, err := runner.Run(context.Background(), []string{filepath.Join(in, "slow.pdf"), filepath.Join(in, "fast.pdf")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if records[0].OK() || !strings.Contains(records[0].Error, context.DeadlineExceeded.Error()) {
		t.Fatalf("expected timeout for slow document, got %+v", records[0])
	}
	if !records[1].OK() {
		t.Fatalf("expected fast document to succeed, got %+v", records[1])
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeFiles(t, in, map[string]string{"a.pdf": "%PDF"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(RunnerDeps{Extractor: stubExtractor{}, Analyzer: &stubAnalyzer{}})
	_, err := runner.Run(ctx, []string{filepath.Join(in, "a.pdf")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOutputNames(t *testing.T) {
	t.Parallel()

	got := outputNames([]string{"x/paper.pdf", "y/paper.pdf", "z/other.PDF"})
	want := []string{"paper.json", "paper-2.json", "other.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ok, failed := WriteSummary(&buf, []Record{
		{File: "a.pdf", Provider: "gemini", Category: Category{Label: "Go"}},
		{File: "b.pdf", Error: "boom"},
	})
	if ok != 1 || failed != 1 {
		t.Fatalf("expected 1/1, got %d/%d", ok, failed)
	}
	out := buf.String()
	if !strings.Contains(out, "OK   a.pdf provider=gemini") || !strings.Contains(out, "FAIL b.pdf error=boom") || !strings.HasSuffix(out, "ok=1 failed=1\n") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}
