// Package eval runs the analysis chain over a batch of local PDF files and
// records one result per file.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const (
	DefaultConcurrency = 3
	DefaultTimeout     = 120 * time.Second
)

// Volume is the size part of a record.
type Volume struct {
	PageCount      int     `json:"page_count"`
	WordCount      int     `json:"word_count"`
	ReadingTimeMin float64 `json:"reading_time_min"`
}

// Complexity is the difficulty part of a record.
type Complexity struct {
	Score float64                `json:"score"`
	Level domain.ComplexityLevel `json:"level"`
	Grade domain.Grade           `json:"grade"`
}

// Category is the classification part of a record.
type Category struct {
	Label    string   `json:"label"`
	Score    float64  `json:"score"`
	Basis    string   `json:"basis"`
	Keywords []string `json:"keywords"`
}

// Record is the outcome for one file. Error is set when the file failed.
type Record struct {
	File       string     `json:"file"`
	Provider   string     `json:"provider,omitempty"`
	Language   string     `json:"doc_language,omitempty"`
	Volume     Volume     `json:"volume"`
	Complexity Complexity `json:"complexity"`
	Category   Category   `json:"category"`
	Error      string     `json:"error,omitempty"`
}

// OK reports whether the file was analyzed.
func (r Record) OK() bool { return r.Error == "" }

// RunnerDeps wires the extraction and analysis stages.
type RunnerDeps struct {
	Extractor   ports.TextExtractor
	Analyzer    ports.Analyzer
	Concurrency int
	Timeout     time.Duration
	OutputDir   string
	Logger      *slog.Logger
}

// Runner analyzes files with bounded concurrency. Files share nothing, so
// the limiter is the only synchronization between them.
type Runner struct {
	extractor   ports.TextExtractor
	analyzer    ports.Analyzer
	concurrency int
	timeout     time.Duration
	outDir      string
	logger      *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(deps RunnerDeps) *Runner {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		extractor:   deps.Extractor,
		analyzer:    deps.Analyzer,
		concurrency: concurrency,
		timeout:     timeout,
		outDir:      deps.OutputDir,
		logger:      deps.Logger,
	}
}

// Run analyzes files and returns one record per file in input order. A
// failing file never stops the batch; only a cancelled ctx or an output
// write error does.
func (r *Runner) Run(ctx context.Context, files []string) ([]Record, error) {
	if r.outDir != "" {
		if err := os.MkdirAll(r.outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	records := make([]Record, len(files))
	names := outputNames(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				records[i] = Record{File: file, Error: err.Error()}
				return nil
			}

			rec := r.analyzeFile(gctx, file)
			records[i] = rec
			if rec.OK() {
				r.info("document analyzed", "file", file, "provider", rec.Provider)
			} else {
				r.warn("document failed", "file", file, "error", rec.Error)
			}

			if r.outDir == "" {
				return nil
			}
			return writeRecord(filepath.Join(r.outDir, names[i]), rec)
		})
	}

	if err := g.Wait(); err != nil {
		return records, err
	}
	if err := ctx.Err(); err != nil {
		return records, fmt.Errorf("evaluation cancelled: %w", err)
	}
	return records, nil
}

func (r *Runner) analyzeFile(ctx context.Context, file string) Record {
	rec := Record{File: file}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	in, err := r.Input(ctx, file)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	res, err := r.analyzer.Analyze(ctx, in)
	if err != nil {
		rec.Error = fmt.Sprintf("analyze: %v", err)
		return rec
	}
	return recordFor(file, res)
}

// Input reads and extracts a local PDF into an analysis input.
func (r *Runner) Input(ctx context.Context, file string) (analysis.Input, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return analysis.Input{}, fmt.Errorf("read %s: %w", file, err)
	}
	ext, err := r.extractor.Extract(ctx, data, filepath.Base(file))
	if err != nil {
		return analysis.Input{}, fmt.Errorf("extract %s: %w", file, err)
	}

	text := ext.FirstPage
	if strings.TrimSpace(text) == "" {
		text = ext.FullText
	}
	return analysis.Input{
		Text: text,
		Meta: analysis.Meta{
			SourceName:     filepath.Base(file),
			PageCount:      ext.PageCount,
			ByteSize:       ext.ByteSize,
			WordCount:      ext.WordCount,
			LanguageHint:   ext.Language,
			ReadingMinutes: ext.ReadingMinutes,
			Reading:        ext.Reading,
		},
	}, nil
}

func recordFor(file string, a analysis.Analysis) Record {
	res := a.Result
	keywords := res.Category.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return Record{
		File:     file,
		Provider: a.Provider,
		Language: res.Language,
		Volume: Volume{
			PageCount:      res.Volume.PageCount,
			WordCount:      res.Volume.WordCount,
			ReadingTimeMin: res.Volume.ReadingMinutes,
		},
		Complexity: Complexity{
			Score: res.Complexity.Score,
			Level: res.Complexity.Level,
			Grade: res.Complexity.Grade,
		},
		Category: Category{
			Label:    res.Category.Label,
			Score:    res.Category.Score,
			Basis:    res.Category.Basis,
			Keywords: keywords,
		},
	}
}

func writeRecord(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.File, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// outputNames maps every input to "<stem>.json"; repeated stems get a
// numeric suffix so records from different folders do not overwrite each other.
func outputNames(files []string) []string {
	seen := make(map[string]int, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		seen[stem]++
		if n := seen[stem]; n > 1 {
			stem = fmt.Sprintf("%s-%d", stem, n)
		}
		names[i] = stem + ".json"
	}
	return names
}

// CollectPDFs expands inputs into a sorted, de-duplicated list of PDF files.
// Directories are walked recursively; plain files are taken as given.
func CollectPDFs(inputs []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", in, err)
		}
		if !info.IsDir() {
			add(in)
			continue
		}
		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".pdf") {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", in, err)
		}
	}

	sort.Strings(out)
	return out, nil
}

// WriteSummary prints one line per record and a final ok/failed count.
func WriteSummary(w io.Writer, records []Record) (ok, failed int) {
	for _, rec := range records {
		if rec.OK() {
			ok++
			fmt.Fprintf(w, "OK   %s provider=%s lang=%s pages=%d words=%d minutes=%.1f complexity=%s(%.0f) category=%q\n",
				rec.File, rec.Provider, rec.Language, rec.Volume.PageCount, rec.Volume.WordCount,
				rec.Volume.ReadingTimeMin, rec.Complexity.Level, rec.Complexity.Score, rec.Category.Label)
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %s error=%s\n", rec.File, rec.Error)
	}
	fmt.Fprintf(w, "ok=%d failed=%d\n", ok, failed)
	return ok, failed
}

func (r *Runner) info(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Info(msg, args...)
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, args...)
}
