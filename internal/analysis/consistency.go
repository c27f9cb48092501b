package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"PDFLibraryBot/internal/domain"
)

// DefaultConsistencyRuns is how many times Consistency repeats the analysis.
const DefaultConsistencyRuns = 3

// ConsistencyRun is one repetition of the analysis.
type ConsistencyRun struct {
	Provider string                 `json:"provider,omitempty"`
	Level    domain.ComplexityLevel `json:"level,omitempty"`
	Score    float64                `json:"score,omitempty"`
	Category string                 `json:"category,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// ConsistencyReport summarizes how stable repeated analyses of one document are.
type ConsistencyReport struct {
	Runs                []ConsistencyRun       `json:"runs"`
	Succeeded           int                    `json:"succeeded"`
	Failed              int                    `json:"failed"`
	ModalCategory       string                 `json:"modal_category,omitempty"`
	CategoryAgreement   float64                `json:"category_agreement"`
	ModalLevel          domain.ComplexityLevel `json:"modal_level,omitempty"`
	ComplexityAgreement float64                `json:"complexity_agreement"`
	ScoreSpread         float64                `json:"score_spread"`
}

// Consistency runs the full router chain runs times and reports agreement on
// category and complexity level among the successful runs.
func (r *Router) Consistency(ctx context.Context, in Input, runs int) (ConsistencyReport, error) {
	if runs <= 0 {
		runs = DefaultConsistencyRuns
	}

	report := ConsistencyReport{Runs: make([]ConsistencyRun, 0, runs)}
	for i := 0; i < runs; i++ {
		a, err := r.Analyze(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return report, fmt.Errorf("consistency run %d: %w", i+1, err)
			}
			report.Runs = append(report.Runs, ConsistencyRun{Error: err.Error()})
			report.Failed++
			continue
		}
		report.Runs = append(report.Runs, ConsistencyRun{
			Provider: a.Provider,
			Level:    a.Result.Complexity.Level,
			Score:    a.Result.Complexity.Score,
			Category: a.Result.Category.Label,
		})
		report.Succeeded++
	}

	summarize(&report)
	return report, nil
}

func summarize(report *ConsistencyReport) {
	if report.Succeeded == 0 {
		return
	}

	categories := map[string]int{}
	levels := map[string]int{}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, run := range report.Runs {
		if run.Error != "" {
			continue
		}
		categories[domain.NormalizeTag(run.Category)]++
		levels[string(run.Level)]++
		lo = math.Min(lo, run.Score)
		hi = math.Max(hi, run.Score)
	}

	cat, catCount := mode(categories)
	for _, run := range report.Runs {
		if run.Error == "" && domain.NormalizeTag(run.Category) == cat {
			report.ModalCategory = run.Category
			break
		}
	}
	level, levelCount := mode(levels)

	report.CategoryAgreement = float64(catCount) / float64(report.Succeeded)
	report.ModalLevel = domain.ComplexityLevel(level)
	report.ComplexityAgreement = float64(levelCount) / float64(report.Succeeded)
	report.ScoreSpread = hi - lo
}

// mode returns the most frequent key; ties resolve alphabetically.
func mode(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, bestCount
}
