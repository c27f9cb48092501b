package domain

import (
	"math"
	"strings"
)

// ComplexityLevel is a coarse bucket of the complexity score.
type ComplexityLevel string

const (
	LevelLow    ComplexityLevel = "low"
	LevelMedium ComplexityLevel = "medium"
	LevelHigh   ComplexityLevel = "high"
)

// Grade estimates the reader background a document expects.
type Grade string

const (
	GradeSchool        Grade = "school"
	GradeUndergraduate Grade = "undergraduate"
	GradeGraduate      Grade = "graduate"
	GradeExpert        Grade = "expert"
)

// DefaultCategory is used when no provider could name a category.
const DefaultCategory = "Другое"

// MaxTopics bounds the topic list of a single analysis.
const MaxTopics = 6

// AnalysisResult is the canonical, provider-independent document analysis.
type AnalysisResult struct {
	Language    string      `json:"doc_language"`
	Volume      Volume      `json:"volume"`
	Complexity  Complexity  `json:"complexity"`
	Category    Category    `json:"category"`
	Topics      []Topic     `json:"topics"`
	Limitations Limitations `json:"limitations"`
}

// Volume describes document size and the derived reading time.
type Volume struct {
	PageCount      int     `json:"page_count"`
	WordCount      int     `json:"word_count"`
	CharCount      int     `json:"char_count"`
	ByteSize       int64   `json:"byte_size"`
	ReadingMinutes float64 `json:"reading_time_min"`
	Method         string  `json:"method,omitempty"`
	// Breakdown is set when reading time came from a per-page scan.
	Breakdown *ReadingBreakdown `json:"reading_breakdown,omitempty"`
}

// PageClasses counts scanned pages by layout.
type PageClasses struct {
	Text  int `json:"text"`
	Mixed int `json:"mixed"`
	Slide int `json:"slide"`
	Empty int `json:"empty"`
}

// Total is the number of classified pages.
func (p PageClasses) Total() int { return p.Text + p.Mixed + p.Slide + p.Empty }

// ReadingBreakdown itemizes a content-based reading time estimate: words read
// at EffectiveWPM plus seconds spent on slides, images, tables and code.
type ReadingBreakdown struct {
	Words        int         `json:"words"`
	EffectiveWPM int         `json:"effective_wpm"`
	SlidesSec    int         `json:"slides_s"`
	ImagesSec    int         `json:"images_s"`
	TablesSec    int         `json:"tables_s"`
	CodeSec      int         `json:"code_s"`
	Pages        PageClasses `json:"pages"`
}

// NonTextSeconds sums the time not spent reading running text.
func (b ReadingBreakdown) NonTextSeconds() int {
	return b.SlidesSec + b.ImagesSec + b.TablesSec + b.CodeSec
}

// Complexity is the text difficulty estimate.
type Complexity struct {
	Score   float64         `json:"score"`
	Level   ComplexityLevel `json:"level"`
	Grade   Grade           `json:"grade"`
	Drivers []string        `json:"drivers,omitempty"`
	Notes   string          `json:"notes,omitempty"`
}

// Category is the single best-fitting document category.
type Category struct {
	Label    string   `json:"label"`
	Score    float64  `json:"score"`
	Basis    string   `json:"basis"`
	Keywords []string `json:"keywords"`
}

// Topic is one of the secondary themes of a document.
type Topic struct {
	Label     string   `json:"label"`
	Score     float64  `json:"score"`
	Keywords  []string `json:"keywords,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// Limitations flags inputs the analysis should not be trusted on.
type Limitations struct {
	ShortOrNoisyInput bool   `json:"short_or_noisy_input"`
	Comments          string `json:"comments,omitempty"`
}

// MinReadingMinutes is the smallest reading time an analysis may report.
const MinReadingMinutes = 0.1

// Clamp forces every bounded field into its declared range.
func (r *AnalysisResult) Clamp() {
	r.Complexity.Score = clamp(r.Complexity.Score, 0, 100)
	r.Category.Score = clamp(r.Category.Score, 0, 1)
	if r.Category.Label == "" {
		r.Category.Label = DefaultCategory
	}
	if r.Complexity.Level == "" {
		r.Complexity.Level = LevelForScore(r.Complexity.Score)
	}
	if r.Complexity.Grade == "" {
		r.Complexity.Grade = GradeForScore(r.Complexity.Score)
	}
	if len(r.Topics) > MaxTopics {
		r.Topics = r.Topics[:MaxTopics]
	}
	for i := range r.Topics {
		r.Topics[i].Score = clamp(r.Topics[i].Score, 0, 1)
	}
	if math.IsNaN(r.Volume.ReadingMinutes) || r.Volume.ReadingMinutes < MinReadingMinutes {
		r.Volume.ReadingMinutes = MinReadingMinutes
	}
}

// Tags derives the document tag list: category first, then topic labels.
func (r AnalysisResult) Tags() []string {
	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		key := NormalizeTag(tag)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	add(r.Category.Label)
	for _, t := range r.Topics {
		add(t.Label)
	}
	return tags
}

// LevelForScore buckets a 0-100 score.
func LevelForScore(score float64) ComplexityLevel {
	switch {
	case score < 34:
		return LevelLow
	case score < 67:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// GradeForScore maps a 0-100 score to the expected reader background.
func GradeForScore(score float64) Grade {
	switch {
	case score < 35:
		return GradeSchool
	case score < 60:
		return GradeUndergraduate
	case score < 80:
		return GradeGraduate
	default:
		return GradeExpert
	}
}

// NormalizeTag is the comparison key for tags.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
