package pdftext

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
)

// Reading time modes.
const (
	ModeAccurate = "accurate"
	ModeFast     = "fast"
)

// Page layouts assigned by ClassifyPage.
const (
	PageText  = "text"
	PageMixed = "mixed"
	PageSlide = "slide"
	PageEmpty = "empty"
)

const (
	textPageWords    = 200
	mixedPageWords   = 80
	slideBaseSeconds = 6
	minSlideSeconds  = 8
	maxSlideSeconds  = 25
	tableSeconds     = 12
	codeLineSeconds  = 0.6
)

var (
	tableMarkerRE = regexp.MustCompile(`(?i)table|таблица|табл\.`)
	codeLineRE    = regexp.MustCompile(`(?i)[;{}()\[\]]|^\s*(def|class|#include|for\s*\(|while\s*\()`)
)

// ReadingModel configures the host-side reading time estimate.
type ReadingModel struct {
	Mode            string
	PerImageSeconds int
	// MaxPages bounds the accurate scan; longer documents use the fast path.
	MaxPages int
}

// DefaultReadingModel scans up to 200 pages and charges 3s per image.
func DefaultReadingModel() ReadingModel {
	return ReadingModel{Mode: ModeAccurate, PerImageSeconds: 3, MaxPages: 200}
}

// PageScan is what one page contributes to the estimate.
type PageScan struct {
	Text   string
	Images int
}

// ClassifyPage buckets a page by its word and image counts.
func ClassifyPage(words, images int) string {
	switch {
	case words >= textPageWords:
		return PageText
	case words >= mixedPageWords:
		return PageMixed
	case images > 0:
		return PageSlide
	default:
		return PageEmpty
	}
}

// EstimateReading picks the accurate per-page model or the fast first-page
// extrapolation. scan is only called on the accurate path; when it fails the
// fast path is used instead.
func (m ReadingModel) EstimateReading(lang string, pageCount int, firstPage string, scan func() ([]PageScan, error)) (float64, domain.ReadingBreakdown) {
	accurate := !strings.EqualFold(m.Mode, ModeFast) && scan != nil
	if m.MaxPages > 0 && pageCount > m.MaxPages {
		accurate = false
	}
	if accurate {
		if pages, err := scan(); err == nil && len(pages) > 0 {
			return m.Accurate(lang, pages)
		}
	}
	return Fast(lang, pageCount, firstPage)
}

// Accurate charges running text at the host reading speed and adds fixed
// costs for slides, images, tables and code lines.
func (m ReadingModel) Accurate(lang string, pages []PageScan) (float64, domain.ReadingBreakdown) {
	perImage := m.PerImageSeconds
	if perImage < 0 {
		perImage = 0
	}

	var b domain.ReadingBreakdown
	for _, page := range pages {
		words := countWordRuns(page.Text)
		switch ClassifyPage(words, page.Images) {
		case PageText:
			b.Pages.Text++
			b.Words += words
			b.ImagesSec += page.Images * perImage
		case PageMixed:
			b.Pages.Mixed++
			b.Words += words
			b.ImagesSec += page.Images * perImage
		case PageSlide:
			b.Pages.Slide++
			b.SlidesSec += slideSeconds(words)
		default:
			b.Pages.Empty++
		}

		b.TablesSec += countTableMarkers(page.Text) * tableSeconds
		b.CodeSec += int(float64(countCodeLines(page.Text)) * codeLineSeconds)
	}

	b.EffectiveWPM = hostWPM(lang)
	return analysis.ScannedReadingMinutes(b, b.EffectiveWPM), b
}

// Fast extrapolates the first page over the whole document without
// non-text costs.
func Fast(lang string, pageCount int, firstPage string) (float64, domain.ReadingBreakdown) {
	first := countWordRuns(firstPage)
	var words int
	if pageCount > 0 {
		words, _ = EstimateTotalWords(first, pageCount, 0)
	} else {
		words = max(first, 300)
	}

	b := domain.ReadingBreakdown{Words: words, EffectiveWPM: hostWPM(lang)}
	return analysis.ScannedReadingMinutes(b, b.EffectiveWPM), b
}

// hostWPM reads at medium complexity; the final level is applied later.
func hostWPM(lang string) int {
	return analysis.EffectiveWPM(lang, analysis.LevelCoefficient("", domain.LevelMedium))
}

func slideSeconds(words int) int {
	s := slideBaseSeconds + float64(words)/10
	return int(math.Max(minSlideSeconds, math.Min(maxSlideSeconds, s)))
}

func countWordRuns(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

// countTableMarkers counts standalone "table"/"таблица" words and "табл." abbreviations.
func countTableMarkers(text string) int {
	n := 0
	for _, loc := range tableMarkerRE.FindAllStringIndex(text, -1) {
		if before, _ := utf8.DecodeLastRuneInString(text[:loc[0]]); isWordRune(before) {
			continue
		}
		if !strings.HasSuffix(text[loc[0]:loc[1]], ".") {
			if after, _ := utf8.DecodeRuneInString(text[loc[1]:]); isWordRune(after) {
				continue
			}
		}
		n++
	}
	return n
}

func countCodeLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if codeLineRE.MatchString(line) {
			n++
		}
	}
	return n
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
