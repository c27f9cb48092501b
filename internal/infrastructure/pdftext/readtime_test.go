package pdftext

import (
	"errors"
	"math"
	"strings"
	"testing"

	"PDFLibraryBot/internal/domain"
)

func repeatWords(n int) string {
	return strings.TrimSpace(strings.Repeat("слово ", n))
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestClassifyPage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		words, images int
		want          string
	}{
		{250, 0, PageText},
		{200, 4, PageText},
		{120, 1, PageMixed},
		{80, 0, PageMixed},
		{50, 2, PageSlide},
		{0, 1, PageSlide},
		{79, 0, PageEmpty},
		{0, 0, PageEmpty},
	}
	for _, tc := range cases {
		if got := ClassifyPage(tc.words, tc.images); got != tc.want {
			t.Errorf("ClassifyPage(%d, %d) = %s, want %s", tc.words, tc.images, got, tc.want)
		}
	}
}

func TestAccurateSlidePages(t *testing.T) {
	t.Parallel()

	minutes, b := DefaultReadingModel().Accurate("ru", []PageScan{
		{Text: repeatWords(50), Images: 2},
		{Text: repeatWords(5), Images: 1},
		{Text: repeatWords(79), Images: 1},
		{Text: repeatWords(300), Images: 10},
	})

	if b.Pages != (domain.PageClasses{Text: 1, Slide: 3}) {
		t.Fatalf("unexpected page classes %+v", b.Pages)
	}
	// 6+50/10=11, floor of 8, 6+79/10=13.9.
	if b.SlidesSec != 11+8+13 {
		t.Fatalf("slides = %ds, want 32s", b.SlidesSec)
	}
	if b.Words != 300 {
		t.Fatalf("slide words must not be read as text, got %d", b.Words)
	}
	if b.ImagesSec != 30 {
		t.Fatalf("slide images must not be charged, got %ds", b.ImagesSec)
	}
	// 300/153 -> 1.96, (32+30)/60 -> 1.03
	if !closeTo(minutes, 2.99) {
		t.Fatalf("minutes = %v, want 2.99", minutes)
	}
}

func TestAccurateImageHeavyPage(t *testing.T) {
	t.Parallel()

	model := ReadingModel{Mode: ModeAccurate, PerImageSeconds: 3, MaxPages: 200}
	minutes, b := model.Accurate("ru", []PageScan{{Text: repeatWords(250), Images: 10}})

	if b.Pages.Text != 1 || b.Words != 250 || b.ImagesSec != 30 {
		t.Fatalf("unexpected breakdown %+v", b)
	}
	if b.EffectiveWPM != 153 {
		t.Fatalf("effective wpm = %d, want 153", b.EffectiveWPM)
	}
	// 250/153 -> 1.63, 30s -> 0.5
	if !closeTo(minutes, 2.13) {
		t.Fatalf("minutes = %v, want 2.13", minutes)
	}

	model.PerImageSeconds = 10
	if _, b := model.Accurate("ru", []PageScan{{Text: repeatWords(250), Images: 10}}); b.ImagesSec != 100 {
		t.Fatalf("images = %ds, want 100s", b.ImagesSec)
	}
}

func TestAccurateTablesAndCode(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"Results in Table 2 and таблица 3, see табл. 4.",
		"for (i = 0; i < n; i++) {",
		"}",
		"plain stable tables line",
	}, "\n")

	minutes, b := DefaultReadingModel().Accurate("en", []PageScan{{Text: text}})

	if b.TablesSec != 3*12 {
		t.Fatalf("tables = %ds, want 36s", b.TablesSec)
	}
	if b.CodeSec != 1 {
		t.Fatalf("code = %ds, want 1s", b.CodeSec)
	}
	if b.Pages.Empty != 1 || b.Words != 0 {
		t.Fatalf("short page must count as empty, got %+v", b)
	}
	if !closeTo(minutes, 0.62) {
		t.Fatalf("minutes = %v, want 0.62", minutes)
	}
}

func TestEstimateReadingLargeDocumentUsesFirstPage(t *testing.T) {
	t.Parallel()

	scan := func() ([]PageScan, error) {
		t.Fatalf("pages above the limit must not be scanned")
		return nil, nil
	}

	minutes, b := DefaultReadingModel().EstimateReading("ru", 250, repeatWords(100), scan)

	if b.Words != 100*250 {
		t.Fatalf("words = %d, want 25000", b.Words)
	}
	if b.Pages.Total() != 0 || b.NonTextSeconds() != 0 {
		t.Fatalf("fast path must not itemize pages, got %+v", b)
	}
	// 25000/153
	if !closeTo(minutes, 163.4) {
		t.Fatalf("minutes = %v, want 163.4", minutes)
	}
}

func TestEstimateReadingChoosesPath(t *testing.T) {
	t.Parallel()

	scanned := 0
	scan := func() ([]PageScan, error) {
		scanned++
		return []PageScan{{Text: repeatWords(250)}}, nil
	}

	model := DefaultReadingModel()
	if _, b := model.EstimateReading("ru", 200, repeatWords(10), scan); scanned != 1 || b.Pages.Text != 1 {
		t.Fatalf("documents at the limit must be scanned, scanned=%d %+v", scanned, b)
	}

	model.Mode = "FAST"
	if _, b := model.EstimateReading("ru", 10, repeatWords(10), scan); scanned != 1 || b.Words != 3000 {
		t.Fatalf("fast mode must extrapolate, scanned=%d %+v", scanned, b)
	}

	model.Mode = ModeAccurate
	failing := func() ([]PageScan, error) { return nil, errors.New("broken xref") }
	if _, b := model.EstimateReading("ru", 10, repeatWords(40), failing); b.Words != 60*10 {
		t.Fatalf("failed scan must fall back to the first page, got %+v", b)
	}
}
