// Package pdftext reads PDF bytes into text and volume metrics.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const (
	defaultMaxTextBytes = 4 << 20
	maxFirstPageRunes   = analysis.MaxPromptText
	languageSampleRunes = 5000
	defaultLanguage     = "ru"
)

// Word count methods reported in domain.ExtractedText.WordMethod.
const (
	MethodFullScan  = analysis.MethodContentScan
	MethodFirstPage = "first_page_estimate"
	MethodByteSize  = "byte_size_estimate"
	MethodPageCount = "page_count_estimate"
)

var pdfMagic = []byte("%PDF")

// Extractor implements ports.TextExtractor.
type Extractor struct {
	maxTextBytes int64
	reading      ReadingModel
	logger       *slog.Logger
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor. A zero reading model means DefaultReadingModel.
func NewExtractor(reading ReadingModel, logger *slog.Logger) *Extractor {
	if reading == (ReadingModel{}) {
		reading = DefaultReadingModel()
	}
	return &Extractor{maxTextBytes: defaultMaxTextBytes, reading: reading, logger: logger}
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Extract reads the first page and, when possible, the whole text layer.
// Documents without a readable text layer still get page and word estimates.
func (e *Extractor) Extract(ctx context.Context, data []byte, sourceName string) (domain.ExtractedText, error) {
	if !IsPDF(data) {
		return domain.ExtractedText{}, fmt.Errorf("%s: missing %%PDF header: %w", sourceName, domain.ErrNotPDF)
	}
	if err := ctx.Err(); err != nil {
		return domain.ExtractedText{}, err
	}

	ext := domain.ExtractedText{SourceName: sourceName, ByteSize: int64(len(data))}

	var pages int
	doc, countErr := api.ReadAndValidate(bytes.NewReader(data), model.NewDefaultConfiguration())
	if countErr != nil {
		e.debug("pdfcpu read failed", "source", sourceName, "error", countErr)
	} else {
		pages = doc.PageCount
	}

	first, full, textPages, textErr := e.readText(data)
	if textErr != nil {
		e.debug("text layer unreadable", "source", sourceName, "error", textErr)
	}
	if pages <= 0 {
		pages = textPages
	}
	if pages <= 0 && textErr != nil {
		return domain.ExtractedText{}, fmt.Errorf("read pdf %s: %w", sourceName, errors.Join(countErr, textErr))
	}

	ext.PageCount = pages
	ext.FirstPage = truncateRunes(strings.TrimSpace(first), maxFirstPageRunes)
	ext.FullText = full

	firstWords, _ := analysis.CountWords(first)
	fullWords, fullChars := analysis.CountWords(full)
	if fullWords > 0 {
		ext.WordCount, ext.CharCount, ext.WordMethod = fullWords, fullChars, MethodFullScan
	} else {
		ext.WordCount, ext.WordMethod = EstimateTotalWords(firstWords, pages, ext.ByteSize)
	}

	sample := ext.FirstPage
	if sample == "" {
		sample = full
	}
	ext.Language = DetectLanguage(sample)

	if err := ctx.Err(); err != nil {
		return domain.ExtractedText{}, err
	}
	minutes, breakdown := e.reading.EstimateReading(ext.Language, pages, first, func() ([]PageScan, error) {
		return e.scanPages(data, doc, pages)
	})
	ext.ReadingMinutes, ext.Reading = minutes, &breakdown
	if breakdown.Pages.Total() > 0 && breakdown.Words > 0 {
		ext.WordCount, ext.WordMethod = breakdown.Words, MethodFullScan
	}
	e.debug("reading time estimated", "source", sourceName, "pages", pages,
		"minutes", minutes, "words", breakdown.Words, "slides_s", breakdown.SlidesSec,
		"images_s", breakdown.ImagesSec, "tables_s", breakdown.TablesSec, "code_s", breakdown.CodeSec)
	return ext, nil
}

// scanPages reads every page's text and counts the images it references.
// Image counts are zero when pdfcpu could not parse the document.
func (e *Extractor) scanPages(data []byte, doc *model.Context, pages int) (scans []PageScan, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page scan panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if n := reader.NumPage(); n > 0 && (pages <= 0 || n < pages) {
		pages = n
	}

	images := e.pageImages(doc)
	scans = make([]PageScan, 0, pages)
	for i := 1; i <= pages; i++ {
		scan := PageScan{Text: pageText(reader, i)}
		if i <= len(images) {
			scan.Images = images[i-1]
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// pageImages returns the number of image objects per page, indexed from page 1.
func (e *Extractor) pageImages(doc *model.Context) (counts []int) {
	if doc == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.debug("pdfcpu image scan panic", "panic", r)
			counts = nil
		}
	}()

	if err := api.OptimizeContext(doc); err != nil {
		e.debug("pdfcpu optimize failed", "error", err)
		return nil
	}
	counts = make([]int, doc.PageCount)
	for i := range counts {
		counts[i] = len(pdfcpu.ImageObjNrs(doc, i+1))
	}
	return counts
}

// pageText returns the plain text of page i, or "" when it cannot be read.
func pageText(reader *pdf.Reader, i int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := reader.Page(i)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// readText returns first-page text, bounded full text and the reader's page count.
func (e *Extractor) readText(data []byte) (first, full string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", 0, err
	}
	pages = reader.NumPage()

	if pages > 0 {
		page := reader.Page(1)
		if !page.V.IsNull() {
			first, err = page.GetPlainText(nil)
			if err != nil {
				return "", "", pages, fmt.Errorf("first page text: %w", err)
			}
		}
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return first, "", pages, fmt.Errorf("plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &io.LimitedReader{R: plain, N: e.maxTextBytes}); err != nil {
		return first, "", pages, fmt.Errorf("copy text: %w", err)
	}
	return first, strings.TrimSpace(buf.String()), pages, nil
}

// EstimateTotalWords guesses a document's word count when only the first page
// could be read.
func EstimateTotalWords(firstPageWords, pages int, byteSize int64) (int, string) {
	switch {
	case pages > 0 && firstPageWords >= 30:
		return clampInt(firstPageWords, 60, 900) * pages, MethodFirstPage
	case pages > 0 && byteSize > 0:
		perPage := int(float64(byteSize) / float64(pages) / 6)
		return clampInt(perPage, 60, 900) * pages, MethodByteSize
	case pages > 0:
		return 300 * pages, MethodPageCount
	default:
		return 300, MethodPageCount
	}
}

// DetectLanguage returns an ISO 639-1 code, defaulting to Russian for empty text.
func DetectLanguage(text string) string {
	sample := truncateRunes(strings.TrimSpace(text), languageSampleRunes)
	if sample == "" {
		return defaultLanguage
	}
	code := whatlanggo.DetectLang(sample).Iso6391()
	if code == "" {
		return defaultLanguage
	}
	return code
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(msg, args...)
}
