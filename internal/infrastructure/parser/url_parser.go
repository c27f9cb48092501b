package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const (
	userAgent           = "Mozilla/5.0 (compatible; PDFLibraryBot/1.0)"
	defaultProbeTimeout = 10 * time.Second
	defaultMaxPDFSize   = 50 << 20
	maxHTMLBytes        = 5 << 20
	maxTitleRunes       = 100
	maxFileNameRunes    = 60
	defaultTitle        = "Документ"
)

var (
	titleSuffixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[/\\]\s*(Хабр|Habr|Medium|VC\.ru|The Bell)\s*$`),
		regexp.MustCompile(`(?i)\s+[-\x{2013}\x{2014}\x{2022}\x{00B7}]\s*(Хабр|Habr|Medium|VC\.ru|The Bell).*$`),
		regexp.MustCompile(`\s*\|\s*[\p{L}0-9\s]+$`),
	}
	spaces = regexp.MustCompile(`\s+`)
)

// Renderer prints a web page to PDF and reports the page title.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]byte, string, error)
}

// URLParserDeps wires collaborators into the parser.
type URLParserDeps struct {
	Client       *http.Client
	Renderer     Renderer
	ProbeTimeout time.Duration
	MaxPDFSize   int64
	Logger       *slog.Logger
}

// URLParser implements ports.PageFetcher: PDF links are downloaded, other
// pages are rendered by the headless browser.
type URLParser struct {
	client       *http.Client
	renderer     Renderer
	probeTimeout time.Duration
	maxPDFSize   int64
	logger       *slog.Logger
}

var _ ports.PageFetcher = (*URLParser)(nil)

// NewURLParser builds a parser; a nil client gets a default one.
func NewURLParser(deps URLParserDeps) *URLParser {
	client := deps.Client
	if client == nil {
		client = &http.Client{}
	}
	probe := deps.ProbeTimeout
	if probe <= 0 {
		probe = defaultProbeTimeout
	}
	maxSize := deps.MaxPDFSize
	if maxSize <= 0 {
		maxSize = defaultMaxPDFSize
	}
	return &URLParser{
		client:       client,
		renderer:     deps.Renderer,
		probeTimeout: probe,
		maxPDFSize:   maxSize,
		logger:       deps.Logger,
	}
}

// Fetch returns the PDF behind rawURL.
func (p *URLParser) Fetch(ctx context.Context, rawURL string) (domain.FetchedPDF, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return domain.FetchedPDF{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.FetchedPDF{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.FetchedPDF{}, fmt.Errorf("%s: %v: %w", u, err, domain.ErrURLNotAccessible)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.FetchedPDF{}, fmt.Errorf("%s returned %s: %w", u, resp.Status, domain.ErrURLNotAccessible)
	}

	if isPDFResponse(resp.Header.Get("Content-Type"), u.Path) {
		return p.download(u, resp.Body)
	}
	return p.render(ctx, u, resp.Body)
}

func (p *URLParser) download(u *url.URL, body io.Reader) (domain.FetchedPDF, error) {
	data, err := io.ReadAll(io.LimitReader(body, p.maxPDFSize+1))
	if err != nil {
		return domain.FetchedPDF{}, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(data)) > p.maxPDFSize {
		return domain.FetchedPDF{}, fmt.Errorf("%s exceeds %d bytes: %w", u, p.maxPDFSize, domain.ErrFileTooLarge)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return domain.FetchedPDF{}, fmt.Errorf("%s: %w", u, domain.ErrNotPDF)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	title := CleanTitle(strings.TrimSuffix(strings.TrimSuffix(name, ".pdf"), ".PDF"))

	p.debug("pdf downloaded", "url", u.String(), "bytes", len(data))
	return domain.FetchedPDF{SourceURL: u.String(), FileName: name, Title: title, Data: data}, nil
}

func (p *URLParser) render(ctx context.Context, u *url.URL, body io.Reader) (domain.FetchedPDF, error) {
	meta := PageMeta{}
	if doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, maxHTMLBytes)); err == nil {
		meta = ExtractPageMeta(doc)
	}

	if p.renderer == nil {
		return domain.FetchedPDF{}, fmt.Errorf("render %s: no renderer configured", u)
	}

	data, browserTitle, err := p.renderer.Render(ctx, u.String())
	if err != nil {
		return domain.FetchedPDF{}, fmt.Errorf("render %s: %w", u, err)
	}
	if int64(len(data)) > p.maxPDFSize {
		return domain.FetchedPDF{}, fmt.Errorf("rendered %s exceeds %d bytes: %w", u, p.maxPDFSize, domain.ErrFileTooLarge)
	}

	title := CleanTitle(firstNonEmpty(browserTitle, meta.Title, meta.SiteName))
	sourceURL := u.String()
	if meta.Canonical != "" {
		if c, err := ValidateURL(meta.Canonical); err == nil {
			sourceURL = c.String()
		}
	}

	p.debug("page rendered", "url", u.String(), "bytes", len(data), "title", title)
	return domain.FetchedPDF{
		SourceURL: sourceURL,
		FileName:  FileNameFromTitle(title),
		Title:     title,
		Data:      data,
		Rendered:  true,
	}, nil
}

// PageMeta is what the probe learns from a page's HTML head.
type PageMeta struct {
	Title     string
	SiteName  string
	Canonical string
}

// ExtractPageMeta reads og:title, <title>, og:site_name and the canonical link.
func ExtractPageMeta(doc *goquery.Document) PageMeta {
	var meta PageMeta
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		meta.Title = strings.TrimSpace(v)
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if v, ok := doc.Find(`meta[property="og:site_name"]`).First().Attr("content"); ok {
		meta.SiteName = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = strings.TrimSpace(v)
	}
	return meta
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%q: %v: %w", raw, err, domain.ErrInvalidURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q: %w", raw, domain.ErrInvalidURL)
	}
	return u, nil
}

// CleanTitle drops site-name suffixes and bounds the length.
func CleanTitle(title string) string {
	cleaned := title
	for _, re := range titleSuffixes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(spaces.ReplaceAllString(cleaned, " "))

	if r := []rune(cleaned); len(r) > maxTitleRunes {
		cut := string(r[:maxTitleRunes])
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		cleaned = cut + "..."
	}
	if cleaned == "" {
		return defaultTitle
	}
	return cleaned
}

// FileNameFromTitle makes a safe .pdf file name out of a page title.
func FileNameFromTitle(title string) string {
	var b strings.Builder
	n := 0
	lastUnderscore := false
	for _, r := range title {
		if n >= maxFileNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteRune('_')
			lastUnderscore = true
		default:
			continue
		}
		n++
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}

func isPDFResponse(contentType, urlPath string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(urlPath), ".pdf")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (p *URLParser) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}
