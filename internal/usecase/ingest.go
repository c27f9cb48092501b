package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

// IngestorDeps wires driven adapters into the ingestion use case.
type IngestorDeps struct {
	Extractor ports.TextExtractor
	Analyzer  ports.Analyzer
	Documents ports.DocumentRepository
	Users     ports.UserRepository
	Fetcher   ports.PageFetcher
	Messenger ports.Messenger
	Logger    *slog.Logger
	Now       func() time.Time
}

// Ingestor turns uploaded files and URLs into analyzed library documents.
type Ingestor struct {
	extractor ports.TextExtractor
	analyzer  ports.Analyzer
	documents ports.DocumentRepository
	users     ports.UserRepository
	fetcher   ports.PageFetcher
	messenger ports.Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestor constructs the ingestion use case.
func NewIngestor(deps IngestorDeps) *Ingestor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		documents: deps.Documents,
		users:     deps.Users,
		fetcher:   deps.Fetcher,
		messenger: deps.Messenger,
		logger:    deps.Logger,
		now:       now,
	}
}

// FileInput is a PDF that already has a Telegram file id.
type FileInput struct {
	UserID    int64
	UserName  string
	FileID    string
	FileName  string
	Title     string
	SourceURL string
	Data      []byte
}

// URLInput is a link sent by a user.
type URLInput struct {
	UserID   int64
	UserName string
	ChatID   int64
	URL      string
}

// Ingested is a saved document together with its attempt log.
type Ingested struct {
	Document domain.Document
	Attempts []analysis.ProviderOutcome
}

// IngestFile extracts, analyzes and saves a PDF. The analysis is done
// before anything is written, so a failed analysis leaves no document.
func (i *Ingestor) IngestFile(ctx context.Context, in FileInput) (Ingested, error) {
	ext, err := i.extractor.Extract(ctx, in.Data, in.FileName)
	if err != nil {
		return Ingested{}, fmt.Errorf("extract %s: %w", in.FileName, err)
	}

	categories, err := i.documents.CategoryLabels(ctx, in.UserID)
	if err != nil {
		i.warn("load existing categories", "user_id", in.UserID, "error", err)
		categories = nil
	}

	text := ext.FirstPage
	if strings.TrimSpace(text) == "" {
		text = ext.FullText
	}

	res, err := i.analyzer.Analyze(ctx, analysis.Input{
		Text: text,
		Meta: analysis.Meta{
			SourceName:     in.FileName,
			PageCount:      ext.PageCount,
			ByteSize:       ext.ByteSize,
			WordCount:      ext.WordCount,
			LanguageHint:   ext.Language,
			ReadingMinutes: ext.ReadingMinutes,
			Reading:        ext.Reading,
		},
		ExistingCategories: categories,
	})
	if err != nil {
		return Ingested{}, fmt.Errorf("analyze %s: %w", in.FileName, err)
	}

	if i.users != nil {
		if err := i.users.Upsert(ctx, domain.User{ID: in.UserID, Name: in.UserName}); err != nil {
			return Ingested{}, fmt.Errorf("register user: %w", err)
		}
	}

	doc := domain.Document{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		TelegramFileID: in.FileID,
		SourceURL:      in.SourceURL,
		Title:          documentTitle(in.Title, in.FileName),
		ReadingMinutes: res.Result.Volume.ReadingMinutes,
		Tags:           res.Result.Tags(),
		Analysis:       res.Result,
		Provider:       res.Provider,
		CreatedAt:      i.now().UTC(),
	}
	if err := i.documents.Create(ctx, doc); err != nil {
		return Ingested{}, fmt.Errorf("save document: %w", err)
	}

	i.info("document ingested",
		"user_id", doc.UserID,
		"document_id", doc.ID,
		"provider", doc.Provider,
		"reading_min", doc.ReadingMinutes,
		"tags", doc.Tags,
	)
	return Ingested{Document: doc, Attempts: res.Attempts}, nil
}

// IngestURL fetches or renders the page, uploads the PDF to the chat to
// obtain a file id and ingests it.
func (i *Ingestor) IngestURL(ctx context.Context, in URLInput) (Ingested, error) {
	if i.fetcher == nil || i.messenger == nil {
		return Ingested{}, fmt.Errorf("url ingestion not configured")
	}

	fetched, err := i.fetcher.Fetch(ctx, in.URL)
	if err != nil {
		return Ingested{}, fmt.Errorf("fetch %s: %w", in.URL, err)
	}

	fileID, err := i.messenger.UploadDocument(ctx, in.ChatID, fetched.FileName, fetched.Data, fetched.Title)
	if err != nil {
		return Ingested{}, fmt.Errorf("upload %s: %w", fetched.FileName, err)
	}

	return i.IngestFile(ctx, FileInput{
		UserID:    in.UserID,
		UserName:  in.UserName,
		FileID:    fileID,
		FileName:  fetched.FileName,
		Title:     fetched.Title,
		SourceURL: fetched.SourceURL,
		Data:      fetched.Data,
	})
}

func documentTitle(title, fileName string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	base := strings.TrimSpace(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	base = strings.NewReplacer("_", " ").Replace(base)
	if base == "" {
		return "Документ"
	}
	return base
}

func (i *Ingestor) info(msg string, args ...any) {
	if i.logger == nil {
		return
	}
	i.logger.Info(msg, args...)
}

func (i *Ingestor) warn(msg string, args ...any) {
	if i.logger == nil {
		return
	}
	i.logger.Warn(msg, args...)
}
