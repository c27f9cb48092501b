package ports

import (
	"context"
	"time"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
)

// DocumentRepository persists analyzed documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, userID int64, id string) (domain.Document, error)
	ListByUser(ctx context.Context, userID int64, tags []string) ([]domain.Document, error)
	Delete(ctx context.Context, userID int64, id string) error
	AvailableTags(ctx context.Context, userID int64) ([]string, error)
	CategoryLabels(ctx context.Context, userID int64) ([]string, error)
	TagCounts(ctx context.Context, userID int64, limit int) ([]domain.TagCount, error)
}

// UserRepository registers Telegram users.
type UserRepository interface {
	Upsert(ctx context.Context, user domain.User) error
}

// RequestRepository keeps the export history.
type RequestRepository interface {
	Record(ctx context.Context, userID int64, documentIDs []string) error
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// Analyzer produces normalized analyses for extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (analysis.Analysis, error)
}

// TextExtractor reads PDF bytes into text and volume metrics.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, sourceName string) (domain.ExtractedText, error)
}

// PageFetcher turns a URL into PDF bytes.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (domain.FetchedPDF, error)
}

// Button is an inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Reply is an outgoing text message with optional keyboards.
type Reply struct {
	Text           string
	Keyboard       [][]string
	RemoveKeyboard bool
	Inline         [][]Button
}

// Messenger sends and receives files through the chat platform.
type Messenger interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
	Edit(ctx context.Context, chatID int64, messageID int, reply Reply) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
	UploadDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) (string, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// IncomingDocument is a file attached to a user message.
type IncomingDocument struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// Callback is an inline button press.
type Callback struct {
	ID   string
	Data string
}

// Update is a platform-neutral incoming event.
type Update struct {
	ChatID    int64
	UserID    int64
	UserName  string
	MessageID int
	Text      string
	Document  *IncomingDocument
	Callback  *Callback
}

// StateStore keeps per-user dialog state between updates.
type StateStore interface {
	Get(ctx context.Context, userID int64) (domain.Dialog, bool, error)
	Set(ctx context.Context, userID int64, dialog domain.Dialog) error
	Clear(ctx context.Context, userID int64) error
}

// Scheduler controls when periodic jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
