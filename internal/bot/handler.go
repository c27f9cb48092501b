// Package bot turns chat updates into library operations: commands,
// reply-keyboard buttons, the export dialog, file uploads and links.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-units"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
	"PDFLibraryBot/internal/selector"
	"PDFLibraryBot/internal/usecase"
)

// Ingestion saves new documents.
type Ingestion interface {
	IngestFile(ctx context.Context, in usecase.FileInput) (usecase.Ingested, error)
	IngestURL(ctx context.Context, in usecase.URLInput) (usecase.Ingested, error)
}

// Export selects documents for a reading budget.
type Export interface {
	Export(ctx context.Context, userID int64, req selector.Request) (selector.Result, error)
}

// LibraryService serves the library views.
type LibraryService interface {
	Register(ctx context.Context, user domain.User) error
	Page(ctx context.Context, userID int64, page, size int) (usecase.LibraryPage, error)
	AvailableTags(ctx context.Context, userID int64) ([]string, error)
	Stats(ctx context.Context, userID int64) (domain.LibraryStats, error)
	Delete(ctx context.Context, userID int64, prefix string) (domain.Document, error)
}

// HandlerDeps wires use cases and adapters into the handler.
type HandlerDeps struct {
	Ingestion   Ingestion
	Export      Export
	Library     LibraryService
	Messenger   ports.Messenger
	State       ports.StateStore
	MaxFileSize int64
	PageSize    int
	Logger      *slog.Logger
}

// Handler reacts to a single update at a time; it keeps no per-user state
// of its own outside the state store.
type Handler struct {
	ingestion   Ingestion
	export      Export
	library     LibraryService
	messenger   ports.Messenger
	state       ports.StateStore
	maxFileSize int64
	pageSize    int
	logger      *slog.Logger
}

// NewHandler constructs the update handler.
func NewHandler(deps HandlerDeps) *Handler {
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = usecase.DefaultPageSize
	}
	return &Handler{
		ingestion:   deps.Ingestion,
		export:      deps.Export,
		library:     deps.Library,
		messenger:   deps.Messenger,
		state:       deps.State,
		maxFileSize: deps.MaxFileSize,
		pageSize:    pageSize,
		logger:      deps.Logger,
	}
}

// Handle dispatches one update.
func (h *Handler) Handle(ctx context.Context, upd ports.Update) {
	switch {
	case upd.Callback != nil:
		h.handleCallback(ctx, upd)
	case upd.Document != nil:
		h.handleDocument(ctx, upd)
	default:
		h.handleText(ctx, upd)
	}
}

func (h *Handler) handleText(ctx context.Context, upd ports.Update) {
	text := strings.TrimSpace(upd.Text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, upd, text)
		return
	}

	switch text {
	case btnLibrary:
		h.showLibrary(ctx, upd, 1)
		return
	case btnExport:
		h.startExport(ctx, upd)
		return
	case btnStats:
		h.showStats(ctx, upd)
		return
	case btnHelp:
		h.reply(ctx, upd.ChatID, ports.Reply{Text: helpText, Keyboard: mainKeyboard()})
		return
	}

	if urls := ExtractURLs(text); len(urls) > 0 {
		h.handleURLs(ctx, upd, urls)
		return
	}

	if dialog, ok := h.dialog(ctx, upd.UserID); ok {
		h.continueDialog(ctx, upd, dialog, text)
		return
	}

	if IsExportRequest(text) {
		h.handleFreeExport(ctx, upd, text)
		return
	}

	h.reply(ctx, upd.ChatID, ports.Reply{
		Text:     "Отправьте PDF-файл или ссылку, либо напишите, сколько у вас времени на чтение.",
		Keyboard: mainKeyboard(),
	})
}

func (h *Handler) handleCommand(ctx context.Context, upd ports.Update, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		h.clearDialog(ctx, upd.UserID)
		name := upd.UserName
		if name == "" {
			name = "друг"
		}
		if err := h.library.Register(ctx, domain.User{ID: upd.UserID, Name: upd.UserName}); err != nil {
			h.warn("register user", "user_id", upd.UserID, "error", err)
		}
		h.reply(ctx, upd.ChatID, ports.Reply{Text: fmt.Sprintf(greetingFormat, name), Keyboard: mainKeyboard()})
	case "/help":
		h.reply(ctx, upd.ChatID, ports.Reply{Text: helpText, Keyboard: mainKeyboard()})
	case "/library":
		page := 1
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				page = n
			}
		}
		h.showLibrary(ctx, upd, page)
	case "/export":
		if len(args) > 0 {
			h.handleFreeExport(ctx, upd, strings.Join(args, " "))
			return
		}
		h.startExport(ctx, upd)
	case "/tags":
		tags, err := h.library.AvailableTags(ctx, upd.UserID)
		if err != nil {
			h.fail(ctx, upd, "load tags", err)
			return
		}
		h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatTags(tags), Keyboard: mainKeyboard()})
	case "/stats":
		h.showStats(ctx, upd)
	case "/delete":
		h.deleteDocument(ctx, upd, args)
	case "/cancel":
		h.clearDialog(ctx, upd.UserID)
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Отменено.", Keyboard: mainKeyboard()})
	default:
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Неизвестная команда. /help покажет список команд.", Keyboard: mainKeyboard()})
	}
}

func (h *Handler) handleDocument(ctx context.Context, upd ports.Update) {
	doc := upd.Document
	if !isPDFUpload(doc) {
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Пожалуйста, отправьте PDF-файл."})
		return
	}
	if h.maxFileSize > 0 && doc.Size > h.maxFileSize {
		h.reply(ctx, upd.ChatID, ports.Reply{Text: fmt.Sprintf(
			"Файл слишком большой (%s). Максимальный размер: %s.",
			units.HumanSize(float64(doc.Size)), units.HumanSize(float64(h.maxFileSize)),
		)})
		return
	}

	h.reply(ctx, upd.ChatID, ports.Reply{Text: fmt.Sprintf("⏳ Анализирую «%s»...", doc.FileName)})

	data, err := h.messenger.Download(ctx, doc.FileID)
	if err != nil {
		h.fail(ctx, upd, "download document", err)
		return
	}

	res, err := h.ingestion.IngestFile(ctx, usecase.FileInput{
		UserID:   upd.UserID,
		UserName: upd.UserName,
		FileID:   doc.FileID,
		FileName: doc.FileName,
		Data:     data,
	})
	if err != nil {
		h.fail(ctx, upd, "ingest document", err)
		return
	}
	h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatAnalysisCard(res.Document), Keyboard: mainKeyboard()})
}

func (h *Handler) handleURLs(ctx context.Context, upd ports.Update, urls []string) {
	h.reply(ctx, upd.ChatID, ports.Reply{Text: fmt.Sprintf("⏳ Обрабатываю %d %s...", len(urls), pluralRu(len(urls), "ссылку", "ссылки", "ссылок"))})

	var (
		saved    []domain.Document
		failures []string
	)
	for _, u := range urls {
		res, err := h.ingestion.IngestURL(ctx, usecase.URLInput{
			UserID:   upd.UserID,
			UserName: upd.UserName,
			ChatID:   upd.ChatID,
			URL:      u,
		})
		if err != nil {
			h.warn("ingest url", "user_id", upd.UserID, "url", u, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %s", u, userMessage(err)))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		saved = append(saved, res.Document)
	}

	switch {
	case len(saved) == 1 && len(urls) == 1:
		h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatAnalysisCard(saved[0]), Keyboard: mainKeyboard()})
		return
	case len(saved) > 0:
		items := make([]IngestSummaryItem, 0, len(saved))
		for _, d := range saved {
			topic := domain.DefaultCategory
			if len(d.Tags) > 0 {
				topic = d.Tags[0]
			}
			items = append(items, IngestSummaryItem{
				URL:        d.SourceURL,
				Minutes:    d.ReadingMinutes,
				Topic:      topic,
				Complexity: d.Analysis.Complexity.Level,
			})
		}
		h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatMultipleSummary(items), Keyboard: mainKeyboard()})
	}

	if len(failures) > 0 {
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "❌ Не удалось обработать:\n" + strings.Join(failures, "\n"), Keyboard: mainKeyboard()})
	}
}

func (h *Handler) startExport(ctx context.Context, upd ports.Update) {
	if err := h.state.Set(ctx, upd.UserID, domain.Dialog{Step: domain.StepAwaitMinutes}); err != nil {
		h.fail(ctx, upd, "save dialog", err)
		return
	}
	h.reply(ctx, upd.ChatID, ports.Reply{
		Text:     "⏱ Сколько у вас времени на чтение? Выберите вариант или напишите своё, например «45 минут».",
		Keyboard: timeKeyboard(),
	})
}

func (h *Handler) continueDialog(ctx context.Context, upd ports.Update, dialog domain.Dialog, text string) {
	switch dialog.Step {
	case domain.StepAwaitMinutes:
		minutes, ok := ParseMinutes(text)
		if !ok {
			minutes, ok = ParseBareMinutes(text)
		}
		if !ok {
			h.reply(ctx, upd.ChatID, ports.Reply{Text: "Не понял время. Напишите, например, «30 минут» или «1 час».", Keyboard: timeKeyboard()})
			return
		}

		tags, err := h.library.AvailableTags(ctx, upd.UserID)
		if err != nil {
			h.fail(ctx, upd, "load tags", err)
			return
		}
		if len(tags) == 0 {
			h.clearDialog(ctx, upd.UserID)
			h.runExport(ctx, upd, minutes, nil)
			return
		}

		if err := h.state.Set(ctx, upd.UserID, domain.Dialog{Step: domain.StepAwaitTag, Minutes: minutes}); err != nil {
			h.fail(ctx, upd, "save dialog", err)
			return
		}
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "🏷 Выберите тему:", Keyboard: tagsKeyboard(tags)})

	case domain.StepAwaitTag:
		h.clearDialog(ctx, upd.UserID)
		if text == btnAllTopics {
			h.runExport(ctx, upd, dialog.Minutes, nil)
			return
		}
		available, err := h.library.AvailableTags(ctx, upd.UserID)
		if err != nil {
			h.fail(ctx, upd, "load tags", err)
			return
		}
		var tags []string
		if tag, ok := MatchTag(stripTagButton(text), available); ok {
			tags = []string{tag}
		}
		h.runExport(ctx, upd, dialog.Minutes, tags)

	default:
		h.clearDialog(ctx, upd.UserID)
	}
}

func (h *Handler) handleFreeExport(ctx context.Context, upd ports.Update, text string) {
	minutes, ok := ParseMinutes(text)
	if !ok {
		minutes, ok = ParseBareMinutes(text)
	}
	if !ok {
		h.startExport(ctx, upd)
		return
	}

	available, err := h.library.AvailableTags(ctx, upd.UserID)
	if err != nil {
		h.fail(ctx, upd, "load tags", err)
		return
	}
	h.runExport(ctx, upd, minutes, ParseTags(text, available))
}

func (h *Handler) runExport(ctx context.Context, upd ports.Update, minutes float64, tags []string) {
	res, err := h.export.Export(ctx, upd.UserID, selector.Request{TargetMinutes: minutes, Tags: tags})
	if err != nil {
		h.fail(ctx, upd, "export", err)
		return
	}
	if len(res.Documents) == 0 {
		h.reply(ctx, upd.ChatID, ports.Reply{
			Text:     "📭 В библиотеке пока нет материалов. Отправьте PDF или ссылку.",
			Keyboard: mainKeyboard(),
		})
		return
	}

	if res.Fallback {
		h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatFallbackNotice(minutes)})
	}

	for _, doc := range res.Documents {
		if err := h.messenger.SendDocument(ctx, upd.ChatID, doc.TelegramFileID, FormatDocumentCaption(doc)); err != nil {
			h.warn("send exported document", "user_id", upd.UserID, "document_id", doc.ID, "error", err)
		}
	}
	h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatExportSummary(res), Keyboard: mainKeyboard()})
}

func (h *Handler) showLibrary(ctx context.Context, upd ports.Update, page int) {
	lp, err := h.library.Page(ctx, upd.UserID, page, h.pageSize)
	if err != nil {
		h.fail(ctx, upd, "load library", err)
		return
	}
	h.reply(ctx, upd.ChatID, ports.Reply{
		Text:   FormatLibraryPage(lp, h.pageSize),
		Inline: paginationButtons(lp.Page, lp.Pages),
	})
}

func (h *Handler) showStats(ctx context.Context, upd ports.Update) {
	stats, err := h.library.Stats(ctx, upd.UserID)
	if err != nil {
		h.fail(ctx, upd, "load stats", err)
		return
	}
	h.reply(ctx, upd.ChatID, ports.Reply{Text: FormatStats(stats), Keyboard: mainKeyboard()})
}

func (h *Handler) deleteDocument(ctx context.Context, upd ports.Update, args []string) {
	if len(args) == 0 {
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Использование: /delete <первые символы id>. Id показан в /library."})
		return
	}
	doc, err := h.library.Delete(ctx, upd.UserID, args[0])
	switch {
	case err == nil:
		h.reply(ctx, upd.ChatID, ports.Reply{Text: fmt.Sprintf("🗑 Удалено: %s", truncateTitle(doc.Title)), Keyboard: mainKeyboard()})
	case errors.Is(err, usecase.ErrAmbiguousID):
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Под этот id подходит несколько материалов. Укажите больше символов."})
	case errors.Is(err, domain.ErrInvalidInput):
		h.reply(ctx, upd.ChatID, ports.Reply{Text: "Укажите хотя бы 4 символа id."})
	default:
		h.fail(ctx, upd, "delete document", err)
	}
}

func (h *Handler) handleCallback(ctx context.Context, upd ports.Update) {
	cb := upd.Callback
	defer func() {
		if err := h.messenger.AnswerCallback(ctx, cb.ID, ""); err != nil {
			h.warn("answer callback", "error", err)
		}
	}()

	kind, arg, _ := strings.Cut(cb.Data, ":")
	if kind != callbackLibrary {
		return
	}
	page, err := strconv.Atoi(arg)
	if err != nil {
		return
	}

	lp, err := h.library.Page(ctx, upd.UserID, page, h.pageSize)
	if err != nil {
		h.warn("load library page", "user_id", upd.UserID, "error", err)
		return
	}
	if err := h.messenger.Edit(ctx, upd.ChatID, upd.MessageID, ports.Reply{
		Text:   FormatLibraryPage(lp, h.pageSize),
		Inline: paginationButtons(lp.Page, lp.Pages),
	}); err != nil {
		h.warn("edit library page", "user_id", upd.UserID, "error", err)
	}
}

func (h *Handler) dialog(ctx context.Context, userID int64) (domain.Dialog, bool) {
	d, ok, err := h.state.Get(ctx, userID)
	if err != nil {
		h.warn("load dialog", "user_id", userID, "error", err)
		return domain.Dialog{}, false
	}
	return d, ok
}

func (h *Handler) clearDialog(ctx context.Context, userID int64) {
	if err := h.state.Clear(ctx, userID); err != nil {
		h.warn("clear dialog", "user_id", userID, "error", err)
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, r ports.Reply) {
	if err := h.messenger.Send(ctx, chatID, r); err != nil {
		h.warn("send reply", "chat_id", chatID, "error", err)
	}
}

// fail logs err and tells the user what went wrong in plain words.
func (h *Handler) fail(ctx context.Context, upd ports.Update, op string, err error) {
	h.warn(op, "user_id", upd.UserID, "error", err)
	h.reply(ctx, upd.ChatID, ports.Reply{Text: "❌ " + userMessage(err), Keyboard: mainKeyboard()})
}

func userMessage(err error) string {
	var agg *analysis.AggregateError
	switch {
	case errors.Is(err, domain.ErrNotPDF):
		return "Это не похоже на PDF-файл."
	case errors.Is(err, domain.ErrFileTooLarge):
		return "Файл слишком большой."
	case errors.Is(err, domain.ErrInvalidURL):
		return "Некорректная ссылка."
	case errors.Is(err, domain.ErrURLNotAccessible):
		return "Страница недоступна."
	case errors.As(err, &agg), errors.Is(err, analysis.ErrNoProviders):
		return "Не удалось проанализировать документ: сервисы анализа недоступны. Попробуйте позже."
	case errors.Is(err, domain.ErrNotFound):
		return "Материал не найден."
	case errors.Is(err, domain.ErrInvalidInput):
		return "Некорректный запрос."
	case errors.Is(err, domain.ErrPersistence):
		return "Ошибка хранилища. Попробуйте позже."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Операция прервана по таймауту."
	default:
		return "Что-то пошло не так. Попробуйте ещё раз."
	}
}

func isPDFUpload(doc *ports.IncomingDocument) bool {
	if strings.HasPrefix(strings.ToLower(doc.MimeType), "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.FileName), ".pdf")
}

func (h *Handler) warn(msg string, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Warn(msg, args...)
}
