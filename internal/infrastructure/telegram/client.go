package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
	defaultWorkers  = 4
	defaultPoll     = 30
)

// ClientDeps configures the Bot API client.
type ClientDeps struct {
	Token       string
	APIEndpoint string
	// FileEndpoint is a format with the token and the file path.
	FileEndpoint string
	HTTPClient   *http.Client
	PollTimeout  int
	Workers      int
	MaxDownload  int64
	Logger       *slog.Logger
}

// Client implements ports.Messenger on top of the Telegram Bot API and
// feeds incoming updates to a handler.
type Client struct {
	bot          *tgbotapi.BotAPI
	http         *http.Client
	fileEndpoint string
	pollTimeout  int
	workers      int
	maxDownload  int64
	logger       *slog.Logger
}

var _ ports.Messenger = (*Client)(nil)

// NewClient authenticates against the Bot API with getMe.
func NewClient(deps ClientDeps) (*Client, error) {
	if strings.TrimSpace(deps.Token) == "" {
		return nil, errors.New("telegram client misconfigured: empty token")
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	endpoint := deps.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	fileEndpoint := deps.FileEndpoint
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(deps.Token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	c := &Client{
		bot:          bot,
		http:         httpClient,
		fileEndpoint: fileEndpoint,
		pollTimeout:  deps.PollTimeout,
		workers:      deps.Workers,
		maxDownload:  deps.MaxDownload,
		logger:       deps.Logger,
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = defaultPoll
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	if c.logger != nil {
		_ = tgbotapi.SetLogger(slogAdapter{logger: c.logger})
	}
	return c, nil
}

// UserName returns the bot's own username.
func (c *Client) UserName() string {
	return c.bot.Self.UserName
}

// Run long-polls for updates and dispatches them to handle on a bounded
// worker pool until ctx is cancelled.
func (c *Client) Run(ctx context.Context, handle func(context.Context, ports.Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(c.workers)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			_ = g.Wait()
			return nil
		case upd, ok := <-updates:
			if !ok {
				_ = g.Wait()
				return nil
			}
			converted, ok := ConvertUpdate(upd)
			if !ok {
				continue
			}
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil && c.logger != nil {
						c.logger.Error("update handler panicked", "panic", r, "user_id", converted.UserID)
					}
				}()
				handle(ctx, converted)
				return nil
			})
		}
	}
}

// Send delivers a text message, splitting it when it exceeds the API limit.
// Keyboards are attached to the last chunk.
func (c *Client) Send(ctx context.Context, chatID int64, reply ports.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunks := splitText(reply.Text, maxMessageRunes)
	for i, chunk := range chunks {
		part := ports.Reply{Text: chunk}
		if i == len(chunks)-1 {
			part = reply
			part.Text = chunk
		}
		if _, err := c.bot.Send(buildMessage(chatID, part)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// Edit replaces the text and inline keyboard of a sent message.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, reply ports.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := truncateRunes(reply.Text, maxMessageRunes)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	if len(reply.Inline) > 0 {
		markup := inlineMarkup(reply.Inline)
		edit.ReplyMarkup = &markup
	}
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// SendDocument re-sends a stored file by its Telegram file_id.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = truncateRunes(caption, maxCaptionRunes)
	if _, err := c.bot.Send(doc); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	return nil
}

// UploadDocument uploads new file bytes and returns the assigned file_id.
func (c *Client) UploadDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = truncateRunes(caption, maxCaptionRunes)
	sent, err := c.bot.Send(doc)
	if err != nil {
		return "", fmt.Errorf("telegram upload: %w", err)
	}
	if sent.Document == nil || sent.Document.FileID == "" {
		return "", errors.New("telegram upload: response carries no document")
	}
	return sent.Document.FileID, nil
}

// Download fetches a user file by file_id.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("telegram get file: %w", err)
	}
	link := fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: %s", resp.Status)
	}

	body := io.Reader(resp.Body)
	if c.maxDownload > 0 {
		body = io.LimitReader(resp.Body, c.maxDownload+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if c.maxDownload > 0 && int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("file %s exceeds %d bytes: %w", fileID, c.maxDownload, domain.ErrFileTooLarge)
	}
	return data, nil
}

// AnswerCallback acknowledges an inline button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram answer callback: %w", err)
	}
	return nil
}

// ConvertUpdate maps a Bot API update onto ports.Update. Updates without a
// message or callback are reported as not ok.
func ConvertUpdate(upd tgbotapi.Update) (ports.Update, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		out := ports.Update{Callback: &ports.Callback{ID: cq.ID, Data: cq.Data}}
		if cq.From != nil {
			out.UserID = cq.From.ID
			out.UserName = displayName(cq.From)
		}
		if cq.Message != nil {
			out.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				out.ChatID = cq.Message.Chat.ID
			}
		}
		if out.ChatID == 0 {
			out.ChatID = out.UserID
		}
		return out, true
	}

	m := upd.Message
	if m == nil || m.Chat == nil {
		return ports.Update{}, false
	}
	out := ports.Update{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	if m.From != nil {
		out.UserID = m.From.ID
		out.UserName = displayName(m.From)
	} else {
		out.UserID = m.Chat.ID
	}
	if d := m.Document; d != nil {
		out.Document = &ports.IncomingDocument{
			FileID:   d.FileID,
			FileName: d.FileName,
			MimeType: d.MimeType,
			Size:     int64(d.FileSize),
		}
	}
	return out, true
}

func buildMessage(chatID int64, reply ports.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.DisableWebPagePreview = true
	switch {
	case len(reply.Inline) > 0:
		msg.ReplyMarkup = inlineMarkup(reply.Inline)
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, row := range reply.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.ResizeKeyboard = true
		msg.ReplyMarkup = keyboard
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg
}

func inlineMarkup(rows [][]ports.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// splitText cuts text into chunks of at most limit runes, preferring line
// breaks as cut points.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-1]) + "…"
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Println(v ...interface{}) {
	a.logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...), "component", "tgbotapi")
}
