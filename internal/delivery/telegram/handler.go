package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"quizbook-service/internal/app"
	"quizbook-service/internal/domain"
	"quizbook-service/internal/parser"
)

// Bot is the part of *tgbotapi.BotAPI the handler uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
	StopReceivingUpdates()
}

// Publisher publishes parsed quizzes. *app.QuizService satisfies it.
type Publisher interface {
	Publish(ctx context.Context, req app.PublishRequest) (domain.Quiz, int, error)
	LiveSessions() int
}

type Options struct {
	// Admins may publish quizzes. Empty means everyone may.
	Admins        []int64
	UpdateTimeout int
	HTTPClient    *http.Client
}

type Handler struct {
	bot       Bot
	logger    *zap.Logger
	publisher Publisher
	admins    map[int64]struct{}
	timeout   int
	client    *http.Client

	conversations map[int64]*conversation
}

func NewHandler(bot Bot, logger *zap.Logger, publisher Publisher, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = 60
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	admins := make(map[int64]struct{}, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = struct{}{}
	}
	return &Handler{
		bot:           bot,
		logger:        logger,
		publisher:     publisher,
		admins:        admins,
		timeout:       opts.UpdateTimeout,
		client:        opts.HTTPClient,
		conversations: make(map[int64]*conversation),
	}
}

// Run polls for updates until ctx is done. Updates are handled one at a time.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = h.timeout

	updates := h.bot.GetUpdatesChan(u)
	defer h.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		h.logger.Debug("update without message")
		return
	}
	message := update.Message
	chatID := message.Chat.ID

	h.logger.Debug("update received",
		zap.Int64("chat_id", chatID),
		zap.Bool("document", message.Document != nil),
	)

	conv := h.conversation(chatID)

	var out outcome
	switch {
	case message.IsCommand():
		out = h.handleCommand(message, conv)
	case message.Document != nil:
		out = h.handleDocument(ctx, message.Document, conv)
	default:
		out = conv.text(message.Text)
	}

	if out.publish != nil {
		out.reply = h.publish(ctx, chatID, *out.publish)
	}
	if !conv.active() {
		delete(h.conversations, chatID)
	}
	if out.reply != "" {
		h.send(newHTMLMessage(chatID, out.reply))
	}
}

func (h *Handler) handleCommand(message *tgbotapi.Message, conv *conversation) outcome {
	switch message.Command() {
	case "start":
		if !h.allowed(message.From) {
			return outcome{reply: msgNotAllowed}
		}
		return conv.start()
	case "cancel":
		return conv.cancel()
	case "help":
		return outcome{reply: msgHelp}
	case "status":
		return outcome{reply: msgStatus(h.publisher.LiveSessions())}
	}
	return outcome{reply: msgUnknownCommand}
}

func (h *Handler) handleDocument(ctx context.Context, doc *tgbotapi.Document, conv *conversation) outcome {
	if conv.step != stepFile {
		return conv.file("")
	}
	if !isTextDocument(doc) {
		return outcome{reply: msgSendFile}
	}
	text, err := h.download(ctx, doc)
	if errors.Is(err, parser.ErrInputTooLarge) {
		return outcome{reply: msgFileTooLarge}
	}
	if err != nil {
		h.logger.Warn("document download failed", zap.String("file_id", doc.FileID), zap.Error(err))
		return outcome{reply: msgDownloadFailed}
	}
	return conv.file(text)
}

func (h *Handler) publish(ctx context.Context, chatID int64, req app.PublishRequest) string {
	quiz, n, err := h.publisher.Publish(ctx, req)
	if errors.Is(err, domain.ErrNothingRecognized) {
		return msgNothingParsed
	}
	if err != nil {
		h.logger.Error("publish failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return msgPublishFailed
	}
	h.logger.Info("quiz published from telegram",
		zap.Int64("chat_id", chatID),
		zap.String("quiz_id", quiz.ID),
	)
	return quizSummary(quiz, n)
}

func (h *Handler) conversation(chatID int64) *conversation {
	conv, ok := h.conversations[chatID]
	if !ok {
		conv = &conversation{}
		h.conversations[chatID] = conv
	}
	return conv
}

func (h *Handler) allowed(user *tgbotapi.User) bool {
	if len(h.admins) == 0 {
		return true
	}
	if user == nil {
		return false
	}
	_, ok := h.admins[user.ID]
	return ok
}

func (h *Handler) download(ctx context.Context, doc *tgbotapi.Document) (string, error) {
	if doc.FileSize > parser.MaxInputBytes {
		return "", parser.ErrInputTooLarge
	}
	url, err := h.bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, parser.MaxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > parser.MaxInputBytes {
		return "", parser.ErrInputTooLarge
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

func (h *Handler) send(msg tgbotapi.MessageConfig) {
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("failed to send message",
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err),
		)
	}
}

func isTextDocument(doc *tgbotapi.Document) bool {
	if strings.HasSuffix(strings.ToLower(doc.FileName), ".txt") {
		return true
	}
	return strings.HasPrefix(doc.MimeType, "text/plain")
}
