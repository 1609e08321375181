package telegramadapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"telegramformbot/pkg/bot"
	"telegramformbot/pkg/ports/botport"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Package telegramadapter implements botport.BotPort using the Telegram client.

// Logger defines the minimal logging interface used by the adapter.
type Logger interface {
	Printf(format string, args ...any)
}

type telegramClient interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, filename string, data []byte) (tgbotapi.Message, error)
}

// Adapter wraps a Telegram client and satisfies botport.BotPort.
type Adapter struct {
	client telegramClient
	logger Logger
}

var _ telegramClient = (*bot.Client)(nil)
var _ botport.BotPort = (*Adapter)(nil)

// New constructs a Telegram adapter with the provided bot client and logger.
func New(client telegramClient, logger Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("telegramadapter: client is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{
		client: client,
		logger: logger,
	}, nil
}

// SendMessage dispatches a new Telegram message and returns a botport.BotMessage record.
func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_message", err)
	}
	msg, err := a.client.SendMessage(chatID, text)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("send_message", chatID, err)
	}
	bm := toBotMessage(msg)
	a.log("send_message", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID})
	return bm, nil
}

// SendDocument uploads a document (filename + raw bytes) to the chat.
func (a *Adapter) SendDocument(ctx context.Context, chatID int64, filename string, data []byte) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_document", err)
	}
	if filename == "" {
		return botport.BotMessage{}, botport.NewBotError("send_document", "bad_payload", fmt.Errorf("empty filename"))
	}
	msg, err := a.client.SendDocument(chatID, filename, data)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("send_document", chatID, err)
	}
	bm := toBotMessage(msg)
	bm.Meta = map[string]string{"filename": filename}
	a.log("send_document", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID, "filename": filename})
	return bm, nil
}

func (a *Adapter) wrapAndLogError(op string, chatID int64, err error) error {
	wrapped := wrapTelegramError(op, err)
	a.log(op, map[string]any{
		"chat_id": chatID,
		"code":    getBotErrorCode(wrapped),
		"error":   err.Error(),
	})
	return wrapped
}

func (a *Adapter) log(op string, attrs map[string]any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf("botport op=%s attrs=%v", op, attrs)
}

func toBotMessage(msg tgbotapi.Message) botport.BotMessage {
	payload := msg.Text
	if payload == "" {
		payload = msg.Caption
	}
	return botport.BotMessage{
		ChatID:    chatIDFromMessage(msg),
		MessageID: msg.MessageID,
		Transport: "telegram",
		Payload:   payload,
	}
}

func chatIDFromMessage(msg tgbotapi.Message) int64 {
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return 0
}

func wrapContextError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &botport.BotError{Op: op, Code: "context_canceled", Wrapped: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &botport.BotError{Op: op, Code: "context_deadline", Wrapped: err}
	}
	return &botport.BotError{Op: op, Code: "context_error", Wrapped: err}
}

func wrapTelegramError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapContextError(op, err)
	}
	code, retry := classifyTelegramError(err)
	return &botport.BotError{
		Op:         op,
		Code:       code,
		RetryAfter: retry,
		Wrapped:    err,
	}
}

var retryAfterRegex = regexp.MustCompile(`(?i)retry after (\d+)`)

func classifyTelegramError(err error) (string, time.Duration) {
	if err == nil {
		return "unknown", 0
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests"):
		return "rate_limited", extractRetryAfter(err.Error())
	case strings.Contains(msg, "request entity too large"):
		return "payload_too_large", 0
	case strings.Contains(msg, "bad request"):
		return "bad_request", 0
	case strings.Contains(msg, "forbidden"):
		return "forbidden", 0
	default:
		return "unknown", 0
	}
}

func extractRetryAfter(msg string) time.Duration {
	matches := retryAfterRegex.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0
	}
	seconds, err := time.ParseDuration(matches[1] + "s")
	if err != nil {
		return 0
	}
	return seconds
}

func getBotErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var be *botport.BotError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
