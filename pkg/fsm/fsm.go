package fsm

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegramformbot/pkg/config"
	"telegramformbot/pkg/ports/botport"
	"telegramformbot/pkg/state"
	"telegramformbot/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// ReportDispatcher triggers asynchronous report generation for a chat.
type ReportDispatcher interface {
	Dispatch(ctx context.Context, chatID int64)
}

// Engine is the conversation state machine. It owns no transport or storage
// itself; everything side-effecting is injected.
type Engine struct {
	bot       botport.BotPort
	cfg       *config.FormConfig
	sessions  *state.Store
	responses storage.ResponseStore
	reports   ReportDispatcher
}

func NewEngine(bot botport.BotPort, cfg *config.FormConfig, sessions *state.Store, responses storage.ResponseStore, reports ReportDispatcher) *Engine {
	return &Engine{
		bot:       bot,
		cfg:       cfg,
		sessions:  sessions,
		responses: responses,
		reports:   reports,
	}
}

// HandleUpdate processes one inbound Telegram update. Updates for distinct
// users may be handled concurrently; the session mutex serializes everything
// for a single user.
func (e *Engine) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if update.Message.From == nil {
		log.Printf("Warning: Received message with nil From field")
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	session := e.sessions.GetOrCreate(userID, chatID)
	if session == nil {
		log.Printf("Error: Failed to get or create session for user %d", userID)
		e.send(ctx, chatID, e.cfg.Messages.InternalError)
		return
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	session.LastSeen = time.Now()
	session.ChatID = chatID

	e.handleMessage(ctx, session, chatID, text)
}

func (e *Engine) handleMessage(ctx context.Context, session *state.Session, chatID int64, text string) {
	switch text {
	case CommandStart:
		e.resetToIdle(ctx, session)
		e.send(ctx, chatID, e.cfg.Messages.Welcome)
		return

	case CommandForm:
		e.startForm(ctx, session, chatID)
		return

	case CommandReport:
		e.resetToIdle(ctx, session)
		// Ack first, then detach: the document or failure notice always
		// arrives after this message.
		e.send(ctx, chatID, e.cfg.Messages.ReportPending)
		e.reports.Dispatch(ctx, chatID)
		return
	}

	if isExitRequest(text) {
		e.resetToIdle(ctx, session)
		e.send(ctx, chatID, e.cfg.Messages.Exited)
		return
	}

	e.handleFormInput(ctx, session, chatID, text)
}

func (e *Engine) handleFormInput(ctx context.Context, session *state.Session, chatID int64, text string) {
	switch session.Form.Current() {
	case StateAwaitingName:
		e.handleName(ctx, session, chatID, text)
	case StateAwaitingEmail:
		e.handleEmail(ctx, session, chatID, text)
	case StateAwaitingScore:
		e.handleScore(ctx, session, chatID, text)
	default:
		e.send(ctx, chatID, e.cfg.Messages.NoActiveForm)
	}
}

// startForm restarts the form from any state, discarding collected answers.
func (e *Engine) startForm(ctx context.Context, session *state.Session, chatID int64) {
	session.Reset()

	err := session.Form.Event(ctx, EventStartForm, session, e.bot, e.cfg)
	if err != nil {
		if isNoTransitionError(err) {
			// Already on the name step; the FSM refuses the self-transition
			// so the prompt has to be re-sent manually.
			e.send(ctx, chatID, e.cfg.Messages.EnterName)
			return
		}
		log.Printf("[startForm] Error triggering %s for user %d: %v", EventStartForm, session.UserID, err)
		session.Form.SetState(StateIdle)
		e.send(ctx, chatID, e.cfg.Messages.InternalError)
	}
}

func (e *Engine) handleName(ctx context.Context, session *state.Session, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		e.send(ctx, chatID, e.cfg.Messages.EnterName)
		return
	}

	// Names are stored verbatim, no content validation.
	session.Name = text

	if err := session.Form.Event(ctx, EventNameEntered, session, e.bot, e.cfg); err != nil {
		log.Printf("[handleName] Error triggering %s for user %d: %v", EventNameEntered, session.UserID, err)
		e.send(ctx, chatID, e.cfg.Messages.InternalError)
	}
}

func (e *Engine) handleEmail(ctx context.Context, session *state.Session, chatID int64, text string) {
	if !emailPattern.MatchString(text) {
		e.send(ctx, chatID, e.cfg.Messages.InvalidEmail)
		return
	}

	session.Email = text

	if err := session.Form.Event(ctx, EventEmailEntered, session, e.bot, e.cfg); err != nil {
		log.Printf("[handleEmail] Error triggering %s for user %d: %v", EventEmailEntered, session.UserID, err)
		e.send(ctx, chatID, e.cfg.Messages.InternalError)
	}
}

func (e *Engine) handleScore(ctx context.Context, session *state.Session, chatID int64, text string) {
	score, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		e.send(ctx, chatID, e.cfg.Messages.ScoreNotNumber)
		return
	}
	if score < ScoreMin || score > ScoreMax {
		e.send(ctx, chatID, e.cfg.Messages.ScoreOutOfRange)
		return
	}

	response := &storage.Response{
		TelegramUserID: session.UserID,
		Name:           session.Name,
		Email:          session.Email,
		Score:          score,
	}

	if err := e.responses.Save(ctx, response); err != nil {
		// Keep the session on the score step so the user can retry; the
		// success message must never precede a confirmed save.
		log.Printf("[handleScore] Failed to save response for user %d: %v", session.UserID, err)
		e.send(ctx, chatID, e.cfg.Messages.SaveFailed)
		return
	}

	log.Printf("[handleScore] Response saved for user %d (score %d)", session.UserID, score)

	session.Reset()
	if err := session.Form.Event(ctx, EventScoreSaved); err != nil {
		log.Printf("[handleScore] Error triggering %s for user %d: %v", EventScoreSaved, session.UserID, err)
		session.Form.SetState(StateIdle)
	}
	e.send(ctx, chatID, e.cfg.Messages.Saved)
}

// resetToIdle discards the in-progress form. A no-op for idle sessions.
func (e *Engine) resetToIdle(ctx context.Context, session *state.Session) {
	session.Reset()
	if session.Form.Current() == StateIdle {
		return
	}
	if err := session.Form.Event(ctx, EventCancel); err != nil {
		log.Printf("[resetToIdle] Error triggering %s for user %d: %v. Forcing state.", EventCancel, session.UserID, err)
		session.Form.SetState(StateIdle)
	}
}

// send delivers a single message; delivery failures are logged and never
// abort the state update that already happened.
func (e *Engine) send(ctx context.Context, chatID int64, text string) {
	if _, err := e.bot.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("[send] Error sending message to chat %d: %v", chatID, err)
	}
}

func isExitRequest(text string) bool {
	if strings.EqualFold(text, CommandExit) {
		return true
	}
	for _, keyword := range exitKeywords {
		if strings.EqualFold(text, keyword) {
			return true
		}
	}
	return false
}
