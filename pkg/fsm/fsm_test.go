package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"telegramformbot/pkg/bot/fakeadapter"
	"telegramformbot/pkg/config"
	"telegramformbot/pkg/state"
	"telegramformbot/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type stubDispatcher struct {
	mu    sync.Mutex
	chats []int64
}

func (d *stubDispatcher) Dispatch(ctx context.Context, chatID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chats = append(d.chats, chatID)
}

func (d *stubDispatcher) dispatched() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int64, len(d.chats))
	copy(out, d.chats)
	return out
}

type flakyStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failNext bool
}

func (s *flakyStore) Save(ctx context.Context, response *storage.Response) error {
	s.mu.Lock()
	fail := s.failNext
	s.failNext = false
	s.mu.Unlock()
	if fail {
		return errors.New("database is down")
	}
	return s.MemoryStore.Save(ctx, response)
}

type testEnv struct {
	engine    *Engine
	adapter   *fakeadapter.FakeAdapter
	store     *state.Store
	responses *flakyStore
	reports   *stubDispatcher
	cfg       *config.FormConfig
}

func newTestEnv() *testEnv {
	adapter := &fakeadapter.FakeAdapter{}
	cfg := config.Default()
	store := state.NewStore(NewFSMCreator())
	responses := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	reports := &stubDispatcher{}
	return &testEnv{
		engine:    NewEngine(adapter, cfg, store, responses, reports),
		adapter:   adapter,
		store:     store,
		responses: responses,
		reports:   reports,
		cfg:       cfg,
	}
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: userID},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
		},
	}
}

func (env *testEnv) handleAll(userID, chatID int64, texts ...string) {
	for _, text := range texts {
		env.engine.HandleUpdate(context.Background(), textUpdate(userID, chatID, text))
	}
}

func (env *testEnv) formState(userID int64) string {
	session := env.store.Get(userID)
	if session == nil {
		return StateIdle
	}
	return session.Form.Current()
}

func TestTextWithoutFormRepliesInstruction(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "hello there")

	texts := env.adapter.TextsFor(10)
	if len(texts) != 1 || texts[0] != env.cfg.Messages.NoActiveForm {
		t.Fatalf("expected single instruction reply, got %v", texts)
	}
	if env.formState(1) != StateIdle {
		t.Fatalf("expected no active form, got state %s", env.formState(1))
	}
	if n, _ := env.responses.Count(context.Background()); n != 0 {
		t.Fatalf("expected no stored responses, got %d", n)
	}
}

func TestFormCommandPromptsForName(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form")

	if env.formState(1) != StateAwaitingName {
		t.Fatalf("expected awaiting_name, got %s", env.formState(1))
	}
	call := env.adapter.LastCall("send_message")
	if call == nil || call.Text != env.cfg.Messages.EnterName {
		t.Fatalf("expected name prompt, got %+v", call)
	}
}

func TestFormCommandRestartsFromAnyStep(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form", "Alice", "/form")

	session := env.store.Get(1)
	if session == nil {
		t.Fatalf("expected session to exist")
	}
	if session.Form.Current() != StateAwaitingName {
		t.Fatalf("expected restart to awaiting_name, got %s", session.Form.Current())
	}
	if session.Name != "" || session.Email != "" {
		t.Fatalf("expected fields cleared on restart, got name=%q email=%q", session.Name, session.Email)
	}
	texts := env.adapter.TextsFor(10)
	if texts[len(texts)-1] != env.cfg.Messages.EnterName {
		t.Fatalf("expected name prompt after restart, got %q", texts[len(texts)-1])
	}
}

func TestHappyPathSavesExactlyOneResponse(t *testing.T) {
	env := newTestEnv()

	env.handleAll(42, 100, "/form", "Alice", "alice@example.com", "7")

	saved, err := env.responses.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected exactly one response, got %d", len(saved))
	}
	r := saved[0]
	if r.TelegramUserID != 42 || r.Name != "Alice" || r.Email != "alice@example.com" || r.Score != 7 {
		t.Fatalf("unexpected response: %+v", r)
	}
	if env.formState(42) != StateIdle {
		t.Fatalf("expected session gone after completion, got %s", env.formState(42))
	}
	texts := env.adapter.TextsFor(100)
	if texts[len(texts)-1] != env.cfg.Messages.Saved {
		t.Fatalf("expected thank-you as last message, got %q", texts[len(texts)-1])
	}
}

func TestValidationRetriesBeforeFinalSave(t *testing.T) {
	env := newTestEnv()

	env.handleAll(7, 70, "/form", "Bob", "not-an-email", "bob@x.com", "11", "4")

	saved, _ := env.responses.ListAll(context.Background())
	if len(saved) != 1 {
		t.Fatalf("expected one saved response, got %d", len(saved))
	}
	if saved[0].Name != "Bob" || saved[0].Email != "bob@x.com" || saved[0].Score != 4 {
		t.Fatalf("unexpected response: %+v", saved[0])
	}

	texts := env.adapter.TextsFor(70)
	var sawEmailReprompt, sawRangeError bool
	for _, text := range texts {
		if text == env.cfg.Messages.InvalidEmail {
			sawEmailReprompt = true
		}
		if text == env.cfg.Messages.ScoreOutOfRange {
			sawRangeError = true
		}
	}
	if !sawEmailReprompt || !sawRangeError {
		t.Fatalf("expected email and range re-prompts, got %v", texts)
	}
}

func TestEmailValidationProperty(t *testing.T) {
	invalid := []string{"not-an-email", "@nodomain", "spaced local@x.com", "плохой@пример"}
	valid := []string{"a@b", "user+tag@example.co.uk", "under_score@x", "dotted.name@host"}

	for _, email := range invalid {
		env := newTestEnv()
		env.handleAll(1, 10, "/form", "Name", email)

		session := env.store.Get(1)
		if session.Form.Current() != StateAwaitingEmail {
			t.Fatalf("email %q: expected to stay on email step, got %s", email, session.Form.Current())
		}
		if session.Email != "" {
			t.Fatalf("email %q: expected email unset, got %q", email, session.Email)
		}
		call := env.adapter.LastCall("send_message")
		if call == nil || call.Text != env.cfg.Messages.InvalidEmail {
			t.Fatalf("email %q: expected re-prompt, got %+v", email, call)
		}
	}

	for _, email := range valid {
		env := newTestEnv()
		env.handleAll(1, 10, "/form", "Name", email)

		session := env.store.Get(1)
		if session.Form.Current() != StateAwaitingScore {
			t.Fatalf("email %q: expected advance to score step, got %s", email, session.Form.Current())
		}
		if session.Email != email {
			t.Fatalf("email %q: expected stored verbatim, got %q", email, session.Email)
		}
	}
}

func TestScoreValidationProperty(t *testing.T) {
	rejected := []string{"abc", "7.5", "0", "11", "-3", "100"}
	for _, score := range rejected {
		env := newTestEnv()
		env.handleAll(1, 10, "/form", "Name", "a@b.c", score)

		if env.formState(1) != StateAwaitingScore {
			t.Fatalf("score %q: expected to stay on score step, got %s", score, env.formState(1))
		}
		if n, _ := env.responses.Count(context.Background()); n != 0 {
			t.Fatalf("score %q: expected nothing saved, got %d", score, n)
		}
	}

	for _, score := range []int{ScoreMin, 5, ScoreMax} {
		env := newTestEnv()
		env.handleAll(1, 10, "/form", "Name", "a@b.c", fmt.Sprintf("%d", score))

		saved, _ := env.responses.ListAll(context.Background())
		if len(saved) != 1 || saved[0].Score != score {
			t.Fatalf("score %d: expected single response with that score, got %+v", score, saved)
		}
	}
}

func TestExitLeavesFormAndIsIdempotent(t *testing.T) {
	env := newTestEnv()

	// Exit without any form is a reply, not an error.
	env.handleAll(1, 10, "exit")
	texts := env.adapter.TextsFor(10)
	if len(texts) != 1 || texts[0] != env.cfg.Messages.Exited {
		t.Fatalf("expected exited confirmation, got %v", texts)
	}

	// Mid-form exit clears the collected answers.
	env.handleAll(1, 10, "/form", "Alice", "/exit")
	session := env.store.Get(1)
	if session.Form.Current() != StateIdle || session.Name != "" {
		t.Fatalf("expected idle cleared session, got state=%s name=%q", session.Form.Current(), session.Name)
	}
	if n, _ := env.responses.Count(context.Background()); n != 0 {
		t.Fatalf("expected nothing saved on exit, got %d", n)
	}
}

func TestExitKeywordIsCaseInsensitive(t *testing.T) {
	for _, word := range []string{"EXIT", "Exit", "/EXIT", "ВЫХОД"} {
		env := newTestEnv()
		env.handleAll(1, 10, "/form", word)
		if env.formState(1) != StateIdle {
			t.Fatalf("keyword %q: expected idle, got %s", word, env.formState(1))
		}
	}
}

func TestStartCommandResetsForm(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form", "Alice", "/start")

	if env.formState(1) != StateIdle {
		t.Fatalf("expected idle after /start, got %s", env.formState(1))
	}
	texts := env.adapter.TextsFor(10)
	if texts[len(texts)-1] != env.cfg.Messages.Welcome {
		t.Fatalf("expected welcome text, got %q", texts[len(texts)-1])
	}
}

func TestReportSendsAckBeforeDispatchAndResetsForm(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form", "Alice", "/report")

	if env.formState(1) != StateIdle {
		t.Fatalf("expected form abandoned on /report, got %s", env.formState(1))
	}
	call := env.adapter.LastCall("send_message")
	if call == nil || call.Text != env.cfg.Messages.ReportPending {
		t.Fatalf("expected generating ack sent before dispatch, got %+v", call)
	}
	if got := env.reports.dispatched(); len(got) != 1 || got[0] != 10 {
		t.Fatalf("expected one dispatch for chat 10, got %v", got)
	}
}

func TestSaveFailureKeepsSessionForRetry(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form", "Alice", "alice@example.com")
	env.responses.failNext = true
	env.handleAll(1, 10, "9")

	if env.formState(1) != StateAwaitingScore {
		t.Fatalf("expected session kept on score step after save failure, got %s", env.formState(1))
	}
	call := env.adapter.LastCall("send_message")
	if call == nil || call.Text != env.cfg.Messages.SaveFailed {
		t.Fatalf("expected save failure notice, got %+v", call)
	}
	if n, _ := env.responses.Count(context.Background()); n != 0 {
		t.Fatalf("expected nothing saved yet, got %d", n)
	}

	// Retry in place succeeds.
	env.handleAll(1, 10, "9")
	saved, _ := env.responses.ListAll(context.Background())
	if len(saved) != 1 || saved[0].Score != 9 {
		t.Fatalf("expected retried save, got %+v", saved)
	}
	if env.formState(1) != StateIdle {
		t.Fatalf("expected idle after retried save, got %s", env.formState(1))
	}
}

func TestSendFailureDoesNotAbortStateUpdate(t *testing.T) {
	env := newTestEnv()

	env.handleAll(1, 10, "/form")
	env.adapter.Fail("send_message", fakeadapter.Forbidden("send_message"))
	env.handleAll(1, 10, "Alice")

	session := env.store.Get(1)
	if session.Name != "Alice" || session.Form.Current() != StateAwaitingEmail {
		t.Fatalf("expected state advanced despite delivery failure, got state=%s name=%q", session.Form.Current(), session.Name)
	}
}

func TestConcurrentUsersDoNotCrossContaminate(t *testing.T) {
	env := newTestEnv()

	const users = 8
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			userID := 1000 + n
			chatID := 2000 + n
			env.handleAll(userID, chatID,
				"/form",
				fmt.Sprintf("User%d", userID),
				fmt.Sprintf("user%d@example.com", userID),
				fmt.Sprintf("%d", n%10+1),
			)
		}(int64(i))
	}
	wg.Wait()

	saved, err := env.responses.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved) != users {
		t.Fatalf("expected %d responses, got %d", users, len(saved))
	}
	for _, r := range saved {
		wantName := fmt.Sprintf("User%d", r.TelegramUserID)
		wantEmail := fmt.Sprintf("user%d@example.com", r.TelegramUserID)
		if r.Name != wantName || r.Email != wantEmail {
			t.Fatalf("cross-contaminated response: %+v", r)
		}
	}
}

func TestNonTextUpdatesIgnored(t *testing.T) {
	env := newTestEnv()

	env.engine.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 5})
	env.engine.HandleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: 6,
		Message:  &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: 10}},
	})

	if len(env.adapter.Calls) != 0 {
		t.Fatalf("expected no outbound calls, got %v", env.adapter.Calls)
	}
}
