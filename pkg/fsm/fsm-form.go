package fsm

import (
	"context"
	"log"

	"telegramformbot/pkg/config"
	"telegramformbot/pkg/ports/botport"
	"telegramformbot/pkg/state"

	"github.com/looplab/fsm"
)

// NewFormFSM builds the per-user form state machine. The enter callbacks of
// the awaiting states send the prompt for that step; events that carry no
// args (EventCancel, EventScoreSaved) skip prompting because StateIdle has
// no callback.
func NewFormFSM(initialState string) *fsm.FSM {

	callbacks := fsm.Callbacks{
		"enter_" + StateAwaitingName:  promptFor(func(m config.Messages) string { return m.EnterName }),
		"enter_" + StateAwaitingEmail: promptFor(func(m config.Messages) string { return m.EnterEmail }),
		"enter_" + StateAwaitingScore: promptFor(func(m config.Messages) string { return m.EnterScore }),
	}

	events := fsm.Events{
		{Name: EventStartForm, Src: []string{StateIdle, StateAwaitingName, StateAwaitingEmail, StateAwaitingScore}, Dst: StateAwaitingName},
		{Name: EventNameEntered, Src: []string{StateAwaitingName}, Dst: StateAwaitingEmail},
		{Name: EventEmailEntered, Src: []string{StateAwaitingEmail}, Dst: StateAwaitingScore},
		{Name: EventScoreSaved, Src: []string{StateAwaitingScore}, Dst: StateIdle},
		{Name: EventCancel, Src: []string{StateAwaitingName, StateAwaitingEmail, StateAwaitingScore}, Dst: StateIdle},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}

// promptFor builds an enter callback that sends the selected message to the
// session's chat. Collaborators arrive through the event args as
// (session, port, config).
func promptFor(pick func(config.Messages) string) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		session, botPort, cfg, ok := formEventArgs(e)
		if !ok {
			log.Printf("[promptFor] Error: invalid args for event %s (src %s)", e.Event, e.Src)
			return
		}
		if _, err := botPort.SendMessage(ctx, session.ChatID, pick(cfg.Messages)); err != nil {
			log.Printf("[promptFor] Error sending prompt for user %d after event %s: %v", session.UserID, e.Event, err)
		}
	}
}

func formEventArgs(e *fsm.Event) (*state.Session, botport.BotPort, *config.FormConfig, bool) {
	if len(e.Args) < 3 {
		return nil, nil, nil, false
	}
	session, okS := e.Args[0].(*state.Session)
	botPort, okB := e.Args[1].(botport.BotPort)
	cfg, okC := e.Args[2].(*config.FormConfig)
	if !okS || session == nil || !okB || botPort == nil || !okC || cfg == nil {
		return nil, nil, nil, false
	}
	return session, botPort, cfg, true
}
