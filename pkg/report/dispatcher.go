package report

import (
	"context"
	"log"
	"sync"

	"telegramformbot/pkg/ports/botport"
	"telegramformbot/pkg/storage"
)

// Dispatcher generates and delivers reports off the message-handling path.
// Every Dispatch runs its own independent generation; failures end in a
// chat-visible notice and never reach the caller.
type Dispatcher struct {
	bot        botport.BotPort
	store      storage.ResponseStore
	renderer   Renderer
	failedText string
	wg         sync.WaitGroup
}

func NewDispatcher(bot botport.BotPort, store storage.ResponseStore, renderer Renderer, failedText string) *Dispatcher {
	return &Dispatcher{
		bot:        bot,
		store:      store,
		renderer:   renderer,
		failedText: failedText,
	}
}

// Dispatch spawns report generation for chatID and returns immediately. The
// caller is expected to have sent its acknowledgement already, so the
// eventual document or failure notice always arrives after it.
func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Dispatch] Panic during report generation for chat %d: %v", chatID, r)
				d.notifyFailure(ctx, chatID)
			}
		}()
		d.run(ctx, chatID)
	}()
}

// Wait blocks until all in-flight report generations finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, chatID int64) {
	responses, err := d.store.ListAll(ctx)
	if err != nil {
		log.Printf("[Dispatch] Failed to list responses for chat %d: %v", chatID, err)
		d.notifyFailure(ctx, chatID)
		return
	}

	data, err := d.renderer.Render(responses)
	if err != nil {
		log.Printf("[Dispatch] Failed to render report for chat %d: %v", chatID, err)
		d.notifyFailure(ctx, chatID)
		return
	}

	if _, err := d.bot.SendDocument(ctx, chatID, d.renderer.Filename(), data); err != nil {
		log.Printf("[Dispatch] Failed to send report to chat %d: %v", chatID, err)
		d.notifyFailure(ctx, chatID)
		return
	}
	log.Printf("[Dispatch] Report with %d responses sent to chat %d", len(responses), chatID)
}

func (d *Dispatcher) notifyFailure(ctx context.Context, chatID int64) {
	if _, err := d.bot.SendMessage(ctx, chatID, d.failedText); err != nil {
		log.Printf("[Dispatch] Failed to deliver failure notice to chat %d: %v", chatID, err)
	}
}
