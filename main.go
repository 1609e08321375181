package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegramformbot/pkg/bot"
	"telegramformbot/pkg/bot/telegramadapter"
	"telegramformbot/pkg/config"
	"telegramformbot/pkg/fsm"
	"telegramformbot/pkg/report"
	"telegramformbot/pkg/state"
	"telegramformbot/pkg/storage"
	"telegramformbot/pkg/web"
)

func main() {

	appCfg, err := config.LoadEnv()
	if err != nil {
		log.Panicf("Failed to load environment configuration: %v", err)
	}

	formCfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		log.Panicf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	var responses storage.ResponseStore
	if appCfg.DatabaseDSN != "" {
		pgStore, err := storage.NewPostgresStore(appCfg.DatabaseDSN)
		if err != nil {
			log.Panicf("Failed to initialize postgres store: %v", err)
		}
		responses = pgStore
		log.Println("Using postgres response store.")
	} else {
		responses = storage.NewMemoryStore()
		log.Println("DATABASE_DSN not set, using in-memory response store (responses are lost on restart).")
	}

	botClient, err := bot.NewClient(appCfg.TelegramToken)
	if err != nil {
		log.Panicf("Failed to initialize bot client: %v", err)
	}
	log.Printf("Authorized on account %s", botClient.Self.UserName)

	botPort, err := telegramadapter.New(botClient, log.Default())
	if err != nil {
		log.Panicf("Failed to create telegram adapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionStore := state.NewStore(fsm.NewFSMCreator())
	sessionStore.StartJanitor(ctx, formCfg.Session.TTL, formCfg.Session.SweepInterval)

	renderer := report.NewExcelRenderer(formCfg.Report)
	dispatcher := report.NewDispatcher(botPort, responses, renderer, formCfg.Messages.ReportFailed)

	engine := fsm.NewEngine(botPort, formCfg, sessionStore, responses, dispatcher)

	httpServer := web.New(appCfg.HTTPAddr, responses, sessionStore)
	go func() {
		log.Printf("HTTP server listening on %s", appCfg.HTTPAddr)
		if err := httpServer.Start(); err != nil {
			log.Printf("HTTP server stopped with error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("Shutdown signal received...")
		cancel()
	}()

	updates := botClient.GetUpdatesChan(appCfg.PollTimeout)
	log.Println("Starting update processing...")

	for {
		select {
		case update := <-updates:
			if update.UpdateID == 0 {
				continue
			}
			go engine.HandleUpdate(ctx, update)
		case <-ctx.Done():
			log.Println("Stopping update processing loop...")
			dispatcher.Wait()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
			return
		}
	}
}
