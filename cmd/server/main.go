package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/config"
	"github.com/mnuel1/chat-fieldiq/internal/repository/mongodb"
	"github.com/mnuel1/chat-fieldiq/internal/repository/sheets"
	"github.com/mnuel1/chat-fieldiq/internal/scheduler"
	"github.com/mnuel1/chat-fieldiq/internal/server/handlers"
	"github.com/mnuel1/chat-fieldiq/internal/server/router"
	analyticssvc "github.com/mnuel1/chat-fieldiq/internal/service/analytics"
	chatsvc "github.com/mnuel1/chat-fieldiq/internal/service/chat"
	programsvc "github.com/mnuel1/chat-fieldiq/internal/service/program"
	reportingsvc "github.com/mnuel1/chat-fieldiq/internal/service/reporting"
	"github.com/mnuel1/chat-fieldiq/pkg/clients/notify"
	"github.com/mnuel1/chat-fieldiq/pkg/clients/openai"
	"github.com/mnuel1/chat-fieldiq/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	eventStore, err := mongodb.NewEventStore(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb event store", zap.Error(err))
	}
	defer func() {
		if err := eventStore.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	conversationStore := mongodb.NewConversationStore(eventStore)

	programSvc := programsvc.NewService(eventStore, baseLogger.Named("svc.program"))
	analyticsSvc := analyticssvc.NewService(eventStore, programSvc, baseLogger.Named("svc.analytics"))

	extractor := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	completions := chatsvc.Completions{
		HealthIncident: chatsvc.NewHealthIncidentCompletion(eventStore, baseLogger.Named("svc.chat.health")),
		PerformanceLog: chatsvc.NewPerformanceLogCompletion(eventStore, baseLogger.Named("svc.chat.performance")),
	}
	chatSvc := chatsvc.NewService(conversationStore, extractor, programSvc, eventStore, eventStore, completions, cfg.Chat.MaxHistoryMessages, baseLogger.Named("svc.chat"))

	var exporter sheets.Exporter
	if cfg.Sheets.CredentialsPath != "" && cfg.Sheets.SpreadsheetID != "" {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
	} else {
		baseLogger.Warn("sheets credentials missing, snapshot export disabled")
	}

	reportingSvc := reportingsvc.NewService(eventStore, analyticsSvc, exporter, baseLogger.Named("svc.reporting"))

	var notifier notify.Client
	if cfg.Notify.BaseURL != "" && cfg.Notify.AccessToken != "" {
		notifier = notify.NewClient(cfg.Notify)
	} else {
		baseLogger.Warn("notify credentials missing, log reminders disabled")
	}

	sched := scheduler.NewScheduler(*cfg, reportingSvc, notifier, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	programHandler := handlers.NewProgramHandler(programSvc, baseLogger.Named("handlers.program"))
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsSvc, baseLogger.Named("handlers.analytics"))
	chatHandler := handlers.NewChatHandler(chatSvc, baseLogger.Named("handlers.chat"))
	engine := router.New(programHandler, analyticsHandler, chatHandler, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
