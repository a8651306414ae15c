package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := internal.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Durable stores (BadgerDB message log, Bluge search index)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation
	censored, err := moderation.LoadCensoredWords()
	if err != nil {
		return exitRuntime, fmt.Errorf("loading censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderator: %w", err)
	}

	// 4. Supervision & Orchestration
	telemetryChan := make(chan event.Event, config.BufferSize)
	eventChan := make(chan event.DomainEvent, config.BufferSize)
	supervisor := workers.NewSupervisor(logger, telemetryChan, config.RestartInterval)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, logger)
	messageIndex := search.NewMessageIndex(blugeWriter, logger)

	orchestrator := runtime.NewOrchestrator(
		logger, supervisor, registry,
		messageRepository, &moderator,
		eventChan, telemetryChan,
		config.RoomBufferSize,
	)
	orchestrator.AddSinks(messageIndex)

	supervisor.Add(
		workers.NewTelemetryWorker(logger, telemetryChan,
			event.NewChannelCapacityHandler(logger, config.LowCapacityThreshold),
			event.NewDeliveryDroppedHandler(logger),
			event.NewLatencyHandler(logger, config.LatencyThreshold),
		),
		workers.NewChannelCapacityWorker(logger, []workers.NamedChannel{
			{Name: "events", Channel: eventChan},
			{Name: "telemetry", Channel: telemetryChan},
		}, telemetryChan, config.MetricInterval),
		workers.NewHealthWorker(logger, telemetryChan, config.MetricInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. Transports
	tokenManager := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	gate := auth.NewGate(tokenManager, config.AuthTimeout, logger)
	policy := auth.NewPolicy(config.RestrictedRoomList())
	chatService := services.NewChatService(orchestrator)
	historyService := services.NewHistoryService(messageRepository,
		config.HistoryPageSize, config.HistoryMaxPageSize, logger)

	mux := http.NewServeMux()
	ws.NewHandler(gate, policy, chatService, historyService,
		config.ConnectionBufferSize, config.ReplaySize, config.MaxContentLength,
		logger).Register(mux)
	httpapi.NewHandler(gate, policy, historyService, messageIndex, orchestrator, logger).Register(mux)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
