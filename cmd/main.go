package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatwire/auth"
	"chatwire/internal"
	"chatwire/moderation"
	"chatwire/observability"
	"chatwire/presence"
	"chatwire/realtime"
	"chatwire/repositories"
	"chatwire/runtime"
	"chatwire/search"
	"chatwire/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and open sessions.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Optional features: full-text search and word censorship
	var index search.IMessageIndex
	if config.BlugeFilepath != "" {
		idx, err := search.Open(config.BlugeFilepath, log)
		if err != nil {
			return fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing search index...")
			_ = idx.Close()
		}()
		index = idx
	}

	var moderator *moderation.Moderator
	if len(config.CensoredWords) > 0 {
		replacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		moderator, err = moderation.NewModerator(config.CensoredWords, replacement, log)
		if err != nil {
			return fmt.Errorf("moderator setup failed: %w", err)
		}
		log.Info("Moderation enabled", "words", len(config.CensoredWords))
	}

	// 4. Core components
	users := repositories.NewUserRepository(db)
	conversations := repositories.NewConversationRepository(db, log)
	tracker := presence.NewTracker()
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor()

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	resolver := auth.NewResolver(tokens, users)

	chatService := services.NewChatService(log, registry, tracker, conversations,
		users, moderator, index, monitor, config.SearchLimit)
	authService := services.NewAuthService(users, tokens)

	// 5. HTTP surface: websocket endpoint plus the token-minting routes
	mux := http.NewServeMux()
	mux.Handle("/ws", realtime.NewHandler(log, resolver, chatService, monitor,
		config.ConnectionBufferSize, config.WriteTimeout, config.PingInterval,
		config.HandshakeTimeout))
	realtime.NewAuthHandler(log, authService).RegisterRoutes(mux)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
			stats := monitor.Snapshot()
			stats["Sessions"] = registry.Sessions()
			return stats
		})
		log.Info("Debug server started", "port", config.DebugPort)
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	log.Info("Program stopped cleanly")

	return nil
}
