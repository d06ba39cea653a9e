package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arsallanShahab/chat-app/internal/chat"
	"github.com/arsallanShahab/chat-app/internal/config"
	"github.com/arsallanShahab/chat-app/internal/database"
	"github.com/arsallanShahab/chat-app/internal/handlers"
	"github.com/arsallanShahab/chat-app/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the chat core: registry and room index share one lock,
	// broadcaster and dispatcher operate on top of them.
	registry := chat.NewRegistry()
	broadcaster := chat.NewBroadcaster(registry)
	limiter := chat.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max)
	dispatcher := chat.NewDispatcher(registry, broadcaster, db, limiter, cfg.Chat)

	// A panic inside a connection goroutine is process-fatal: stop taking
	// connections and shut down in order rather than crash silently.
	fatal := make(chan struct{}, 1)
	reportFatal := func() {
		select {
		case fatal <- struct{}{}:
		default:
		}
	}

	// Initialize handlers
	wsHandlers := handlers.NewWebSocketHandlers(dispatcher, cfg, reportFatal)
	healthHandlers := handlers.NewHealthHandlers(registry, db)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("/health", healthHandlers.Health)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	logger.Info("🔗 Health check: http://localhost%s/health", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal or an unrecoverable fault
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received %s, shutting down gracefully...", sig)
	case <-fatal:
		logger.Error("Unrecoverable fault, shutting down gracefully...")
	}

	// Stop accepting new connections and let in-flight work drain.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server shut down")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
