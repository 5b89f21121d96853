package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mizuho42/agent-arena/api"
	"github.com/mizuho42/agent-arena/arena"
	"github.com/mizuho42/agent-arena/config"
	"github.com/mizuho42/agent-arena/hub"
	"github.com/mizuho42/agent-arena/policy"
	"github.com/mizuho42/agent-arena/store"
	"github.com/mizuho42/agent-arena/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting arena...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Lobby: min=%d max=%d wait=%s", cfg.LobbyMinAgents, cfg.LobbyMaxAgents, cfg.LobbyWait)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize spectator hub
	h := hub.NewHub()
	go h.Run()

	// Initialize admission policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize arena and recover persisted state
	a := arena.New(cfg, db, h, policyEngine)
	if err := a.Load(ctx); err != nil {
		log.Fatalf("Failed to load arena state: %v", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	go a.Run(runCtx)

	// Initialize handlers
	handler := api.NewHandler(a)
	wsServer := ws.NewServer(cfg, h, a)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	handler.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Arena API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down arena...")

	// Stop the tick loop and flush pending state
	cancelRun()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Arena stopped")
}
