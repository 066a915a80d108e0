package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/config"
	"github.com/chris/mutual-credit-ledger/pkg/handlers"
	peerhandler "github.com/chris/mutual-credit-ledger/pkg/handlers/peer"
	wshandler "github.com/chris/mutual-credit-ledger/pkg/handlers/websockets"
	"github.com/chris/mutual-credit-ledger/pkg/middleware"
	"github.com/chris/mutual-credit-ledger/pkg/node"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.Build(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to build agent", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := n.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.NewStructuredLogger(logger))

	// Use the generated function to mount our handler on the router
	api.HandlerFromMux(handlers.NewApiHandler(n.Service, n.Service), router)
	peerhandler.NewHandler(n.Service, n.Service).RegisterRoutes(router)
	router.Handle("/ws", wshandler.NewHandler(n.Store, n.Hub))

	go reconcileLoop(ctx, n, cfg.ReconcileInterval, cfg.ReconcileAfter)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "agent", n.Key.AgentID())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// reconcileLoop settles offers left APPROVED by a commit the debtor never answered.
func reconcileLoop(ctx context.Context, n *node.Node, every, olderThan time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolved, err := n.Service.ReconcileApproved(ctx, olderThan)
			if err != nil {
				slog.Error("Reconciliation failed", "error", err)
				continue
			}
			if resolved > 0 {
				slog.Info("Reconciled approved offers", "count", resolved)
			}
		}
	}
}
