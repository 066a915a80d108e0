package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/mutual-credit-ledger/pkg/config"
	"github.com/chris/mutual-credit-ledger/pkg/node"
	"github.com/joho/godotenv"
)

var (
	agent          *node.Node
	reconcileAfter time.Duration
)

func init() {
	// Load environment variables for local testing.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("unable to load configuration, %v", err)
	}
	reconcileAfter = cfg.ReconcileAfter

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	agent, err = node.Build(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("unable to build agent, %v", err)
	}
}

// HandleRequest is triggered by an EventBridge Schedule.
func HandleRequest(ctx context.Context) error {
	log.Println("Starting reconciliation of approved offers...")

	resolved, err := agent.Service.ReconcileApproved(ctx, reconcileAfter)
	if err != nil {
		log.Printf("ERROR: reconciliation stopped after %d offers: %v", resolved, err)
		return err
	}

	log.Printf("Reconciliation finished, %d offers resolved.", resolved)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
