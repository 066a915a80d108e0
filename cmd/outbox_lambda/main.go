package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/mutual-credit-ledger/pkg/config"
	"github.com/chris/mutual-credit-ledger/pkg/node"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/joho/godotenv"
)

var agent *node.Node

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("unable to load configuration, %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Initialize dependencies once.
	agent, err = node.Build(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("unable to build agent, %v", err)
	}
}

// HandleRequest redelivers the envelopes queued while their recipient was unreachable.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, message := range sqsEvent.Records {
		log.Printf("Processing message %s", message.MessageId)

		var env peer.Envelope
		if err := json.Unmarshal([]byte(message.Body), &env); err != nil {
			// A malformed body will never parse; retrying it would only block the queue.
			log.Printf("ERROR: dropping message %s, failed to unmarshal envelope: %v", message.MessageId, err)
			continue
		}

		log.Printf("Delivering %s for offer %s to %s (attempt %d)", env.Kind, env.OfferID, env.To, env.Attempt)

		if err := agent.Service.DeliverEnvelope(ctx, env); err != nil {
			log.Printf("ERROR: failed to deliver envelope for offer %s: %v", env.OfferID, err)
			// Returning an error makes SQS retry the whole batch.
			return err
		}
	}

	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
