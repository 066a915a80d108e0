package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	wshandler "github.com/chris/mutual-credit-ledger/pkg/handlers/websockets"
	dydbstore "github.com/chris/mutual-credit-ledger/pkg/storage/dynamodb"
	"github.com/joho/godotenv"
)

var handler *wshandler.Handler

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	connectionsTable := os.Getenv("DYNAMODB_CONNECTIONS_TABLE_NAME")
	if connectionsTable == "" {
		log.Fatal("DYNAMODB_CONNECTIONS_TABLE_NAME environment variable not set")
	}

	// Only the connections table is touched here.
	store := dydbstore.New(dynamodb.NewFromConfig(cfg), "", "", "", connectionsTable)
	handler = wshandler.NewHandler(store, nil)
}

func main() {
	lambda.Start(handler.Route)
}
