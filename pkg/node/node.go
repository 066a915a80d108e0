// Package node assembles an agent's runtime from configuration. Every entry point under cmd/
// builds its dependencies through Build so the server and the lambdas agree on the wiring.
package node

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/mutual-credit-ledger/pkg/config"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/offers"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/scheduler"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/chris/mutual-credit-ledger/pkg/storage/dynamodb"
	"github.com/chris/mutual-credit-ledger/pkg/storage/memory"
	"github.com/chris/mutual-credit-ledger/pkg/storage/sqlite"
	"github.com/chris/mutual-credit-ledger/pkg/websockets"
)

// Store is what a backend must provide to host an agent.
type Store interface {
	storage.LedgerStore
	storage.SubscriberStore
}

// Node is a fully wired agent.
type Node struct {
	Key       *identity.KeyPair
	Store     Store
	Client    *peer.Client
	Service   *offers.Service
	Publisher websockets.Publisher
	// Hub is set when signals go to clients connected directly to this process.
	Hub *websockets.Hub

	closers []func() error
}

// Build wires a Node from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Node, error) {
	key, err := identity.FromSeedHex(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent key: %w", err)
	}
	n := &Node{Key: key}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	switch cfg.Backend {
	case config.BackendMemory:
		n.Store = memory.New()
	case config.BackendSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		n.Store = store
		n.closers = append(n.closers, store.Close)
	case config.BackendDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		n.Store = dynamodb.New(awsdynamodb.NewFromConfig(c), cfg.DynamoDB.ChainsTable, cfg.DynamoDB.OffersTable,
			cfg.DynamoDB.AttestationsTable, cfg.DynamoDB.ConnectionsTable)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	limits, err := cfg.Limits()
	if err != nil {
		n.Close()
		return nil, err
	}

	n.Client = peer.NewClient(key, cfg.Peers, cfg.PeerTimeout)

	opts := []offers.Option{offers.WithLogger(logger)}

	// Agents on local stores still need a registry their partners can read.
	if cfg.Backend != config.BackendDynamoDB && cfg.DynamoDB.AttestationsTable != "" {
		c, err := loadAWS()
		if err != nil {
			n.Close()
			return nil, err
		}
		opts = append(opts, offers.WithAttestations(dynamodb.NewRegistry(awsdynamodb.NewFromConfig(c), cfg.DynamoDB.AttestationsTable)))
	}

	if cfg.SQSQueueURL != "" {
		c, err := loadAWS()
		if err != nil {
			n.Close()
			return nil, err
		}
		opts = append(opts, offers.WithOutbox(scheduler.NewSQSScheduler(sqs.NewFromConfig(c), cfg.SQSQueueURL), cfg.RedeliveryDelay))
	}

	if cfg.WebSocketEndpoint != "" {
		publisher, err := websockets.NewPublisher(ctx, n.Store, n.Store, cfg.WebSocketEndpoint)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("failed to create websocket publisher: %w", err)
		}
		n.Publisher = publisher
	} else {
		n.Hub = websockets.NewHub()
		n.Publisher = n.Hub
	}
	opts = append(opts, offers.WithPublisher(n.Publisher))

	n.Service = offers.NewService(key, n.Store, n.Client, n.Client, limits, opts...)

	logger.Info("Agent ready",
		"agent", key.AgentID(),
		"backend", cfg.Backend,
		"peers", len(cfg.Peers),
		"outbox", cfg.SQSQueueURL != "",
		"attestations", cfg.Backend == config.BackendDynamoDB || cfg.DynamoDB.AttestationsTable != "",
	)
	return n, nil
}

// Close releases the store.
func (n *Node) Close() error {
	var first error
	for _, c := range n.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
