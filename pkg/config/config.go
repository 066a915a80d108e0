// Package config provides agent configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds all agent configuration.
type Config struct {
	Port       string
	LogLevel   slog.Level
	PrivateKey string

	Backend     string
	SQLitePath  string
	DynamoDB    DynamoDBConfig
	SQSQueueURL string

	WebSocketEndpoint string

	Peers       map[models.AgentID]string
	PeerTimeout time.Duration

	DefaultCreditLimit decimal.Decimal
	CreditLimitsFile   string

	RedeliveryDelay   time.Duration
	ReconcileAfter    time.Duration
	ReconcileInterval time.Duration
}

// DynamoDBConfig names the tables used by the dynamodb backend. AttestationsTable may also be
// set on its own, which shares attestations through DynamoDB while chains stay local.
type DynamoDBConfig struct {
	ChainsTable       string
	OffersTable       string
	AttestationsTable string
	ConnectionsTable  string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	peers, err := ParsePeers(getEnv("PEERS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	limit, err := getEnvDecimal("DEFAULT_CREDIT_LIMIT", credit.DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:       getEnv("HTTP_PORT", "8080"),
		LogLevel:   parseLevel(getEnv("LOG_LEVEL", "info")),
		PrivateKey: getEnv("AGENT_PRIVATE_KEY", ""),
		Backend:    strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
		SQLitePath: getEnv("SQLITE_PATH", "ledger.db"),
		DynamoDB: DynamoDBConfig{
			ChainsTable:       getEnv("DYNAMODB_CHAINS_TABLE_NAME", ""),
			OffersTable:       getEnv("DYNAMODB_OFFERS_TABLE_NAME", ""),
			AttestationsTable: getEnv("DYNAMODB_ATTESTATIONS_TABLE_NAME", ""),
			ConnectionsTable:  getEnv("DYNAMODB_CONNECTIONS_TABLE_NAME", ""),
		},
		SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
		WebSocketEndpoint:  getEnv("WEBSOCKET_API_ENDPOINT", ""),
		Peers:              peers,
		PeerTimeout:        getEnvDuration("PEER_TIMEOUT", 5*time.Second),
		DefaultCreditLimit: limit,
		CreditLimitsFile:   getEnv("CREDIT_LIMITS_FILE", ""),
		RedeliveryDelay:    getEnvDuration("REDELIVERY_DELAY", 30*time.Second),
		ReconcileAfter:     getEnvDuration("RECONCILE_AFTER", 20*time.Minute),
		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("AGENT_PRIVATE_KEY must be set")
	}
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty")
		}
	case BackendDynamoDB:
		d := c.DynamoDB
		if d.ChainsTable == "" || d.OffersTable == "" || d.AttestationsTable == "" || d.ConnectionsTable == "" {
			return fmt.Errorf("one or more DynamoDB table name environment variables are not set")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}
	if c.PeerTimeout <= 0 {
		return fmt.Errorf("PEER_TIMEOUT must be > 0")
	}
	if c.DefaultCreditLimit.IsNegative() {
		return fmt.Errorf("DEFAULT_CREDIT_LIMIT must not be negative")
	}
	return nil
}

// Limits returns the credit limits: the YAML file if one is configured, the default otherwise.
func (c *Config) Limits() (*credit.StaticLimits, error) {
	if c.CreditLimitsFile == "" {
		return credit.NewStaticLimits(c.DefaultCreditLimit), nil
	}
	return credit.LoadLimits(c.CreditLimitsFile, c.DefaultCreditLimit)
}

// ParsePeers parses a comma separated list of agentID=baseURL pairs.
func ParsePeers(s string) (map[models.AgentID]string, error) {
	peers := make(map[models.AgentID]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, url, ok := strings.Cut(pair, "=")
		id, url = strings.TrimSpace(id), strings.TrimSpace(url)
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("malformed PEERS entry %q", pair)
		}
		peers[models.AgentID(id)] = strings.TrimRight(url, "/")
	}
	return peers, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		// Bare numbers are seconds.
		if n := getEnvInt(key, -1); n >= 0 {
			return time.Duration(n) * time.Second
		}
		return fallback
	}
	return d
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
