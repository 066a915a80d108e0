package node

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/config"
	"github.com/chris/mutual-credit-ledger/pkg/storage/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		PrivateKey:         strings.Repeat("07", 32),
		Backend:            config.BackendMemory,
		PeerTimeout:        time.Second,
		DefaultCreditLimit: decimal.NewFromInt(100),
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory backend publishes to a local hub", func(t *testing.T) {
		n, err := Build(ctx, baseConfig(), slog.Default())
		require.NoError(t, err)
		defer n.Close()

		require.NotNil(t, n.Hub)
		assert.Same(t, n.Hub, n.Publisher)
		assert.Equal(t, n.Key.AgentID(), n.Service.Self())

		balance, err := n.Service.QueryMyBalance(ctx)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("SQLite backend", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Backend = config.BackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

		n, err := Build(ctx, cfg, slog.Default())
		require.NoError(t, err)
		assert.IsType(t, &sqlite.Store{}, n.Store)
		assert.NoError(t, n.Close())
	})

	t.Run("Bad key", func(t *testing.T) {
		cfg := baseConfig()
		cfg.PrivateKey = "zz"
		_, err := Build(ctx, cfg, slog.Default())
		assert.ErrorContains(t, err, "agent key")
	})

	t.Run("Missing limits file", func(t *testing.T) {
		cfg := baseConfig()
		cfg.CreditLimitsFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := Build(ctx, cfg, slog.Default())
		assert.Error(t, err)
	})
}
