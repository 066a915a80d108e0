package offers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/storage/memory"
	"github.com/chris/mutual-credit-ledger/pkg/websockets"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type agent struct {
	key      *identity.KeyPair
	service  *Service
	recorder *websockets.Recorder
}

func (a *agent) id() models.AgentID {
	return a.key.AgentID()
}

type network struct {
	t      *testing.T
	store  *memory.Store
	local  *peer.LocalNetwork
	limits *credit.StaticLimits
	agents map[string]*agent
}

func newNetwork(t *testing.T, storeOpts ...memory.Option) *network {
	t.Helper()
	return &network{
		t:      t,
		store:  memory.New(storeOpts...),
		local:  peer.NewLocalNetwork(),
		limits: credit.NewStaticLimits(credit.DefaultLimit),
		agents: make(map[string]*agent),
	}
}

func (n *network) add(name string, seedByte string, opts ...Option) *agent {
	n.t.Helper()
	key, err := identity.FromSeedHex(strings.Repeat(seedByte, 32))
	require.NoError(n.t, err)

	recorder := &websockets.Recorder{}
	opts = append([]Option{WithPublisher(recorder)}, opts...)
	svc := NewService(key, n.store, n.local.Fetcher(key.AgentID(), n.store), n.local.Messenger(key.AgentID()), n.limits, opts...)
	n.local.Register(key.AgentID(), svc)

	a := &agent{key: key, service: svc, recorder: recorder}
	n.agents[name] = a
	return a
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// settle runs the whole happy path: offer, consent, snapshot, accept.
func settle(t *testing.T, debtor, creditor *agent, value string) string {
	t.Helper()
	ctx := context.Background()

	id, err := debtor.service.CreateOffer(ctx, creditor.id(), amount(value), time.Time{})
	require.NoError(t, err)
	_, err = creditor.service.ConsentForOffer(ctx, id)
	require.NoError(t, err)

	snap, err := creditor.service.GetCounterpartySnapshot(ctx, id)
	require.NoError(t, err)
	require.True(t, snap.Online)
	require.NotNil(t, snap.Snapshot)
	require.True(t, snap.Snapshot.Valid, "snapshot invalid: %v", snap.Snapshot.InvalidReason)

	_, err = creditor.service.AcceptOffer(ctx, id, snap.Snapshot.Token())
	require.NoError(t, err)
	return id
}

func balanceOf(t *testing.T, a *agent) decimal.Decimal {
	t.Helper()
	b, err := a.service.QueryMyBalance(context.Background())
	require.NoError(t, err)
	return b
}

func stateOf(t *testing.T, a *agent, offerID string) models.OfferState {
	t.Helper()
	offer, err := a.service.QueryOffer(context.Background(), offerID)
	require.NoError(t, err)
	return offer.State
}
