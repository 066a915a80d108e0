package peer

import (
	"context"
	"sync"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

// LocalNetwork connects runtimes living in the same process.
type LocalNetwork struct {
	mu       sync.RWMutex
	handlers map[models.AgentID]Handler
	offline  map[models.AgentID]bool
}

// NewLocalNetwork creates an empty network.
func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		handlers: make(map[models.AgentID]Handler),
		offline:  make(map[models.AgentID]bool),
	}
}

// Register attaches the inbound handler of agent.
func (n *LocalNetwork) Register(agent models.AgentID, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[agent] = h
}

// SetOnline marks agent reachable or unreachable.
func (n *LocalNetwork) SetOnline(agent models.AgentID, online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline[agent] = !online
}

func (n *LocalNetwork) route(from, to models.AgentID) (Handler, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	h, ok := n.handlers[to]
	if !ok || n.offline[to] || n.offline[from] {
		return nil, ErrUnreachable
	}
	return h, nil
}

// Messenger returns a Messenger sending on behalf of self.
func (n *LocalNetwork) Messenger(self models.AgentID) Messenger {
	return &localMessenger{network: n, self: self}
}

// Fetcher wraps a chain fetcher so reads of offline agents fail with ErrUnreachable.
func (n *LocalNetwork) Fetcher(self models.AgentID, inner storage.ChainFetcher) storage.ChainFetcher {
	return &localFetcher{network: n, self: self, inner: inner}
}

type localMessenger struct {
	network *LocalNetwork
	self    models.AgentID
}

func (m *localMessenger) SendOffer(ctx context.Context, to models.AgentID, tx models.Transaction) error {
	h, err := m.network.route(m.self, to)
	if err != nil {
		return err
	}
	return h.ReceiveOffer(ctx, m.self, tx)
}

func (m *localMessenger) QueryConsent(ctx context.Context, to models.AgentID, offerID string) (*ConsentReply, error) {
	h, err := m.network.route(m.self, to)
	if err != nil {
		return nil, err
	}
	return h.ConsentStatus(ctx, m.self, offerID)
}

func (m *localMessenger) SendCancel(ctx context.Context, to models.AgentID, offerID string) error {
	h, err := m.network.route(m.self, to)
	if err != nil {
		return err
	}
	return h.ReceiveCancel(ctx, m.self, offerID)
}

func (m *localMessenger) RequestCommit(ctx context.Context, to models.AgentID, req CommitRequest) (*CommitReply, error) {
	h, err := m.network.route(m.self, to)
	if err != nil {
		return nil, err
	}
	return h.CommitOffer(ctx, m.self, req)
}

func (m *localMessenger) SendAttestation(ctx context.Context, to models.AgentID, req AttestRequest) error {
	h, err := m.network.route(m.self, to)
	if err != nil {
		return err
	}
	return h.ReceiveAttestation(ctx, m.self, req)
}

type localFetcher struct {
	network *LocalNetwork
	self    models.AgentID
	inner   storage.ChainFetcher
}

func (f *localFetcher) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	if _, err := f.network.route(f.self, agent); err != nil {
		return nil, err
	}
	return f.inner.FetchChainSince(ctx, agent, since)
}
