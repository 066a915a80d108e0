package peer

import (
	"context"
	"testing"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler remembers the messages it received.
type recordingHandler struct {
	offers  []models.Transaction
	cancels []string
	attests []AttestRequest
}

func (h *recordingHandler) ReceiveOffer(ctx context.Context, from models.AgentID, tx models.Transaction) error {
	h.offers = append(h.offers, tx)
	return nil
}

func (h *recordingHandler) ConsentStatus(ctx context.Context, from models.AgentID, offerID string) (*ConsentReply, error) {
	return &ConsentReply{State: models.PENDING}, nil
}

func (h *recordingHandler) ReceiveCancel(ctx context.Context, from models.AgentID, offerID string) error {
	h.cancels = append(h.cancels, offerID)
	return nil
}

func (h *recordingHandler) CommitOffer(ctx context.Context, from models.AgentID, req CommitRequest) (*CommitReply, error) {
	return &CommitReply{Status: CommitCommitted}, nil
}

func (h *recordingHandler) ReceiveAttestation(ctx context.Context, from models.AgentID, req AttestRequest) error {
	h.attests = append(h.attests, req)
	return nil
}

type staticFetcher []models.ChainEntry

func (f staticFetcher) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	return f, nil
}

func TestLocalNetwork(t *testing.T) {
	ctx := context.Background()
	network := NewLocalNetwork()
	bob := &recordingHandler{}
	network.Register("bob", bob)
	alice := network.Messenger("alice")

	require.NoError(t, alice.SendOffer(ctx, "bob", models.Transaction{Id: "o1"}))
	assert.Len(t, bob.offers, 1)

	reply, err := alice.RequestCommit(ctx, "bob", CommitRequest{OfferID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, CommitCommitted, reply.Status)

	fetcher := network.Fetcher("alice", staticFetcher{{Author: "bob"}})
	entries, err := fetcher.FetchChainSince(ctx, "bob", nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	t.Run("Offline recipient", func(t *testing.T) {
		network.SetOnline("bob", false)
		defer network.SetOnline("bob", true)

		_, err := alice.QueryConsent(ctx, "bob", "o1")
		assert.ErrorIs(t, err, ErrUnreachable)
		_, err = fetcher.FetchChainSince(ctx, "bob", nil)
		assert.ErrorIs(t, err, ErrUnreachable)
	})

	t.Run("Offline sender", func(t *testing.T) {
		network.SetOnline("alice", false)
		defer network.SetOnline("alice", true)

		assert.ErrorIs(t, alice.SendCancel(ctx, "bob", "o1"), ErrUnreachable)
	})

	t.Run("Unregistered agent", func(t *testing.T) {
		assert.ErrorIs(t, alice.SendCancel(ctx, "carol", "o1"), ErrUnreachable)
	})
}

func TestDeliver(t *testing.T) {
	ctx := context.Background()
	network := NewLocalNetwork()
	bob := &recordingHandler{}
	network.Register("bob", bob)
	m := network.Messenger("alice")

	tx := models.Transaction{Id: "o1"}
	require.NoError(t, Deliver(ctx, m, Envelope{Kind: KindOffer, From: "alice", To: "bob", OfferID: "o1", Transaction: &tx}))
	require.NoError(t, Deliver(ctx, m, Envelope{Kind: KindCancel, From: "alice", To: "bob", OfferID: "o1"}))
	attest := AttestRequest{OfferID: "o1", Header: models.ChainHeader{Address: "h1"}}
	require.NoError(t, Deliver(ctx, m, Envelope{Kind: KindAttest, From: "alice", To: "bob", OfferID: "o1", Attest: &attest}))
	assert.Len(t, bob.offers, 1)
	assert.Equal(t, []string{"o1"}, bob.cancels)
	assert.Equal(t, []AttestRequest{attest}, bob.attests)

	assert.Error(t, Deliver(ctx, m, Envelope{Kind: KindOffer, To: "bob", OfferID: "o2"}))
	assert.Error(t, Deliver(ctx, m, Envelope{Kind: KindAttest, To: "bob", OfferID: "o2"}))
	assert.Error(t, Deliver(ctx, m, Envelope{Kind: "ping", To: "bob"}))
}
