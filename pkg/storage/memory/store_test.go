package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyPair(t *testing.T, seed string) *identity.KeyPair {
	t.Helper()
	k, err := identity.FromSeedHex(strings.Repeat(seed, 32))
	require.NoError(t, err)
	return k
}

func transaction(id string, debtor, creditor models.AgentID) models.Transaction {
	return models.Transaction{Id: id, Debtor: debtor, Creditor: creditor, Amount: decimal.NewFromInt(1), Timestamp: time.Now().UTC()}
}

func TestAppendEntry(t *testing.T) {
	ctx := context.Background()
	alice, bob := keyPair(t, "01"), keyPair(t, "02")
	s := New()

	first := ledger.NewEntry(alice, transaction("t1", alice.AgentID(), bob.AgentID()), nil, time.Now())
	require.NoError(t, s.AppendEntry(ctx, first))

	t.Run("Stale previous header", func(t *testing.T) {
		again := ledger.NewEntry(alice, transaction("t2", alice.AgentID(), bob.AgentID()), nil, time.Now())
		assert.ErrorIs(t, s.AppendEntry(ctx, again), storage.ErrHeadMoved)
	})

	t.Run("On top of the head", func(t *testing.T) {
		next := ledger.NewEntry(alice, transaction("t2", alice.AgentID(), bob.AgentID()), &first.Header, time.Now())
		require.NoError(t, s.AppendEntry(ctx, next))

		head, err := s.Head(ctx, alice.AgentID())
		require.NoError(t, err)
		assert.Equal(t, next.Header.Address, head.Address)

		entries, err := s.ListEntries(ctx, alice.AgentID())
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		since, err := s.FetchChainSince(ctx, alice.AgentID(), &first.Header)
		require.NoError(t, err)
		require.Len(t, since, 1)
		assert.Equal(t, "t2", since[0].Transaction.Id)
	})

	t.Run("Chains are per author", func(t *testing.T) {
		head, err := s.Head(ctx, bob.AgentID())
		require.NoError(t, err)
		assert.Nil(t, head)
	})
}

func TestPropagationLag(t *testing.T) {
	ctx := context.Background()
	alice, bob := keyPair(t, "01"), keyPair(t, "02")
	s := New(WithPropagationLag())

	entry := ledger.NewEntry(alice, transaction("t1", alice.AgentID(), bob.AgentID()), nil, time.Now())
	require.NoError(t, s.AppendEntry(ctx, entry))

	// The owner sees its own append at once, others only after propagation.
	own, _ := s.ListEntries(ctx, alice.AgentID())
	assert.Len(t, own, 1)
	fetched, _ := s.FetchChainSince(ctx, alice.AgentID(), nil)
	assert.Empty(t, fetched)

	attestation := ledger.NewAttestation(bob, entry)
	require.NoError(t, s.PutAttestation(ctx, attestation))
	listed, _ := s.ListAttestations(ctx, alice.AgentID())
	assert.Empty(t, listed)

	s.Propagate(alice.AgentID())
	fetched, _ = s.FetchChainSince(ctx, alice.AgentID(), nil)
	assert.Len(t, fetched, 1)
	listed, _ = s.ListAttestations(ctx, alice.AgentID())
	assert.Equal(t, []models.Attestation{attestation}, listed)
}

func TestAttestations(t *testing.T) {
	ctx := context.Background()
	alice, bob := keyPair(t, "01"), keyPair(t, "02")
	s := New()

	entry := ledger.NewEntry(alice, transaction("t1", alice.AgentID(), bob.AgentID()), nil, time.Now())
	attestation := ledger.NewAttestation(bob, entry)

	require.NoError(t, s.PutAttestation(ctx, attestation))

	t.Run("Publishing again is a no-op", func(t *testing.T) {
		again := attestation
		again.Header = "other"
		require.NoError(t, s.PutAttestation(ctx, again))

		listed, err := s.ListAttestations(ctx, alice.AgentID())
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, entry.Header.Address, listed[0].Header)
	})

	t.Run("Listed by subject", func(t *testing.T) {
		listed, err := s.ListAttestations(ctx, bob.AgentID())
		require.NoError(t, err)
		assert.Empty(t, listed)
	})
}

func TestOffers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))

	offer := &models.Offer{Id: "o1", Owner: "alice", State: models.PENDING, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateOffer(ctx, offer))
	assert.ErrorIs(t, s.CreateOffer(ctx, offer), storage.ErrOfferExists)

	t.Run("Views are per owner", func(t *testing.T) {
		_, err := s.GetOffer(ctx, "bob", "o1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Transition", func(t *testing.T) {
		_, err := s.TransitionOffer(ctx, "alice", "o1", models.RECEIVED, models.PENDING, "")
		assert.ErrorIs(t, err, storage.ErrStateConflict)

		now = now.Add(time.Minute)
		got, err := s.TransitionOffer(ctx, "alice", "o1", models.PENDING, models.APPROVED, "h1")
		require.NoError(t, err)
		assert.Equal(t, models.APPROVED, got.State)
		assert.Equal(t, "h1", got.ApprovedHeader)
		assert.Equal(t, now, got.UpdatedAt)
	})

	t.Run("ListOffersByState honours the age cutoff", func(t *testing.T) {
		fresh, err := s.ListOffersByState(ctx, "alice", models.APPROVED, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, fresh)

		now = now.Add(2 * time.Hour)
		stale, err := s.ListOffersByState(ctx, "alice", models.APPROVED, time.Hour)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "o1", stale[0].Id)
	})
}

func TestCompleteOffer(t *testing.T) {
	ctx := context.Background()
	alice, bob := keyPair(t, "01"), keyPair(t, "02")
	s := New()

	require.NoError(t, s.CreateOffer(ctx, &models.Offer{Id: "t1", Owner: alice.AgentID(), State: models.PENDING}))
	entry := ledger.NewEntry(alice, transaction("t1", alice.AgentID(), bob.AgentID()), nil, time.Now())

	t.Run("Wrong state leaves the chain untouched", func(t *testing.T) {
		err := s.CompleteOffer(ctx, entry, "t1", models.APPROVED, "")
		assert.ErrorIs(t, err, storage.ErrStateConflict)

		entries, _ := s.ListEntries(ctx, alice.AgentID())
		assert.Empty(t, entries)
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, s.CompleteOffer(ctx, entry, "t1", models.PENDING, "bob-head"))

		offer, err := s.GetOffer(ctx, alice.AgentID(), "t1")
		require.NoError(t, err)
		assert.Equal(t, models.COMPLETED, offer.State)
		assert.Equal(t, "bob-head", offer.ApprovedHeader)

		entries, _ := s.ListEntries(ctx, alice.AgentID())
		assert.Len(t, entries, 1)
	})
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AddConnection(ctx, "b"))
	require.NoError(t, s.AddConnection(ctx, "a"))
	ids, err := s.GetAllConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.RemoveConnection(ctx, "a"))
	ids, _ = s.GetAllConnections(ctx)
	assert.Equal(t, []string{"b"}, ids)

	// Pruning a connection the store never saw is fine.
	require.NoError(t, s.RemoveConnection(ctx, "gone"))
}
