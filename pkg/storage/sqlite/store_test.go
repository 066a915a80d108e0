package sqlite

import (
	"context"
	"path/filepath"
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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func keys(t *testing.T) (*identity.KeyPair, *identity.KeyPair) {
	t.Helper()
	alice, err := identity.FromSeedHex(strings.Repeat("0a", 32))
	require.NoError(t, err)
	bob, err := identity.FromSeedHex(strings.Repeat("0b", 32))
	require.NoError(t, err)
	return alice, bob
}

func newOffer(alice, bob *identity.KeyPair, id string, state models.OfferState) *models.Offer {
	now := time.Now().UTC()
	return &models.Offer{
		Id:    id,
		Owner: alice.AgentID(),
		Transaction: models.Transaction{
			Id:        id,
			Debtor:    alice.AgentID(),
			Creditor:  bob.AgentID(),
			Amount:    decimal.RequireFromString("3.5"),
			Timestamp: now,
		},
		State:        state,
		Proposer:     alice.AgentID(),
		Counterparty: bob.AgentID(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice, bob := keys(t)

	head, err := s.Head(ctx, alice.AgentID())
	require.NoError(t, err)
	assert.Nil(t, head)

	tx1 := models.Transaction{Id: "t1", Debtor: alice.AgentID(), Creditor: bob.AgentID(), Amount: decimal.NewFromInt(10), Timestamp: time.Now()}
	first := ledger.NewEntry(alice, tx1, nil, time.Now())
	require.NoError(t, s.AppendEntry(ctx, first))

	t.Run("stale append is rejected", func(t *testing.T) {
		tx2 := tx1
		tx2.Id = "t2"
		err := s.AppendEntry(ctx, ledger.NewEntry(alice, tx2, nil, time.Now()))
		assert.ErrorIs(t, err, storage.ErrHeadMoved)
	})

	tx3 := tx1
	tx3.Id = "t3"
	second := ledger.NewEntry(alice, tx3, &first.Header, time.Now())
	require.NoError(t, s.AppendEntry(ctx, second))

	t.Run("entries round trip", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, alice.AgentID())
		require.NoError(t, err)
		require.Len(t, entries, 2)

		_, reason := ledger.ValidateChain(alice.AgentID(), entries, identity.Ed25519Verifier{})
		assert.Nil(t, reason)

		balance, err := ledger.BalanceOf(alice.AgentID(), entries)
		require.NoError(t, err)
		assert.Equal(t, "-20", balance.String())
	})

	t.Run("head and fetch", func(t *testing.T) {
		head, err := s.Head(ctx, alice.AgentID())
		require.NoError(t, err)
		assert.Equal(t, second.Header.Address, head.Address)

		rest, err := s.FetchChainSince(ctx, alice.AgentID(), &first.Header)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "t3", rest[0].Transaction.Id)
	})
}

func TestOffers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice, bob := keys(t)

	offer := newOffer(alice, bob, "o1", models.PENDING)
	require.NoError(t, s.CreateOffer(ctx, offer))
	assert.ErrorIs(t, s.CreateOffer(ctx, offer), storage.ErrOfferExists)

	got, err := s.GetOffer(ctx, alice.AgentID(), "o1")
	require.NoError(t, err)
	assert.Equal(t, models.PENDING, got.State)
	assert.Equal(t, bob.AgentID(), got.Counterparty)
	assert.True(t, offer.Transaction.Amount.Equal(got.Transaction.Amount))

	_, err = s.GetOffer(ctx, bob.AgentID(), "o1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	t.Run("transition", func(t *testing.T) {
		updated, err := s.TransitionOffer(ctx, alice.AgentID(), "o1", models.PENDING, models.APPROVED, "h1")
		require.NoError(t, err)
		assert.Equal(t, models.APPROVED, updated.State)
		assert.Equal(t, "h1", updated.ApprovedHeader)

		_, err = s.TransitionOffer(ctx, alice.AgentID(), "o1", models.PENDING, models.CANCELED, "")
		assert.ErrorIs(t, err, storage.ErrStateConflict)

		_, err = s.TransitionOffer(ctx, alice.AgentID(), "missing", models.PENDING, models.CANCELED, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		reverted, err := s.TransitionOffer(ctx, alice.AgentID(), "o1", models.APPROVED, models.PENDING, "")
		require.NoError(t, err)
		assert.Equal(t, "h1", reverted.ApprovedHeader, "an empty header keeps the recorded one")
	})

	t.Run("list by state", func(t *testing.T) {
		require.NoError(t, s.CreateOffer(ctx, newOffer(alice, bob, "o2", models.CANCELED)))

		all, err := s.ListOffers(ctx, alice.AgentID())
		require.NoError(t, err)
		assert.Len(t, all, 2)

		pending, err := s.ListOffersByState(ctx, alice.AgentID(), models.PENDING, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "o1", pending[0].Id)

		recent, err := s.ListOffersByState(ctx, alice.AgentID(), models.PENDING, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})
}

func TestCompleteOffer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice, bob := keys(t)

	offer := newOffer(alice, bob, "o1", models.PENDING)
	require.NoError(t, s.CreateOffer(ctx, offer))
	entry := ledger.NewEntry(alice, offer.Transaction, nil, time.Now())

	t.Run("wrong state leaves the chain untouched", func(t *testing.T) {
		err := s.CompleteOffer(ctx, entry, "o1", models.APPROVED, "")
		assert.ErrorIs(t, err, storage.ErrStateConflict)

		entries, err := s.ListEntries(ctx, alice.AgentID())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("stale head leaves the offer untouched", func(t *testing.T) {
		stale := entry
		stale.Header.PreviousHeader = "elsewhere"
		err := s.CompleteOffer(ctx, stale, "o1", models.PENDING, "")
		assert.ErrorIs(t, err, storage.ErrHeadMoved)

		got, err := s.GetOffer(ctx, alice.AgentID(), "o1")
		require.NoError(t, err)
		assert.Equal(t, models.PENDING, got.State)
	})

	require.NoError(t, s.CompleteOffer(ctx, entry, "o1", models.PENDING, ""))

	got, err := s.GetOffer(ctx, alice.AgentID(), "o1")
	require.NoError(t, err)
	assert.Equal(t, models.COMPLETED, got.State)
	entries, err := s.ListEntries(ctx, alice.AgentID())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddConnection(ctx, "b"))
	require.NoError(t, s.AddConnection(ctx, "a"))
	require.NoError(t, s.AddConnection(ctx, "a"))

	ids, err := s.GetAllConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.RemoveConnection(ctx, "a"))
	ids, err = s.GetAllConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	// Pruning a connection the store never saw is fine.
	require.NoError(t, s.RemoveConnection(ctx, "gone"))
}

func TestAttestations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice, bob := keys(t)

	tx1 := models.Transaction{Id: "t1", Debtor: alice.AgentID(), Creditor: bob.AgentID(), Amount: decimal.NewFromInt(10), Timestamp: time.Now()}
	first := ledger.NewEntry(alice, tx1, nil, time.Now())
	tx2 := tx1
	tx2.Id = "t2"
	second := ledger.NewEntry(alice, tx2, &first.Header, time.Now())

	require.NoError(t, s.PutAttestation(ctx, ledger.NewAttestation(bob, first)))
	require.NoError(t, s.PutAttestation(ctx, ledger.NewAttestation(bob, second)))

	t.Run("round trip", func(t *testing.T) {
		listed, err := s.ListAttestations(ctx, alice.AgentID())
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, first.Header.Address, listed[0].Header)
		assert.Equal(t, second.Header.Address, listed[1].Header)
		for _, a := range listed {
			assert.NoError(t, ledger.VerifyAttestation(a, identity.Ed25519Verifier{}))
		}
	})

	t.Run("publishing again is a no-op", func(t *testing.T) {
		again := ledger.NewAttestation(bob, first)
		again.Header = "other"
		require.NoError(t, s.PutAttestation(ctx, again))

		listed, err := s.ListAttestations(ctx, alice.AgentID())
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, first.Header.Address, listed[0].Header)
	})

	t.Run("listed by subject", func(t *testing.T) {
		listed, err := s.ListAttestations(ctx, bob.AgentID())
		require.NoError(t, err)
		assert.Empty(t, listed)
	})
}
