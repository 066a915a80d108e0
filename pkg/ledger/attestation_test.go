package ledger_test

import (
	"testing"

	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAttestation(t *testing.T) {
	alice, carol, mallory := key(t, "01"), key(t, "03"), key(t, "04")
	verifier := identity.Ed25519Verifier{}
	entries := build(alice, tx("t1", alice.AgentID(), carol.AgentID(), "60"))

	t.Run("Valid", func(t *testing.T) {
		a := ledger.NewAttestation(carol, entries[0])
		assert.Equal(t, alice.AgentID(), a.Subject)
		assert.Equal(t, carol.AgentID(), a.Witness)
		assert.Equal(t, "t1", a.TransactionID)
		assert.Equal(t, entries[0].Header.Address, a.Header)
		assert.NoError(t, ledger.VerifyAttestation(a, verifier))
	})

	t.Run("Header the subject never signed", func(t *testing.T) {
		forged := entries[0]
		forged.Header.Address = "made-up"
		a := ledger.NewAttestation(mallory, forged)
		assert.ErrorContains(t, ledger.VerifyAttestation(a, verifier), "is not signed by")
	})

	t.Run("Altered after signing", func(t *testing.T) {
		a := ledger.NewAttestation(carol, entries[0])
		a.TransactionID = "t2"
		assert.ErrorContains(t, ledger.VerifyAttestation(a, verifier), "attestation is not signed by")
	})

	t.Run("Self attested", func(t *testing.T) {
		a := ledger.NewAttestation(alice, entries[0])
		assert.Error(t, ledger.VerifyAttestation(a, verifier))
	})
}

func TestCheckAttestations(t *testing.T) {
	alice, bob, carol, mallory := key(t, "01"), key(t, "02"), key(t, "03"), key(t, "04")
	verifier := identity.Ed25519Verifier{}

	full := build(alice,
		tx("t1", alice.AgentID(), carol.AgentID(), "60"),
		tx("t2", alice.AgentID(), carol.AgentID(), "35"),
	)
	attested := []models.Attestation{
		ledger.NewAttestation(carol, full[0]),
		ledger.NewAttestation(carol, full[1]),
	}

	t.Run("Complete chain", func(t *testing.T) {
		assert.Nil(t, ledger.CheckAttestations(alice.AgentID(), full, attested, verifier))
	})

	t.Run("Chain served without its newest entry", func(t *testing.T) {
		reason := ledger.CheckAttestations(alice.AgentID(), full[:1], attested, verifier)
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonAttestationMismatch, reason.Kind)
		assert.Contains(t, reason.Detail, full[1].Header.Address)
		assert.True(t, reason.Retryable())
	})

	t.Run("Empty chain with attested history", func(t *testing.T) {
		reason := ledger.CheckAttestations(alice.AgentID(), nil, attested, verifier)
		require.NotNil(t, reason)
		assert.Equal(t, models.ReasonAttestationMismatch, reason.Kind)
	})

	t.Run("Unattested entries are accepted", func(t *testing.T) {
		assert.Nil(t, ledger.CheckAttestations(alice.AgentID(), full, attested[:1], verifier))
	})

	t.Run("Attestations about someone else are ignored", func(t *testing.T) {
		other := build(bob, tx("t9", bob.AgentID(), carol.AgentID(), "1"))
		about := []models.Attestation{ledger.NewAttestation(carol, other[0])}
		assert.Nil(t, ledger.CheckAttestations(alice.AgentID(), full[:1], about, verifier))
	})

	t.Run("Forged attestations are ignored", func(t *testing.T) {
		fake := full[1]
		fake.Header.Address = "made-up"
		forged := []models.Attestation{ledger.NewAttestation(mallory, fake)}
		assert.Nil(t, ledger.CheckAttestations(alice.AgentID(), full, forged, verifier))
	})
}
