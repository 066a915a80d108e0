package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSeedHex(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a, err := FromSeedHex(strings.Repeat("ab", 32))
		require.NoError(t, err)
		b, err := FromSeedHex(strings.Repeat("ab", 32))
		require.NoError(t, err)

		assert.Equal(t, a.AgentID(), b.AgentID())
		assert.Len(t, string(a.AgentID()), 64)
	})

	t.Run("Not hex", func(t *testing.T) {
		_, err := FromSeedHex("xyz")
		assert.Error(t, err)
	})

	t.Run("Wrong length", func(t *testing.T) {
		_, err := FromSeedHex("abcd")
		assert.ErrorContains(t, err, "32 bytes")
	})
}

func TestVerify(t *testing.T) {
	alice, err := Generate()
	require.NoError(t, err)
	bob, err := Generate()
	require.NoError(t, err)

	msg := []byte("header")
	sig := alice.Sign(msg)
	v := Ed25519Verifier{}

	assert.NoError(t, v.Verify(alice.AgentID(), msg, sig))
	assert.ErrorIs(t, v.Verify(bob.AgentID(), msg, sig), ErrBadSignature)
	assert.ErrorIs(t, v.Verify(alice.AgentID(), []byte("other"), sig), ErrBadSignature)
	assert.ErrorIs(t, v.Verify("not-a-key", msg, sig), ErrInvalidAgentID)
}
