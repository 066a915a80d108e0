// Package identity manages agent key pairs. An agent is identified by its hex encoded ed25519 public key.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// ErrInvalidAgentID is returned when an agent ID does not decode to an ed25519 public key.
var ErrInvalidAgentID = errors.New("invalid agent id")

// ErrBadSignature is returned when a signature does not verify against the agent's key.
var ErrBadSignature = errors.New("signature verification failed")

// KeyPair holds the signing key of the local agent.
type KeyPair struct {
	ID         models.AgentID
	PrivateKey ed25519.PrivateKey
}

// Generate creates a new random key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &KeyPair{ID: models.AgentID(hex.EncodeToString(pub)), PrivateKey: priv}, nil
}

// FromSeedHex restores a key pair from a hex encoded 32 byte seed.
func FromSeedHex(seed string) (*KeyPair, error) {
	raw, err := hex.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	priv := ed25519.NewKeyFromSeed(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{ID: models.AgentID(hex.EncodeToString(pub)), PrivateKey: priv}, nil
}

// AgentID returns the identity of the key pair.
func (k *KeyPair) AgentID() models.AgentID {
	return k.ID
}

// Sign signs msg with the private key.
func (k *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.PrivateKey, msg)
}

// PublicKey decodes the public key of an agent.
func PublicKey(agent models.AgentID) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(string(agent))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAgentID, agent)
	}
	return ed25519.PublicKey(raw), nil
}

// Ed25519Verifier verifies signatures made by agents.
type Ed25519Verifier struct{}

// Verify checks that sig is agent's signature over msg.
func (Ed25519Verifier) Verify(agent models.AgentID, msg, sig []byte) error {
	pub, err := PublicKey(agent)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return ErrBadSignature
	}
	return nil
}
