package storage

import (
	"context"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// AttestationReader defines the interface for reading what witnesses published about an agent.
type AttestationReader interface {
	// ListAttestations retrieves the attestations whose subject is agent. Like chain
	// fetches, reads are eventually consistent.
	ListAttestations(ctx context.Context, subject models.AgentID) ([]models.Attestation, error)
}

// AttestationWriter defines the interface for publishing attestations.
type AttestationWriter interface {
	// PutAttestation stores a. Publishing the same subject and transaction again is a no-op.
	PutAttestation(ctx context.Context, a models.Attestation) error
}

// AttestationStore is the registry that witnesses publish to and snapshots read from.
type AttestationStore interface {
	AttestationReader
	AttestationWriter
}
