package storage

import (
	"context"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// ChainReader defines the interface for reading an agent's own chain.
type ChainReader interface {
	// ListEntries retrieves the agent's chain in append order.
	ListEntries(ctx context.Context, agent models.AgentID) ([]models.ChainEntry, error)

	// Head retrieves the newest header of the agent's chain, or nil if the chain is empty.
	Head(ctx context.Context, agent models.AgentID) (*models.ChainHeader, error)
}

// ChainWriter defines the interface for appending to an agent's own chain.
type ChainWriter interface {
	// AppendEntry appends entry to its author's chain only if the current head
	// equals entry.Header.PreviousHeader. It returns ErrHeadMoved otherwise.
	AppendEntry(ctx context.Context, entry models.ChainEntry) error
}

// ChainFetcher defines the interface for reading another agent's chain.
// Reads are eventually consistent: recently appended entries may not be visible yet.
type ChainFetcher interface {
	// FetchChainSince returns the entries appended after since, or the whole chain if since is nil.
	FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error)
}
