package storage

import (
	"context"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// SettlementStore defines the interface for the final commit of an offer.
// It should only be exposed to the component that drives the offer protocol.
type SettlementStore interface {
	// CompleteOffer appends entry to its author's chain and marks the author's offer COMPLETED
	// in one atomic step. The append is conditioned on the chain head (ErrHeadMoved) and the
	// transition on the offer still being in from (ErrStateConflict).
	CompleteOffer(ctx context.Context, entry models.ChainEntry, offerID string, from models.OfferState, approvedHeader string) error
}
