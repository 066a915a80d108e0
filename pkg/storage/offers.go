package storage

import (
	"context"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// OfferReader defines the interface for reading an agent's local offers.
type OfferReader interface {
	// GetOffer retrieves one offer from owner's view. It returns ErrNotFound if it does not exist.
	GetOffer(ctx context.Context, owner models.AgentID, offerID string) (*models.Offer, error)

	// ListOffers retrieves all offers in owner's view.
	ListOffers(ctx context.Context, owner models.AgentID) ([]models.Offer, error)

	// ListOffersByState retrieves offers in the given state not updated for longer than olderThan.
	ListOffersByState(ctx context.Context, owner models.AgentID, state models.OfferState, olderThan time.Duration) ([]models.Offer, error)
}

// OfferWriter defines the interface for creating and transitioning offers.
type OfferWriter interface {
	// CreateOffer stores a new offer. It returns ErrOfferExists if the owner already has it.
	CreateOffer(ctx context.Context, offer *models.Offer) error

	// TransitionOffer moves an offer from one state to another. approvedHeader is recorded
	// when non-empty. It returns ErrStateConflict if the offer is no longer in from.
	TransitionOffer(ctx context.Context, owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) (*models.Offer, error)
}
