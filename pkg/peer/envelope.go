package peer

import (
	"context"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// Kind is the type of message held by an Envelope.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindCancel Kind = "cancel"
	KindAttest Kind = "attest"
)

// Envelope is a one-way message queued for redelivery after the recipient was unreachable.
type Envelope struct {
	Kind        Kind                `json:"kind"`
	From        models.AgentID      `json:"from"`
	To          models.AgentID      `json:"to"`
	OfferID     string              `json:"offer_id"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Attest      *AttestRequest      `json:"attest,omitempty"`
	Attempt     int                 `json:"attempt"`
}

// Deliver sends the envelope through m.
func Deliver(ctx context.Context, m Messenger, env Envelope) error {
	switch env.Kind {
	case KindOffer:
		if env.Transaction == nil {
			return fmt.Errorf("offer envelope %s has no transaction", env.OfferID)
		}
		return m.SendOffer(ctx, env.To, *env.Transaction)
	case KindCancel:
		return m.SendCancel(ctx, env.To, env.OfferID)
	case KindAttest:
		if env.Attest == nil {
			return fmt.Errorf("attest envelope %s has no entry", env.OfferID)
		}
		return m.SendAttestation(ctx, env.To, *env.Attest)
	default:
		return fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
}
