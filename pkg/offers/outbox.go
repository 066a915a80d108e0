package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
)

// MaxRedeliveryAttempts is how often a queued message is retried before it is dropped.
const MaxRedeliveryAttempts = 10

const maxRedeliveryDelay = 15 * time.Minute

// DeliverEnvelope retries a message queued while its recipient was unreachable.
// Offers that were canceled in the meantime are not redelivered. A recipient that is still
// unreachable gets the envelope requeued with a growing delay.
func (s *Service) DeliverEnvelope(ctx context.Context, env peer.Envelope) error {
	if env.From != s.self {
		return fmt.Errorf("envelope for offer %s was queued by %s, not %s", env.OfferID, env.From, s.self)
	}

	if env.Kind == peer.KindOffer {
		offer, err := s.getOffer(ctx, env.OfferID)
		if err != nil {
			return err
		}
		if offer.State != models.PENDING {
			s.logger.Info("offer no longer pending, dropping queued delivery", "offer_id", env.OfferID, "state", offer.State)
			return nil
		}
	}

	err := peer.Deliver(ctx, s.messenger, env)
	if err == nil {
		s.logger.Info("queued message delivered", "offer_id", env.OfferID, "kind", env.Kind, "attempt", env.Attempt)
		return nil
	}
	if !errors.Is(err, peer.ErrUnreachable) {
		s.logger.Warn("counterparty refused queued message", "offer_id", env.OfferID, "kind", env.Kind, "error", err)
		return nil
	}

	env.Attempt++
	if env.Attempt >= MaxRedeliveryAttempts {
		s.logger.Error("giving up on queued message", "offer_id", env.OfferID, "kind", env.Kind, "to", env.To)
		return nil
	}
	if s.outbox == nil {
		return fmt.Errorf("failed to deliver %s for offer %s: %w", env.Kind, env.OfferID, err)
	}

	backoff := Backoff{Initial: s.redeliveryDelay, Max: maxRedeliveryDelay, Multiplier: 2}
	if err := s.outbox.ScheduleDelivery(ctx, env, backoff.Delay(env.Attempt)); err != nil {
		return fmt.Errorf("failed to requeue %s for offer %s: %w", env.Kind, env.OfferID, err)
	}
	return nil
}
