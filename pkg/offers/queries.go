package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// QueryOffer returns one offer from the local view.
func (s *Service) QueryOffer(ctx context.Context, offerID string) (*models.Offer, error) {
	return s.getOffer(ctx, offerID)
}

// QueryMyOffers returns every offer in the local view, oldest first.
func (s *Service) QueryMyOffers(ctx context.Context) ([]models.Offer, error) {
	offers, err := s.store.ListOffers(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

// QueryMyTransactions returns the committed transactions of the local chain in chain order.
func (s *Service) QueryMyTransactions(ctx context.Context) ([]models.Transaction, error) {
	entries, err := s.store.ListEntries(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain: %w", err)
	}
	txs, err := ledger.Transactions(entries)
	if err != nil {
		return nil, fmt.Errorf("own chain is corrupt: %w", err)
	}
	return txs, nil
}

// QueryMyBalance returns the balance of the local chain.
func (s *Service) QueryMyBalance(ctx context.Context) (decimal.Decimal, error) {
	entries, err := s.store.ListEntries(ctx, s.self)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list chain: %w", err)
	}
	balance, err := ledger.BalanceOf(s.self, entries)
	if err != nil {
		return decimal.Zero, fmt.Errorf("own chain is corrupt: %w", err)
	}
	return balance, nil
}

// reconcile settles an APPROVED offer by asking the debtor what became of the commit.
// It returns the offer in its new local state.
func (s *Service) reconcile(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	reply, err := s.messenger.QueryConsent(ctx, offer.Transaction.Debtor, offer.Id)
	if err != nil {
		if isUnreachable(err) {
			return nil, fmt.Errorf("%w: cannot settle approved offer %s: %v", ErrCounterpartyOffline, offer.Id, err)
		}
		return nil, fmt.Errorf("failed to query debtor: %w", err)
	}

	switch reply.State {
	case models.COMPLETED:
		if err := s.finalize(ctx, offer, reply.Header, reply.Signature); err != nil {
			return nil, err
		}
	case models.CANCELED:
		s.revert(ctx, offer, models.CANCELED)
	default:
		s.revert(ctx, offer, models.PENDING)
	}
	s.logger.Info("reconciled approved offer", "offer_id", offer.Id, "debtor_state", reply.State)
	return s.getOffer(ctx, offer.Id)
}

// ReconcileApproved settles APPROVED offers whose commit has been in flight for longer than
// olderThan. Offers whose debtor is still unreachable are left for the next run.
func (s *Service) ReconcileApproved(ctx context.Context, olderThan time.Duration) (int, error) {
	offers, err := s.store.ListOffersByState(ctx, s.self, models.APPROVED, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved offers: %w", err)
	}

	resolved := 0
	for i := range offers {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		if _, err := s.reconcile(ctx, &offers[i]); err != nil {
			s.logger.Warn("failed to reconcile offer", "offer_id", offers[i].Id, "error", err)
			continue
		}
		resolved++
	}
	return resolved, nil
}
