package offers

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
)

// counterpartyEntry rebuilds the other party's entry for offer from the header and signature it sent.
func counterpartyEntry(offer *models.Offer, author models.AgentID, header models.ChainHeader, signature []byte) models.ChainEntry {
	return models.ChainEntry{Author: author, Header: header, Transaction: offer.Transaction, Signature: signature}
}

// witness publishes an attestation that entry is part of its author's chain.
func (s *Service) witness(ctx context.Context, entry models.ChainEntry) error {
	if reason := ledger.ValidateEntry(entry.Author, entry, identity.Ed25519Verifier{}); reason != nil {
		return fmt.Errorf("%w: %v", ErrUnverifiedEntry, reason)
	}
	if err := s.registry.PutAttestation(ctx, ledger.NewAttestation(s.signer, entry)); err != nil {
		return fmt.Errorf("failed to publish attestation: %w", err)
	}
	s.logger.Debug("attested counterparty entry", "offer_id", entry.Transaction.Id, "subject", entry.Author, "header", entry.Header.Address)
	return nil
}

// attestDebtor records the debtor's half of a completed offer. A missing entry only costs
// future snapshots of the debtor some coverage, so failures are logged.
func (s *Service) attestDebtor(ctx context.Context, offer *models.Offer, header *models.ChainHeader, signature []byte) {
	if header == nil {
		s.logger.Warn("debtor sent no entry to attest", "offer_id", offer.Id)
		return
	}
	entry := counterpartyEntry(offer, offer.Transaction.Debtor, *header, signature)
	if err := s.witness(ctx, entry); err != nil {
		s.logger.Error("failed to attest debtor entry", "offer_id", offer.Id, "error", err)
	}
}

// sendEntry hands the debtor the creditor's entry so it can attest it in turn.
func (s *Service) sendEntry(ctx context.Context, offer *models.Offer, entry models.ChainEntry) {
	req := peer.AttestRequest{OfferID: offer.Id, Header: entry.Header, Signature: entry.Signature}
	debtor := offer.Transaction.Debtor

	err := s.messenger.SendAttestation(ctx, debtor, req)
	switch {
	case err == nil:
	case errors.Is(err, peer.ErrUnreachable):
		s.enqueue(ctx, peer.Envelope{Kind: peer.KindAttest, From: s.self, To: debtor, OfferID: offer.Id, Attest: &req})
	default:
		s.logger.Warn("debtor refused creditor entry", "offer_id", offer.Id, "error", err)
	}
}

// ReceiveAttestation attests the creditor's entry for an offer the local agent committed as debtor.
// Receiving the same entry again is a no-op.
func (s *Service) ReceiveAttestation(ctx context.Context, from models.AgentID, req peer.AttestRequest) error {
	offer, err := s.getOffer(ctx, req.OfferID)
	if err != nil {
		return err
	}
	if offer.Transaction.Debtor != s.self || offer.Transaction.Creditor != from {
		return fmt.Errorf("%w: only the creditor hands over its entry", ErrNotCounterparty)
	}
	if offer.State != models.COMPLETED {
		return fmt.Errorf("%w: offer %s is %s, not committed", ErrNotPending, offer.Id, offer.State)
	}
	return s.witness(ctx, counterpartyEntry(offer, from, req.Header, req.Signature))
}
