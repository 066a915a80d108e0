package offers

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/snapshot"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/chris/mutual-credit-ledger/pkg/websockets"
)

const maxFinalizeAttempts = 3

// AcceptOffer is the creditor's approval of a pending offer against approvedHeader, the
// debtor's head it last saw in a snapshot ("" for an empty chain). The debtor commits first;
// once it confirms, the creditor appends its own entry and both sides end up COMPLETED.
//
// An APPROVED offer whose commit was interrupted is resumed when called again with the same header.
func (s *Service) AcceptOffer(ctx context.Context, offerID, approvedHeader string) (string, error) {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return "", err
	}
	if offer.Transaction.Creditor != s.self {
		return "", ErrNotCreditor
	}

	switch offer.State {
	case models.PENDING:
		if err := s.checkAcceptable(ctx, offer, approvedHeader); err != nil {
			return "", err
		}
		approved, err := s.store.TransitionOffer(ctx, s.self, offerID, models.PENDING, models.APPROVED, approvedHeader)
		if err != nil {
			if errors.Is(err, storage.ErrStateConflict) {
				return "", fmt.Errorf("%w: %v", ErrNotPending, err)
			}
			return "", fmt.Errorf("failed to approve offer: %w", err)
		}
		offer = approved
		// The offer may have been approved against an empty chain, which records no header.
		offer.ApprovedHeader = approvedHeader
	case models.APPROVED:
		if offer.ApprovedHeader != approvedHeader {
			return "", fmt.Errorf("%w: offer was approved against %q", ErrStaleHeaderConflict, offer.ApprovedHeader)
		}
		s.logger.Info("resuming interrupted commit", "offer_id", offerID)
	default:
		return "", notPending(offer)
	}

	return s.commit(ctx, offer)
}

// checkAcceptable runs a fresh snapshot and turns every reason not to commit into an error.
func (s *Service) checkAcceptable(ctx context.Context, offer *models.Offer, approvedHeader string) error {
	snap, err := s.snapshots.Snapshot(ctx, offer)
	if err != nil {
		if errors.Is(err, snapshot.ErrCounterpartyCanceled) {
			s.cancelLocally(ctx, offer)
			return fmt.Errorf("%w: offer %s was canceled by the counterparty", ErrNotPending, offer.Id)
		}
		return err
	}

	if !snap.Online {
		return ErrCounterpartyOffline
	}
	if snap.Consented == nil || !*snap.Consented {
		return ErrCounterpartyNotConsented
	}
	chain := snap.Snapshot
	if !chain.Valid {
		return &ChainInvalidError{Reason: chain.InvalidReason}
	}
	if chain.Token() != approvedHeader {
		return fmt.Errorf("%w: approved %q but the counterparty head is %q", ErrStaleHeaderConflict, approvedHeader, chain.Token())
	}
	if !chain.Executable {
		return fmt.Errorf("%w: counterparty balance is %s", ErrCreditLimitExceeded, chain.Balance)
	}
	return nil
}

// commit asks the debtor to commit an APPROVED offer and settles the local side with the answer.
func (s *Service) commit(ctx context.Context, offer *models.Offer) (string, error) {
	logger := s.logger.With("offer_id", offer.Id, "debtor", offer.Transaction.Debtor)

	reply, err := s.messenger.RequestCommit(ctx, offer.Transaction.Debtor, peer.CommitRequest{
		OfferID:        offer.Id,
		ApprovedHeader: offer.ApprovedHeader,
	})
	if err != nil {
		if errors.Is(err, peer.ErrUnreachable) {
			logger.Warn("commit request unanswered, offer stays approved until reconciled", "error", err)
			return "", fmt.Errorf("%w: %v", ErrCounterpartyOffline, err)
		}
		s.revert(ctx, offer, models.PENDING)
		return "", fmt.Errorf("failed to request commit: %w", err)
	}

	switch reply.Status {
	case peer.CommitCommitted:
		if err := s.finalize(ctx, offer, reply.Header, reply.Signature); err != nil {
			return "", err
		}
		return offer.Id, nil
	case peer.CommitStaleHeader:
		s.revert(ctx, offer, models.PENDING)
		return "", fmt.Errorf("%w: the debtor's head moved past %q", ErrStaleHeaderConflict, offer.ApprovedHeader)
	case peer.CommitLimitExceeded:
		s.revert(ctx, offer, models.PENDING)
		return "", ErrCreditLimitExceeded
	case peer.CommitCanceled:
		s.revert(ctx, offer, models.CANCELED)
		return "", fmt.Errorf("%w: offer %s was canceled by the debtor", ErrNotPending, offer.Id)
	default:
		logger.Warn("debtor refused commit", "status", reply.Status)
		s.revert(ctx, offer, models.PENDING)
		return "", fmt.Errorf("%w: debtor reports %s", ErrNotPending, reply.Status)
	}
}

// revert moves an APPROVED offer back to to after the debtor declined the commit.
func (s *Service) revert(ctx context.Context, offer *models.Offer, to models.OfferState) {
	updated, err := s.store.TransitionOffer(ctx, s.self, offer.Id, models.APPROVED, to, "")
	if err != nil {
		s.logger.Error("failed to revert approved offer", "offer_id", offer.Id, "to", to, "error", err)
		return
	}
	if to == models.CANCELED {
		s.signal(ctx, websockets.MessageTypeOfferCanceled, updated)
	}
}

// finalize appends the creditor's entry for an offer the debtor has committed, then has each
// side attest the other's entry.
func (s *Service) finalize(ctx context.Context, offer *models.Offer, debtorHeader *models.ChainHeader, debtorSignature []byte) error {
	entry, err := s.appendCompleted(ctx, offer)
	if err != nil {
		return err
	}
	s.attestDebtor(ctx, offer, debtorHeader, debtorSignature)
	s.sendEntry(ctx, offer, entry)
	return nil
}

func (s *Service) appendCompleted(ctx context.Context, offer *models.Offer) (models.ChainEntry, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	for attempt := 1; attempt <= maxFinalizeAttempts; attempt++ {
		head, err := s.store.Head(ctx, s.self)
		if err != nil {
			return models.ChainEntry{}, fmt.Errorf("failed to read chain head: %w", err)
		}
		entry := ledger.NewEntry(s.signer, offer.Transaction, head, s.now())

		err = s.store.CompleteOffer(ctx, entry, offer.Id, models.APPROVED, offer.ApprovedHeader)
		if err == nil {
			s.logger.Info("offer completed", "offer_id", offer.Id, "header", entry.Header.Address)
			completed := *offer
			completed.State = models.COMPLETED
			s.signal(ctx, websockets.MessageTypeOfferCompleted, &completed)
			return entry, nil
		}
		if !errors.Is(err, storage.ErrHeadMoved) {
			return models.ChainEntry{}, fmt.Errorf("failed to complete offer: %w", err)
		}
		s.logger.Warn("chain head moved during commit, retrying", "offer_id", offer.Id, "attempt", attempt)
	}
	return models.ChainEntry{}, fmt.Errorf("failed to complete offer %s: %w", offer.Id, storage.ErrHeadMoved)
}
