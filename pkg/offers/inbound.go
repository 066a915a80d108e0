package offers

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/chris/mutual-credit-ledger/pkg/websockets"
)

// ReceiveOffer stores an offer sent by its debtor. Redeliveries are ignored.
func (s *Service) ReceiveOffer(ctx context.Context, from models.AgentID, tx models.Transaction) error {
	if tx.Debtor != from {
		return fmt.Errorf("%w: offers must come from their debtor", ErrNotCounterparty)
	}
	if tx.Creditor != s.self {
		return fmt.Errorf("%w: offer %s is addressed to %s", ErrNotCounterparty, tx.Id, tx.Creditor)
	}
	if !tx.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	now := s.now()
	offer := &models.Offer{
		Id:           tx.Id,
		Owner:        s.self,
		Transaction:  tx,
		State:        models.RECEIVED,
		Proposer:     from,
		Counterparty: s.self,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		if errors.Is(err, storage.ErrOfferExists) {
			return nil
		}
		return fmt.Errorf("failed to store received offer: %w", err)
	}
	s.logger.Info("offer received", "offer_id", tx.Id, "debtor", from, "amount", tx.Amount.String())
	s.signal(ctx, websockets.MessageTypeOfferReceived, offer)
	return nil
}

// ConsentStatus reports the local state of an offer to its other party.
// An unknown offer yields an empty state. A completed offer carries the local entry's header.
func (s *Service) ConsentStatus(ctx context.Context, from models.AgentID, offerID string) (*peer.ConsentReply, error) {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return &peer.ConsentReply{}, nil
		}
		return nil, err
	}
	if offer.Other(s.self) != from {
		return nil, fmt.Errorf("%w: %s is not a party to offer %s", ErrNotCounterparty, from, offerID)
	}

	reply := &peer.ConsentReply{State: offer.State}
	if offer.State == models.COMPLETED {
		entries, err := s.store.ListEntries(ctx, s.self)
		if err != nil {
			return nil, fmt.Errorf("failed to list chain: %w", err)
		}
		if entry, ok := ledger.FindTransaction(entries, offerID); ok {
			reply.Header = &entry.Header
			reply.Signature = entry.Signature
		}
	}
	return reply, nil
}

// ReceiveCancel mirrors a cancel made by the other party.
func (s *Service) ReceiveCancel(ctx context.Context, from models.AgentID, offerID string) error {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return nil
		}
		return err
	}
	if offer.Other(s.self) != from {
		return fmt.Errorf("%w: %s is not a party to offer %s", ErrNotCounterparty, from, offerID)
	}

	switch offer.State {
	case models.CANCELED:
		return nil
	case models.COMPLETED:
		return notPending(offer)
	}

	canceled, err := s.store.TransitionOffer(ctx, s.self, offerID, offer.State, models.CANCELED, "")
	if err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			return fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		return fmt.Errorf("failed to cancel offer: %w", err)
	}
	s.logger.Info("offer canceled by counterparty", "offer_id", offerID, "previous_state", offer.State)
	s.signal(ctx, websockets.MessageTypeOfferCanceled, canceled)
	return nil
}

// CommitOffer is the debtor's half of a commit. The entry is appended only if the chain head is
// still the header the creditor approved and the debtor stays within its credit limit.
func (s *Service) CommitOffer(ctx context.Context, from models.AgentID, req peer.CommitRequest) (*peer.CommitReply, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	offer, err := s.getOffer(ctx, req.OfferID)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return &peer.CommitReply{Status: peer.CommitNotPending}, nil
		}
		return nil, err
	}
	if offer.Transaction.Debtor != s.self || offer.Transaction.Creditor != from {
		return nil, fmt.Errorf("%w: only the creditor can request a commit", ErrNotCounterparty)
	}
	logger := s.logger.With("offer_id", offer.Id, "creditor", from)

	switch offer.State {
	case models.PENDING:
	case models.COMPLETED:
		return s.committedReply(ctx, offer, req)
	case models.CANCELED:
		return &peer.CommitReply{Status: peer.CommitCanceled}, nil
	default:
		return &peer.CommitReply{Status: peer.CommitNotPending}, nil
	}

	entries, err := s.store.ListEntries(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain: %w", err)
	}
	ordered, reason := ledger.Order(entries)
	if reason != nil {
		return nil, fmt.Errorf("own chain is corrupt: %w", reason)
	}
	balance, head := ledger.Summarize(s.self, ordered)

	if token := models.HeaderToken(head); token != req.ApprovedHeader {
		logger.Info("commit rejected, approved header is stale", "approved", req.ApprovedHeader, "head", token)
		return &peer.CommitReply{Status: peer.CommitStaleHeader}, nil
	}
	prospective := credit.Prospective(balance, offer.Transaction.Amount, credit.Debtor)
	if !credit.IsExecutable(prospective, s.limits.LimitFor(s.self)) {
		logger.Info("commit rejected, credit limit exceeded", "balance", balance.String())
		return &peer.CommitReply{Status: peer.CommitLimitExceeded}, nil
	}

	entry := ledger.NewEntry(s.signer, offer.Transaction, head, s.now())
	if err := s.store.CompleteOffer(ctx, entry, offer.Id, models.PENDING, req.ApprovedHeader); err != nil {
		switch {
		case errors.Is(err, storage.ErrHeadMoved):
			return &peer.CommitReply{Status: peer.CommitStaleHeader}, nil
		case errors.Is(err, storage.ErrStateConflict):
			return &peer.CommitReply{Status: peer.CommitNotPending}, nil
		}
		return nil, fmt.Errorf("failed to commit offer: %w", err)
	}
	logger.Info("offer committed", "header", entry.Header.Address)

	completed := *offer
	completed.State = models.COMPLETED
	s.signal(ctx, websockets.MessageTypeOfferCompleted, &completed)
	return &peer.CommitReply{Status: peer.CommitCommitted, Header: &entry.Header, Signature: entry.Signature}, nil
}

// committedReply answers a repeated commit request for an offer that is already committed.
func (s *Service) committedReply(ctx context.Context, offer *models.Offer, req peer.CommitRequest) (*peer.CommitReply, error) {
	if offer.ApprovedHeader != req.ApprovedHeader {
		return &peer.CommitReply{Status: peer.CommitNotPending}, nil
	}
	entries, err := s.store.ListEntries(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain: %w", err)
	}
	entry, ok := ledger.FindTransaction(entries, offer.Id)
	if !ok {
		return nil, fmt.Errorf("offer %s is completed but has no chain entry", offer.Id)
	}
	return &peer.CommitReply{Status: peer.CommitCommitted, Header: &entry.Header, Signature: entry.Signature}, nil
}

// ServeChain returns the local chain after the header since, or all of it when since is
// empty or unknown.
func (s *Service) ServeChain(ctx context.Context, since string) ([]models.ChainEntry, error) {
	entries, err := s.store.ListEntries(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain: %w", err)
	}
	if since == "" {
		return entries, nil
	}
	for i, e := range entries {
		if e.Header.Address == since {
			return entries[i+1:], nil
		}
	}
	return entries, nil
}
