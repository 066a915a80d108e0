// Package snapshot computes a trust-qualified view of an offer's counterparty.
// It never writes: the same inputs always produce the same snapshot.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

// ErrCounterpartyCanceled is returned when the counterparty reports the offer as canceled.
var ErrCounterpartyCanceled = errors.New("offer canceled by counterparty")

// ErrClosedOffer is returned when a snapshot is requested for a terminal offer.
var ErrClosedOffer = errors.New("offer is closed")

// ConsentChecker asks the counterparty's runtime whether it consented to reveal its chain.
type ConsentChecker interface {
	QueryConsent(ctx context.Context, to models.AgentID, offerID string) (*peer.ConsentReply, error)
}

// Protocol produces counterparty snapshots for the local agent.
//
// The fetched chain is what the counterparty, or a store it writes to, chooses to show.
// Attestations published by the counterparty's past partners are what keeps it from
// hiding entries: every attested entry must be in the fetched chain.
type Protocol struct {
	Self         models.AgentID
	Consent      ConsentChecker
	Fetcher      storage.ChainFetcher
	Own          storage.ChainReader
	Attestations storage.AttestationReader
	Limits       credit.Limits
	Verifier     ledger.Verifier
	Logger       *slog.Logger
}

// New creates a Protocol.
func New(self models.AgentID, consent ConsentChecker, fetcher storage.ChainFetcher, own storage.ChainReader, attestations storage.AttestationReader, limits credit.Limits, verifier ledger.Verifier) *Protocol {
	return &Protocol{
		Self:         self,
		Consent:      consent,
		Fetcher:      fetcher,
		Own:          own,
		Attestations: attestations,
		Limits:       limits,
		Verifier:     verifier,
		Logger:       slog.Default(),
	}
}

func offline() *models.CounterpartySnapshot {
	return &models.CounterpartySnapshot{Online: false}
}

func notConsented() *models.CounterpartySnapshot {
	consented := false
	return &models.CounterpartySnapshot{Online: true, Consented: &consented}
}

// Snapshot computes the counterparty's state for offer as seen from the local agent.
// An unreachable counterparty is reported as Online=false, never as an error.
func (p *Protocol) Snapshot(ctx context.Context, offer *models.Offer) (*models.CounterpartySnapshot, error) {
	if offer.State.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrClosedOffer, offer.Id, offer.State)
	}
	if offer.State == models.RECEIVED {
		return notConsented(), nil
	}

	counterparty := offer.Other(p.Self)
	logger := p.Logger.With("offer_id", offer.Id, "counterparty", counterparty)

	reply, err := p.Consent.QueryConsent(ctx, counterparty, offer.Id)
	if err != nil {
		if errors.Is(err, peer.ErrUnreachable) {
			logger.Debug("counterparty unreachable during consent check", "error", err)
			return offline(), nil
		}
		return nil, fmt.Errorf("failed to query consent: %w", err)
	}
	if reply.State == models.CANCELED {
		return nil, ErrCounterpartyCanceled
	}
	if !reply.Consented() {
		return notConsented(), nil
	}

	entries, err := p.Fetcher.FetchChainSince(ctx, counterparty, nil)
	if err != nil {
		if errors.Is(err, peer.ErrUnreachable) {
			logger.Debug("counterparty chain unreachable", "error", err)
			return offline(), nil
		}
		return nil, fmt.Errorf("failed to fetch counterparty chain: %w", err)
	}

	snap, err := p.evaluate(ctx, offer, counterparty, entries)
	if err != nil {
		return nil, err
	}
	logger.Debug("computed counterparty snapshot",
		"valid", snap.Valid, "executable", snap.Executable, "balance", snap.Balance.String(), "last_header", snap.Token())

	consented := true
	return &models.CounterpartySnapshot{Online: true, Consented: &consented, Snapshot: snap}, nil
}

func invalid(reason *models.InvalidReason) *models.ChainSnapshot {
	return &models.ChainSnapshot{Valid: false, Executable: false, InvalidReason: reason}
}

func (p *Protocol) evaluate(ctx context.Context, offer *models.Offer, counterparty models.AgentID, entries []models.ChainEntry) (*models.ChainSnapshot, error) {
	ordered, reason := ledger.ValidateChain(counterparty, entries, p.Verifier)
	if reason != nil {
		return invalid(reason), nil
	}

	reason, err := p.checkPropagation(ctx, counterparty, ordered)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		return invalid(reason), nil
	}

	attestations, err := p.Attestations.ListAttestations(ctx, counterparty)
	if err != nil {
		return nil, fmt.Errorf("failed to list attestations: %w", err)
	}
	if reason := ledger.CheckAttestations(counterparty, ordered, attestations, p.Verifier); reason != nil {
		return invalid(reason), nil
	}

	balance, head := ledger.Summarize(counterparty, ordered)
	limit := p.Limits.LimitFor(counterparty)
	if !credit.IsExecutable(balance, limit) {
		snap := invalid(models.NewInvalidReason(models.ReasonOverLimit,
			"balance %s is already beyond the credit limit of %s", balance, limit))
		snap.Balance = balance
		snap.LastHeader = head
		return snap, nil
	}

	prospective := credit.Prospective(balance, offer.Transaction.Amount, credit.RoleOf(counterparty, offer.Transaction))
	return &models.ChainSnapshot{
		Valid:      true,
		Executable: credit.IsExecutable(prospective, limit),
		Balance:    balance,
		LastHeader: head,
	}, nil
}

// checkPropagation reports transactions the local chain shares with counterparty that the
// fetched chain does not show yet.
func (p *Protocol) checkPropagation(ctx context.Context, counterparty models.AgentID, fetched []models.ChainEntry) (*models.InvalidReason, error) {
	own, err := p.Own.ListEntries(ctx, p.Self)
	if err != nil {
		return nil, fmt.Errorf("failed to list own chain: %w", err)
	}

	known := make(map[string]struct{}, len(fetched))
	for _, e := range fetched {
		known[e.Transaction.Id] = struct{}{}
	}

	for _, e := range own {
		if e.Transaction.Counterparty(p.Self) != counterparty {
			continue
		}
		if _, ok := known[e.Transaction.Id]; !ok {
			return models.NewInvalidReason(models.ReasonAwaitingPropagation,
				"transaction %s is not visible in the chain of %s yet", e.Transaction.Id, counterparty), nil
		}
	}
	return nil, nil
}
