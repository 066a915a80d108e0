// Package memory is an in-process implementation of the storage interfaces.
// It can hold the chains of many agents, which lets tests run several agents against one store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

// Store keeps chains, attestations, offers and websocket connections in memory.
type Store struct {
	mu           sync.RWMutex
	chains       map[models.AgentID][]models.ChainEntry
	visible      map[models.AgentID]int
	attestations map[models.AgentID][]models.Attestation
	// attested counts the visible attestations per subject.
	attested    map[models.AgentID]int
	offers      map[models.AgentID]map[string]models.Offer
	connections map[string]struct{}
	lagged      bool
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPropagationLag hides newly appended entries from FetchChainSince, and newly published
// attestations from ListAttestations, until Propagate is called for their agent.
func WithPropagationLag() Option {
	return func(s *Store) { s.lagged = true }
}

// WithClock overrides the clock used for offer timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		chains:       make(map[models.AgentID][]models.ChainEntry),
		visible:      make(map[models.AgentID]int),
		attestations: make(map[models.AgentID][]models.Attestation),
		attested:     make(map[models.AgentID]int),
		offers:       make(map[models.AgentID]map[string]models.Offer),
		connections:  make(map[string]struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage         = (*Store)(nil)
	_ storage.SubscriberStore = (*Store)(nil)
)

// ListEntries returns a copy of the agent's chain in append order.
func (s *Store) ListEntries(ctx context.Context, agent models.AgentID) ([]models.ChainEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChainEntry(nil), s.chains[agent]...), nil
}

// Head returns the newest header of the agent's chain.
func (s *Store) Head(ctx context.Context, agent models.AgentID) (*models.ChainHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headUnsafe(agent), nil
}

// headUnsafe must be called with the lock held.
func (s *Store) headUnsafe(agent models.AgentID) *models.ChainHeader {
	chain := s.chains[agent]
	if len(chain) == 0 {
		return nil
	}
	head := chain[len(chain)-1].Header
	return &head
}

// AppendEntry appends entry if its previous header is the current head.
func (s *Store) AppendEntry(ctx context.Context, entry models.ChainEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendUnsafe(entry)
}

func (s *Store) appendUnsafe(entry models.ChainEntry) error {
	if models.HeaderToken(s.headUnsafe(entry.Author)) != entry.Header.PreviousHeader {
		return storage.ErrHeadMoved
	}
	s.chains[entry.Author] = append(s.chains[entry.Author], entry)
	if !s.lagged {
		s.visible[entry.Author] = len(s.chains[entry.Author])
	}
	return nil
}

// FetchChainSince returns the visible entries of agent's chain after since.
func (s *Store) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.chains[agent][:s.visible[agent]]
	if since == nil {
		return append([]models.ChainEntry(nil), chain...), nil
	}
	for i, e := range chain {
		if e.Header.Address == since.Address {
			return append([]models.ChainEntry(nil), chain[i+1:]...), nil
		}
	}
	return append([]models.ChainEntry(nil), chain...), nil
}

// Propagate makes every entry of agent's chain, and every attestation about it, visible
// to other agents.
func (s *Store) Propagate(agent models.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[agent] = len(s.chains[agent])
	s.attested[agent] = len(s.attestations[agent])
}

// PutAttestation publishes a unless one for the same subject and transaction exists.
func (s *Store) PutAttestation(ctx context.Context, a models.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.attestations[a.Subject] {
		if existing.TransactionID == a.TransactionID {
			return nil
		}
	}
	s.attestations[a.Subject] = append(s.attestations[a.Subject], a)
	if !s.lagged {
		s.attested[a.Subject] = len(s.attestations[a.Subject])
	}
	return nil
}

// ListAttestations returns the visible attestations about subject in publish order.
func (s *Store) ListAttestations(ctx context.Context, subject models.AgentID) ([]models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Attestation(nil), s.attestations[subject][:s.attested[subject]]...), nil
}

// ReplaceChain overwrites an agent's chain wholesale, bypassing every check.
// It exists to simulate a counterparty rewriting its history.
func (s *Store) ReplaceChain(agent models.AgentID, entries []models.ChainEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chains[agent] = append([]models.ChainEntry(nil), entries...)
	s.visible[agent] = len(entries)
}

// CreateOffer stores a new offer in its owner's view.
func (s *Store) CreateOffer(ctx context.Context, offer *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.offers[offer.Owner]
	if !ok {
		owned = make(map[string]models.Offer)
		s.offers[offer.Owner] = owned
	}
	if _, exists := owned[offer.Id]; exists {
		return storage.ErrOfferExists
	}
	owned[offer.Id] = *offer
	return nil
}

// GetOffer returns a copy of the offer.
func (s *Store) GetOffer(ctx context.Context, owner models.AgentID, offerID string) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offer, ok := s.offers[owner][offerID]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
	}
	return &offer, nil
}

// ListOffers returns owner's offers, oldest first.
func (s *Store) ListOffers(ctx context.Context, owner models.AgentID) ([]models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offers := make([]models.Offer, 0, len(s.offers[owner]))
	for _, offer := range s.offers[owner] {
		offers = append(offers, offer)
	}
	sortOffers(offers)
	return offers, nil
}

// ListOffersByState returns owner's offers in state that were last updated before now-olderThan.
func (s *Store) ListOffersByState(ctx context.Context, owner models.AgentID, state models.OfferState, olderThan time.Duration) ([]models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-olderThan)
	var offers []models.Offer
	for _, offer := range s.offers[owner] {
		if offer.State == state && !offer.UpdatedAt.After(cutoff) {
			offers = append(offers, offer)
		}
	}
	sortOffers(offers)
	return offers, nil
}

// TransitionOffer moves an offer from one state to another.
func (s *Store) TransitionOffer(ctx context.Context, owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.transitionUnsafe(owner, offerID, from, to, approvedHeader)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (s *Store) transitionUnsafe(owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) (models.Offer, error) {
	offer, ok := s.offers[owner][offerID]
	if !ok {
		return models.Offer{}, fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
	}
	if offer.State != from {
		return models.Offer{}, fmt.Errorf("offer %s is %s, not %s: %w", offerID, offer.State, from, storage.ErrStateConflict)
	}
	offer.State = to
	if approvedHeader != "" {
		offer.ApprovedHeader = approvedHeader
	}
	offer.UpdatedAt = s.now()
	s.offers[owner][offerID] = offer
	return offer, nil
}

// CompleteOffer appends entry and marks the author's offer COMPLETED atomically.
func (s *Store) CompleteOffer(ctx context.Context, entry models.ChainEntry, offerID string, from models.OfferState, approvedHeader string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, ok := s.offers[entry.Author][offerID]
	if !ok {
		return fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
	}
	if offer.State != from {
		return fmt.Errorf("offer %s is %s, not %s: %w", offerID, offer.State, from, storage.ErrStateConflict)
	}
	if err := s.appendUnsafe(entry); err != nil {
		return err
	}
	_, err := s.transitionUnsafe(entry.Author, offerID, from, models.COMPLETED, approvedHeader)
	return err
}

// AddConnection registers a signal subscriber.
func (s *Store) AddConnection(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[connectionID] = struct{}{}
	return nil
}

// RemoveConnection unregisters a signal subscriber.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, connectionID)
	return nil
}

// GetAllConnections lists the registered subscribers.
func (s *Store) GetAllConnections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func sortOffers(offers []models.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].Id < offers[j].Id
		}
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
}
