// Package offers implements the offer lifecycle between a debtor and a creditor,
// from creation to the final linked commit on both chains.
package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/scheduler"
	"github.com/chris/mutual-credit-ledger/pkg/snapshot"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/chris/mutual-credit-ledger/pkg/websockets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultRedeliveryDelay is how long queued peer messages wait before the first redelivery.
const DefaultRedeliveryDelay = 30 * time.Second

// Service runs the offer protocol for one local agent.
type Service struct {
	signer    ledger.Signer
	self      models.AgentID
	store     storage.LedgerStore
	registry  storage.AttestationStore
	messenger peer.Messenger
	snapshots *snapshot.Protocol
	limits    credit.Limits
	outbox    scheduler.Scheduler
	publisher websockets.Publisher
	logger    *slog.Logger
	now       func() time.Time

	redeliveryDelay time.Duration

	// chainMu serializes writes to the local chain.
	chainMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithOutbox queues one-way messages that could not be delivered.
func WithOutbox(outbox scheduler.Scheduler, delay time.Duration) Option {
	return func(s *Service) {
		s.outbox = outbox
		s.redeliveryDelay = delay
	}
}

// WithAttestations publishes and reads attestations in registry instead of the store.
// Agents whose stores are not shared use it to see each other's attestations.
func WithAttestations(registry storage.AttestationStore) Option {
	return func(s *Service) { s.registry = registry }
}

// WithPublisher sets where offer signals are sent.
func WithPublisher(p websockets.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service for the agent owning signer. fetcher reads other agents' chains,
// messenger reaches their runtimes.
func NewService(signer ledger.Signer, store storage.LedgerStore, fetcher storage.ChainFetcher, messenger peer.Messenger, limits credit.Limits, opts ...Option) *Service {
	s := &Service{
		signer:          signer,
		self:            signer.AgentID(),
		store:           store,
		registry:        store,
		messenger:       messenger,
		limits:          limits,
		publisher:       &websockets.NoOpPublisher{},
		logger:          slog.Default(),
		now:             time.Now,
		redeliveryDelay: DefaultRedeliveryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("agent", s.self)

	s.snapshots = snapshot.New(s.self, messenger, fetcher, store, s.registry, limits, identity.Ed25519Verifier{})
	s.snapshots.Logger = s.logger
	return s
}

// Make sure we conform to the interfaces
var (
	_ peer.Handler     = (*Service)(nil)
	_ peer.ChainServer = (*Service)(nil)
)

// Self returns the local agent.
func (s *Service) Self() models.AgentID {
	return s.self
}

func (s *Service) getOffer(ctx context.Context, offerID string) (*models.Offer, error) {
	offer, err := s.store.GetOffer(ctx, s.self, offerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOfferNotFound, offerID)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

// CreateOffer proposes that the local agent owes creditor amount. The offer is stored as
// PENDING locally and delivered to the creditor, who sees it as RECEIVED.
func (s *Service) CreateOffer(ctx context.Context, creditor models.AgentID, amount decimal.Decimal, timestamp time.Time) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if creditor == s.self {
		return "", fmt.Errorf("%w: cannot make an offer to yourself", ErrInvalidCounterparty)
	}
	if _, err := identity.PublicKey(creditor); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCounterparty, err)
	}

	now := s.now()
	if timestamp.IsZero() {
		timestamp = now
	}
	tx := models.Transaction{
		Id:        uuid.New().String(),
		Debtor:    s.self,
		Creditor:  creditor,
		Amount:    amount,
		Timestamp: timestamp.UTC(),
	}
	offer := &models.Offer{
		Id:           tx.Id,
		Owner:        s.self,
		Transaction:  tx,
		State:        models.PENDING,
		Proposer:     s.self,
		Counterparty: creditor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return "", fmt.Errorf("failed to store offer: %w", err)
	}
	s.logger.Info("offer created", "offer_id", offer.Id, "counterparty", creditor, "amount", amount.String())

	if err := s.messenger.SendOffer(ctx, creditor, tx); err != nil {
		if errors.Is(err, peer.ErrUnreachable) {
			s.enqueue(ctx, peer.Envelope{Kind: peer.KindOffer, From: s.self, To: creditor, OfferID: tx.Id, Transaction: &tx})
			return tx.Id, nil
		}
		if _, cerr := s.store.TransitionOffer(ctx, s.self, tx.Id, models.PENDING, models.CANCELED, ""); cerr != nil {
			s.logger.Error("failed to cancel rejected offer", "offer_id", tx.Id, "error", cerr)
		}
		return "", fmt.Errorf("counterparty rejected offer: %w", err)
	}
	return tx.Id, nil
}

// ConsentForOffer lets the creditor reveal its chain for a received offer.
func (s *Service) ConsentForOffer(ctx context.Context, offerID string) (string, error) {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return "", err
	}
	if offer.Counterparty != s.self {
		return "", fmt.Errorf("%w: only the creditor consents to an offer", ErrNotCounterparty)
	}

	switch offer.State {
	case models.RECEIVED:
	case models.PENDING, models.APPROVED:
		return offer.Id, nil
	default:
		return "", notPending(offer)
	}

	updated, err := s.store.TransitionOffer(ctx, s.self, offerID, models.RECEIVED, models.PENDING, "")
	if err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			return "", fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		return "", fmt.Errorf("failed to record consent: %w", err)
	}
	s.logger.Info("consented to offer", "offer_id", offerID)
	s.signal(ctx, websockets.MessageTypeOfferConsented, updated)
	return offerID, nil
}

// CancelOffer cancels a non-terminal offer and notifies the counterparty.
// An APPROVED offer is first settled with the debtor, since a commit may be in flight.
func (s *Service) CancelOffer(ctx context.Context, offerID string) (string, error) {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return "", err
	}
	if offer.State == models.APPROVED {
		if offer, err = s.reconcile(ctx, offer); err != nil {
			return "", err
		}
	}
	if offer.State.Terminal() {
		return "", notPending(offer)
	}

	canceled, err := s.store.TransitionOffer(ctx, s.self, offerID, offer.State, models.CANCELED, "")
	if err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			return "", fmt.Errorf("%w: %v", ErrNotPending, err)
		}
		return "", fmt.Errorf("failed to cancel offer: %w", err)
	}
	s.logger.Info("offer canceled", "offer_id", offerID, "previous_state", offer.State)
	s.signal(ctx, websockets.MessageTypeOfferCanceled, canceled)

	other := offer.Other(s.self)
	if err := s.messenger.SendCancel(ctx, other, offerID); err != nil {
		if errors.Is(err, peer.ErrUnreachable) {
			s.enqueue(ctx, peer.Envelope{Kind: peer.KindCancel, From: s.self, To: other, OfferID: offerID})
		} else {
			s.logger.Warn("counterparty refused cancel notification", "offer_id", offerID, "error", err)
		}
	}
	return offerID, nil
}

// GetCounterpartySnapshot computes the counterparty's current state for a non-terminal offer.
func (s *Service) GetCounterpartySnapshot(ctx context.Context, offerID string) (*models.CounterpartySnapshot, error) {
	offer, err := s.getOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.State.Terminal() {
		return nil, fmt.Errorf("%w: offer %s is %s", ErrOfferNotFound, offerID, offer.State)
	}

	snap, err := s.snapshots.Snapshot(ctx, offer)
	if err != nil {
		if errors.Is(err, snapshot.ErrCounterpartyCanceled) {
			s.cancelLocally(ctx, offer)
			return nil, fmt.Errorf("%w: offer %s was canceled by the counterparty", ErrOfferNotFound, offerID)
		}
		return nil, err
	}
	return snap, nil
}

func (s *Service) cancelLocally(ctx context.Context, offer *models.Offer) {
	canceled, err := s.store.TransitionOffer(ctx, s.self, offer.Id, offer.State, models.CANCELED, "")
	if err != nil {
		s.logger.Warn("failed to mirror counterparty cancel", "offer_id", offer.Id, "error", err)
		return
	}
	s.logger.Info("offer canceled by counterparty", "offer_id", offer.Id)
	s.signal(ctx, websockets.MessageTypeOfferCanceled, canceled)
}

func (s *Service) enqueue(ctx context.Context, env peer.Envelope) {
	if s.outbox == nil {
		s.logger.Warn("counterparty unreachable and no outbox configured, message dropped",
			"offer_id", env.OfferID, "kind", env.Kind, "to", env.To)
		return
	}
	if err := s.outbox.ScheduleDelivery(ctx, env, s.redeliveryDelay); err != nil {
		s.logger.Error("failed to queue message for redelivery", "offer_id", env.OfferID, "kind", env.Kind, "error", err)
		return
	}
	s.logger.Info("counterparty unreachable, message queued", "offer_id", env.OfferID, "kind", env.Kind, "to", env.To)
}

func (s *Service) signal(ctx context.Context, t websockets.MessageType, offer *models.Offer) {
	msg := websockets.Message{
		Type: t,
		Payload: websockets.OfferSignalPayload{
			OfferID:  offer.Id,
			State:    string(offer.State),
			Debtor:   string(offer.Transaction.Debtor),
			Creditor: string(offer.Transaction.Creditor),
			Amount:   offer.Transaction.Amount.String(),
		},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to publish offer signal", "offer_id", offer.Id, "type", t, "error", err)
	}
}
