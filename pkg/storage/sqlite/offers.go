package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

const offerColumns = `owner_id, offer_id, debtor, creditor, amount, tx_ts, state, proposer, counterparty,
	approved_header, created_at, updated_at`

func scanOffer(row rowScanner) (*models.Offer, error) {
	var (
		o                    models.Offer
		amount, txTS         string
		createdAt, updatedAt int64
	)
	err := row.Scan(&o.Owner, &o.Id, &o.Transaction.Debtor, &o.Transaction.Creditor, &amount, &txTS,
		&o.State, &o.Proposer, &o.Counterparty, &o.ApprovedHeader, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	o.Transaction.Id = o.Id
	if o.Transaction.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if o.Transaction.Timestamp, err = time.Parse(time.RFC3339Nano, txTS); err != nil {
		return nil, fmt.Errorf("invalid transaction timestamp: %w", err)
	}
	o.CreatedAt = time.Unix(0, createdAt).UTC()
	o.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &o, nil
}

// CreateOffer stores a new offer in its owner's view.
func (s *Store) CreateOffer(ctx context.Context, offer *models.Offer) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		offer.Owner, offer.Id, offer.Transaction.Debtor, offer.Transaction.Creditor,
		offer.Transaction.Amount.String(), formatTime(offer.Transaction.Timestamp), offer.State,
		offer.Proposer, offer.Counterparty, offer.ApprovedHeader,
		offer.CreatedAt.UnixNano(), offer.UpdatedAt.UnixNano())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return storage.ErrOfferExists
		}
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

// GetOffer retrieves one offer from owner's view.
func (s *Store) GetOffer(ctx context.Context, owner models.AgentID, offerID string) (*models.Offer, error) {
	return s.getOffer(ctx, s.db, owner, offerID)
}

func (s *Store) getOffer(ctx context.Context, q querier, owner models.AgentID, offerID string) (*models.Offer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE owner_id = ? AND offer_id = ?`, owner, offerID)
	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", offerID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	return offer, nil
}

// ListOffers retrieves all offers in owner's view, oldest first.
func (s *Store) ListOffers(ctx context.Context, owner models.AgentID) ([]models.Offer, error) {
	return s.listOffers(ctx, `SELECT `+offerColumns+` FROM offers WHERE owner_id = ? ORDER BY created_at, offer_id`, owner)
}

// ListOffersByState retrieves owner's offers in state last updated before now-olderThan.
func (s *Store) ListOffersByState(ctx context.Context, owner models.AgentID, state models.OfferState, olderThan time.Duration) ([]models.Offer, error) {
	cutoff := s.now().Add(-olderThan).UnixNano()
	return s.listOffers(ctx, `SELECT `+offerColumns+` FROM offers
		WHERE owner_id = ? AND state = ? AND updated_at <= ? ORDER BY created_at, offer_id`, owner, state, cutoff)
}

func (s *Store) listOffers(ctx context.Context, query string, args ...any) ([]models.Offer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return offers, nil
}

// TransitionOffer moves an offer from one state to another.
func (s *Store) TransitionOffer(ctx context.Context, owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) (*models.Offer, error) {
	var offer *models.Offer
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.transitionTx(ctx, tx, owner, offerID, from, to, approvedHeader); err != nil {
			return err
		}
		var err error
		offer, err = s.getOffer(ctx, tx, owner, offerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *Store) transitionTx(ctx context.Context, tx *sql.Tx, owner models.AgentID, offerID string, from, to models.OfferState, approvedHeader string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE offers
		SET state = ?, updated_at = ?,
			approved_header = CASE WHEN ? = '' THEN approved_header ELSE ? END
		WHERE owner_id = ? AND offer_id = ? AND state = ?`,
		to, s.now().UnixNano(), approvedHeader, approvedHeader, owner, offerID, from)
	if err != nil {
		return fmt.Errorf("update offer state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update offer state: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.getOffer(ctx, tx, owner, offerID); err != nil {
		return err
	}
	return fmt.Errorf("offer %s is not %s: %w", offerID, from, storage.ErrStateConflict)
}

// CompleteOffer appends entry and marks the author's offer COMPLETED in one transaction.
func (s *Store) CompleteOffer(ctx context.Context, entry models.ChainEntry, offerID string, from models.OfferState, approvedHeader string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.transitionTx(ctx, tx, entry.Author, offerID, from, models.COMPLETED, approvedHeader); err != nil {
			return err
		}
		return s.appendTx(ctx, tx, entry)
	})
}

// AddConnection registers a websocket subscriber.
func (s *Store) AddConnection(ctx context.Context, connectionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (connection_id, connected_at) VALUES (?, ?) ON CONFLICT(connection_id) DO NOTHING`,
		connectionID, s.now().Unix())
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

// RemoveConnection unregisters a websocket subscriber.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE connection_id = ?`, connectionID); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// GetAllConnections lists the registered subscribers.
func (s *Store) GetAllConnections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT connection_id FROM connections ORDER BY connection_id`)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
