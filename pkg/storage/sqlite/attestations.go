package sqlite

import (
	"context"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// PutAttestation stores a unless the subject already has one for the transaction.
func (s *Store) PutAttestation(ctx context.Context, a models.Attestation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attestations (subject, tx_id, witness, header, entry_signature, signature, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject, tx_id) DO NOTHING`,
		a.Subject, a.TransactionID, a.Witness, a.Header, a.EntrySignature, a.Signature, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert attestation: %w", err)
	}
	return nil
}

// ListAttestations retrieves the attestations about subject in publish order.
func (s *Store) ListAttestations(ctx context.Context, subject models.AgentID) ([]models.Attestation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, witness, tx_id, header, entry_signature, signature
		FROM attestations WHERE subject = ? ORDER BY published_at, tx_id`, subject)
	if err != nil {
		return nil, fmt.Errorf("query attestations: %w", err)
	}
	defer rows.Close()

	var attestations []models.Attestation
	for rows.Next() {
		var a models.Attestation
		if err := rows.Scan(&a.Subject, &a.Witness, &a.TransactionID, &a.Header, &a.EntrySignature, &a.Signature); err != nil {
			return nil, fmt.Errorf("scan attestation: %w", err)
		}
		attestations = append(attestations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attestations: %w", err)
	}
	return attestations, nil
}
