package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// AttestationPayload is the message a witness signs for a.
func AttestationPayload(a models.Attestation) []byte {
	h := sha256.New()
	writeField(h, string(a.Subject))
	writeField(h, string(a.Witness))
	writeField(h, a.TransactionID)
	writeField(h, a.Header)
	writeField(h, hex.EncodeToString(a.EntrySignature))
	return h.Sum(nil)
}

// NewAttestation has signer vouch that entry, written by the other party of its
// transaction, is part of that party's chain.
func NewAttestation(signer Signer, entry models.ChainEntry) models.Attestation {
	a := models.Attestation{
		Subject:        entry.Author,
		Witness:        signer.AgentID(),
		TransactionID:  entry.Transaction.Id,
		Header:         entry.Header.Address,
		EntrySignature: entry.Signature,
	}
	a.Signature = signer.Sign(AttestationPayload(a))
	return a
}

// VerifyAttestation checks that the subject signed the attested header and the witness
// signed the attestation.
func VerifyAttestation(a models.Attestation, verifier Verifier) error {
	if a.Subject == a.Witness {
		return fmt.Errorf("%s cannot witness its own entry", a.Subject)
	}
	if err := verifier.Verify(a.Subject, []byte(a.Header), a.EntrySignature); err != nil {
		return fmt.Errorf("header %s is not signed by %s: %w", a.Header, a.Subject, err)
	}
	if err := verifier.Verify(a.Witness, AttestationPayload(a), a.Signature); err != nil {
		return fmt.Errorf("attestation is not signed by %s: %w", a.Witness, err)
	}
	return nil
}

// CheckAttestations compares the validated chain of subject with the attestations made
// about it. Every header the subject signed and a witness published must be in the chain,
// otherwise the chain was served without some of its entries. Attestations that do not
// verify are ignored.
func CheckAttestations(subject models.AgentID, chain []models.ChainEntry, attestations []models.Attestation, verifier Verifier) *models.InvalidReason {
	byHeader := make(map[string]struct{}, len(chain))
	for _, e := range chain {
		byHeader[e.Header.Address] = struct{}{}
	}

	for _, a := range attestations {
		if a.Subject != subject || VerifyAttestation(a, verifier) != nil {
			continue
		}
		if _, ok := byHeader[a.Header]; !ok {
			return models.NewInvalidReason(models.ReasonAttestationMismatch,
				"%s attested entry %s for transaction %s, which the chain of %s does not contain",
				a.Witness, a.Header, a.TransactionID, subject)
		}
	}
	return nil
}
