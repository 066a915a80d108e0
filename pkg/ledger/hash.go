package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// Signer signs chain entries on behalf of the local agent.
type Signer interface {
	AgentID() models.AgentID
	Sign(msg []byte) []byte
}

// Verifier checks an agent's signature.
type Verifier interface {
	Verify(agent models.AgentID, msg, sig []byte) error
}

func writeField(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// EntryAddress is the content address of a transaction.
func EntryAddress(tx models.Transaction) string {
	h := sha256.New()
	writeField(h, tx.Id)
	writeField(h, string(tx.Debtor))
	writeField(h, string(tx.Creditor))
	writeField(h, tx.Amount.String())
	writeField(h, canonicalTime(tx.Timestamp))
	return hex.EncodeToString(h.Sum(nil))
}

// HeaderAddress is the hash of a header's linked fields. It changes whenever
// the entry address, the previous header or the timestamp change.
func HeaderAddress(header models.ChainHeader) string {
	h := sha256.New()
	writeField(h, header.PreviousHeader)
	writeField(h, header.EntryAddress)
	writeField(h, canonicalTime(header.Timestamp))
	return hex.EncodeToString(h.Sum(nil))
}

// NewEntry builds the next entry of signer's chain on top of previous (nil for the first entry).
func NewEntry(signer Signer, tx models.Transaction, previous *models.ChainHeader, now time.Time) models.ChainEntry {
	header := models.ChainHeader{
		EntryAddress:   EntryAddress(tx),
		PreviousHeader: models.HeaderToken(previous),
		Timestamp:      now.UTC(),
	}
	header.Address = HeaderAddress(header)

	return models.ChainEntry{
		Author:      signer.AgentID(),
		Header:      header,
		Transaction: tx,
		Signature:   signer.Sign([]byte(header.Address)),
	}
}
