// Package ledger computes balances over an agent's hash-linked chain and detects structural corruption.
package ledger

import (
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Order returns entries sorted by header linkage starting from the genesis entry.
// The input order is ignored.
func Order(entries []models.ChainEntry) ([]models.ChainEntry, *models.InvalidReason) {
	return OrderFrom("", entries)
}

// OrderFrom sorts entries that continue a chain whose head is root ("" for a full chain).
func OrderFrom(root string, entries []models.ChainEntry) ([]models.ChainEntry, *models.InvalidReason) {
	if len(entries) == 0 {
		return nil, nil
	}

	byAddress := make(map[string]int, len(entries))
	children := make(map[string][]int, len(entries))
	for i, e := range entries {
		if _, dup := byAddress[e.Header.Address]; dup {
			return nil, models.NewInvalidReason(models.ReasonDuplicateHeader, "header %s appears more than once", e.Header.Address)
		}
		byAddress[e.Header.Address] = i
		children[e.Header.PreviousHeader] = append(children[e.Header.PreviousHeader], i)
	}

	for prev, next := range children {
		if len(next) > 1 {
			return nil, models.NewInvalidReason(models.ReasonFork, "%d entries link to header %q", len(next), prev)
		}
		if prev == root {
			continue
		}
		if _, ok := byAddress[prev]; !ok {
			return nil, models.NewInvalidReason(models.ReasonGap, "entry %s links to unknown header %q",
				entries[next[0]].Header.Address, prev)
		}
	}

	ordered := make([]models.ChainEntry, 0, len(entries))
	cursor := root
	for {
		next, ok := children[cursor]
		if !ok {
			break
		}
		e := entries[next[0]]
		ordered = append(ordered, e)
		cursor = e.Header.Address
		if len(ordered) > len(entries) {
			break
		}
	}

	if len(ordered) != len(entries) {
		return nil, models.NewInvalidReason(models.ReasonGap, "only %d of %d entries are reachable from %q",
			len(ordered), len(entries), root)
	}
	return ordered, nil
}

// ValidateChain checks owner's chain and returns it in header order.
// The first violation found is returned; nothing is repaired.
func ValidateChain(owner models.AgentID, entries []models.ChainEntry, verifier Verifier) ([]models.ChainEntry, *models.InvalidReason) {
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if reason := ValidateEntry(owner, e, verifier); reason != nil {
			return nil, reason
		}
		if other, dup := seen[e.Transaction.Id]; dup {
			return nil, models.NewInvalidReason(models.ReasonDuplicateTransaction,
				"transaction %s is committed by both %s and %s", e.Transaction.Id, other, e.Header.Address)
		}
		seen[e.Transaction.Id] = e.Header.Address
	}
	return Order(entries)
}

// ValidateEntry checks a single entry of owner's chain without looking at its neighbours.
func ValidateEntry(owner models.AgentID, e models.ChainEntry, verifier Verifier) *models.InvalidReason {
	addr := e.Header.Address
	if HeaderAddress(e.Header) != addr {
		return models.NewInvalidReason(models.ReasonHeaderMismatch, "header %s does not hash to its address", addr)
	}
	if EntryAddress(e.Transaction) != e.Header.EntryAddress {
		return models.NewInvalidReason(models.ReasonEntryMismatch, "transaction %s does not match entry address of header %s",
			e.Transaction.Id, addr)
	}
	if e.Author != owner {
		return models.NewInvalidReason(models.ReasonForeignAuthor, "header %s was authored by %s", addr, e.Author)
	}
	if err := verifier.Verify(e.Author, []byte(addr), e.Signature); err != nil {
		return models.NewInvalidReason(models.ReasonBadSignature, "header %s: %v", addr, err)
	}

	tx := e.Transaction
	if !tx.Amount.IsPositive() {
		return models.NewInvalidReason(models.ReasonNonPositiveAmount, "transaction %s has amount %s", tx.Id, tx.Amount)
	}
	if tx.Debtor == tx.Creditor {
		return models.NewInvalidReason(models.ReasonSelfTransaction, "transaction %s has the same debtor and creditor", tx.Id)
	}
	if !tx.Involves(owner) {
		return models.NewInvalidReason(models.ReasonNotParty, "transaction %s does not involve %s", tx.Id, owner)
	}
	return nil
}

// BalanceOf folds owner's chain in header order: +amount as creditor, -amount as debtor.
func BalanceOf(owner models.AgentID, entries []models.ChainEntry) (decimal.Decimal, error) {
	ordered, reason := Order(entries)
	if reason != nil {
		return decimal.Zero, reason
	}
	return sum(owner, ordered), nil
}

func sum(owner models.AgentID, ordered []models.ChainEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range ordered {
		switch owner {
		case e.Transaction.Creditor:
			balance = balance.Add(e.Transaction.Amount)
		case e.Transaction.Debtor:
			balance = balance.Sub(e.Transaction.Amount)
		}
	}
	return balance
}

// Summarize returns the balance and the head of an already validated, ordered chain.
func Summarize(owner models.AgentID, ordered []models.ChainEntry) (decimal.Decimal, *models.ChainHeader) {
	if len(ordered) == 0 {
		return decimal.Zero, nil
	}
	head := ordered[len(ordered)-1].Header
	return sum(owner, ordered), &head
}

// Transactions returns the transactions of a chain in header order.
func Transactions(entries []models.ChainEntry) ([]models.Transaction, error) {
	ordered, reason := Order(entries)
	if reason != nil {
		return nil, reason
	}
	txs := make([]models.Transaction, len(ordered))
	for i, e := range ordered {
		txs[i] = e.Transaction
	}
	return txs, nil
}

// FindTransaction returns the entry committing transaction id, if any.
func FindTransaction(entries []models.ChainEntry, id string) (models.ChainEntry, bool) {
	for _, e := range entries {
		if e.Transaction.Id == id {
			return e, true
		}
	}
	return models.ChainEntry{}, false
}
