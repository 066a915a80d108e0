package storage

// LedgerStore composes everything an agent's runtime needs for its own chain and offers.
type LedgerStore interface {
	ApiStore
	ChainWriter
	OfferWriter
	SettlementStore
	AttestationStore
}

// Storage defines the root interface for the entire data layer.
// Components should depend on the more granular interfaces instead of this one.
type Storage interface {
	LedgerStore
	ChainFetcher
}
