package storage

// ApiStore defines the read-only operations needed by the query surface.
type ApiStore interface {
	ChainReader
	OfferReader
}
