package storage

import "context"

// SubscriberWriter registers the clients that follow an agent's offer signals.
// Connection ids are opaque; removing an unknown id is not an error.
type SubscriberWriter interface {
	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

// SubscriberReader lists the clients an offer signal is fanned out to.
type SubscriberReader interface {
	GetAllConnections(ctx context.Context) ([]string, error)
}

// SubscriberStore is a backend's record of signal subscribers. Gone connections are pruned
// by the publisher when a post to them fails.
type SubscriberStore interface {
	SubscriberWriter
	SubscriberReader
}
