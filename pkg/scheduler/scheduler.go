package scheduler

import (
	"context"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/peer"
)

// Scheduler defines the interface for a component that queues peer messages for later redelivery.
type Scheduler interface {
	// ScheduleDelivery enqueues env to be delivered after delay.
	ScheduleDelivery(ctx context.Context, env peer.Envelope, delay time.Duration) error
}
