package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
)

var errSnapshotNotReady = errors.New("snapshot not ready")

// Backoff bounds how a caller polls for a snapshot that is not ready yet.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultBackoff polls for roughly a minute.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     500 * time.Millisecond,
		Max:         10 * time.Second,
		Multiplier:  2,
		MaxAttempts: 10,
	}
}

// exponential builds an unjittered schedule that never gives up on its own; the caller
// bounds the attempts.
func (b Backoff) exponential() *backoff.ExponentialBackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     b.Initial,
		RandomizationFactor: 0,
		Multiplier:          b.Multiplier,
		MaxInterval:         b.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return exp
}

// Delay returns the wait before the given retry, starting at attempt 1.
func (b Backoff) Delay(attempt int) time.Duration {
	exp := b.exponential()
	d := exp.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = exp.NextBackOff()
	}
	return d
}

// Retryable reports whether the snapshot may change without either user doing anything.
func Retryable(snap *models.CounterpartySnapshot) bool {
	if !snap.Online {
		return true
	}
	if snap.Consented == nil || !*snap.Consented {
		return true
	}
	return snap.Snapshot != nil && !snap.Snapshot.Valid && snap.Snapshot.InvalidReason.Retryable()
}

// AwaitSnapshot polls GetCounterpartySnapshot until the result no longer depends on the
// counterparty coming online, consenting or propagating. The last snapshot is returned when
// the attempts run out.
func (s *Service) AwaitSnapshot(ctx context.Context, offerID string, b Backoff) (*models.CounterpartySnapshot, error) {
	var snap *models.CounterpartySnapshot
	poll := func() error {
		var err error
		snap, err = s.GetCounterpartySnapshot(ctx, offerID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if Retryable(snap) {
			return errSnapshotNotReady
		}
		return nil
	}

	retries := uint64(max(b.MaxAttempts, 1) - 1)
	err := backoff.Retry(poll, backoff.WithContext(backoff.WithMaxRetries(b.exponential(), retries), ctx))
	switch {
	case err == nil, errors.Is(err, errSnapshotNotReady):
		return snap, nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return snap, fmt.Errorf("stopped waiting for snapshot: %w", err)
	default:
		return nil, err
	}
}

func isUnreachable(err error) bool {
	return errors.Is(err, peer.ErrUnreachable)
}
