// Package retry provides a transient-aware backoff policy for engine
// calls. Backends never retry internally; callers opt in through Do.
package retry

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/groupdigest/summary-platform/internal/engine"
)

// Policy configures the exponential backoff.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy is suitable for interactive generation retries.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  45 * time.Second,
	}
}

// Transient reports whether an error is worth retrying: generation
// timeouts and network-level failures are; everything else (bad
// credential, malformed model, unusable output) is permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if engine.IsTransient(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

// Do runs op under the policy, retrying only transient failures. The last
// error is returned when retries are exhausted or ctx ends.
func Do(ctx context.Context, policy Policy, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.InitialInterval
	eb.MaxInterval = policy.MaxInterval
	eb.MaxElapsedTime = policy.MaxElapsedTime

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(eb, ctx))
}
