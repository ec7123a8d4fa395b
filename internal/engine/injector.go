package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

//go:generate mockgen -source=injector.go -destination=injector_mock.go -package=engine

// ErrInjectTimeout is returned when the outbound prompt-injection call
// exceeds its deadline. It is distinguishable from ordinary failures so the
// scheduler can log it distinctly; neither is retried within the same tick.
var ErrInjectTimeout = errors.New("prompt injection timed out")

// Injector is the host's outbound prompt-injection interface. The body is
// delivered to the session as a synthetic user message.
type Injector interface {
	// Inject delivers body to the session as a synthetic user message.
	Inject(ctx context.Context, sessionID, body string) error
}

// timeoutInjector bounds every Inject call with a deadline. The host API
// may hang, so the call runs in its own goroutine and is abandoned on
// timeout; cancellation is cooperative only.
type timeoutInjector struct {
	inner   Injector
	timeout time.Duration
}

// newTimeoutInjector wraps inner with a per-call deadline.
func newTimeoutInjector(inner Injector, timeout time.Duration) *timeoutInjector {
	return &timeoutInjector{
		inner:   inner,
		timeout: timeout,
	}
}

// Inject implements Injector.
func (t *timeoutInjector) Inject(ctx context.Context, sessionID, body string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- t.inner.Inject(ctx, sessionID, body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrapf(ErrInjectTimeout, "after %s", t.timeout)
		}

		return ctx.Err()
	}
}
