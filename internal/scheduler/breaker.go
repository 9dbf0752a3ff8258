package scheduler

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"switchboard/internal/metrics"
	"switchboard/pkg/interfaces"
)

// BreakerMailer wraps an interfaces.Mailer with a circuit breaker, so a
// flaky mail provider cannot back up the scheduler tick behind repeated
// timeouts.
type BreakerMailer struct {
	inner interfaces.Mailer
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerMailer wraps mailer behind a circuit breaker named "mail".
func NewBreakerMailer(mailer interfaces.Mailer) *BreakerMailer {
	st := gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var v float64
			switch to {
			case gobreaker.StateClosed:
				v = 0
			case gobreaker.StateOpen:
				v = 1
			case gobreaker.StateHalfOpen:
				v = 2
			}
			metrics.MailCircuitBreakerState.Set(v)
		},
	}
	return &BreakerMailer{inner: mailer, cb: gobreaker.NewCircuitBreaker(st)}
}

// Send is fire-and-forget from the scheduler's perspective: a circuit-open
// error is just another delivery failure the mail layer is expected to
// retry out-of-band.
func (b *BreakerMailer) Send(ctx context.Context, mail interfaces.Mail) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Send(ctx, mail)
	})
	return err
}
