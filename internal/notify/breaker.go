package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerDispatcher wraps a Dispatcher in a circuit breaker so a dead
// transport degrades to fast, logged drops instead of stalling every
// transition on its timeout.
type BreakerDispatcher struct {
	inner Dispatcher
	cb    *gobreaker.CircuitBreaker
	log   zerolog.Logger
}

func WithBreaker(inner Dispatcher, name string, log zerolog.Logger) *BreakerDispatcher {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notification breaker state changed")
		},
	}

	return &BreakerDispatcher{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
		log:   log,
	}
}

func (d *BreakerDispatcher) Send(ctx context.Context, n Notification) error {
	_, err := d.cb.Execute(func() (any, error) {
		return nil, d.inner.Send(ctx, n)
	})
	return err
}

var _ Dispatcher = (*BreakerDispatcher)(nil)
