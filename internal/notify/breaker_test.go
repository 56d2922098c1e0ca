package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/appointment-booking/internal/directory"
)

type flakyDispatcher struct {
	err   error
	calls int
}

func (d *flakyDispatcher) Send(context.Context, Notification) error {
	d.calls++
	return d.err
}

func testNotification() Notification {
	return Notification{
		RecipientID:   "PAT00001",
		RecipientRole: directory.RolePatient,
		AppointmentID: "APT0000000001AB",
		Kind:          KindApproved,
		Subject:       "Appointment approved",
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	inner := &flakyDispatcher{}
	d := WithBreaker(inner, "test", zerolog.Nop())

	require.NoError(t, d.Send(context.Background(), testNotification()))
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyDispatcher{err: errors.New("broker unreachable")}
	d := WithBreaker(inner, "test", zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := d.Send(ctx, testNotification())
		assert.ErrorIs(t, err, inner.err)
	}
	assert.Equal(t, 5, inner.calls)

	// Open breaker: the transport is no longer called.
	err := d.Send(ctx, testNotification())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, inner.calls)
}
