package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDispatcher writes notifications to the log. Used where no broker is
// configured; the delivery channel itself is someone else's problem.
type LogDispatcher struct {
	log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(_ context.Context, n Notification) error {
	d.log.Info().
		Str("recipient_id", n.RecipientID).
		Str("recipient_role", string(n.RecipientRole)).
		Str("appointment_id", n.AppointmentID).
		Str("kind", string(n.Kind)).
		Str("subject", n.Subject).
		Msg("notification dispatched")
	return nil
}

var _ Dispatcher = (*LogDispatcher)(nil)
