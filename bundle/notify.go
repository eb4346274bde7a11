package bundle

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"bundlebot/core/logger"
)

// Button is a transport-neutral inline action: the transport renders it
// as a pressable affordance carrying Action and Data back on press.
type Button struct {
	Text   string
	Action string
	Data   string
}

// Message is an outbound notification with optional button rows.
type Message struct {
	Text    string
	Buttons [][]Button
}

// Notifier delivers a message to a single recipient identity. The
// transport implementation must be time-bounded so one unreachable
// recipient cannot stall its caller.
type Notifier interface {
	Notify(ctx context.Context, recipient int64, msg Message) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, recipient int64, msg Message) error

// Notify calls the underlying function.
func (f NotifierFunc) Notify(ctx context.Context, recipient int64, msg Message) error {
	return f(ctx, recipient, msg)
}

// notifyEach fans the message out to every recipient, isolating
// per-recipient failures: each failure is logged and collected, and
// delivery to the remaining recipients continues. The aggregate error
// lets the caller decide between partial-success wording and log-only
// handling.
func notifyEach(ctx context.Context, n Notifier, recipients []int64, msg Message) error {
	var errs *multierror.Error
	for _, recipient := range recipients {
		if err := n.Notify(ctx, recipient, msg); err != nil {
			logger.Warn(ctx, "service.notify", "notify.fail",
				slog.Int64("recipient", recipient),
				slog.String("err", err.Error()),
			)
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
