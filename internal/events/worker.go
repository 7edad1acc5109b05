package events

import (
	"context"
	"log/slog"
)

// Worker forwards buffered events to a downstream publisher. It keeps
// background delivery off request paths without wiring queue implementations
// into the ledger service.
type Worker struct {
	sink   Publisher
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes events until ctx is cancelled. Delivery errors are logged,
// never returned: a lost event must not stop the drain loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "event delivery failed",
					"type", event.Type,
					"escrow_id", event.EscrowID,
					"error", err.Error(),
				)
			}
		}
	}
}
