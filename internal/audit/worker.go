package audit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Worker drains the recorder inbox into the store, and mirrors every entry to
// an optional publisher for external telemetry. A failed append is logged and
// counted but never stops the worker: losing one entry must not lose the rest.
type Worker struct {
	store     Store
	publisher Publisher
	inbox     <-chan Entry
	logger    *slog.Logger
	dropped   prometheus.Counter
}

// Publisher mirrors entries to an external telemetry sink, best-effort.
type Publisher interface {
	Publish(ctx context.Context, entry Entry)
}

type WorkerOption func(*Worker)

func WithPublisher(p Publisher) WorkerOption {
	return func(w *Worker) { w.publisher = p }
}

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithWorkerDroppedCounter(c prometheus.Counter) WorkerOption {
	return func(w *Worker) { w.dropped = c }
}

func NewWorker(store Store, inbox <-chan Entry, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:  store,
		inbox:  inbox,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes entries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.store.Append(ctx, entry); err != nil {
				if w.dropped != nil {
					w.dropped.Inc()
				}
				w.logger.Error("audit append failed",
					"error", err,
					"action", entry.Action,
					"resource_id", entry.ResourceID,
				)
			}
			if w.publisher != nil {
				w.publisher.Publish(ctx, entry)
			}
		}
	}
}
