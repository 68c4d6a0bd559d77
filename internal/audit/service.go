package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mindwell/pkg/platform/middleware/metadata"
)

// Recorder accepts audit entries from domain services without ever blocking
// them. Entries flow through a bounded inbox drained by a Worker; when the
// inbox is full the entry is dropped, counted, and logged so the gap is
// detectable, but the caller's operation still succeeds.
type Recorder struct {
	inbox   chan Entry
	logger  *slog.Logger
	dropped prometheus.Counter
	now     func() time.Time
}

type RecorderOption func(*Recorder)

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func WithDroppedCounter(c prometheus.Counter) RecorderOption {
	return func(r *Recorder) { r.dropped = c }
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(bufferSize int, opts ...RecorderOption) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	r := &Recorder{
		inbox:  make(chan Entry, bufferSize),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an entry, filling in ID, timestamp, and client metadata
// from the request context. The raw User-Agent is rendered as a short device
// summary before it is stored. Never blocks and never returns an error.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	if entry.IP == "" {
		entry.IP = metadata.GetClientIP(ctx)
	}
	if entry.UserAgent == "" {
		if ua := metadata.GetUserAgent(ctx); ua != "" {
			entry.UserAgent = metadata.DeviceSummary(ua)
		}
	}

	select {
	case r.inbox <- entry:
	default:
		if r.dropped != nil {
			r.dropped.Inc()
		}
		r.logger.Warn("audit inbox full, entry dropped",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
		)
	}
}

// Inbox exposes the receive side for the Worker.
func (r *Recorder) Inbox() <-chan Entry {
	return r.inbox
}
