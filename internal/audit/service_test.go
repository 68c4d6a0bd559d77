package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindwell/pkg/platform/middleware/metadata"
)

func TestRecordFillsDefaults(t *testing.T) {
	rec := NewRecorder(4)
	rec.Record(context.Background(), Entry{Action: ActionMoodLogged, ResourceType: "mood_entry"})

	entry := <-rec.Inbox()
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, ActionMoodLogged, entry.Action)
}

func TestRecordRendersDeviceSummary(t *testing.T) {
	const rawUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	rec := NewRecorder(4)
	ctx := metadata.WithClientMetadata(context.Background(), "203.0.113.9", rawUA)
	rec.Record(ctx, Entry{Action: ActionShareClaimed, ResourceType: "connection"})

	entry := <-rec.Inbox()
	assert.Equal(t, "203.0.113.9", entry.IP)
	assert.Equal(t, metadata.DeviceSummary(rawUA), entry.UserAgent)
	assert.Contains(t, entry.UserAgent, "Chrome")
	assert.NotEqual(t, rawUA, entry.UserAgent)
}

func TestRecordNeverBlocksWhenInboxFull(t *testing.T) {
	rec := NewRecorder(1)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			rec.Record(ctx, Entry{Action: ActionLoginFailed})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full inbox")
	}
}

func TestWorkerDrainsIntoStore(t *testing.T) {
	rec := NewRecorder(16)
	st := NewInMemoryStore()
	worker := NewWorker(st, rec.Inbox())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	actor := uuid.New()
	rec.Record(ctx, Entry{ActorID: &actor, Action: ActionShareClaimed, ResourceType: "connection", ResourceID: "c1"})
	rec.Record(ctx, Entry{ActorID: &actor, Action: ActionShareRevoked, ResourceType: "connection", ResourceID: "c1"})

	require.Eventually(t, func() bool {
		return len(st.All()) == 2
	}, time.Second, 10*time.Millisecond)

	entries, err := st.ListByActor(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWorkerSurvivesStoreFailure(t *testing.T) {
	rec := NewRecorder(16)
	st := &flakyStore{fail: 1, inner: NewInMemoryStore()}
	worker := NewWorker(st, rec.Inbox())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	rec.Record(ctx, Entry{Action: ActionLoginFailed})
	rec.Record(ctx, Entry{Action: ActionLoginSucceeded})

	require.Eventually(t, func() bool {
		return len(st.inner.All()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, ActionLoginSucceeded, st.inner.All()[0].Action)
}

type flakyStore struct {
	fail  int
	inner *InMemoryStore
}

func (s *flakyStore) Append(ctx context.Context, entry Entry) error {
	if s.fail > 0 {
		s.fail--
		return context.DeadlineExceeded
	}
	return s.inner.Append(ctx, entry)
}

func (s *flakyStore) ListByActor(ctx context.Context, actorID uuid.UUID) ([]Entry, error) {
	return s.inner.ListByActor(ctx, actorID)
}
