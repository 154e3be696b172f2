package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) written() []kafka.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.msgs...)
}

func syncedRun(tenantID string, count int) model.SyncRun {
	return model.SyncRun{
		TenantID: tenantID,
		PMSType:  "qloapps",
		Origin:   model.OriginUser,
		Success:  true,
		Count:    count,
		Message:  "Successfully synced reservations.",
	}
}

func TestNewSyncedEnvelope(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	env, err := NewSyncedEnvelope("loyalinn", syncedRun("tenant-a", 3), now)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventReservationsSynced, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "loyalinn", env.Producer)
	assert.Equal(t, "tenant-a", env.CorrelationID)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())

	other, err := NewSyncedEnvelope("loyalinn", syncedRun("tenant-a", 3), now)
	require.NoError(t, err)
	assert.NotEqual(t, env.EventID, other.EventID)
}

func TestDecodeSynced(t *testing.T) {
	_, _, err := DecodeSynced([]byte("not json"))
	assert.Error(t, err)

	_, _, err = DecodeSynced([]byte(`{"event_id":"e1","payload":"oops"}`))
	assert.Error(t, err)
}

func TestProducer_PublishSynced(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "loyalinn", 4, testLogger)
	p.Start(context.Background())

	require.NoError(t, p.PublishSynced(context.Background(), syncedRun("tenant-a", 2)))
	require.NoError(t, p.PublishSynced(context.Background(), syncedRun("tenant-b", 5)))
	p.Close()

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.True(t, w.closed)

	assert.Equal(t, "tenant-a", string(msgs[0].Key))
	assert.Equal(t, []kafka.Header{
		{Key: "x-event-type", Value: []byte(EventReservationsSynced)},
		{Key: "x-event-version", Value: []byte("1")},
	}, msgs[0].Headers)

	env, run, err := DecodeSynced(msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", env.CorrelationID)
	assert.Equal(t, 5, run.Count)
	assert.Equal(t, "qloapps", run.PMSType)
}

func TestProducer_FlushesOnCancel(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "loyalinn", 8, testLogger)

	// Queue before the loop runs so cancellation must drain the inbox.
	for i := range 3 {
		require.NoError(t, p.PublishSynced(context.Background(), syncedRun("tenant-a", i)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)
	<-p.done

	assert.Len(t, w.written(), 3)
	assert.True(t, w.closed)
}

func TestProducer_PublishAfterClose(t *testing.T) {
	p := newProducer(&fakeWriter{}, "loyalinn", 1, testLogger)
	p.Start(context.Background())
	p.Close()

	err := p.PublishSynced(context.Background(), syncedRun("tenant-a", 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestProducer_PublishAfterCancel(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "loyalinn", 4, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	<-p.done

	err := p.PublishSynced(context.Background(), syncedRun("tenant-a", 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, w.written())
	assert.Empty(t, p.inbox, "rejected event must not be queued")

	p.Close()
}

func TestProducer_FullInboxHonoursContext(t *testing.T) {
	p := newProducer(&fakeWriter{}, "loyalinn", 1, testLogger)
	require.NoError(t, p.PublishSynced(context.Background(), syncedRun("tenant-a", 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.PublishSynced(ctx, syncedRun("tenant-a", 2))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProducer_WriteErrorIsLogged(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, "loyalinn", 1, testLogger)
	p.Start(context.Background())

	require.NoError(t, p.PublishSynced(context.Background(), syncedRun("tenant-a", 1)))
	p.Close()

	assert.Empty(t, w.written())
}

// --- Consumer -----------------------------------------------------------------

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func encoded(t *testing.T, run model.SyncRun, offset int64) kafka.Message {
	t.Helper()
	env, err := NewSyncedEnvelope("loyalinn", run, time.Now())
	require.NoError(t, err)
	value, err := marshalEnvelope(env)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeReader{
		msgs: []kafka.Message{
			encoded(t, syncedRun("tenant-a", 1), 10),
			{Offset: 11, Value: []byte("garbage")},
			encoded(t, syncedRun("tenant-b", 2), 12),
			encoded(t, syncedRun("tenant-c", 3), 13),
		},
		cancel: cancel,
	}
	c := &Consumer{r: r, log: testLogger}

	var seen []string
	err := c.Run(ctx, func(_ context.Context, _ Envelope, run model.SyncRun) error {
		if run.TenantID == "tenant-b" {
			return errors.New("downstream unavailable")
		}
		seen = append(seen, run.TenantID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-c"}, seen)
	assert.Equal(t, []int64{10, 11, 13}, r.committed)
	assert.True(t, r.closed)
}
