package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntzen-care/logger"
	"huntzen-care/services"
)

// fakeReader hands out queued messages, then blocks until ctx ends or Close.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	fetchErr  error
	done      chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, done: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.fetchErr = nil
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.done:
		return kafka.Message{}, io.EOF
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeIndexer struct {
	mu     sync.Mutex
	synced []uint
	err    error
}

func (f *fakeIndexer) Sync(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, id)
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	prefixes []string
}

func (f *fakeCache) DeleteByPrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

func encode(t *testing.T, ev services.Event, offset int64) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: data, Offset: offset}
}

func uintPtr(v uint) *uint { return &v }

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("practitioner update resyncs index and cache", func(t *testing.T) {
		idx, cache := &fakeIndexer{}, &fakeCache{}
		c := NewCareConsumer(newFakeReader(), idx, cache, logger.Discard())

		require.NoError(t, c.HandleEvent(ctx, services.Event{Type: services.EventPractitionerVerified, EntityID: 7}))
		assert.Equal(t, []uint{7}, idx.synced)
		assert.Equal(t, []string{"practitioners:"}, cache.prefixes)
	})

	t.Run("consultation event clears company and platform stats", func(t *testing.T) {
		idx, cache := &fakeIndexer{}, &fakeCache{}
		c := NewCareConsumer(newFakeReader(), idx, cache, logger.Discard())

		require.NoError(t, c.HandleEvent(ctx, services.Event{Type: services.EventConsultationBooked, EntityID: 3, CompanyID: uintPtr(4)}))
		assert.Empty(t, idx.synced)
		assert.ElementsMatch(t, []string{"stats:platform", "stats:company:4"}, cache.prefixes)
	})

	t.Run("unknown event is ignored", func(t *testing.T) {
		idx, cache := &fakeIndexer{}, &fakeCache{}
		c := NewCareConsumer(newFakeReader(), idx, cache, logger.Discard())

		require.NoError(t, c.HandleEvent(ctx, services.Event{Type: "journal.created", EntityID: 1}))
		assert.Empty(t, idx.synced)
		assert.Empty(t, cache.prefixes)
	})

	t.Run("missing stores are skipped", func(t *testing.T) {
		c := NewCareConsumer(newFakeReader(), nil, nil, logger.Discard())
		assert.NoError(t, c.HandleEvent(ctx, services.Event{Type: services.EventPractitionerUpdated, EntityID: 2}))
	})

	t.Run("index failure is reported", func(t *testing.T) {
		idx := &fakeIndexer{err: errors.New("es down")}
		c := NewCareConsumer(newFakeReader(), idx, &fakeCache{}, logger.Discard())
		err := c.HandleEvent(ctx, services.Event{Type: services.EventPractitionerUpdated, EntityID: 2})
		assert.ErrorContains(t, err, "es down")
	})
}

func TestConsumerLoopCommitsEveryMessage(t *testing.T) {
	reader := newFakeReader(
		encode(t, services.Event{Type: services.EventPractitionerUpdated, EntityID: 5}, 1),
		kafka.Message{Value: []byte("{not json"), Offset: 2},
		encode(t, services.Event{Type: services.EventUserDeactivated, EntityID: 9}, 3),
	)
	reader.fetchErr = errors.New("broker unavailable")
	idx, cache := &fakeIndexer{}, &fakeCache{}
	c := NewCareConsumer(reader, idx, cache, logger.Discard())
	c.retry = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	require.Eventually(t, func() bool {
		return len(reader.commits()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	assert.True(t, reader.closed)

	idx.mu.Lock()
	assert.Equal(t, []uint{5}, idx.synced)
	idx.mu.Unlock()
}
