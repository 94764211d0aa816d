package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/officesync/timeline/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func completed() *event.Event {
	return event.NewEvent(event.TypeTaskCompleted, 7, 3, "2024-06-03", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe("first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	}, event.TypeTaskCompleted)
	d.Subscribe("second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	}, event.TypeTaskCompleted)
	d.Subscribe("other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	}, event.TypeAttachmentAdded)

	require.NoError(t, d.Dispatch(context.Background(), completed()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))
	boom := errors.New("boom")
	var secondCalled bool

	d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	}, event.TypeTaskCompleted)
	d.Subscribe("second", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	}, event.TypeTaskCompleted)

	err := d.Dispatch(context.Background(), completed())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, secondCalled)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.Subscribe("panicky", func(ctx context.Context, evt *event.Event) error {
		panic("unexpected")
	}, event.TypeTaskCompleted)

	err := d.Dispatch(context.Background(), completed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.Positive(t, logger.ErrorCount())
}

func TestSubscribe_MultipleTypes(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type

	d.Subscribe("evictor", func(ctx context.Context, evt *event.Event) error {
		seen = append(seen, evt.Type)
		return nil
	}, event.TypeStatusChanged, event.TypeAttachmentDeleted)

	assert.Equal(t, []string{"evictor"}, d.Handlers(event.TypeStatusChanged))
	assert.Equal(t, []string{"evictor"}, d.Handlers(event.TypeAttachmentDeleted))
	assert.Empty(t, d.Handlers(event.TypeTaskCreated))

	d.Notify(context.Background(),
		event.NewEvent(event.TypeStatusChanged, 1, 1, "2024-06-03", nil),
		event.NewEvent(event.TypeAttachmentDeleted, 1, 1, "2024-06-03", nil),
		event.NewEvent(event.TypeTaskCreated, 1, 1, "2024-06-03", nil),
	)
	assert.Equal(t, []event.Type{event.TypeStatusChanged, event.TypeAttachmentDeleted}, seen)
}

func TestNotify_LogsAndContinues(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	var calls int

	d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
		calls++
		return errors.New("cache down")
	}, event.TypeStatusChanged)

	d.Notify(context.Background(),
		event.NewEvent(event.TypeStatusChanged, 1, 1, "2024-06-03", nil),
		event.NewEvent(event.TypeStatusChanged, 2, 1, "2024-06-03", nil),
	)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, logger.ErrorCount())
}

func TestClose(t *testing.T) {
	t.Run("waits for async handlers", func(t *testing.T) {
		d := NewDispatcher()
		var done atomic.Bool

		d.Subscribe("slow", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(30 * time.Millisecond)
			done.Store(true)
			return nil
		}, event.TypeTaskCompleted)

		d.DispatchAsync(context.Background(), completed())
		require.NoError(t, d.Close())
		assert.True(t, done.Load())
	})

	t.Run("rejects work after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32

		d.Subscribe("counter", func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		}, event.TypeTaskCompleted)

		require.NoError(t, d.Close())
		assert.Error(t, d.Close())

		assert.Error(t, d.Dispatch(context.Background(), completed()))
		d.DispatchAsync(context.Background(), completed())
		d.Notify(context.Background(), completed())

		assert.Zero(t, called.Load())
		assert.Positive(t, logger.ErrorCount())
	})
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Subscribe("counter", func(ctx context.Context, evt *event.Event) error {
				calls.Add(1)
				return nil
			}, event.TypeTaskCompleted)
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), completed())
		}()
	}
	wg.Wait()

	assert.Len(t, d.Handlers(event.TypeTaskCompleted), 10)
	assert.Equal(t, int32(100), calls.Load())
}
