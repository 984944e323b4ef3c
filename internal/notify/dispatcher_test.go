package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (s *recordingSink) Notify(ctx context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.done <- struct{}{}
	return s.err
}

func TestDispatch_DeliversToEverySink(t *testing.T) {
	a := &recordingSink{done: make(chan struct{}, 1)}
	b := &recordingSink{done: make(chan struct{}, 1), err: errors.New("slack down")}
	d, err := New(2, zap.NewNop(), a, b, nil)
	require.NoError(t, err)
	defer d.Close(context.Background())

	d.Dispatch(context.Background(), Event{Type: EventDonationCreated, Fields: map[string]string{"amount": "50000"}})

	for _, s := range []*recordingSink{a, b} {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatal("sink not called")
		}
	}
	assert.Equal(t, EventDonationCreated, a.events[0].Type)
	assert.Equal(t, "50000", b.events[0].Fields["amount"])
}

func TestGo_DetachesFromCallerCancellation(t *testing.T) {
	d, err := New(1, zap.NewNop())
	require.NoError(t, err)
	defer d.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := make(chan error, 1)
	d.Go(ctx, "archive", func(ctx context.Context) error {
		got <- ctx.Err()
		return nil
	})

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("task not run")
	}
}

func TestGo_SaturatedPoolDropsTask(t *testing.T) {
	d, err := New(1, zap.NewNop())
	require.NoError(t, err)
	defer d.Close(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	d.Go(context.Background(), "blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ran := make(chan struct{}, 1)
	d.Go(context.Background(), "dropped", func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	close(release)

	select {
	case <-ran:
		t.Fatal("task should have been dropped")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatch_NilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), Event{Type: EventDonationCreated})
	d.Go(context.Background(), "x", func(context.Context) error { return nil })
}
