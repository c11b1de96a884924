package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/sav-service/internal/notify"
	"github.com/spec-kit/sav-service/internal/observability"
)

type recordingNotifier struct {
	mu       sync.Mutex
	assigned []string
	resolved []string
	err      error
	block    chan struct{}
}

func (r *recordingNotifier) NotifyAssigned(ctx context.Context, ticketID, technicianID string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned = append(r.assigned, ticketID+"/"+technicianID)
	return r.err
}

func (r *recordingNotifier) NotifyResolved(_ context.Context, ticketID, solution string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, ticketID+"/"+solution)
	return r.err
}

func TestAsyncNotifierDelivers(t *testing.T) {
	next := &recordingNotifier{}
	metrics := observability.NewMetrics()
	n := NewAsyncNotifier(next, notify.NewMemoryDeadLetters(), zap.NewNop(), metrics, Options{Workers: 2, QueueSize: 8, Timeout: time.Second})
	n.Start()

	require.NoError(t, n.NotifyAssigned(context.Background(), "t1", "tech-5"))
	require.NoError(t, n.NotifyResolved(context.Background(), "t1", "Cartridge replaced"))
	require.NoError(t, n.Stop(context.Background()))

	assert.Equal(t, []string{"t1/tech-5"}, next.assigned)
	assert.Equal(t, []string{"t1/Cartridge replaced"}, next.resolved)
	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Notifications["assigned|delivered"])
	assert.Equal(t, int64(1), snap.Notifications["resolved|delivered"])
}

func TestAsyncNotifierDeadLettersFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	next := &recordingNotifier{err: errors.New("smtp unavailable")}
	sink := notify.NewMemoryDeadLetters()
	n := NewAsyncNotifier(next, sink, zap.New(core), observability.NewMetrics(), Options{Workers: 1, QueueSize: 4, Timeout: time.Second})
	n.Start()

	require.NoError(t, n.NotifyResolved(context.Background(), "t9", "done"))
	require.NoError(t, n.Stop(context.Background()))

	count, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	recent, err := sink.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "t9", recent[0].Message.TicketID)
	assert.Equal(t, "smtp unavailable", recent[0].Reason)

	entries := logs.FilterMessage("notification not delivered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].ContextMap()["outcome"])
}

func TestAsyncNotifierNeverBlocksWhenQueueIsFull(t *testing.T) {
	next := &recordingNotifier{block: make(chan struct{})}
	sink := notify.NewMemoryDeadLetters()
	n := NewAsyncNotifier(next, sink, zap.NewNop(), observability.NewMetrics(), Options{Workers: 1, QueueSize: 1, Timeout: time.Second})
	n.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = n.NotifyAssigned(context.Background(), "t", "x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked")
	}

	close(next.block)
	require.NoError(t, n.Stop(context.Background()))

	count, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(3))
}

func TestAsyncNotifierAfterStopDeadLetters(t *testing.T) {
	sink := notify.NewMemoryDeadLetters()
	n := NewAsyncNotifier(&recordingNotifier{}, sink, zap.NewNop(), nil, Options{})
	n.Start()
	require.NoError(t, n.Stop(context.Background()))
	require.NoError(t, n.Stop(context.Background()))

	require.NoError(t, n.NotifyAssigned(context.Background(), "t", "x"))
	count, err := sink.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
