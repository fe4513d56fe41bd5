package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ankemong/newsnexus-sub000/internal/job"
	"github.com/ankemong/newsnexus-sub000/internal/metrics"
	queuememory "github.com/ankemong/newsnexus-sub000/internal/queue/memory"
	storememory "github.com/ankemong/newsnexus-sub000/internal/store/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func seed(t *testing.T, store job.Store, id string, status job.Status, updated time.Time) {
	t.Helper()
	err := store.Create(context.Background(), job.Job{
		ID:        id,
		Request:   job.Request{URL: "https://example.com/" + id, SourceType: job.SourceWebpage, OutputFormat: job.FormatJSON},
		Status:    status,
		CreatedAt: updated,
		UpdatedAt: updated,
	})
	require.NoError(t, err)
}

func TestSweepRequeuesStaleQueuedJobs(t *testing.T) {
	t.Parallel()

	store := storememory.New()
	q := queuememory.New(8)
	now := time.Unix(10000, 0).UTC()
	clock := fixedClock{now}
	m := metrics.New(prometheus.NewRegistry())

	seed(t, store, "orphan", job.StatusQueued, now.Add(-time.Hour))
	seed(t, store, "fresh", job.StatusQueued, now.Add(-time.Minute))
	seed(t, store, "busy", job.StatusProcessing, now.Add(-time.Hour))

	s := New(store, q, clock, Config{
		Interval:         time.Minute,
		QueuedStaleAfter: 5 * time.Minute,
	}, m, nil)
	s.Sweep(context.Background())

	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "orphan", msg.JobID)
	require.Equal(t, "https://example.com/orphan", msg.Request.URL)

	// Only the stale queued job goes back on the queue.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx)
	require.Error(t, err)

	// The re-enqueued job is touched so the next pass skips it.
	got, err := store.Get(context.Background(), "orphan")
	require.NoError(t, err)
	require.Equal(t, job.StatusQueued, got.Status)
	require.Equal(t, now, got.UpdatedAt)
}

func TestSweepSecondPassSkipsTouchedJob(t *testing.T) {
	t.Parallel()

	store := storememory.New()
	q := queuememory.New(8)
	now := time.Unix(10000, 0).UTC()
	seed(t, store, "orphan", job.StatusQueued, now.Add(-time.Hour))

	s := New(store, q, fixedClock{now}, Config{
		Interval:         time.Minute,
		QueuedStaleAfter: 5 * time.Minute,
	}, nil, nil)

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	msg, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "orphan", msg.JobID)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx)
	require.Error(t, err, "touched job must not be re-enqueued on the next pass")
}

func TestWatchdogDisabledByDefault(t *testing.T) {
	t.Parallel()

	store := storememory.New()
	now := time.Unix(10000, 0).UTC()
	seed(t, store, "stuck", job.StatusProcessing, now.Add(-24*time.Hour))

	s := New(store, queuememory.New(1), fixedClock{now}, Config{
		Interval:         time.Minute,
		QueuedStaleAfter: 5 * time.Minute,
	}, nil, nil)
	s.Sweep(context.Background())

	got, err := store.Get(context.Background(), "stuck")
	require.NoError(t, err)
	require.Equal(t, job.StatusProcessing, got.Status, "without a timeout the job stays processing")
}

func TestWatchdogFailsStuckProcessingJobs(t *testing.T) {
	t.Parallel()

	store := storememory.New()
	now := time.Unix(10000, 0).UTC()
	m := metrics.New(prometheus.NewRegistry())
	seed(t, store, "stuck", job.StatusProcessing, now.Add(-time.Hour))
	seed(t, store, "active", job.StatusProcessing, now.Add(-time.Minute))

	s := New(store, queuememory.New(1), fixedClock{now}, Config{
		Interval:          time.Minute,
		QueuedStaleAfter:  5 * time.Minute,
		ProcessingTimeout: 30 * time.Minute,
	}, m, nil)
	s.Sweep(context.Background())

	stuck, err := store.Get(context.Background(), "stuck")
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, stuck.Status)
	require.Equal(t, "processing timed out", stuck.Error)
	require.Empty(t, stuck.FilePath)

	active, err := store.Get(context.Background(), "active")
	require.NoError(t, err)
	require.Equal(t, job.StatusProcessing, active.Status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	s := New(storememory.New(), queuememory.New(1), fixedClock{time.Unix(0, 0)}, Config{
		Interval:         10 * time.Millisecond,
		QueuedStaleAfter: time.Minute,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
