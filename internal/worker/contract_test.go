package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ankemong/newsnexus-sub000/internal/job"
	"github.com/ankemong/newsnexus-sub000/internal/store/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func seedJob(t *testing.T, store job.Store, id string, status job.Status) {
	t.Helper()
	created := time.Unix(100, 0).UTC()
	err := store.Create(context.Background(), job.Job{
		ID:        id,
		Request:   job.Request{URL: "https://example.com", SourceType: job.SourceWebpage, OutputFormat: job.FormatJSON},
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	})
	require.NoError(t, err)
}

func TestBeginMarksProcessing(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := time.Unix(500, 0).UTC()
	c := NewContract(store, fixedClock{now}, nil)
	seedJob(t, store, "job-1", job.StatusQueued)

	started, err := c.Begin(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, started)

	got, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, job.StatusProcessing, got.Status)
	require.Equal(t, now, got.UpdatedAt)
}

func TestBeginDuplicateDeliveryNoOps(t *testing.T) {
	t.Parallel()

	for _, status := range []job.Status{job.StatusProcessing, job.StatusCompleted, job.StatusFailed} {
		store := memory.New()
		c := NewContract(store, fixedClock{time.Unix(500, 0).UTC()}, nil)
		seedJob(t, store, "job-dup", status)

		started, err := c.Begin(context.Background(), "job-dup")
		require.NoError(t, err)
		require.False(t, started, "duplicate delivery for %s job must not restart work", status)

		got, err := store.Get(context.Background(), "job-dup")
		require.NoError(t, err)
		require.Equal(t, status, got.Status, "status must never regress")
	}
}

func TestBeginUnknownJob(t *testing.T) {
	t.Parallel()

	c := NewContract(memory.New(), fixedClock{time.Unix(500, 0).UTC()}, nil)
	_, err := c.Begin(context.Background(), "ghost")
	require.ErrorIs(t, err, job.ErrNotFound)
}

func TestCompleteSetsFilePath(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := time.Unix(600, 0).UTC()
	c := NewContract(store, fixedClock{now}, nil)
	seedJob(t, store, "job-2", job.StatusProcessing)

	require.NoError(t, c.Complete(context.Background(), "job-2", "/results/job-2.json"))

	got, err := store.Get(context.Background(), "job-2")
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, "/results/job-2.json", got.FilePath)
	require.Empty(t, got.Error)
	require.Equal(t, now, got.UpdatedAt)
}

func TestCompleteRequiresFilePath(t *testing.T) {
	t.Parallel()

	store := memory.New()
	c := NewContract(store, fixedClock{time.Unix(600, 0).UTC()}, nil)
	seedJob(t, store, "job-3", job.StatusProcessing)

	require.Error(t, c.Complete(context.Background(), "job-3", ""))
}

func TestFailSetsError(t *testing.T) {
	t.Parallel()

	store := memory.New()
	c := NewContract(store, fixedClock{time.Unix(600, 0).UTC()}, nil)
	seedJob(t, store, "job-4", job.StatusProcessing)

	require.NoError(t, c.Fail(context.Background(), "job-4", "target unreachable"))

	got, err := store.Get(context.Background(), "job-4")
	require.NoError(t, err)
	require.Equal(t, job.StatusFailed, got.Status)
	require.Equal(t, "target unreachable", got.Error)
	require.Empty(t, got.FilePath)
}

func TestFinishWithoutBeginIsIgnored(t *testing.T) {
	t.Parallel()

	store := memory.New()
	c := NewContract(store, fixedClock{time.Unix(600, 0).UTC()}, nil)
	seedJob(t, store, "job-skip", job.StatusQueued)

	// A consumer that never called Begin cannot jump the job past
	// processing in either direction.
	require.NoError(t, c.Complete(context.Background(), "job-skip", "/results/job-skip.json"))
	require.NoError(t, c.Fail(context.Background(), "job-skip", "early failure"))

	got, err := store.Get(context.Background(), "job-skip")
	require.NoError(t, err)
	require.Equal(t, job.StatusQueued, got.Status)
	require.Empty(t, got.FilePath)
	require.Empty(t, got.Error)
}

func TestTerminalOutcomeIsKept(t *testing.T) {
	t.Parallel()

	store := memory.New()
	c := NewContract(store, fixedClock{time.Unix(600, 0).UTC()}, nil)
	seedJob(t, store, "job-5", job.StatusProcessing)

	require.NoError(t, c.Complete(context.Background(), "job-5", "/results/job-5.json"))
	// A redelivered message losing the race must not flip the outcome.
	require.NoError(t, c.Fail(context.Background(), "job-5", "late failure"))

	got, err := store.Get(context.Background(), "job-5")
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, "/results/job-5.json", got.FilePath)
	require.Empty(t, got.Error)
}
