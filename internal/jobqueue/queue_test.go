package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]*model.ProcessingJob
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*model.ProcessingJob)}
}

func (s *memStore) Create(ctx context.Context, job *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[job.ID] = job.Clone()
	return nil
}

func (s *memStore) Update(ctx context.Context, job *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[job.ID]; !ok {
		return appErr.ErrNotFound
	}
	s.rows[job.ID] = job.Clone()
	return nil
}

func (s *memStore) Get(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.rows[jobID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *memStore) ListByStatus(ctx context.Context, statuses []string) ([]*model.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		want[status] = struct{}{}
	}
	out := make([]*model.ProcessingJob, 0)
	for _, job := range s.rows {
		if _, ok := want[job.Status]; ok {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (s *memStore) DeleteTerminalBefore(ctx context.Context, cutoff int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := make([]string, 0)
	for id, job := range s.rows {
		switch job.Status {
		case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
		default:
			continue
		}
		if job.CompletedAt != nil && *job.CompletedAt < cutoff {
			delete(s.rows, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func testOptions() Options {
	return Options{
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		JobTimeout: 200 * time.Millisecond,
	}
}

func waitForStatus(t *testing.T, q *Queue, jobID, status string) *model.ProcessingJob {
	t.Helper()
	var job *model.ProcessingJob
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetStatus(context.Background(), jobID)
		return err == nil && job.Status == status
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestQueueCompletesJob(t *testing.T) {
	store := newMemStore()
	q := New(store, testOptions())
	q.RegisterHandler("noop", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		return map[string]interface{}{"echo": job.InputData["value"]}, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	jobID, err := q.Enqueue(context.Background(), "noop", map[string]interface{}{"value": "hello"}, "user-1", "brain-1", 0)
	require.NoError(t, err)

	job := waitForStatus(t, q, jobID, model.JobStatusCompleted)
	require.Equal(t, "hello", job.OutputData["echo"])
	require.Equal(t, 0, job.RetryCount)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	persisted, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, persisted.Status)
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	store := newMemStore()
	q := New(store, testOptions())
	var attempts int
	var mu sync.Mutex
	q.RegisterHandler("flaky", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 2 {
			return nil, fmt.Errorf("transient failure %d", n)
		}
		return map[string]interface{}{"ok": true}, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	jobID, err := q.Enqueue(context.Background(), "flaky", nil, "", "", 0)
	require.NoError(t, err)

	job := waitForStatus(t, q, jobID, model.JobStatusCompleted)
	require.Equal(t, 2, job.RetryCount)
	require.Equal(t, true, job.OutputData["ok"])
}

func TestQueueFailsAfterRetryCeiling(t *testing.T) {
	store := newMemStore()
	q := New(store, testOptions())
	var attempts int
	var mu sync.Mutex
	q.RegisterHandler("doomed", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, fmt.Errorf("permanent failure")
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	jobID, err := q.Enqueue(context.Background(), "doomed", nil, "", "", 0)
	require.NoError(t, err)

	job := waitForStatus(t, q, jobID, model.JobStatusFailed)
	require.Equal(t, 3, job.RetryCount)
	require.Contains(t, job.ErrorMessage, "permanent failure")
	require.NotNil(t, job.CompletedAt)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, attempts)
}

func TestQueueTimeoutCountsAsFailure(t *testing.T) {
	store := newMemStore()
	opts := testOptions()
	opts.JobTimeout = 20 * time.Millisecond
	q := New(store, opts)
	q.RegisterHandler("slow", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		// Ignores the context on purpose; the queue abandons the attempt.
		time.Sleep(150 * time.Millisecond)
		return nil, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	jobID, err := q.Enqueue(context.Background(), "slow", nil, "", "", 0)
	require.NoError(t, err)

	job := waitForStatus(t, q, jobID, model.JobStatusFailed)
	require.Equal(t, 3, job.RetryCount)
	require.Contains(t, job.ErrorMessage, "budget")
}

func TestQueuePriorityOrdering(t *testing.T) {
	store := newMemStore()
	q := New(store, testOptions())

	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	q.RegisterHandler("blocker", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		<-release
		return nil, nil
	})
	q.RegisterHandler("record", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		mu.Lock()
		order = append(order, job.InputData["name"].(string))
		mu.Unlock()
		return nil, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	blockerID, err := q.Enqueue(context.Background(), "blocker", nil, "", "", 100)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := q.GetStatus(context.Background(), blockerID)
		return err == nil && job.Status == model.JobStatusProcessing
	}, 5*time.Second, 5*time.Millisecond)

	lowID, err := q.Enqueue(context.Background(), "record", map[string]interface{}{"name": "low"}, "", "", 0)
	require.NoError(t, err)
	highID, err := q.Enqueue(context.Background(), "record", map[string]interface{}{"name": "high"}, "", "", 10)
	require.NoError(t, err)
	close(release)

	waitForStatus(t, q, lowID, model.JobStatusCompleted)
	waitForStatus(t, q, highID, model.JobStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"high", "low"}, order)
}

func TestQueueCancelPendingJob(t *testing.T) {
	store := newMemStore()
	q := New(store, testOptions())
	release := make(chan struct{})
	var ran []string
	var mu sync.Mutex
	q.RegisterHandler("blocker", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		<-release
		return nil, nil
	})
	q.RegisterHandler("victim", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		mu.Lock()
		ran = append(ran, job.ID)
		mu.Unlock()
		return nil, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	blockerID, err := q.Enqueue(context.Background(), "blocker", nil, "", "", 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := q.GetStatus(context.Background(), blockerID)
		return err == nil && job.Status == model.JobStatusProcessing
	}, 5*time.Second, 5*time.Millisecond)

	victimID, err := q.Enqueue(context.Background(), "victim", nil, "", "", 0)
	require.NoError(t, err)
	require.NoError(t, q.Cancel(context.Background(), victimID))
	close(release)

	waitForStatus(t, q, blockerID, model.JobStatusCompleted)
	job := waitForStatus(t, q, victimID, model.JobStatusCancelled)
	require.NotNil(t, job.CompletedAt)

	// Cancelling a terminal job is rejected.
	err = q.Cancel(context.Background(), victimID)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, ran)
}

func TestQueueGetStatusFallsBackToStore(t *testing.T) {
	store := newMemStore()
	done := int64(1000)
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID:          "cold-job",
		JobType:     "noop",
		Status:      model.JobStatusCompleted,
		CompletedAt: &done,
	}))
	q := New(store, testOptions())

	job, err := q.GetStatus(context.Background(), "cold-job")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, job.Status)

	_, err = q.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestQueueStartRecoversPersistedJobs(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID:      "pending-job",
		JobType: "recovered",
		Status:  model.JobStatusPending,
	}))
	started := int64(500)
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID:        "orphan-job",
		JobType:   "recovered",
		Status:    model.JobStatusProcessing,
		StartedAt: &started,
	}))
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID:      "done-job",
		JobType: "recovered",
		Status:  model.JobStatusCompleted,
	}))

	q := New(store, testOptions())
	var ran sync.Map
	q.RegisterHandler("recovered", func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
		ran.Store(job.ID, true)
		return nil, nil
	})
	require.NoError(t, q.Start(context.Background()))
	defer q.Stop()

	waitForStatus(t, q, "pending-job", model.JobStatusCompleted)
	waitForStatus(t, q, "orphan-job", model.JobStatusCompleted)

	_, pendingRan := ran.Load("pending-job")
	_, orphanRan := ran.Load("orphan-job")
	_, doneRan := ran.Load("done-job")
	require.True(t, pendingRan)
	require.True(t, orphanRan)
	require.False(t, doneRan)
}

func TestQueueCleanupPurgesOldTerminalJobs(t *testing.T) {
	store := newMemStore()
	old := time.Now().Add(-48 * time.Hour).Unix()
	fresh := time.Now().Unix()
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID: "old-done", JobType: "noop", Status: model.JobStatusCompleted, CompletedAt: &old,
	}))
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID: "fresh-done", JobType: "noop", Status: model.JobStatusCompleted, CompletedAt: &fresh,
	}))
	require.NoError(t, store.Create(context.Background(), &model.ProcessingJob{
		ID: "old-pending", JobType: "noop", Status: model.JobStatusPending, CompletedAt: &old,
	}))

	q := New(store, testOptions())
	removed, err := q.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = store.Get(context.Background(), "old-done")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = store.Get(context.Background(), "fresh-done")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "old-pending")
	require.NoError(t, err)
}

func TestQueueRejectsUnknownJobType(t *testing.T) {
	q := New(newMemStore(), testOptions())
	_, err := q.Enqueue(context.Background(), "mystery", nil, "", "", 0)
	require.True(t, appErr.IsValidation(err))
}
