package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
)

// Store mirrors queue state to the database. The database is authoritative
// for historical queries and for recovering queued work after a restart; the
// in-memory map is authoritative while a job is live.
type Store interface {
	Create(ctx context.Context, job *model.ProcessingJob) error
	Update(ctx context.Context, job *model.ProcessingJob) error
	Get(ctx context.Context, jobID string) (*model.ProcessingJob, error)
	ListByStatus(ctx context.Context, statuses []string) ([]*model.ProcessingJob, error)
	DeleteTerminalBefore(ctx context.Context, cutoff int64) ([]string, error)
}

// Handler executes one job. The context carries the per-job timeout; a
// handler that ignores it keeps running in the background but the job is
// still marked failed once the budget expires.
type Handler func(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error)

type Options struct {
	MaxRetries int
	RetryDelay time.Duration
	JobTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
		JobTimeout: 5 * time.Minute,
	}
}

// Queue is a single-process background job queue: one worker goroutine, a
// priority-ordered pending list, and at most one job executing at a time.
// Construct with New, wire handlers, then Start/Stop from the host process.
type Queue struct {
	store Store
	opts  Options

	mu       sync.Mutex
	jobs     map[string]*model.ProcessingJob
	pending  []*model.ProcessingJob
	handlers map[string]Handler
	timers   map[string]*time.Timer
	started  bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store Store, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultOptions().MaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultOptions().RetryDelay
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultOptions().JobTimeout
	}
	return &Queue{
		store:    store,
		opts:     opts,
		jobs:     make(map[string]*model.ProcessingJob),
		handlers: make(map[string]Handler),
		timers:   make(map[string]*time.Timer),
		wake:     make(chan struct{}, 1),
	}
}

func (q *Queue) RegisterHandler(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Start reloads pending work from the store and launches the worker. Rows
// stuck in "processing" are treated as orphans from a crash and rerun.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("job queue already started")
	}
	q.started = true
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	rows, err := q.store.ListByStatus(ctx, []string{model.JobStatusPending, model.JobStatusProcessing})
	if err != nil {
		return fmt.Errorf("recover jobs: %w", err)
	}
	now := timeutil.NowUnix()
	q.mu.Lock()
	for _, job := range rows {
		if _, ok := q.jobs[job.ID]; ok {
			continue
		}
		if job.Status == model.JobStatusProcessing {
			job.Status = model.JobStatusPending
			job.StartedAt = nil
			job.Mtime = now
			if err := q.store.Update(ctx, job); err != nil {
				logutil.GetLogger(ctx).Error("reset orphaned job failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		q.jobs[job.ID] = job
		q.insertPendingLocked(job)
	}
	recovered := len(q.pending)
	q.mu.Unlock()
	if recovered > 0 {
		logutil.GetLogger(ctx).Info("recovered queued jobs", zap.Int("count", recovered))
	}

	q.wg.Add(1)
	go q.run()
	return nil
}

// Stop halts the worker after the in-flight job finishes its attempt.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	cancel := q.cancel
	q.mu.Unlock()
	cancel()
	q.wg.Wait()
}

// Enqueue persists a pending job, splices it into the in-memory list ordered
// by descending priority (FIFO within a priority), and wakes the worker. Job
// execution failures never propagate back to the enqueuer.
func (q *Queue) Enqueue(ctx context.Context, jobType string, input map[string]interface{}, userID, brainID string, priority int) (string, error) {
	q.mu.Lock()
	_, ok := q.handlers[jobType]
	q.mu.Unlock()
	if !ok {
		return "", appErr.Validation("job_type", "unknown job type: "+jobType)
	}
	now := timeutil.NowUnix()
	job := &model.ProcessingJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		BrainID:   brainID,
		JobType:   jobType,
		Status:    model.JobStatusPending,
		Priority:  priority,
		InputData: input,
		Ctime:     now,
		Mtime:     now,
	}
	if err := q.store.Create(ctx, job); err != nil {
		return "", err
	}
	q.mu.Lock()
	q.jobs[job.ID] = job
	q.insertPendingLocked(job)
	q.mu.Unlock()
	q.signal()
	logutil.GetLogger(ctx).Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("job_type", jobType),
		zap.Int("priority", priority),
	)
	return job.ID, nil
}

// GetStatus returns a snapshot of the job, falling back to the database row
// when the job is not in memory (e.g. after a restart or cleanup).
func (q *Queue) GetStatus(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if ok {
		snapshot := job.Clone()
		q.mu.Unlock()
		return snapshot, nil
	}
	q.mu.Unlock()
	return q.store.Get(ctx, jobID)
}

// Cancel marks a job cancelled. A pending job leaves the queue; a job whose
// handler is already running keeps running, but its result is discarded.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok {
		q.mu.Unlock()
		return appErr.NotFoundOf("job", jobID)
	}
	switch job.Status {
	case model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
		q.mu.Unlock()
		return appErr.InvalidState("job", job.Status, "cancel")
	}
	job.Status = model.JobStatusCancelled
	now := timeutil.NowUnix()
	job.CompletedAt = &now
	job.Mtime = now
	q.removePendingLocked(jobID)
	if timer, ok := q.timers[jobID]; ok {
		timer.Stop()
		delete(q.timers, jobID)
	}
	snapshot := job.Clone()
	q.mu.Unlock()
	if err := q.store.Update(ctx, snapshot); err != nil {
		logutil.GetLogger(ctx).Error("persist cancel failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return nil
}

// Cleanup purges terminal jobs older than maxAge from the store and drops
// their in-memory copies.
func (q *Queue) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	ids, err := q.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	q.mu.Lock()
	for _, id := range ids {
		delete(q.jobs, id)
	}
	q.mu.Unlock()
	return len(ids), nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) insertPendingLocked(job *model.ProcessingJob) {
	idx := len(q.pending)
	for i, existing := range q.pending {
		if existing.Priority < job.Priority {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = job
}

func (q *Queue) removePendingLocked(jobID string) {
	for i, job := range q.pending {
		if job.ID == jobID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		job := q.pop()
		if job == nil {
			select {
			case <-q.ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		q.process(job)
		select {
		case <-q.ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) pop() *model.ProcessingJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job
}

func (q *Queue) process(job *model.ProcessingJob) {
	logger := logutil.GetLogger(q.ctx).With(
		zap.String("job_id", job.ID),
		zap.String("job_type", job.JobType),
	)

	q.mu.Lock()
	if job.Status != model.JobStatusPending {
		q.mu.Unlock()
		return
	}
	handler := q.handlers[job.JobType]
	started := timeutil.NowUnix()
	job.Status = model.JobStatusProcessing
	job.StartedAt = &started
	job.Mtime = started
	snapshot := job.Clone()
	q.mu.Unlock()

	q.persist(snapshot, logger)
	if handler == nil {
		q.finish(job, nil, fmt.Errorf("no handler registered for %s", job.JobType), logger)
		return
	}

	logger.Info("job started", zap.Int("retry_count", job.RetryCount))
	begin := time.Now()
	output, err := q.invoke(handler, job.Clone())
	elapsed := time.Since(begin)
	if err != nil {
		logger.Warn("job attempt failed", zap.Error(err), zap.Duration("duration", elapsed))
	} else {
		logger.Info("job attempt finished", zap.Duration("duration", elapsed))
	}
	q.finish(job, output, err, logger)
}

// invoke runs the handler with the per-job timeout. On expiry the handler
// goroutine is abandoned (there is no cooperative cancellation beyond the
// context) and the attempt counts as a timeout failure.
func (q *Queue) invoke(handler Handler, job *model.ProcessingJob) (map[string]interface{}, error) {
	jctx, cancel := context.WithTimeout(q.ctx, q.opts.JobTimeout)
	defer cancel()

	type result struct {
		output map[string]interface{}
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		output, err := handler(jctx, job)
		done <- result{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-jctx.Done():
		if jctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("job exceeded %s budget: %w", q.opts.JobTimeout, appErr.ErrTimeout)
		}
		return nil, jctx.Err()
	}
}

func (q *Queue) finish(job *model.ProcessingJob, output map[string]interface{}, err error, logger *zap.Logger) {
	now := timeutil.NowUnix()
	q.mu.Lock()
	if job.Status == model.JobStatusCancelled {
		// Cancelled mid-flight; the attempt's result is discarded.
		q.mu.Unlock()
		return
	}
	if err == nil {
		job.Status = model.JobStatusCompleted
		job.OutputData = output
		job.ErrorMessage = ""
		job.CompletedAt = &now
		job.Mtime = now
		snapshot := job.Clone()
		q.mu.Unlock()
		q.persist(snapshot, logger)
		logger.Info("job completed", zap.Int("retry_count", job.RetryCount))
		return
	}

	job.RetryCount++
	job.ErrorMessage = err.Error()
	job.Mtime = now
	if job.RetryCount >= q.opts.MaxRetries {
		job.Status = model.JobStatusFailed
		job.CompletedAt = &now
		snapshot := job.Clone()
		q.mu.Unlock()
		q.persist(snapshot, logger)
		logger.Error("job failed permanently", zap.Int("retry_count", job.RetryCount), zap.Error(err))
		return
	}

	job.Status = model.JobStatusPending
	job.StartedAt = nil
	snapshot := job.Clone()
	q.timers[job.ID] = time.AfterFunc(q.opts.RetryDelay, func() {
		q.requeue(job)
	})
	q.mu.Unlock()
	q.persist(snapshot, logger)
	logger.Info("job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Duration("delay", q.opts.RetryDelay),
	)
}

func (q *Queue) requeue(job *model.ProcessingJob) {
	q.mu.Lock()
	delete(q.timers, job.ID)
	if !q.started || job.Status != model.JobStatusPending {
		q.mu.Unlock()
		return
	}
	q.insertPendingLocked(job)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) persist(job *model.ProcessingJob, logger *zap.Logger) {
	// Mirror failures must not stall the loop; the in-memory record stays
	// authoritative until the next successful write.
	if err := q.store.Update(q.ctx, job); err != nil {
		logger.Error("persist job state failed", zap.String("status", job.Status), zap.Error(err))
	}
}
