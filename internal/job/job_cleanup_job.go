package job

import (
	"context"
	"time"

	"github.com/clarity-app/clarity/internal/jobqueue"
)

type JobCleanupJob struct {
	queue    *jobqueue.Queue
	keepDays int
}

func NewJobCleanupJob(queue *jobqueue.Queue, keepDays int) *JobCleanupJob {
	return &JobCleanupJob{queue: queue, keepDays: keepDays}
}

func (j *JobCleanupJob) Name() string {
	return "job_cleanup"
}

func (j *JobCleanupJob) Run(ctx context.Context) error {
	if j.queue == nil {
		return nil
	}
	keepDays := j.keepDays
	if keepDays <= 0 {
		keepDays = 7
	}
	_, err := j.queue.Cleanup(ctx, time.Duration(keepDays)*24*time.Hour)
	return err
}
