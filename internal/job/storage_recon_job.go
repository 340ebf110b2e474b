package job

import (
	"context"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/service"
)

// StorageReconJob enqueues a STORAGE_CALCULATION pass for every brain so
// incremental usage counters get squared with the tables.
type StorageReconJob struct {
	brains *service.BrainService
	queue  service.JobEnqueuer
}

func NewStorageReconJob(brains *service.BrainService, queue service.JobEnqueuer) *StorageReconJob {
	return &StorageReconJob{brains: brains, queue: queue}
}

func (j *StorageReconJob) Name() string {
	return "storage_recon"
}

func (j *StorageReconJob) Run(ctx context.Context) error {
	if j.brains == nil || j.queue == nil {
		return nil
	}
	brains, err := j.brains.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, brain := range brains {
		input := map[string]interface{}{"brain_id": brain.ID}
		if _, err := j.queue.Enqueue(ctx, model.JobTypeStorageCalculation, input, brain.UserID, brain.ID, -1); err != nil {
			return err
		}
	}
	return nil
}
