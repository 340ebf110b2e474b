package model

const (
	JobTypeFileProcessing     = "FILE_PROCESSING"
	JobTypeLinkResolution     = "LINK_RESOLUTION"
	JobTypeStorageCalculation = "STORAGE_CALCULATION"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

type ProcessingJob struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id,omitempty"`
	BrainID      string                 `json:"brain_id,omitempty"`
	JobType      string                 `json:"job_type"`
	Status       string                 `json:"status"`
	Priority     int                    `json:"priority"`
	RetryCount   int                    `json:"retry_count"`
	InputData    map[string]interface{} `json:"input_data"`
	OutputData   map[string]interface{} `json:"output_data,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Ctime        int64                  `json:"ctime"`
	StartedAt    *int64                 `json:"started_at,omitempty"`
	CompletedAt  *int64                 `json:"completed_at,omitempty"`
	Mtime        int64                  `json:"mtime"`
}

// Clone returns a copy safe to hand out while the queue keeps mutating the
// original.
func (j *ProcessingJob) Clone() *ProcessingJob {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		v := *j.StartedAt
		cp.StartedAt = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		cp.CompletedAt = &v
	}
	if j.InputData != nil {
		cp.InputData = make(map[string]interface{}, len(j.InputData))
		for k, v := range j.InputData {
			cp.InputData[k] = v
		}
	}
	if j.OutputData != nil {
		cp.OutputData = make(map[string]interface{}, len(j.OutputData))
		for k, v := range j.OutputData {
			cp.OutputData[k] = v
		}
	}
	return &cp
}
