package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

// ProcessingJobRepo is the database mirror of the in-memory job queue: it is
// authoritative for historical queries and for recovery after a restart.
type ProcessingJobRepo struct {
	db *sql.DB
}

func NewProcessingJobRepo(db *sql.DB) *ProcessingJobRepo {
	return &ProcessingJobRepo{db: db}
}

const processingJobColumns = "id, user_id, brain_id, job_type, status, priority, retry_count, input_data, output_data, error_message, ctime, started_at, completed_at, mtime"

func (r *ProcessingJobRepo) Create(ctx context.Context, job *model.ProcessingJob) error {
	inputJSON, err := json.Marshal(job.InputData)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO processing_jobs (id, user_id, brain_id, job_type, status, priority, retry_count, input_data, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		nullString(job.UserID),
		nullString(job.BrainID),
		job.JobType,
		job.Status,
		job.Priority,
		job.RetryCount,
		string(inputJSON),
		job.Ctime,
		job.Mtime,
	)
	return err
}

func (r *ProcessingJobRepo) Update(ctx context.Context, job *model.ProcessingJob) error {
	var outputJSON interface{}
	if job.OutputData != nil {
		data, err := json.Marshal(job.OutputData)
		if err != nil {
			return err
		}
		outputJSON = string(data)
	}
	const query = `
		UPDATE processing_jobs
		SET status = $1,
			retry_count = $2,
			output_data = $3,
			error_message = $4,
			started_at = $5,
			completed_at = $6,
			mtime = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.RetryCount,
		outputJSON,
		nullString(job.ErrorMessage),
		job.StartedAt,
		job.CompletedAt,
		job.Mtime,
		job.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("job", job.ID)
	}
	return nil
}

func (r *ProcessingJobRepo) Get(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	query := `SELECT ` + processingJobColumns + ` FROM processing_jobs WHERE id = $1`
	job, err := scanProcessingJob(r.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("job", jobID)
		}
		return nil, err
	}
	return job, nil
}

func (r *ProcessingJobRepo) ListByStatus(ctx context.Context, statuses []string) ([]*model.ProcessingJob, error) {
	query := `SELECT ` + processingJobColumns + ` FROM processing_jobs WHERE status = ANY($1) ORDER BY priority DESC, ctime`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	jobs := make([]*model.ProcessingJob, 0)
	for rows.Next() {
		job, err := scanProcessingJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteTerminalBefore purges completed/failed rows older than cutoff and
// returns the ids removed so the queue can drop its in-memory copies.
func (r *ProcessingJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff int64) ([]string, error) {
	const query = `
		DELETE FROM processing_jobs
		WHERE status = ANY($1) AND ctime < $2
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array([]string{model.JobStatusCompleted, model.JobStatusFailed}), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanProcessingJob(row interface{ Scan(dest ...interface{}) error }) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	var userID, brainID, outputJSON, errorMessage sql.NullString
	var inputJSON string
	var startedAt, completedAt sql.NullInt64
	if err := row.Scan(
		&job.ID,
		&userID,
		&brainID,
		&job.JobType,
		&job.Status,
		&job.Priority,
		&job.RetryCount,
		&inputJSON,
		&outputJSON,
		&errorMessage,
		&job.Ctime,
		&startedAt,
		&completedAt,
		&job.Mtime,
	); err != nil {
		return nil, err
	}
	job.UserID = userID.String
	job.BrainID = brainID.String
	job.ErrorMessage = errorMessage.String
	if inputJSON != "" {
		_ = json.Unmarshal([]byte(inputJSON), &job.InputData)
	}
	if outputJSON.Valid && outputJSON.String != "" {
		_ = json.Unmarshal([]byte(outputJSON.String), &job.OutputData)
	}
	if startedAt.Valid {
		v := startedAt.Int64
		job.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Int64
		job.CompletedAt = &v
	}
	return &job, nil
}

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
