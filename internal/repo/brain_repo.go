package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

type BrainRepo struct {
	db *sql.DB
}

func NewBrainRepo(db *sql.DB) *BrainRepo {
	return &BrainRepo{db: db}
}

func (r *BrainRepo) Create(ctx context.Context, brain *model.Brain) error {
	data := map[string]interface{}{
		"id":                 brain.ID,
		"user_id":            brain.UserID,
		"name":               brain.Name,
		"storage_used_bytes": brain.StorageUsedBytes,
		"ctime":              brain.Ctime,
		"mtime":              brain.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("brains", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *BrainRepo) GetByID(ctx context.Context, userID, brainID string) (*model.Brain, error) {
	const query = `
		SELECT id, user_id, name, storage_used_bytes, ctime, mtime
		FROM brains
		WHERE id = $1 AND user_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, brainID, userID)
	var brain model.Brain
	if err := row.Scan(&brain.ID, &brain.UserID, &brain.Name, &brain.StorageUsedBytes, &brain.Ctime, &brain.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("brain", brainID)
		}
		return nil, err
	}
	return &brain, nil
}

func (r *BrainRepo) ListByUser(ctx context.Context, userID string) ([]model.Brain, error) {
	const query = `
		SELECT id, user_id, name, storage_used_bytes, ctime, mtime
		FROM brains
		WHERE user_id = $1
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	brains := make([]model.Brain, 0)
	for rows.Next() {
		var brain model.Brain
		if err := rows.Scan(&brain.ID, &brain.UserID, &brain.Name, &brain.StorageUsedBytes, &brain.Ctime, &brain.Mtime); err != nil {
			return nil, err
		}
		brains = append(brains, brain)
	}
	return brains, rows.Err()
}

// AddStorageUsed applies a signed delta to the brain's cumulative usage,
// clamping at zero.
func (r *BrainRepo) AddStorageUsed(ctx context.Context, brainID string, delta int64, mtime int64) error {
	const query = `
		UPDATE brains
		SET storage_used_bytes = GREATEST(storage_used_bytes + $1, 0), mtime = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, delta, mtime, brainID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("brain", brainID)
	}
	return nil
}

func (r *BrainRepo) SetStorageUsed(ctx context.Context, brainID string, used int64, mtime int64) error {
	const query = `
		UPDATE brains SET storage_used_bytes = $1, mtime = $2 WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, used, mtime, brainID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("brain", brainID)
	}
	return nil
}

func (r *BrainRepo) GetAnyByID(ctx context.Context, brainID string) (*model.Brain, error) {
	const query = `
		SELECT id, user_id, name, storage_used_bytes, ctime, mtime FROM brains WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, brainID)
	var brain model.Brain
	if err := row.Scan(&brain.ID, &brain.UserID, &brain.Name, &brain.StorageUsedBytes, &brain.Ctime, &brain.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("brain", brainID)
		}
		return nil, err
	}
	return &brain, nil
}

func (r *BrainRepo) ListAll(ctx context.Context) ([]model.Brain, error) {
	const query = `
		SELECT id, user_id, name, storage_used_bytes, ctime, mtime FROM brains ORDER BY ctime
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	brains := make([]model.Brain, 0)
	for rows.Next() {
		var brain model.Brain
		if err := rows.Scan(&brain.ID, &brain.UserID, &brain.Name, &brain.StorageUsedBytes, &brain.Ctime, &brain.Mtime); err != nil {
			return nil, err
		}
		brains = append(brains, brain)
	}
	return brains, rows.Err()
}

func (r *BrainRepo) Delete(ctx context.Context, userID, brainID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM brains WHERE id = $1 AND user_id = $2`, brainID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("brain", brainID)
	}
	return nil
}
