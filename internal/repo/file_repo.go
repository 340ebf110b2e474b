package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

type FileRepo struct {
	db *sql.DB
}

func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{db: db}
}

func (r *FileRepo) Create(ctx context.Context, file *model.File) error {
	data := map[string]interface{}{
		"id":           file.ID,
		"brain_id":     file.BrainID,
		"name":         file.Name,
		"content_type": file.ContentType,
		"file_key":     file.FileKey,
		"size":         file.Size,
		"status":       file.Status,
		"ctime":        file.Ctime,
		"mtime":        file.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("files", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *FileRepo) GetByID(ctx context.Context, brainID, fileID string) (*model.File, error) {
	const query = `
		SELECT id, brain_id, name, content_type, file_key, size, status, ctime, mtime
		FROM files
		WHERE id = $1 AND brain_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, fileID, brainID)
	var file model.File
	if err := row.Scan(&file.ID, &file.BrainID, &file.Name, &file.ContentType, &file.FileKey, &file.Size, &file.Status, &file.Ctime, &file.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("file", fileID)
		}
		return nil, err
	}
	return &file, nil
}

func (r *FileRepo) UpdateStatus(ctx context.Context, fileID, status string, mtime int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET status = $1, mtime = $2 WHERE id = $3`, status, mtime, fileID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("file", fileID)
	}
	return nil
}

func (r *FileRepo) ListByBrain(ctx context.Context, brainID string) ([]model.File, error) {
	const query = `
		SELECT id, brain_id, name, content_type, file_key, size, status, ctime, mtime
		FROM files
		WHERE brain_id = $1
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, brainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	files := make([]model.File, 0)
	for rows.Next() {
		var file model.File
		if err := rows.Scan(&file.ID, &file.BrainID, &file.Name, &file.ContentType, &file.FileKey, &file.Size, &file.Status, &file.Ctime, &file.Mtime); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (r *FileRepo) SumSizeByBrain(ctx context.Context, brainID string) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM files WHERE brain_id = $1`, brainID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *FileRepo) Delete(ctx context.Context, brainID, fileID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND brain_id = $2`, fileID, brainID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("file", fileID)
	}
	return nil
}
