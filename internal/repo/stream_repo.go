package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

type StreamRepo struct {
	db *sql.DB
}

func NewStreamRepo(db *sql.DB) *StreamRepo {
	return &StreamRepo{db: db}
}

func (r *StreamRepo) Create(ctx context.Context, stream *model.Stream) error {
	data := map[string]interface{}{
		"id":            stream.ID,
		"brain_id":      stream.BrainID,
		"name":          stream.Name,
		"favorite":      stream.Favorite,
		"last_accessed": stream.LastAccessed,
		"ctime":         stream.Ctime,
		"mtime":         stream.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("streams", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *StreamRepo) GetByID(ctx context.Context, brainID, streamID string) (*model.Stream, error) {
	const query = `
		SELECT id, brain_id, name, favorite, last_accessed, ctime, mtime
		FROM streams
		WHERE id = $1 AND brain_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, streamID, brainID)
	var stream model.Stream
	if err := row.Scan(&stream.ID, &stream.BrainID, &stream.Name, &stream.Favorite, &stream.LastAccessed, &stream.Ctime, &stream.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("stream", streamID)
		}
		return nil, err
	}
	return &stream, nil
}

func (r *StreamRepo) GetAnyByID(ctx context.Context, streamID string) (*model.Stream, error) {
	const query = `
		SELECT id, brain_id, name, favorite, last_accessed, ctime, mtime
		FROM streams
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, streamID)
	var stream model.Stream
	if err := row.Scan(&stream.ID, &stream.BrainID, &stream.Name, &stream.Favorite, &stream.LastAccessed, &stream.Ctime, &stream.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("stream", streamID)
		}
		return nil, err
	}
	return &stream, nil
}

func (r *StreamRepo) ListByBrain(ctx context.Context, brainID string) ([]model.Stream, error) {
	const query = `
		SELECT id, brain_id, name, favorite, last_accessed, ctime, mtime
		FROM streams
		WHERE brain_id = $1
		ORDER BY favorite DESC, last_accessed DESC
	`
	rows, err := r.db.QueryContext(ctx, query, brainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	streams := make([]model.Stream, 0)
	for rows.Next() {
		var stream model.Stream
		if err := rows.Scan(&stream.ID, &stream.BrainID, &stream.Name, &stream.Favorite, &stream.LastAccessed, &stream.Ctime, &stream.Mtime); err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return streams, rows.Err()
}

func (r *StreamRepo) Update(ctx context.Context, brainID, streamID string, name string, favorite *bool, mtime int64) error {
	update := map[string]interface{}{
		"mtime": mtime,
	}
	if name != "" {
		update["name"] = name
	}
	if favorite != nil {
		update["favorite"] = *favorite
	}
	where := map[string]interface{}{
		"id":       streamID,
		"brain_id": brainID,
	}
	sqlStr, args, err := builder.BuildUpdate("streams", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("stream", streamID)
	}
	return nil
}

func (r *StreamRepo) TouchLastAccessed(ctx context.Context, streamID string, at int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE streams SET last_accessed = $1 WHERE id = $2`, at, streamID)
	return err
}

func (r *StreamRepo) Delete(ctx context.Context, brainID, streamID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM streams WHERE id = $1 AND brain_id = $2`, streamID, brainID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("stream", streamID)
	}
	return nil
}

func (r *StreamRepo) DeleteByBrain(ctx context.Context, brainID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM streams WHERE brain_id = $1`, brainID)
	return err
}
