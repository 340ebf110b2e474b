package repo

import (
	"context"
	"database/sql"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

// StreamCardRepo persists position-ledger entries. Multi-row position
// rewrites go through the Tx variants so the ledger service can renumber a
// stream atomically.
type StreamCardRepo struct {
	db *sql.DB
}

func NewStreamCardRepo(db *sql.DB) *StreamCardRepo {
	return &StreamCardRepo{db: db}
}

const streamCardColumns = "stream_id, card_id, position, depth, is_in_ai_context, is_collapsed, added_at"

func scanStreamCard(row interface{ Scan(dest ...interface{}) error }) (*model.StreamCard, error) {
	var sc model.StreamCard
	if err := row.Scan(&sc.StreamID, &sc.CardID, &sc.Position, &sc.Depth, &sc.IsInAIContext, &sc.IsCollapsed, &sc.AddedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListByStream returns memberships ordered by position with insertion time as
// tiebreak, which is also the canonical order used by normalization.
func (r *StreamCardRepo) ListByStream(ctx context.Context, streamID string) ([]model.StreamCard, error) {
	query := `SELECT ` + streamCardColumns + ` FROM stream_cards WHERE stream_id = $1 ORDER BY position, added_at`
	rows, err := r.db.QueryContext(ctx, query, streamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]model.StreamCard, 0)
	for rows.Next() {
		sc, err := scanStreamCard(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *sc)
	}
	return entries, rows.Err()
}

func (r *StreamCardRepo) Get(ctx context.Context, streamID, cardID string) (*model.StreamCard, error) {
	query := `SELECT ` + streamCardColumns + ` FROM stream_cards WHERE stream_id = $1 AND card_id = $2`
	sc, err := scanStreamCard(r.db.QueryRowContext(ctx, query, streamID, cardID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return sc, nil
}

func (r *StreamCardRepo) InsertTx(ctx context.Context, tx *sql.Tx, sc *model.StreamCard) error {
	const query = `
		INSERT INTO stream_cards (stream_id, card_id, position, depth, is_in_ai_context, is_collapsed, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query, sc.StreamID, sc.CardID, sc.Position, sc.Depth, sc.IsInAIContext, sc.IsCollapsed, sc.AddedAt)
	return err
}

func (r *StreamCardRepo) DeleteTx(ctx context.Context, tx *sql.Tx, streamID, cardID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM stream_cards WHERE stream_id = $1 AND card_id = $2`, streamID, cardID)
	return err
}

func (r *StreamCardRepo) AssignPositionTx(ctx context.Context, tx *sql.Tx, streamID, cardID string, position int) error {
	const query = `
		UPDATE stream_cards SET position = $1 WHERE stream_id = $2 AND card_id = $3
	`
	_, err := tx.ExecContext(ctx, query, position, streamID, cardID)
	return err
}

func (r *StreamCardRepo) UpdateDepthTx(ctx context.Context, tx *sql.Tx, streamID, cardID string, depth int) error {
	const query = `
		UPDATE stream_cards SET depth = $1 WHERE stream_id = $2 AND card_id = $3
	`
	_, err := tx.ExecContext(ctx, query, depth, streamID, cardID)
	return err
}

func (r *StreamCardRepo) SetAIContext(ctx context.Context, streamID, cardID string, value bool) error {
	const query = `
		UPDATE stream_cards SET is_in_ai_context = $1 WHERE stream_id = $2 AND card_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, value, streamID, cardID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *StreamCardRepo) SetCollapsed(ctx context.Context, streamID, cardID string, value bool) error {
	const query = `
		UPDATE stream_cards SET is_collapsed = $1 WHERE stream_id = $2 AND card_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, value, streamID, cardID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *StreamCardRepo) CountByStream(ctx context.Context, streamID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stream_cards WHERE stream_id = $1`, streamID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *StreamCardRepo) ListStreamIDsByCard(ctx context.Context, cardID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT stream_id FROM stream_cards WHERE card_id = $1`, cardID)
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

func (r *StreamCardRepo) DeleteByStream(ctx context.Context, streamID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stream_cards WHERE stream_id = $1`, streamID)
	return err
}

func (r *StreamCardRepo) DeleteByCard(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stream_cards WHERE card_id = $1`, cardID)
	return err
}
