package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

const cardColumns = "id, brain_id, card_type, title, preview, content_key, size_bytes, file_id, ctime, mtime"

type CardRepo struct {
	db *sql.DB
}

func NewCardRepo(db *sql.DB) *CardRepo {
	return &CardRepo{db: db}
}

func scanCard(row interface{ Scan(dest ...interface{}) error }) (*model.Card, error) {
	var card model.Card
	if err := row.Scan(
		&card.ID,
		&card.BrainID,
		&card.CardType,
		&card.Title,
		&card.Preview,
		&card.ContentKey,
		&card.SizeBytes,
		&card.FileID,
		&card.Ctime,
		&card.Mtime,
	); err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *CardRepo) Create(ctx context.Context, card *model.Card) error {
	data := map[string]interface{}{
		"id":          card.ID,
		"brain_id":    card.BrainID,
		"card_type":   card.CardType,
		"title":       card.Title,
		"preview":     card.Preview,
		"content_key": card.ContentKey,
		"size_bytes":  card.SizeBytes,
		"file_id":     card.FileID,
		"ctime":       card.Ctime,
		"mtime":       card.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("cards", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CardRepo) GetByID(ctx context.Context, brainID, cardID string) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND brain_id = $2`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, cardID, brainID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("card", cardID)
		}
		return nil, err
	}
	return card, nil
}

func (r *CardRepo) GetAnyByID(ctx context.Context, cardID string) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, cardID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.NotFoundOf("card", cardID)
		}
		return nil, err
	}
	return card, nil
}

// GetByTitle matches case-sensitively; only saved cards carry titles.
func (r *CardRepo) GetByTitle(ctx context.Context, brainID, title string) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE brain_id = $1 AND title = $2 LIMIT 1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, brainID, title))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return card, nil
}

func (r *CardRepo) ListByBrain(ctx context.Context, brainID string, cardType string, limit, offset uint) ([]model.Card, error) {
	where := map[string]interface{}{
		"brain_id": brainID,
		"_orderby": "mtime desc",
	}
	if cardType != "" {
		where["card_type"] = cardType
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("cards", where, []string{
		"id", "brain_id", "card_type", "title", "preview", "content_key", "size_bytes", "file_id", "ctime", "mtime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cards := make([]model.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (r *CardRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Card, error) {
	if len(ids) == 0 {
		return []model.Card{}, nil
	}
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	where := map[string]interface{}{
		"id in": values,
	}
	sqlStr, args, err := builder.BuildSelect("cards", where, []string{
		"id", "brain_id", "card_type", "title", "preview", "content_key", "size_bytes", "file_id", "ctime", "mtime",
	})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cards := make([]model.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (r *CardRepo) UpdateContentMeta(ctx context.Context, cardID, preview string, sizeBytes int64, mtime int64) error {
	const query = `
		UPDATE cards SET preview = $1, size_bytes = $2, mtime = $3 WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, preview, sizeBytes, mtime, cardID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("card", cardID)
	}
	return nil
}

// MarkSaved flips an unsaved card to saved with its new title. The WHERE
// clause re-checks the current type so a racing conversion loses cleanly.
func (r *CardRepo) MarkSaved(ctx context.Context, cardID, title string, mtime int64) error {
	const query = `
		UPDATE cards SET card_type = $1, title = $2, mtime = $3
		WHERE id = $4 AND card_type = $5
	`
	res, err := r.db.ExecContext(ctx, query, model.CardTypeSaved, title, mtime, cardID, model.CardTypeUnsaved)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrInvalidState
	}
	return nil
}

func (r *CardRepo) Delete(ctx context.Context, cardID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.NotFoundOf("card", cardID)
	}
	return nil
}

func (r *CardRepo) DeleteTx(ctx context.Context, tx *sql.Tx, cardID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	return err
}

func (r *CardRepo) DeleteByBrain(ctx context.Context, brainID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE brain_id = $1`, brainID)
	return err
}

func (r *CardRepo) SumSizeByBrain(ctx context.Context, brainID string) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM cards WHERE brain_id = $1`, brainID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
