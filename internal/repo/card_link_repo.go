package repo

import (
	"context"
	"database/sql"

	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
)

type CardLinkRepo struct {
	db *sql.DB
}

func NewCardLinkRepo(db *sql.DB) *CardLinkRepo {
	return &CardLinkRepo{db: db}
}

// ReplaceForCard swaps the card's outgoing links in one transaction.
func (r *CardLinkRepo) ReplaceForCard(ctx context.Context, fromCardID string, toCardIDs []string, ctime int64) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM card_links WHERE from_card_id = $1`, fromCardID); err != nil {
			return err
		}
		for _, toID := range toCardIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO card_links (from_card_id, to_card_id, ctime) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				fromCardID, toID, ctime); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CardLinkRepo) ListFrom(ctx context.Context, cardID string) ([]model.CardLink, error) {
	return r.list(ctx, `SELECT from_card_id, to_card_id, ctime FROM card_links WHERE from_card_id = $1`, cardID)
}

func (r *CardLinkRepo) ListTo(ctx context.Context, cardID string) ([]model.CardLink, error) {
	return r.list(ctx, `SELECT from_card_id, to_card_id, ctime FROM card_links WHERE to_card_id = $1`, cardID)
}

func (r *CardLinkRepo) list(ctx context.Context, query, arg string) ([]model.CardLink, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	links := make([]model.CardLink, 0)
	for rows.Next() {
		var link model.CardLink
		if err := rows.Scan(&link.FromCardID, &link.ToCardID, &link.Ctime); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *CardLinkRepo) DeleteByCard(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM card_links WHERE from_card_id = $1 OR to_card_id = $1`, cardID)
	return err
}

func (r *CardLinkRepo) DeleteByBrain(ctx context.Context, brainID string) error {
	const query = `
		DELETE FROM card_links
		WHERE from_card_id IN (SELECT id FROM cards WHERE brain_id = $1)
		   OR to_card_id IN (SELECT id FROM cards WHERE brain_id = $1)
	`
	_, err := r.db.ExecContext(ctx, query, brainID)
	return err
}
