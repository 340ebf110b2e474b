package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Upsert(ctx context.Context, cardID, brainID string, embedding []float32, mtime int64) error {
	const query = `
		INSERT INTO card_embeddings (card_id, brain_id, embedding, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (card_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query, cardID, brainID, pgvector.NewVector(embedding), mtime)
	return err
}

// Nearest returns up to topK card ids in the brain ordered by cosine distance
// to the query vector, excluding the card itself.
func (r *EmbeddingRepo) Nearest(ctx context.Context, brainID string, query []float32, excludeCardID string, topK int) ([]string, []float32, error) {
	const stmt = `
		SELECT card_id, 1 - (embedding <=> $1) AS score
		FROM card_embeddings
		WHERE brain_id = $2 AND card_id <> $3
		ORDER BY embedding <=> $1
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, stmt, pgvector.NewVector(query), brainID, excludeCardID, topK)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	ids := make([]string, 0, topK)
	scores := make([]float32, 0, topK)
	for rows.Next() {
		var id string
		var score float32
		if err := rows.Scan(&id, &score); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		scores = append(scores, score)
	}
	return ids, scores, rows.Err()
}

func (r *EmbeddingRepo) Get(ctx context.Context, cardID string) (*model.CardEmbedding, error) {
	const query = `
		SELECT card_id, brain_id, embedding, mtime FROM card_embeddings WHERE card_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, cardID)
	var emb model.CardEmbedding
	var vec pgvector.Vector
	if err := row.Scan(&emb.CardID, &emb.BrainID, &vec, &emb.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	emb.Embedding = vec.Slice()
	return &emb, nil
}

func (r *EmbeddingRepo) Delete(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM card_embeddings WHERE card_id = $1`, cardID)
	return err
}

func (r *EmbeddingRepo) DeleteByBrain(ctx context.Context, brainID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM card_embeddings WHERE brain_id = $1`, brainID)
	return err
}
