package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/ai"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/repo"
)

const relatedCardsDefault = 5

// RelatedCard is a similarity hit: a card and its cosine score against the
// query card.
type RelatedCard struct {
	Card  model.Card `json:"card"`
	Score float32    `json:"score"`
}

// AIService generates content into streams and answers similarity queries.
// Generation context is assembled from the stream's cards that are flagged
// into the AI context; the output lands in a fresh unsaved card appended to
// the stream.
type AIService struct {
	provider   ai.IProvider
	model      string
	embedder   ai.IEmbedder
	brains     *repo.BrainRepo
	cards      *repo.CardRepo
	members    *repo.StreamCardRepo
	embeddings *repo.EmbeddingRepo
	cardSvc    *CardService
}

func NewAIService(provider ai.IProvider, modelName string, embedder ai.IEmbedder,
	brains *repo.BrainRepo, cards *repo.CardRepo, members *repo.StreamCardRepo,
	embeddings *repo.EmbeddingRepo, cardSvc *CardService) *AIService {
	return &AIService{
		provider:   provider,
		model:      modelName,
		embedder:   embedder,
		brains:     brains,
		cards:      cards,
		members:    members,
		embeddings: embeddings,
		cardSvc:    cardSvc,
	}
}

// buildContext concatenates the bodies of the stream's AI-context cards in
// position order.
func (s *AIService) buildContext(ctx context.Context, streamID string) (string, error) {
	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, entry := range entries {
		if !entry.IsInAIContext {
			continue
		}
		card, err := s.cards.GetAnyByID(ctx, entry.CardID)
		if err != nil {
			if appErr.IsNotFound(err) {
				continue
			}
			return "", err
		}
		body, err := s.cardSvc.loadBody(ctx, card)
		if err != nil {
			return "", err
		}
		title := "Untitled"
		if card.Title != nil {
			title = *card.Title
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", title, body)
	}
	return sb.String(), nil
}

// Generate streams model output into a new unsaved card at the end of the
// stream. Chunks are forwarded to fn as they arrive; the accumulated text is
// written to the card once the stream completes.
func (s *AIService) Generate(ctx context.Context, userID, brainID, streamID, prompt string, fn ai.StreamFunc) (*model.Card, error) {
	if s.provider == nil {
		return nil, ai.ErrUnavailable
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, appErr.Validation("prompt", "prompt is required")
	}
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}

	contextText, err := s.buildContext(ctx, streamID)
	if err != nil {
		return nil, err
	}
	fullPrompt := prompt
	if contextText != "" {
		fullPrompt = fmt.Sprintf("Use the following notes as context.\n\n%s---\n\n%s", contextText, prompt)
	}

	// Nil position appends to the end of the stream.
	card, _, err := s.cardSvc.CreateEmptyUnsaved(ctx, userID, brainID, streamID, nil, false)
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	streamErr := s.provider.GenerateStream(ctx, s.model, fullPrompt, func(chunk string) error {
		out.WriteString(chunk)
		if fn != nil {
			return fn(chunk)
		}
		return nil
	})
	if streamErr != nil && out.Len() == 0 {
		logutil.GetLogger(ctx).Error("generation failed", zap.String("stream_id", streamID), zap.Error(streamErr))
		return card, fmt.Errorf("generate: %w", streamErr)
	}
	if _, err := s.cardSvc.UpdateContent(ctx, userID, brainID, card.ID, out.String()); err != nil {
		return card, err
	}
	if streamErr != nil {
		// Partial output was kept; report the truncation.
		return card, fmt.Errorf("generate truncated: %w", streamErr)
	}
	return card, nil
}

// RelatedCards returns the nearest cards in the brain by cosine similarity.
// The card's stored document vector is preferred; when it has not been
// embedded yet the body is embedded on the spot.
func (s *AIService) RelatedCards(ctx context.Context, userID, brainID, cardID string, topK int) ([]RelatedCard, error) {
	if s.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	if topK <= 0 {
		topK = relatedCardsDefault
	}
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return nil, err
	}
	var vec []float32
	if stored, err := s.embeddings.Get(ctx, cardID); err == nil {
		vec = stored.Embedding
	} else if !appErr.IsNotFound(err) {
		return nil, err
	} else {
		body, err := s.cardSvc.loadBody(ctx, card)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(body) == "" {
			return []RelatedCard{}, nil
		}
		vec, err = s.embedder.Embed(ctx, body, ai.TaskTypeQuery)
		if err != nil {
			return nil, err
		}
	}
	ids, scores, err := s.embeddings.Nearest(ctx, brainID, vec, cardID, topK)
	if err != nil {
		return nil, err
	}
	cards, err := s.cards.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}
	out := make([]RelatedCard, 0, len(ids))
	for i, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, RelatedCard{Card: c, Score: scores[i]})
	}
	return out, nil
}
