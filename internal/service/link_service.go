package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/ai"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

// parseWikiLinks extracts distinct [[Title]] targets in order of first
// appearance. Titles are trimmed but matched case-sensitively.
func parseWikiLinks(content string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
	}
	return titles
}

// CardLinks groups a card's graph neighborhood for the links endpoint.
type CardLinks struct {
	Outgoing []model.Card `json:"outgoing"`
	Incoming []model.Card `json:"incoming"`
}

// LinkService maintains the card graph: [[Title]] references become edges,
// and card bodies become embeddings for similarity lookups. Both run inside
// the LINK_RESOLUTION job so editing stays fast.
type LinkService struct {
	brains     *repo.BrainRepo
	cards      *repo.CardRepo
	links      *repo.CardLinkRepo
	embeddings *repo.EmbeddingRepo
	cardSvc    *CardService
	embedder   ai.IEmbedder
}

func NewLinkService(brains *repo.BrainRepo, cards *repo.CardRepo, links *repo.CardLinkRepo,
	embeddings *repo.EmbeddingRepo, cardSvc *CardService, embedder ai.IEmbedder) *LinkService {
	return &LinkService{
		brains:     brains,
		cards:      cards,
		links:      links,
		embeddings: embeddings,
		cardSvc:    cardSvc,
		embedder:   embedder,
	}
}

// HandleResolution is the queue handler for LINK_RESOLUTION jobs. Unresolved
// titles are reported, not erroneous; a link to a card that does not exist
// yet simply stays dangling until that card appears and the source is edited
// again.
func (s *LinkService) HandleResolution(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
	cardID, _ := job.InputData["card_id"].(string)
	if cardID == "" {
		return nil, fmt.Errorf("link resolution job missing card_id")
	}
	card, err := s.cards.GetAnyByID(ctx, cardID)
	if err != nil {
		if appErr.IsNotFound(err) {
			// Card removed between enqueue and execution; nothing to do.
			return map[string]interface{}{"skipped": true}, nil
		}
		return nil, err
	}
	body, err := s.cardSvc.loadBody(ctx, card)
	if err != nil {
		return nil, err
	}

	titles := parseWikiLinks(body)
	resolved := make([]string, 0, len(titles))
	unresolved := make([]string, 0)
	for _, title := range titles {
		target, err := s.cards.GetByTitle(ctx, card.BrainID, title)
		if err != nil {
			if appErr.IsNotFound(err) {
				unresolved = append(unresolved, title)
				continue
			}
			return nil, err
		}
		if target.ID == card.ID {
			continue
		}
		resolved = append(resolved, target.ID)
	}
	if err := s.links.ReplaceForCard(ctx, card.ID, resolved, timeutil.NowUnix()); err != nil {
		return nil, err
	}

	embedded := false
	if s.embedder != nil && strings.TrimSpace(body) != "" {
		vec, err := s.embedder.Embed(ctx, body, ai.TaskTypeDocument)
		if err != nil {
			// Link edges are already written; embeddings refresh on the
			// next edit.
			logutil.GetLogger(ctx).Warn("embed card failed", zap.String("card_id", card.ID), zap.Error(err))
		} else {
			if err := s.embeddings.Upsert(ctx, card.ID, card.BrainID, vec, timeutil.NowUnix()); err != nil {
				return nil, err
			}
			embedded = true
		}
	}

	return map[string]interface{}{
		"resolved":   len(resolved),
		"unresolved": unresolved,
		"embedded":   embedded,
	}, nil
}

// Links returns the card's outgoing and incoming edges with the linked
// cards attached.
func (s *LinkService) Links(ctx context.Context, userID, brainID, cardID string) (*CardLinks, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	if _, err := s.cards.GetByID(ctx, brainID, cardID); err != nil {
		return nil, err
	}
	out, err := s.links.ListFrom(ctx, cardID)
	if err != nil {
		return nil, err
	}
	in, err := s.links.ListTo(ctx, cardID)
	if err != nil {
		return nil, err
	}
	outIDs := make([]string, 0, len(out))
	for _, l := range out {
		outIDs = append(outIDs, l.ToCardID)
	}
	inIDs := make([]string, 0, len(in))
	for _, l := range in {
		inIDs = append(inIDs, l.FromCardID)
	}
	outgoing, err := s.cards.ListByIDs(ctx, outIDs)
	if err != nil {
		return nil, err
	}
	incoming, err := s.cards.ListByIDs(ctx, inIDs)
	if err != nil {
		return nil, err
	}
	return &CardLinks{Outgoing: outgoing, Incoming: incoming}, nil
}
