package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/extract"
	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

const (
	previewLimit      = 200
	filePreviewLimit  = 500
	bodyCacheSize     = 256
	bodyCacheTTL      = 10 * time.Minute
	cardContentPrefix = "cards/"
)

// JobEnqueuer is the slice of the job queue that services need.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, input map[string]interface{}, userID, brainID string, priority int) (string, error)
}

// CardDetail is a card plus its full body, which lives in the file store
// rather than the database.
type CardDetail struct {
	model.Card
	Content string `json:"content"`
}

// CardService manages the card lifecycle: saved cards with brain-unique
// titles, unsaved scratch cards that exist only through stream membership,
// and file cards backed by an uploaded document. Bodies live in the file
// store keyed by card id; the database keeps a preview and size.
type CardService struct {
	db         *sql.DB
	brains     *repo.BrainRepo
	cards      *repo.CardRepo
	links      *repo.CardLinkRepo
	embeddings *repo.EmbeddingRepo
	store      filestore.Store
	ledger     *LedgerService
	queue      JobEnqueuer
	bodies     *expirable.LRU[string, string]
	quotaBytes int64
}

func NewCardService(db *sql.DB, brains *repo.BrainRepo, cards *repo.CardRepo,
	links *repo.CardLinkRepo, embeddings *repo.EmbeddingRepo, store filestore.Store,
	ledger *LedgerService, queue JobEnqueuer, quotaBytes int64) *CardService {
	return &CardService{
		db:         db,
		brains:     brains,
		cards:      cards,
		links:      links,
		embeddings: embeddings,
		store:      store,
		ledger:     ledger,
		queue:      queue,
		bodies:     expirable.NewLRU[string, string](bodyCacheSize, nil, bodyCacheTTL),
		quotaBytes: quotaBytes,
	}
}

func ContentKey(cardID string) string {
	return cardContentPrefix + cardID
}

// makePreview strips markdown and truncates. File cards carry a longer
// preview than authored cards since the extracted text is all the row shows.
func (s *CardService) makePreview(cardType, content string) string {
	limit := previewLimit
	if cardType == model.CardTypeFile {
		limit = filePreviewLimit
	}
	return extract.Preview(extract.MarkdownText([]byte(content)), limit)
}

func (s *CardService) checkQuota(ctx context.Context, brainID string, delta int64) error {
	if delta <= 0 || s.quotaBytes <= 0 {
		return nil
	}
	brain, err := s.brains.GetAnyByID(ctx, brainID)
	if err != nil {
		return err
	}
	if brain.StorageUsedBytes+delta > s.quotaBytes {
		return appErr.ErrQuota
	}
	return nil
}

// CreateSaved creates a titled card. Titles are unique per brain,
// case-sensitive; a clash is a conflict, not an upsert. Content must be
// present in the request; an empty string is a legal body, omitting the
// field is not.
func (s *CardService) CreateSaved(ctx context.Context, userID, brainID, title string, content *string) (*model.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.Validation("title", "title is required")
	}
	if content == nil {
		return nil, appErr.Validation("content", "content is required")
	}
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	if _, err := s.cards.GetByTitle(ctx, brainID, title); err == nil {
		return nil, appErr.Conflict("title", title)
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	card, err := s.createCard(ctx, userID, brainID, model.CardTypeSaved, &title, *content, nil)
	if err != nil {
		return nil, err
	}
	s.enqueueLinkResolution(ctx, userID, card)
	return card, nil
}

// CreateUnsaved creates an untitled card and splices it into the stream in
// one go; an unsaved card outside every stream would be unreachable.
func (s *CardService) CreateUnsaved(ctx context.Context, userID, brainID, streamID, content string, position int) (*model.Card, *model.StreamCard, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, nil, err
	}
	card, err := s.createCard(ctx, userID, brainID, model.CardTypeUnsaved, nil, content, nil)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.ledger.InsertCard(ctx, userID, brainID, streamID, card.ID, position, 0)
	if err != nil {
		// Membership failed; do not leave an unreachable card behind.
		if purgeErr := s.purgeCard(ctx, card); purgeErr != nil {
			logutil.GetLogger(ctx).Error("rollback unsaved card failed", zap.String("card_id", card.ID), zap.Error(purgeErr))
		}
		return nil, nil, err
	}
	if content != "" {
		s.enqueueLinkResolution(ctx, userID, card)
	}
	return card, entry, nil
}

// InsertIndex computes the effective ledger index from an optional position
// and the insert-after flag. A nil position appends; insertAfter shifts the
// target one slot past the given position.
func InsertIndex(position *int, insertAfter bool) int {
	if position == nil {
		return int(^uint(0) >> 1)
	}
	if insertAfter {
		return *position + 1
	}
	return *position
}

// CreateEmptyUnsaved is CreateUnsaved with an empty body, the "new card
// here" gesture.
func (s *CardService) CreateEmptyUnsaved(ctx context.Context, userID, brainID, streamID string, position *int, insertAfter bool) (*model.Card, *model.StreamCard, error) {
	return s.CreateUnsaved(ctx, userID, brainID, streamID, "", InsertIndex(position, insertAfter))
}

// CreateFileCard creates the card that fronts an uploaded file. The preview
// is filled in once extraction runs.
func (s *CardService) CreateFileCard(ctx context.Context, userID, brainID, title, fileID string) (*model.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.Validation("title", "title is required")
	}
	if _, err := s.cards.GetByTitle(ctx, brainID, title); err == nil {
		return nil, appErr.Conflict("title", title)
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	return s.createCard(ctx, userID, brainID, model.CardTypeFile, &title, "", &fileID)
}

func (s *CardService) createCard(ctx context.Context, userID, brainID, cardType string, title *string, content string, fileID *string) (*model.Card, error) {
	size := int64(len(content))
	if err := s.checkQuota(ctx, brainID, size); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	card := &model.Card{
		ID:       newID(),
		BrainID:  brainID,
		CardType: cardType,
		Title:    title,
		Preview:  s.makePreview(cardType, content),
		FileID:   fileID,
		Ctime:    now,
		Mtime:    now,
	}
	if content != "" {
		card.ContentKey = ContentKey(card.ID)
		card.SizeBytes = size
		if err := filestore.SaveBytes(ctx, s.store, card.ContentKey, []byte(content)); err != nil {
			return nil, err
		}
	}
	if err := s.cards.Create(ctx, card); err != nil {
		if card.ContentKey != "" {
			if delErr := s.store.Delete(ctx, card.ContentKey); delErr != nil {
				logutil.GetLogger(ctx).Warn("orphaned content cleanup failed", zap.String("key", card.ContentKey), zap.Error(delErr))
			}
		}
		return nil, err
	}
	if card.SizeBytes > 0 {
		if err := s.brains.AddStorageUsed(ctx, brainID, card.SizeBytes, now); err != nil {
			logutil.GetLogger(ctx).Warn("storage accounting update failed", zap.String("brain_id", brainID), zap.Error(err))
		}
	}
	if content != "" {
		s.bodies.Add(card.ID, content)
	}
	logutil.GetLogger(ctx).Info("card created",
		zap.String("card_id", card.ID),
		zap.String("card_type", cardType),
		zap.Int64("size", card.SizeBytes),
	)
	return card, nil
}

// ConvertToSaved promotes an unsaved card by giving it a title. Saved and
// file cards cannot be converted.
func (s *CardService) ConvertToSaved(ctx context.Context, userID, brainID, cardID, title string) (*model.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.Validation("title", "title is required")
	}
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return nil, err
	}
	if card.CardType != model.CardTypeUnsaved {
		return nil, appErr.InvalidState("card", card.CardType, "convert")
	}
	if _, err := s.cards.GetByTitle(ctx, brainID, title); err == nil {
		return nil, appErr.Conflict("title", title)
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	now := timeutil.NowUnix()
	if err := s.cards.MarkSaved(ctx, cardID, title, now); err != nil {
		return nil, err
	}
	card.CardType = model.CardTypeSaved
	card.Title = &title
	card.Mtime = now
	return card, nil
}

// Get returns the card with its body. Bodies are cached in an expiring LRU;
// a miss reads the file store.
func (s *CardService) Get(ctx context.Context, userID, brainID, cardID string) (*CardDetail, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return nil, err
	}
	content, err := s.loadBody(ctx, card)
	if err != nil {
		return nil, err
	}
	return &CardDetail{Card: *card, Content: content}, nil
}

func (s *CardService) loadBody(ctx context.Context, card *model.Card) (string, error) {
	if card.ContentKey == "" {
		return "", nil
	}
	if body, ok := s.bodies.Get(card.ID); ok {
		return body, nil
	}
	data, err := filestore.ReadBytes(ctx, s.store, card.ContentKey)
	if err != nil {
		return "", err
	}
	body := string(data)
	s.bodies.Add(card.ID, body)
	return body, nil
}

func (s *CardService) List(ctx context.Context, userID, brainID, cardType string, limit, offset uint) ([]model.Card, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.cards.ListByBrain(ctx, brainID, cardType, limit, offset)
}

// UpdateContent replaces the card body, adjusting the preview, the size
// and the brain's storage accounting, then requeues link resolution.
func (s *CardService) UpdateContent(ctx context.Context, userID, brainID, cardID, content string) (*model.Card, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return nil, err
	}
	newSize := int64(len(content))
	delta := newSize - card.SizeBytes
	if err := s.checkQuota(ctx, brainID, delta); err != nil {
		return nil, err
	}
	key := card.ContentKey
	if key == "" {
		key = ContentKey(card.ID)
	}
	if err := filestore.SaveBytes(ctx, s.store, key, []byte(content)); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	preview := s.makePreview(card.CardType, content)
	if err := s.cards.UpdateContentMeta(ctx, cardID, preview, newSize, now); err != nil {
		return nil, err
	}
	if delta != 0 {
		if err := s.brains.AddStorageUsed(ctx, brainID, delta, now); err != nil {
			logutil.GetLogger(ctx).Warn("storage accounting update failed", zap.String("brain_id", brainID), zap.Error(err))
		}
	}
	s.bodies.Add(card.ID, content)
	card.ContentKey = key
	card.Preview = preview
	card.SizeBytes = newSize
	card.Mtime = now
	s.enqueueLinkResolution(ctx, userID, card)
	return card, nil
}

// AppendContent tacks text onto the end of the body, inserting a separating
// newline when the body does not already end with one.
func (s *CardService) AppendContent(ctx context.Context, userID, brainID, cardID, text string) (*model.Card, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return nil, err
	}
	body, err := s.loadBody(ctx, card)
	if err != nil {
		return nil, err
	}
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return s.UpdateContent(ctx, userID, brainID, cardID, body+text)
}

// Delete removes a card of any kind: ledger entries in every stream, links,
// embedding, body, row, and the storage it was counted for.
func (s *CardService) Delete(ctx context.Context, userID, brainID, cardID string) error {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return err
	}
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		return err
	}
	if err := s.ledger.removeCardEverywhere(ctx, cardID); err != nil {
		return err
	}
	return s.purgeCard(ctx, card)
}

func (s *CardService) purgeCard(ctx context.Context, card *model.Card) error {
	if err := s.links.DeleteByCard(ctx, card.ID); err != nil {
		return err
	}
	if err := s.embeddings.Delete(ctx, card.ID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, card.ID); err != nil && !appErr.IsNotFound(err) {
		return err
	}
	s.bodies.Remove(card.ID)
	if card.ContentKey != "" {
		if err := s.store.Delete(ctx, card.ContentKey); err != nil {
			logutil.GetLogger(ctx).Warn("delete card content failed", zap.String("key", card.ContentKey), zap.Error(err))
		}
	}
	if card.SizeBytes > 0 {
		if err := s.brains.AddStorageUsed(ctx, card.BrainID, -card.SizeBytes, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Warn("storage accounting update failed", zap.String("brain_id", card.BrainID), zap.Error(err))
		}
	}
	logutil.GetLogger(ctx).Info("card deleted", zap.String("card_id", card.ID))
	return nil
}

func (s *CardService) enqueueLinkResolution(ctx context.Context, userID string, card *model.Card) {
	input := map[string]interface{}{"card_id": card.ID}
	if _, err := s.queue.Enqueue(ctx, model.JobTypeLinkResolution, input, userID, card.BrainID, 0); err != nil {
		logutil.GetLogger(ctx).Warn("enqueue link resolution failed", zap.String("card_id", card.ID), zap.Error(err))
	}
}
