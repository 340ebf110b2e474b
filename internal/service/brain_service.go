package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

type BrainService struct {
	brains     *repo.BrainRepo
	streams    *repo.StreamRepo
	cards      *repo.CardRepo
	members    *repo.StreamCardRepo
	links      *repo.CardLinkRepo
	files      *repo.FileRepo
	embeddings *repo.EmbeddingRepo
	store      filestore.Store
}

func NewBrainService(brains *repo.BrainRepo, streams *repo.StreamRepo, cards *repo.CardRepo,
	members *repo.StreamCardRepo, links *repo.CardLinkRepo, files *repo.FileRepo,
	embeddings *repo.EmbeddingRepo, store filestore.Store) *BrainService {
	return &BrainService{
		brains:     brains,
		streams:    streams,
		cards:      cards,
		members:    members,
		links:      links,
		files:      files,
		embeddings: embeddings,
		store:      store,
	}
}

func (s *BrainService) Create(ctx context.Context, userID, name string) (*model.Brain, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.Validation("name", "name is required")
	}
	now := timeutil.NowUnix()
	brain := &model.Brain{
		ID:     newID(),
		UserID: userID,
		Name:   name,
		Ctime:  now,
		Mtime:  now,
	}
	if err := s.brains.Create(ctx, brain); err != nil {
		return nil, err
	}
	return brain, nil
}

func (s *BrainService) List(ctx context.Context, userID string) ([]model.Brain, error) {
	return s.brains.ListByUser(ctx, userID)
}

func (s *BrainService) Get(ctx context.Context, userID, brainID string) (*model.Brain, error) {
	return s.brains.GetByID(ctx, userID, brainID)
}

// Delete tears down the brain and everything under it: streams with their
// ledger entries, cards with their stored bodies, files, links, embeddings.
func (s *BrainService) Delete(ctx context.Context, userID, brainID string) error {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("brain_id", brainID))

	streams, err := s.streams.ListByBrain(ctx, brainID)
	if err != nil {
		return err
	}
	for _, stream := range streams {
		if err := s.members.DeleteByStream(ctx, stream.ID); err != nil {
			return err
		}
	}
	if err := s.streams.DeleteByBrain(ctx, brainID); err != nil {
		return err
	}

	if err := s.links.DeleteByBrain(ctx, brainID); err != nil {
		return err
	}
	if err := s.embeddings.DeleteByBrain(ctx, brainID); err != nil {
		return err
	}

	// Content objects first; a stray object is recoverable, a stray row is
	// a broken card.
	const pageSize = 500
	for offset := uint(0); ; offset += pageSize {
		cards, err := s.cards.ListByBrain(ctx, brainID, "", pageSize, offset)
		if err != nil {
			return err
		}
		for _, card := range cards {
			if card.ContentKey == "" {
				continue
			}
			if err := s.store.Delete(ctx, card.ContentKey); err != nil {
				logger.Warn("delete card content failed", zap.String("key", card.ContentKey), zap.Error(err))
			}
		}
		if len(cards) < pageSize {
			break
		}
	}
	if err := s.cards.DeleteByBrain(ctx, brainID); err != nil {
		return err
	}

	files, err := s.files.ListByBrain(ctx, brainID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.FileKey != "" {
			if err := s.store.Delete(ctx, file.FileKey); err != nil {
				logger.Warn("delete file object failed", zap.String("key", file.FileKey), zap.Error(err))
			}
		}
		if err := s.files.Delete(ctx, brainID, file.ID); err != nil && !appErr.IsNotFound(err) {
			return err
		}
	}

	if err := s.brains.Delete(ctx, userID, brainID); err != nil {
		return err
	}
	logger.Info("brain deleted")
	return nil
}

// RecalculateStorage recomputes a brain's usage from the card and file
// tables. Incremental accounting can drift after partial failures; this is
// the reconciliation path used by the storage job.
func (s *BrainService) RecalculateStorage(ctx context.Context, brainID string) (int64, error) {
	cardBytes, err := s.cards.SumSizeByBrain(ctx, brainID)
	if err != nil {
		return 0, err
	}
	fileBytes, err := s.files.SumSizeByBrain(ctx, brainID)
	if err != nil {
		return 0, err
	}
	total := cardBytes + fileBytes
	if err := s.brains.SetStorageUsed(ctx, brainID, total, timeutil.NowUnix()); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *BrainService) ListAll(ctx context.Context) ([]model.Brain, error) {
	return s.brains.ListAll(ctx)
}

// HandleStorageCalculation is the queue handler for STORAGE_CALCULATION
// jobs.
func (s *BrainService) HandleStorageCalculation(ctx context.Context, job *model.ProcessingJob) (map[string]interface{}, error) {
	brainID, _ := job.InputData["brain_id"].(string)
	if brainID == "" {
		brainID = job.BrainID
	}
	if brainID == "" {
		return nil, appErr.Validation("brain_id", "storage calculation job missing brain_id")
	}
	total, err := s.RecalculateStorage(ctx, brainID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"brain_id":           brainID,
		"storage_used_bytes": total,
	}, nil
}
