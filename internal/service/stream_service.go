package service

import (
	"context"
	"strings"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

type StreamService struct {
	brains  *repo.BrainRepo
	streams *repo.StreamRepo
	members *repo.StreamCardRepo
	ledger  *LedgerService
}

func NewStreamService(brains *repo.BrainRepo, streams *repo.StreamRepo,
	members *repo.StreamCardRepo, ledger *LedgerService) *StreamService {
	return &StreamService{brains: brains, streams: streams, members: members, ledger: ledger}
}

func (s *StreamService) ensureBrain(ctx context.Context, userID, brainID string) error {
	_, err := s.brains.GetByID(ctx, userID, brainID)
	return err
}

func (s *StreamService) Create(ctx context.Context, userID, brainID, name string) (*model.Stream, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErr.Validation("name", "name is required")
	}
	if err := s.ensureBrain(ctx, userID, brainID); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	stream := &model.Stream{
		ID:           newID(),
		BrainID:      brainID,
		Name:         name,
		LastAccessed: now,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.streams.Create(ctx, stream); err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *StreamService) List(ctx context.Context, userID, brainID string) ([]model.Stream, error) {
	if err := s.ensureBrain(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.streams.ListByBrain(ctx, brainID)
}

func (s *StreamService) Get(ctx context.Context, userID, brainID, streamID string) (*model.Stream, error) {
	if err := s.ensureBrain(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.streams.GetByID(ctx, brainID, streamID)
}

func (s *StreamService) Update(ctx context.Context, userID, brainID, streamID, name string, favorite *bool) (*model.Stream, error) {
	name = strings.TrimSpace(name)
	if err := s.ensureBrain(ctx, userID, brainID); err != nil {
		return nil, err
	}
	if err := s.streams.Update(ctx, brainID, streamID, name, favorite, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.streams.GetByID(ctx, brainID, streamID)
}

// Delete removes the stream. Unsaved cards whose only home was this stream
// go with it; saved and file cards merely lose a membership.
func (s *StreamService) Delete(ctx context.Context, userID, brainID, streamID string) error {
	if err := s.ensureBrain(ctx, userID, brainID); err != nil {
		return err
	}
	if _, err := s.streams.GetByID(ctx, brainID, streamID); err != nil {
		return err
	}
	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return err
	}
	if err := s.members.DeleteByStream(ctx, streamID); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.ledger.reapIfOrphaned(ctx, brainID, entry.CardID); err != nil {
			return err
		}
	}
	return s.streams.Delete(ctx, brainID, streamID)
}
