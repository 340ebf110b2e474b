package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/model"
	"github.com/clarity-app/clarity/internal/pkg/dbutil"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/timeutil"
	"github.com/clarity-app/clarity/internal/repo"
)

// StreamEntry pairs a ledger row with its card for stream listings.
type StreamEntry struct {
	model.StreamCard
	Card *model.Card `json:"card"`
}

// LedgerService owns the position ledger: which cards sit in which streams,
// in what order, at what depth. Every mutation runs under the stream's lock,
// recomputes the full ordering in memory, and writes the changed positions
// in one transaction, so positions are always the contiguous set 0..N-1.
type LedgerService struct {
	db         *sql.DB
	brains     *repo.BrainRepo
	streams    *repo.StreamRepo
	cards      *repo.CardRepo
	members    *repo.StreamCardRepo
	links      *repo.CardLinkRepo
	embeddings *repo.EmbeddingRepo
	store      filestore.Store
	locks      *streamLocks
}

func NewLedgerService(db *sql.DB, brains *repo.BrainRepo, streams *repo.StreamRepo,
	cards *repo.CardRepo, members *repo.StreamCardRepo, links *repo.CardLinkRepo,
	embeddings *repo.EmbeddingRepo, store filestore.Store) *LedgerService {
	return &LedgerService{
		db:         db,
		brains:     brains,
		streams:    streams,
		cards:      cards,
		members:    members,
		links:      links,
		embeddings: embeddings,
		store:      store,
		locks:      newStreamLocks(),
	}
}

func (s *LedgerService) ensureStream(ctx context.Context, userID, brainID, streamID string) (*model.Stream, error) {
	if _, err := s.brains.GetByID(ctx, userID, brainID); err != nil {
		return nil, err
	}
	return s.streams.GetByID(ctx, brainID, streamID)
}

// ListEntries returns the stream's entries in position order with their
// cards attached, and bumps the stream's last-accessed time.
func (s *LedgerService) ListEntries(ctx context.Context, userID, brainID, streamID string) ([]StreamEntry, error) {
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return nil, err
	}
	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CardID)
	}
	cards, err := s.cards.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Card, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}
	out := make([]StreamEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, StreamEntry{StreamCard: e, Card: byID[e.CardID]})
	}
	if err := s.streams.TouchLastAccessed(ctx, streamID, timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Warn("touch stream last_accessed failed", zap.String("stream_id", streamID), zap.Error(err))
	}
	return out, nil
}

// InsertCard adds a card to the stream at the given index. Out-of-range
// indexes clamp to the ends; membership is unique, inserting a card that is
// already in the stream is rejected.
func (s *LedgerService) InsertCard(ctx context.Context, userID, brainID, streamID, cardID string, position, depth int) (*model.StreamCard, error) {
	if depth < 0 {
		return nil, appErr.Validation("depth", "depth must be non-negative")
	}
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return nil, err
	}
	if _, err := s.cards.GetByID(ctx, brainID, cardID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(streamID)
	defer unlock()

	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.CardID == cardID {
			return nil, appErr.Validation("card_id", "card is already in the stream")
		}
	}
	entry := model.StreamCard{
		StreamID: streamID,
		CardID:   cardID,
		Depth:    depth,
		AddedAt:  timeutil.NowUnix(),
	}
	before := positionIndex(entries)
	updated := spliceInsert(entries, entry, position)
	var inserted model.StreamCard
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, e := range updated {
			if e.CardID == cardID {
				inserted = e
				if err := s.members.InsertTx(ctx, tx, &e); err != nil {
					return err
				}
				continue
			}
			if before[e.CardID] != e.Position {
				if err := s.members.AssignPositionTx(ctx, tx, streamID, e.CardID, e.Position); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// RemoveCard detaches a card from the stream and closes the position gap.
// Removing a card that is not a member is a no-op, reported through the bool.
// An unsaved card with no remaining stream membership is deleted outright;
// it has no title to find it by again.
func (s *LedgerService) RemoveCard(ctx context.Context, userID, brainID, streamID, cardID string) (bool, error) {
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return false, err
	}

	unlock := s.locks.lock(streamID)
	defer unlock()

	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return false, err
	}
	found := false
	for _, e := range entries {
		if e.CardID == cardID {
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	before := positionIndex(entries)
	updated := spliceRemove(entries, cardID)
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.members.DeleteTx(ctx, tx, streamID, cardID); err != nil {
			return err
		}
		return s.applyPositionsTx(ctx, tx, streamID, before, updated)
	})
	if err != nil {
		return false, err
	}
	return true, s.reapIfOrphaned(ctx, brainID, cardID)
}

// MoveCard relocates a card within the stream, optionally changing its depth
// in the same call. The target must be an occupied slot; moving past either
// end is rejected rather than clamped. When position and depth already match
// the current state nothing is written and changed is false.
func (s *LedgerService) MoveCard(ctx context.Context, userID, brainID, streamID, cardID string, position int, depth *int) (bool, error) {
	if depth != nil && *depth < 0 {
		return false, appErr.Validation("depth", "depth must be non-negative")
	}
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return false, err
	}

	unlock := s.locks.lock(streamID)
	defer unlock()

	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return false, err
	}
	var current *model.StreamCard
	for i := range entries {
		if entries[i].CardID == cardID {
			current = &entries[i]
			break
		}
	}
	if current == nil {
		return false, appErr.NotFoundOf("stream card", cardID)
	}
	if position < 0 || position > len(entries)-1 {
		return false, appErr.Validation("position", fmt.Sprintf("position must be within [0, %d]", len(entries)-1))
	}
	wantDepth := current.Depth
	if depth != nil {
		wantDepth = *depth
	}
	if position == current.Position && wantDepth == current.Depth {
		return false, nil
	}
	before := positionIndex(entries)
	updated := spliceMove(entries, cardID, position)
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.applyPositionsTx(ctx, tx, streamID, before, updated); err != nil {
			return err
		}
		if wantDepth != current.Depth {
			return s.members.UpdateDepthTx(ctx, tx, streamID, cardID, wantDepth)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *LedgerService) SetDepth(ctx context.Context, userID, brainID, streamID, cardID string, depth int) error {
	if depth < 0 {
		return appErr.Validation("depth", "depth must be non-negative")
	}
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return err
	}
	if _, err := s.members.Get(ctx, streamID, cardID); err != nil {
		return err
	}
	return dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.members.UpdateDepthTx(ctx, tx, streamID, cardID, depth)
	})
}

// ToggleAIContext flips whether the card feeds the stream's AI prompt
// context and returns the new value.
func (s *LedgerService) ToggleAIContext(ctx context.Context, userID, brainID, streamID, cardID string) (bool, error) {
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return false, err
	}
	entry, err := s.members.Get(ctx, streamID, cardID)
	if err != nil {
		return false, err
	}
	value := !entry.IsInAIContext
	if err := s.members.SetAIContext(ctx, streamID, cardID, value); err != nil {
		return false, err
	}
	return value, nil
}

// ToggleCollapsed flips the card's collapsed flag and returns the new value.
func (s *LedgerService) ToggleCollapsed(ctx context.Context, userID, brainID, streamID, cardID string) (bool, error) {
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return false, err
	}
	entry, err := s.members.Get(ctx, streamID, cardID)
	if err != nil {
		return false, err
	}
	value := !entry.IsCollapsed
	if err := s.members.SetCollapsed(ctx, streamID, cardID, value); err != nil {
		return false, err
	}
	return value, nil
}

// NormalizePositions repairs a stream whose positions drifted from 0..N-1,
// keeping the canonical position-then-insertion order. Used as an admin
// escape hatch; normal operations never leave gaps behind.
func (s *LedgerService) NormalizePositions(ctx context.Context, userID, brainID, streamID string) (int, error) {
	if _, err := s.ensureStream(ctx, userID, brainID, streamID); err != nil {
		return 0, err
	}

	unlock := s.locks.lock(streamID)
	defer unlock()

	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return 0, err
	}
	before := positionIndex(entries)
	updated := renumber(entries)
	changed := 0
	for _, e := range updated {
		if before[e.CardID] != e.Position {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	err = dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.applyPositionsTx(ctx, tx, streamID, before, updated)
	})
	if err != nil {
		return 0, err
	}
	logutil.GetLogger(ctx).Info("stream positions normalized",
		zap.String("stream_id", streamID),
		zap.Int("changed", changed),
	)
	return changed, nil
}

// removeCardEverywhere strips the card from every stream it belongs to,
// renumbering each under its own lock. Used by card deletion.
func (s *LedgerService) removeCardEverywhere(ctx context.Context, cardID string) error {
	streamIDs, err := s.members.ListStreamIDsByCard(ctx, cardID)
	if err != nil {
		return err
	}
	for _, streamID := range streamIDs {
		if err := s.removeFromStream(ctx, streamID, cardID); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) removeFromStream(ctx context.Context, streamID, cardID string) error {
	unlock := s.locks.lock(streamID)
	defer unlock()

	entries, err := s.members.ListByStream(ctx, streamID)
	if err != nil {
		return err
	}
	before := positionIndex(entries)
	updated := spliceRemove(entries, cardID)
	if len(updated) == len(entries) {
		return nil
	}
	return dbutil.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.members.DeleteTx(ctx, tx, streamID, cardID); err != nil {
			return err
		}
		return s.applyPositionsTx(ctx, tx, streamID, before, updated)
	})
}

func (s *LedgerService) applyPositionsTx(ctx context.Context, tx *sql.Tx, streamID string, before map[string]int, updated []model.StreamCard) error {
	for _, e := range updated {
		old, ok := before[e.CardID]
		if ok && old == e.Position {
			continue
		}
		if err := s.members.AssignPositionTx(ctx, tx, streamID, e.CardID, e.Position); err != nil {
			return err
		}
	}
	return nil
}

// reapIfOrphaned deletes an unsaved card once its last stream membership is
// gone: content object, links, embedding, row, and storage accounting.
func (s *LedgerService) reapIfOrphaned(ctx context.Context, brainID, cardID string) error {
	card, err := s.cards.GetByID(ctx, brainID, cardID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil
		}
		return err
	}
	if card.CardType != model.CardTypeUnsaved {
		return nil
	}
	remaining, err := s.members.ListStreamIDsByCard(ctx, cardID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("card_id", cardID))
	if err := s.links.DeleteByCard(ctx, cardID); err != nil {
		return err
	}
	if err := s.embeddings.Delete(ctx, cardID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return err
	}
	if card.ContentKey != "" {
		if err := s.store.Delete(ctx, card.ContentKey); err != nil {
			logger.Warn("delete orphaned card content failed", zap.Error(err))
		}
	}
	if card.SizeBytes > 0 {
		if err := s.brains.AddStorageUsed(ctx, card.BrainID, -card.SizeBytes, timeutil.NowUnix()); err != nil {
			logger.Warn("storage accounting update failed", zap.Error(err))
		}
	}
	logger.Info("orphaned unsaved card reaped")
	return nil
}

func positionIndex(entries []model.StreamCard) map[string]int {
	idx := make(map[string]int, len(entries))
	for _, e := range entries {
		idx[e.CardID] = e.Position
	}
	return idx
}
