package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/clarity-app/clarity/internal/filestore"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/repo"
)

func newLedgerForTest(t *testing.T) (*LedgerService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := filestore.New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)

	brains := repo.NewBrainRepo(db)
	streams := repo.NewStreamRepo(db)
	cards := repo.NewCardRepo(db)
	members := repo.NewStreamCardRepo(db)
	links := repo.NewCardLinkRepo(db)
	embeddings := repo.NewEmbeddingRepo(db)
	return NewLedgerService(db, brains, streams, cards, members, links, embeddings, store), mock
}

func expectStreamLookup(mock sqlmock.Sqlmock, streamID, brainID string) {
	rows := sqlmock.NewRows([]string{"id", "brain_id", "name", "favorite", "last_accessed", "ctime", "mtime"}).
		AddRow(streamID, brainID, "daily", false, int64(0), int64(1), int64(1))
	mock.ExpectQuery("FROM streams").WithArgs(streamID, brainID).WillReturnRows(rows)
}

func memberRows(streamID string, cardIDs ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"stream_id", "card_id", "position", "depth", "is_in_ai_context", "is_collapsed", "added_at"})
	for i, id := range cardIDs {
		rows.AddRow(streamID, id, i, 0, false, false, int64(i+1))
	}
	return rows
}

func TestMoveCardRejectsOutOfRangePosition(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b", "c"))

	_, err := svc.MoveCard(context.Background(), "u1", "b1", "s1", "a", 42, nil)
	require.True(t, appErr.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b", "c"))

	_, err = svc.MoveCard(context.Background(), "u1", "b1", "s1", "a", -1, nil)
	require.True(t, appErr.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveCardSameSlotWritesNothing(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b", "c"))

	// No transaction is expected: position 1 and depth 0 already hold.
	depth := 0
	changed, err := svc.MoveCard(context.Background(), "u1", "b1", "s1", "b", 1, &depth)
	require.NoError(t, err)
	require.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveCardDepthOnlyChangeWrites(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b"))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stream_cards SET depth").
		WithArgs(2, "s1", "b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	depth := 2
	changed, err := svc.MoveCard(context.Background(), "u1", "b1", "s1", "b", 1, &depth)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCardDuplicateMembershipIsValidation(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("FROM cards WHERE id").
		WithArgs("a", "b1").
		WillReturnRows(cardRow("a", "b1", "unsaved", nil))
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b"))

	_, err := svc.InsertCard(context.Background(), "u1", "b1", "s1", "a", 0, 0)
	require.True(t, appErr.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveCardNonMemberIsNoop(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	mock.ExpectQuery("ORDER BY position, added_at").
		WithArgs("s1").
		WillReturnRows(memberRows("s1", "a", "b"))

	removed, err := svc.RemoveCard(context.Background(), "u1", "b1", "s1", "zz")
	require.NoError(t, err)
	require.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleAIContextFlips(t *testing.T) {
	svc, mock := newLedgerForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	expectStreamLookup(mock, "s1", "b1")
	entry := sqlmock.NewRows([]string{"stream_id", "card_id", "position", "depth", "is_in_ai_context", "is_collapsed", "added_at"}).
		AddRow("s1", "a", 0, 0, true, false, int64(1))
	mock.ExpectQuery("AND card_id").WithArgs("s1", "a").WillReturnRows(entry)
	mock.ExpectExec("UPDATE stream_cards SET is_in_ai_context").
		WithArgs(false, "s1", "a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	value, err := svc.ToggleAIContext(context.Background(), "u1", "b1", "s1", "a")
	require.NoError(t, err)
	require.False(t, value)
	require.NoError(t, mock.ExpectationsWereMet())
}
