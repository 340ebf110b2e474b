package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/clarity-app/clarity/internal/filestore"
	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/repo"
)

type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(ctx context.Context, jobType string, input map[string]interface{}, userID, brainID string, priority int) (string, error) {
	return "", nil
}

func newCardServiceForTest(t *testing.T) (*CardService, sqlmock.Sqlmock) {
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
	ledger := NewLedgerService(db, brains, streams, cards, members, links, embeddings, store)
	svc := NewCardService(db, brains, cards, links, embeddings, store, ledger, noopEnqueuer{}, 0)
	return svc, mock
}

func expectBrainLookup(mock sqlmock.Sqlmock, brainID, userID string) {
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "storage_used_bytes", "ctime", "mtime"}).
		AddRow(brainID, userID, "my brain", int64(0), int64(1), int64(1))
	mock.ExpectQuery("FROM brains").WithArgs(brainID, userID).WillReturnRows(rows)
}

func cardRow(id, brainID, cardType string, title interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "brain_id", "card_type", "title", "preview", "content_key", "size_bytes", "file_id", "ctime", "mtime"}).
		AddRow(id, brainID, cardType, title, "", "", int64(0), nil, int64(1), int64(1))
}

func strPtr(s string) *string { return &s }

func TestCreateSavedRequiresTitle(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	_, err := svc.CreateSaved(context.Background(), "u1", "b1", "   ", strPtr("body"))
	require.True(t, appErr.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSavedRequiresContent(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	_, err := svc.CreateSaved(context.Background(), "u1", "b1", "Inbox", nil)
	require.True(t, appErr.IsValidation(err))

	var validation *appErr.ValidationError
	require.True(t, errors.As(err, &validation))
	require.Equal(t, "content", validation.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSavedDuplicateTitleConflicts(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	mock.ExpectQuery("FROM cards WHERE brain_id").
		WithArgs("b1", "Inbox").
		WillReturnRows(cardRow("existing", "b1", model.CardTypeSaved, "Inbox"))

	_, err := svc.CreateSaved(context.Background(), "u1", "b1", "Inbox", strPtr("body"))
	require.True(t, appErr.IsConflict(err))

	var conflict *appErr.ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "title", conflict.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertToSavedRejectsSavedCard(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	expectBrainLookup(mock, "b1", "u1")
	mock.ExpectQuery("FROM cards WHERE id").
		WithArgs("c1", "b1").
		WillReturnRows(cardRow("c1", "b1", model.CardTypeSaved, "Already Titled"))

	_, err := svc.ConvertToSaved(context.Background(), "u1", "b1", "c1", "New Title")
	require.True(t, errors.Is(err, appErr.ErrInvalidState))

	var state *appErr.InvalidStateError
	require.True(t, errors.As(err, &state))
	require.Equal(t, model.CardTypeSaved, state.State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertToSavedRequiresTitle(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	_, err := svc.ConvertToSaved(context.Background(), "u1", "b1", "c1", "")
	require.True(t, appErr.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCardAllowsEmptyBody(t *testing.T) {
	svc, mock := newCardServiceForTest(t)

	mock.ExpectExec("INSERT INTO cards").WillReturnResult(sqlmock.NewResult(0, 1))

	card, err := svc.createCard(context.Background(), "u1", "b1", model.CardTypeUnsaved, nil, "", nil)
	require.NoError(t, err)
	require.Nil(t, card.Title)
	require.Empty(t, card.ContentKey)
	require.Zero(t, card.SizeBytes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMakePreviewLimitsByCardType(t *testing.T) {
	svc, _ := newCardServiceForTest(t)
	long := strings.Repeat("x", 600)

	require.Len(t, svc.makePreview(model.CardTypeSaved, long), 200)
	require.Len(t, svc.makePreview(model.CardTypeUnsaved, long), 200)
	require.Len(t, svc.makePreview(model.CardTypeFile, long), 500)
}

func TestInsertIndex(t *testing.T) {
	five := 5
	zero := 0
	cases := []struct {
		name        string
		position    *int
		insertAfter bool
		want        int
	}{
		{name: "nil position appends", position: nil, insertAfter: false, want: int(^uint(0) >> 1)},
		{name: "nil position with insert_after appends", position: nil, insertAfter: true, want: int(^uint(0) >> 1)},
		{name: "plain position", position: &five, insertAfter: false, want: 5},
		{name: "insert after position", position: &five, insertAfter: true, want: 6},
		{name: "insert after head", position: &zero, insertAfter: true, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, InsertIndex(tc.position, tc.insertAfter))
		})
	}
}

func TestCheckQuotaRejectsOverflow(t *testing.T) {
	svc, mock := newCardServiceForTest(t)
	svc.quotaBytes = 100

	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "storage_used_bytes", "ctime", "mtime"}).
		AddRow("b1", "u1", "my brain", int64(90), int64(1), int64(1))
	mock.ExpectQuery("FROM brains").WithArgs("b1").WillReturnRows(rows)

	err := svc.checkQuota(context.Background(), "b1", 11)
	require.True(t, errors.Is(err, appErr.ErrQuota))
	require.NoError(t, mock.ExpectationsWereMet())
}
