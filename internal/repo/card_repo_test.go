package repo

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

func TestCardRepoGetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + cardColumns + " FROM cards WHERE id = $1 AND brain_id = $2")).
		WithArgs("c1", "b1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewCardRepo(db)
	_, err = repo.GetByID(context.Background(), "b1", "c1")
	require.True(t, appErr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	title := "My Card"
	rows := sqlmock.NewRows([]string{"id", "brain_id", "card_type", "title", "preview", "content_key", "size_bytes", "file_id", "ctime", "mtime"}).
		AddRow("c1", "b1", "saved", title, "preview text", "cards/c1", int64(42), nil, int64(1), int64(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+cardColumns+" FROM cards WHERE id = $1 AND brain_id = $2")).
		WithArgs("c1", "b1").
		WillReturnRows(rows)

	repo := NewCardRepo(db)
	card, err := repo.GetByID(context.Background(), "b1", "c1")
	require.NoError(t, err)
	require.Equal(t, "saved", card.CardType)
	require.NotNil(t, card.Title)
	require.Equal(t, title, *card.Title)
	require.Nil(t, card.FileID)
	require.Equal(t, int64(42), card.SizeBytes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepoMarkSaved(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards SET card_type = $1, title = $2, mtime = $3")).
		WithArgs("saved", "New Title", int64(99), "c1", "unsaved").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCardRepo(db)
	require.NoError(t, repo.MarkSaved(context.Background(), "c1", "New Title", 99))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepoMarkSaved_AlreadySavedIsInvalidState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Zero rows means the card was not unsaved at update time.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards SET card_type = $1, title = $2, mtime = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCardRepo(db)
	err = repo.MarkSaved(context.Background(), "c1", "New Title", 99)
	require.ErrorIs(t, err, appErr.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepoUpdateContentMeta_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards SET preview = $1, size_bytes = $2, mtime = $3 WHERE id = $4")).
		WithArgs("p", int64(10), int64(5), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCardRepo(db)
	err = repo.UpdateContentMeta(context.Background(), "ghost", "p", 10, 5)
	require.True(t, appErr.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
