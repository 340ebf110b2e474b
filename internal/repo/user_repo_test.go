package repo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/clarity-app/clarity/internal/model"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
)

func TestUserRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "a@b.com", "hash", int64(100), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewUserRepo(db)
	err = repo.Create(context.Background(), &model.User{
		ID: "u1", Email: "a@b.com", PasswordHash: "hash", Ctime: 100, Mtime: 100,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreate_DuplicateEmailIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	repo := NewUserRepo(db)
	err = repo.Create(context.Background(), &model.User{ID: "u1", Email: "a@b.com"})
	require.True(t, appErr.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, ctime, mtime FROM users WHERE email = $1")).
		WithArgs("ghost@b.com").
		WillReturnError(sql.ErrNoRows)

	repo := NewUserRepo(db)
	_, err = repo.GetByEmail(context.Background(), "ghost@b.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "ctime", "mtime"}).
		AddRow("u1", "a@b.com", "hash", int64(100), int64(200))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, ctime, mtime FROM users WHERE email = $1")).
		WithArgs("a@b.com").
		WillReturnRows(rows)

	repo := NewUserRepo(db)
	user, err := repo.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, int64(200), user.Mtime)
	require.NoError(t, mock.ExpectationsWereMet())
}
