package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByUserName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectPrepare(regexp.QuoteMeta(`SELECT u.id, u.name, u.user_name, u.password, u.created_at, u.updated_at
	FROM public.user AS u
	WHERE u.user_name = $1`)).
		ExpectQuery().WithArgs("publisher").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_name", "password", "created_at", "updated_at"}).
			AddRow(1, "Publisher", "publisher", "a252f77af72638ea5a0f9e5fbe5f2b2e", now, now))

	user, err := repo.GetByUserName(context.Background(), "publisher")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "publisher", user.UserName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUserName_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserRepository(db)

	mock.ExpectPrepare("SELECT u.id").
		ExpectQuery().WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "user_name", "password", "created_at", "updated_at"}))

	_, err = repo.GetByUserName(context.Background(), "ghost")
	require.Error(t, err)
}
