package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/model"
)

func credentialRows(now time.Time) *sqlmock.Rows {
	exp := now.Add(time.Hour)
	return sqlmock.NewRows([]string{
		"id", "user_id", "platform", "access_token", "refresh_token", "expires_at",
		"refresh_expires_at", "scopes", "platform_account_id", "platform_account_name",
		"metadata", "active", "created_at", "updated_at",
	}).AddRow(int64(7), "user-1", "twitter", "at-1", "rt-1", exp, nil,
		"tweet.read tweet.write", "acct-9", "Ada", []byte(`{"handle":"ada"}`), true, now, now)
}

func TestCredentialRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+credentialColumns+` FROM credentials WHERE user_id=$1 AND platform=$2 AND platform_account_id=$3 AND active=TRUE`)).
		WithArgs("user-1", model.PlatformTwitter, "acct-9").
		WillReturnRows(credentialRows(now))

	cred, err := repository.Get(context.Background(), "user-1", model.PlatformTwitter, "acct-9")
	require.NoError(t, err)
	require.Equal(t, int64(7), cred.ID)
	require.Equal(t, "at-1", cred.AccessToken)
	require.Equal(t, "rt-1", cred.RefreshToken)
	require.Equal(t, "acct-9", cred.AccountID())
	require.NotNil(t, cred.PlatformAccountName)
	require.Equal(t, "Ada", *cred.PlatformAccountName)
	require.Equal(t, "ada", cred.Metadata["handle"])
	require.True(t, cred.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+credentialColumns+` FROM credentials WHERE user_id=$1 AND platform=$2 AND platform_account_id=$3 AND active=TRUE`)).
		WithArgs("user-1", model.PlatformLinkedIn, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repository.Get(context.Background(), "user-1", model.PlatformLinkedIn, "")
	require.ErrorIs(t, err, model.ErrCredentialNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_UpdateTokensRevokedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db)

	// Row already revoked: the guarded update touches nothing and the refresh
	// result is discarded instead of resurrecting the credential.
	mock.ExpectExec("UPDATE credentials SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cred := &model.Credential{ID: 7, AccessToken: "at-2"}
	err = repository.UpdateTokens(context.Background(), cred)
	require.ErrorIs(t, err, model.ErrCredentialNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO credentials").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	accountID := "acct-1"
	cred := &model.Credential{
		UserID:            "user-2",
		Platform:          model.PlatformLinkedIn,
		AccessToken:       "at-3",
		PlatformAccountID: &accountID,
	}
	require.NoError(t, repository.Upsert(context.Background(), cred))
	require.Equal(t, int64(11), cred.ID)
	require.True(t, cred.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_SetInactiveMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repository := NewCredentialRepository(db)

	mock.ExpectExec("UPDATE credentials SET active=FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repository.SetInactive(context.Background(), "user-3", model.PlatformTikTok, "")
	require.ErrorIs(t, err, model.ErrCredentialNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
