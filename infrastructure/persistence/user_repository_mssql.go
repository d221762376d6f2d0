package persistence

import (
	"context"
	"database/sql"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
)

// UserRepositoryMSSQL mirrors UserRepository for Azure SQL in production.
type UserRepositoryMSSQL struct{ db *sql.DB }

func NewUserRepositoryMSSQL(db *sql.DB) *UserRepositoryMSSQL { return &UserRepositoryMSSQL{db} }

func (r *UserRepositoryMSSQL) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	var u model.User
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_name, password, created_at, updated_at FROM dbo.[users] WHERE user_name = @p1`,
		userName)
	if err := row.Scan(&u.ID, &u.Name, &u.UserName, &u.Password, &u.CreatedAt, &u.UpdatedAt); err != nil {
		logger.GetLogger().WithField("error", err).Error("mssql: query user by username failed")
		return u, err
	}
	return u, nil
}
