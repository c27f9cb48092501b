package storage

import (
	"context"
	"database/sql"
	"fmt"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

// UserRepository registers Telegram users.
type UserRepository struct {
	db *sql.DB
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a sql.DB implementation.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes the stored name.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) error {
	query, args, err := upsertUserQuery(user)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError("upsert user", err)
	}
	return nil
}

func upsertUserQuery(user domain.User) (string, []any, error) {
	return psql.Insert("users").
		Columns("user_id", "user_name").
		Values(user.ID, user.Name).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET user_name = EXCLUDED.user_name").
		ToSql()
}
