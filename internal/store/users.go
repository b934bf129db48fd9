package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/models"
)

const usersEmailConstraint = "users_email_key"

// InsertUserIfAbsent creates the user unless a row with the same id already
// exists, and returns the stored row either way. Existing rows are never
// modified.
func InsertUserIfAbsent(ctx context.Context, db database.DBTX, user models.User) (*models.User, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, avatar, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, nullString(user.Email), nullString(user.Name), nullString(user.Avatar))
	if err != nil {
		if database.IsUniqueViolation(err, usersEmailConstraint) {
			return nil, database.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return GetUser(ctx, db, user.ID)
}

func GetUser(ctx context.Context, db database.DBTX, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, avatar, created_at
		FROM users
		WHERE id = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user                models.User
		email, name, avatar sql.NullString
	)

	if err := row.Scan(&user.ID, &email, &name, &avatar, &user.CreatedAt); err != nil {
		return nil, err
	}

	user.Email = email.String
	user.Name = name.String
	user.Avatar = avatar.String
	user.CreatedAt = user.CreatedAt.UTC()

	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
