package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/models"
)

const tokenBytes = 32

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateToken issues a fresh opaque token for userID. Earlier tokens of the
// same user stay valid. A zero ttl stores no expiry.
func CreateToken(ctx context.Context, db database.DBTX, userID string, now time.Time, ttl time.Duration) (*models.AuthToken, error) {
	value, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	token := &models.AuthToken{
		Token:     value,
		UserID:    userID,
		CreatedAt: now.UTC().Truncate(time.Microsecond),
	}
	if ttl > 0 {
		expires := token.CreatedAt.Add(ttl)
		token.ExpiresAt = &expires
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token.Token, token.UserID, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}

	return token, nil
}

func GetToken(ctx context.Context, db database.DBTX, value string) (*models.AuthToken, error) {
	var (
		token     models.AuthToken
		expiresAt sql.NullTime
	)

	err := db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at
		 FROM tokens
		 WHERE token = $1`,
		value).Scan(&token.Token, &token.UserID, &token.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrTokenNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	token.CreatedAt = token.CreatedAt.UTC()
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		token.ExpiresAt = &t
	}

	return &token, nil
}
