// Package identity exchanges third-party identity assertions for local users
// and opaque bearer tokens, and resolves those tokens on later requests.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rao30/bake-house/internal/database"
	"github.com/rao30/bake-house/internal/models"
	"github.com/rao30/bake-house/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrInvalidAssertion    = errors.New("invalid identity assertion")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrUnauthorized        = errors.New("invalid or unknown bearer token")
	ErrMisconfigured       = errors.New("identity provider client id is not configured")
)

var tracer = otel.Tracer("github.com/rao30/bake-house/internal/identity")

type Verifier interface {
	Verify(ctx context.Context, assertion, audience string) (*Claims, error)
}

// TokenCache stores users resolved from bearer tokens. Users are never
// updated after creation, so cached entries cannot go stale.
type TokenCache interface {
	GetUser(ctx context.Context, token string) (*models.User, error)
	SetUser(ctx context.Context, token string, user *models.User) error
}

type Service struct {
	db       *sql.DB
	verifier Verifier
	clientID string
	tokenTTL time.Duration
	cache    TokenCache
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithTokenCache(cache TokenCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.tokenTTL = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *sql.DB, verifier Verifier, clientID string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		verifier: verifier,
		clientID: clientID,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate verifies assertion, creates the user on first sight and
// issues a new bearer token. Earlier tokens of the user remain valid.
func (s *Service) Authenticate(ctx context.Context, assertion string) (*models.User, *models.AuthToken, error) {
	ctx, span := tracer.Start(ctx, "identity.Authenticate")
	defer span.End()

	if s.clientID == "" {
		return nil, nil, ErrMisconfigured
	}

	claims, err := s.verifier.Verify(ctx, assertion, s.clientID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if claims.Subject == "" {
		return nil, nil, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}
	span.SetAttributes(attribute.String("user.id", claims.Subject))

	var (
		user  *models.User
		token *models.AuthToken
	)
	err = database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		user, err = store.InsertUserIfAbsent(ctx, tx, models.User{
			ID:     claims.Subject,
			Email:  claims.Email,
			Name:   claims.Name,
			Avatar: claims.Picture,
		})
		if err != nil {
			return err
		}

		token, err = store.CreateToken(ctx, tx, user.ID, s.now(), s.tokenTTL)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	s.logger.Info("User signed in", zap.String("user_id", user.ID))
	return user, token, nil
}

// Resolve maps a bearer token to its user. An empty token resolves to no
// user and no error.
func (s *Service) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	if s.cache != nil {
		user, err := s.cache.GetUser(ctx, token)
		if err != nil {
			s.logger.Warn("Token cache lookup failed", zap.Error(err))
		} else if user != nil {
			return user, nil
		}
	}

	stored, err := store.GetToken(ctx, s.db, token)
	if err != nil {
		if errors.Is(err, database.ErrTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	user, err := store.GetUser(ctx, s.db, stored.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			s.logger.Error("Token references a missing user", zap.String("user_id", stored.UserID))
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, token, user); err != nil {
			s.logger.Warn("Token cache store failed", zap.Error(err))
		}
	}

	return user, nil
}
