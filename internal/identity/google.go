package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

const (
	defaultKeyRefresh = time.Hour
	// unknownKidCooldown bounds how often an unrecognized kid may force a
	// certificate refetch.
	unknownKidCooldown = time.Minute
)

// Claims are the identity assertion fields the resolver relies on.
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type googleClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier checks Google-issued ID tokens against the signing
// certificates published at certsURL.
type GoogleVerifier struct {
	certsURL string
	client   *http.Client
	now      func() time.Time

	fetches singleflight.Group

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	expiresAt   time.Time
	lastRefresh time.Time
}

func NewGoogleVerifier(certsURL string, timeout time.Duration) *GoogleVerifier {
	return &GoogleVerifier{
		certsURL: certsURL,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, assertion, audience string) (*Claims, error) {
	var claims googleClaims

	_, err := jwt.ParseWithClaims(assertion, &claims,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAssertion, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}

	return &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

func validIssuer(iss string) bool {
	for _, want := range googleIssuers {
		if iss == want {
			return true
		}
	}
	return false
}

func (v *GoogleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	now := v.now()
	fresh := now.Before(v.expiresAt)
	cooling := now.Sub(v.lastRefresh) < unknownKidCooldown
	v.mu.Unlock()

	if ok && fresh {
		return key, nil
	}
	// An unknown kid usually means Google rotated its keys, but only a
	// cached set older than the cooldown is worth refetching for it.
	if !ok && fresh && cooling {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidAssertion, kid)
	}

	// Concurrent callers share one fetch, detached from any single caller's
	// cancellation. The client timeout still bounds it.
	_, err, _ := v.fetches.Do("certs", func() (interface{}, error) {
		return nil, v.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	key, ok = v.keys[kid]
	v.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidAssertion, kid)
	}
	return key, nil
}

func (v *GoogleVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch certificates: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: certificates endpoint returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("%w: decode certificates: %v", ErrProviderUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemData := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
		if err != nil {
			return fmt.Errorf("%w: parse certificate %s: %v", ErrProviderUnavailable, kid, err)
		}
		keys[kid] = key
	}

	now := v.now()
	v.mu.Lock()
	v.keys = keys
	v.expiresAt = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	v.lastRefresh = now
	v.mu.Unlock()

	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		if secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeyRefresh
}
