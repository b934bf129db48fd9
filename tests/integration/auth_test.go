package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rao30/bake-house/internal/api"
	"github.com/rao30/bake-house/internal/cache"
	"github.com/rao30/bake-house/internal/catalog"
	"github.com/rao30/bake-house/internal/identity"
	"github.com/rao30/bake-house/internal/models"
	"github.com/rao30/bake-house/internal/orders"
	"go.uber.org/zap/zaptest"
)

// staticVerifier accepts any assertion and maps it to fixed claims.
type staticVerifier struct {
	claims map[string]identity.Claims
}

func (v staticVerifier) Verify(ctx context.Context, assertion, audience string) (*identity.Claims, error) {
	if audience != "test-client" {
		return nil, identity.ErrInvalidAssertion
	}
	claims, ok := v.claims[assertion]
	if !ok {
		return nil, identity.ErrInvalidAssertion
	}
	return &claims, nil
}

func newVerifier() staticVerifier {
	return staticVerifier{claims: map[string]identity.Claims{
		"first-login":  {Subject: "user-123", Email: "user@example.com", Name: "User"},
		"second-login": {Subject: "user-123", Email: "user@example.com", Name: "Renamed User"},
	}}
}

func TestAuthenticateAndResolve(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := identity.NewService(db, newVerifier(), "test-client", zaptest.NewLogger(t))

	user, first, err := svc.Authenticate(ctx, "first-login")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("Expected user-123, got %s", user.ID)
	}

	again, second, err := svc.Authenticate(ctx, "second-login")
	if err != nil {
		t.Fatalf("Authenticate again: %v", err)
	}
	if again.Name != "User" {
		t.Errorf("Expected first-written name to be kept, got %q", again.Name)
	}
	if first.Token == second.Token {
		t.Error("Expected a fresh token per login")
	}

	for _, token := range []string{first.Token, second.Token} {
		resolved, err := svc.Resolve(ctx, token)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if resolved.ID != "user-123" {
			t.Errorf("Expected user-123, got %s", resolved.ID)
		}
	}

	if _, err := svc.Resolve(ctx, "not-a-token"); !errors.Is(err, identity.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, "forged"); !errors.Is(err, identity.ErrInvalidAssertion) {
		t.Errorf("Expected ErrInvalidAssertion, got %v", err)
	}
}

func TestResolveThroughRedisCache(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	rdb, cleanupRedis := setupTestRedis(t)
	defer cleanupRedis()

	ctx := context.Background()
	tokenCache := cache.NewTokenCache(rdb, time.Minute)
	svc := identity.NewService(db, newVerifier(), "test-client", zaptest.NewLogger(t),
		identity.WithTokenCache(tokenCache))

	_, token, err := svc.Authenticate(ctx, "first-login")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	cached, err := tokenCache.GetUser(ctx, token.Token)
	if err != nil || cached != nil {
		t.Fatalf("Expected cache miss before first resolve, got %v, %v", cached, err)
	}

	if _, err := svc.Resolve(ctx, token.Token); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	cached, err = tokenCache.GetUser(ctx, token.Token)
	if err != nil {
		t.Fatalf("Get cached user: %v", err)
	}
	if cached == nil || cached.ID != "user-123" {
		t.Fatalf("Expected cached user-123, got %+v", cached)
	}

	ttl, err := rdb.TTL(ctx, "auth_token:"+token.Token).Result()
	if err != nil {
		t.Fatalf("Read TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL within a minute, got %s", ttl)
	}
}

func TestCheckoutAndPaymentFlowOverHTTP(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	products := catalog.Default()
	handler := api.NewHandler(products,
		orders.NewService(db, products, logger),
		identity.NewService(db, newVerifier(), "test-client", logger),
		logger)
	router := api.NewRouter(handler, api.RouterConfig{ServiceName: "bakehouse-test"}, logger)

	call := func(method, path string, body any, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("Encode body: %v", err)
			}
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := call(http.MethodPost, "/auth/google", map[string]string{"id_token": "first-login"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Login: expected 200, got %d: %s", w.Code, w.Body)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("Decode login: %v", err)
	}

	payload := map[string]any{
		"customer":        map[string]any{"name": "Test User", "email": "user@example.com"},
		"pickup_datetime": time.Now().UTC().Add(72 * time.Hour).Format("2006-01-02T15:04:05"),
		"items":           []map[string]any{{"product_type": "muffin", "quantity": 12}},
	}

	w = call(http.MethodPost, "/checkout", payload, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Checkout: expected 200, got %d: %s", w.Code, w.Body)
	}
	var checkout struct {
		Order   models.Order          `json:"order"`
		Payment models.PaymentSession `json:"payment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &checkout); err != nil {
		t.Fatalf("Decode checkout: %v", err)
	}
	if checkout.Order.Status != models.OrderStatusPendingPayment {
		t.Errorf("Expected pending_payment, got %s", checkout.Order.Status)
	}
	if checkout.Order.UserID == nil || *checkout.Order.UserID != "user-123" {
		t.Errorf("Expected order owned by user-123, got %v", checkout.Order.UserID)
	}
	if checkout.Payment.Status != models.PaymentSessionPending {
		t.Errorf("Expected pending payment session, got %s", checkout.Payment.Status)
	}

	w = call(http.MethodPost, "/payments/"+checkout.Order.ID+"/confirm", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Confirm: expected 200, got %d: %s", w.Code, w.Body)
	}
	var paid models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &paid); err != nil {
		t.Fatalf("Decode confirm: %v", err)
	}
	if paid.Status != models.OrderStatusPaid || paid.PaymentReference == nil {
		t.Errorf("Expected paid order with reference, got %+v", paid)
	}

	w = call(http.MethodGet, "/orders/me", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("History: expected 200, got %d: %s", w.Code, w.Body)
	}
	var history []models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("Decode history: %v", err)
	}
	if len(history) != 1 || history[0].ID != checkout.Order.ID || history[0].Status != models.OrderStatusPaid {
		t.Errorf("Unexpected history: %+v", history)
	}

	if w := call(http.MethodGet, "/orders/me", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Anonymous history: expected 401, got %d", w.Code)
	}
	if w := call(http.MethodGet, "/orders/unknown-id", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("Unknown order: expected 404, got %d", w.Code)
	}
}
