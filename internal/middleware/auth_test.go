package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmmarket/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func accountToken(t *testing.T, accountID uuid.UUID, role string, ttl time.Duration) string {
	return signToken(t, jwt.MapClaims{
		"account_id": accountID.String(),
		"role":       role,
		"exp":        time.Now().Add(ttl).Unix(),
	})
}

// captureOwner records the owner the middleware resolved.
func captureOwner(got *domain.Owner, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*got, _ = OwnerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// Property 1: Protected endpoints reject missing tokens
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(method, "/admin/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property 2: Invalid bearer tokens are rejected
func TestProperty_InvalidTokenFormatRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("garbage tokens are rejected by both auth middlewares", prop.ForAll(
		func(invalidToken string) bool {
			ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			for _, mw := range []func(http.Handler) http.Handler{
				AuthMiddleware(testSecret, zap.NewNop()),
				OwnerMiddleware(testSecret, zap.NewNop()),
			} {
				req := httptest.NewRequest("GET", "/cart", nil)
				req.Header.Set("Authorization", "Bearer "+invalidToken)
				w := httptest.NewRecorder()
				mw(ok).ServeHTTP(w, req)
				if w.Code != http.StatusUnauthorized {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware_ValidTokenResolvesAccount(t *testing.T) {
	accountID := uuid.New()
	var got domain.Owner
	var called bool
	handler := AuthMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

	req := httptest.NewRequest("GET", "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+accountToken(t, accountID, domain.RoleAdmin, time.Hour))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, called)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, accountID, got.AccountID)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing bearer prefix", accountToken(t, uuid.New(), domain.RoleBuyer, time.Hour)},
		{"expired", "Bearer " + accountToken(t, uuid.New(), domain.RoleBuyer, -time.Hour)},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"account_id": uuid.NewString(), "role": domain.RoleBuyer,
			}).SignedString([]byte("other"))
			return tok
		}()},
		{"account id not a uuid", "Bearer " + signToken(t, jwt.MapClaims{"account_id": "42", "role": domain.RoleBuyer})},
		{"missing role", "Bearer " + signToken(t, jwt.MapClaims{"account_id": uuid.NewString()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var got domain.Owner
			handler := AuthMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

			req := httptest.NewRequest("GET", "/admin/orders", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
		})
	}
}

func TestOwnerMiddleware_UsesCartTokenHeader(t *testing.T) {
	var got domain.Owner
	var called bool
	handler := OwnerMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set(CartTokenHeader, "guest-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, got.IsAnonymous())
	assert.Equal(t, "guest-123", got.Token)
	assert.Equal(t, "guest-123", w.Header().Get(CartTokenHeader))
}

func TestOwnerMiddleware_MintsTokenWhenAbsent(t *testing.T) {
	var got domain.Owner
	var called bool
	handler := OwnerMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/cart/items", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, got.IsAnonymous())
	minted := w.Header().Get(CartTokenHeader)
	assert.Equal(t, got.Token, minted)
	_, err := uuid.Parse(minted)
	assert.NoError(t, err)
}

func TestOwnerMiddleware_BearerWinsOverCartToken(t *testing.T) {
	accountID := uuid.New()
	var got domain.Owner
	var called bool
	handler := OwnerMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+accountToken(t, accountID, domain.RoleBuyer, time.Hour))
	req.Header.Set(CartTokenHeader, "guest-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, accountID, got.AccountID)
	assert.Empty(t, w.Header().Get(CartTokenHeader))
}

func TestOwnerMiddleware_RejectsOversizedCartToken(t *testing.T) {
	var got domain.Owner
	var called bool
	handler := OwnerMiddleware(testSecret, zap.NewNop())(captureOwner(&got, &called))

	req := httptest.NewRequest("GET", "/cart", nil)
	req.Header.Set(CartTokenHeader, strings.Repeat("a", 200))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireAdmin(zap.NewNop())(ok)

	tests := []struct {
		name  string
		owner *domain.Owner
		want  int
	}{
		{"no owner", nil, http.StatusForbidden},
		{"guest", &domain.Owner{Kind: domain.OwnerAnonymous, Token: "t"}, http.StatusForbidden},
		{"buyer", ptr(domain.Authenticated(uuid.New(), domain.RoleBuyer)), http.StatusForbidden},
		{"admin", ptr(domain.Authenticated(uuid.New(), domain.RoleAdmin)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/carts", nil)
			if tt.owner != nil {
				req = req.WithContext(WithOwner(req.Context(), *tt.owner))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func ptr[T any](v T) *T { return &v }
