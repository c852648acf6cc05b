package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"farmmarket/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const ownerKey contextKey = "owner"

// CartTokenHeader carries the anonymous cart token in both directions
const CartTokenHeader = "X-Cart-Token"

const maxCartTokenLen = 128

var (
	errMissingBearer = errors.New("invalid authorization header format")
	errInvalidClaims = errors.New("invalid token claims")
)

// ParseAccountToken verifies an HMAC signed JWT and returns the authenticated owner it names.
// The token must carry an "account_id" uuid claim and a "role" claim.
func ParseAccountToken(secret, tokenString string) (domain.Owner, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Owner{}, err
	}
	if !token.Valid {
		return domain.Owner{}, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Owner{}, errInvalidClaims
	}
	rawID, ok := claims["account_id"].(string)
	if !ok {
		return domain.Owner{}, errInvalidClaims
	}
	accountID, err := uuid.Parse(rawID)
	if err != nil || accountID == uuid.Nil {
		return domain.Owner{}, errInvalidClaims
	}
	role, ok := claims["role"].(string)
	if !ok {
		return domain.Owner{}, errInvalidClaims
	}

	return domain.Authenticated(accountID, role), nil
}

func bearerToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errMissingBearer
	}
	return parts[1], nil
}

// AuthMiddleware requires a valid bearer token and stores the authenticated owner in the context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			owner, ok := authenticate(w, authHeader, jwtSecret, logger)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

// OwnerMiddleware resolves who a cart or order request acts for.
// A bearer token makes the caller authenticated; a bad token is rejected rather than downgraded.
// Without one the X-Cart-Token header names an anonymous cart, and when that is absent too
// a fresh token is minted and echoed back so the client can keep using the same cart.
func OwnerMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var owner domain.Owner

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				var ok bool
				if owner, ok = authenticate(w, authHeader, jwtSecret, logger); !ok {
					return
				}
			} else {
				token := strings.TrimSpace(r.Header.Get(CartTokenHeader))
				if len(token) > maxCartTokenLen {
					RespondWithError(w, http.StatusBadRequest, "invalid cart token")
					return
				}
				if token == "" {
					token = uuid.NewString()
					logger.Debug("Minted anonymous cart token")
				}
				w.Header().Set(CartTokenHeader, token)
				owner = domain.Anonymous(token)
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func authenticate(w http.ResponseWriter, authHeader, secret string, logger *zap.Logger) (domain.Owner, bool) {
	tokenString, err := bearerToken(authHeader)
	if err != nil {
		logger.Debug("Invalid authorization header format")
		RespondWithError(w, http.StatusUnauthorized, err.Error())
		return domain.Owner{}, false
	}

	owner, err := ParseAccountToken(secret, tokenString)
	if err != nil {
		logger.Debug("Token validation failed", zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			RespondWithError(w, http.StatusUnauthorized, "token expired")
		case errors.Is(err, errInvalidClaims):
			RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
		default:
			RespondWithError(w, http.StatusUnauthorized, "invalid token")
		}
		return domain.Owner{}, false
	}

	logger.Debug("Account authenticated",
		zap.String("account_id", owner.AccountID.String()),
		zap.String("role", owner.Role),
	)
	return owner, true
}

// WithOwner returns a copy of ctx carrying owner
func WithOwner(ctx context.Context, owner domain.Owner) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFrom extracts the resolved owner from request context
func OwnerFrom(ctx context.Context) (domain.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(domain.Owner)
	return owner, ok
}
