package middleware

import (
	"context"
	"net/http"
	"strings"

	"shortlink/pkg/logging"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Auth verifies bearer tokens issued by the external identity collaborator
// and resolves the owner identity into the request context. Tokens are
// verified here, never minted.
type Auth struct {
	secret []byte
	logger *logging.Logger
}

func NewAuth(secret string, logger *logging.Logger) *Auth {
	return &Auth{secret: []byte(secret), logger: logger}
}

type contextKey string

const ownerIDKey contextKey = "owner_id"

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			a.logger.LogAuthEvent(r.Context(), "token_rejected", tokenString, false)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			http.Error(w, "missing subject claim", http.StatusUnauthorized)
			return
		}

		ownerID, err := uuid.Parse(sub)
		if err != nil {
			http.Error(w, "invalid subject claim", http.StatusUnauthorized)
			return
		}

		a.logger.LogAuthEvent(r.Context(), "token_verified", sub, true)
		ctx := WithOwner(r.Context(), ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithOwner stores the owner identity on the context. Exported for tests
// and for callers embedding the engine behind their own auth.
func WithOwner(ctx context.Context, owner uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, owner)
}

// OwnerFromContext returns the authenticated owner, or uuid.Nil when the
// request never passed authentication.
func OwnerFromContext(ctx context.Context) uuid.UUID {
	if owner, ok := ctx.Value(ownerIDKey).(uuid.UUID); ok {
		return owner
	}
	return uuid.Nil
}
