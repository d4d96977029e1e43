package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"workforce_platform/workforce/schema"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

type JwtManager struct {
	auth        *jwtauth.JWTAuth
	tokenExpiry time.Duration
}

func NewJwtManager(secret []byte, tokenExpiry time.Duration) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil), tokenExpiry: tokenExpiry}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verifier(m.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		}))
	}
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Authenticator(m.auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		}))
	}
}

const (
	userIdKey    = "user_id"
	companyIdKey = "company_id"
	sessionIdKey = "session_id"
)

func (m *JwtManager) TokenExpiry() time.Duration {
	return m.tokenExpiry
}

// CreateSessionJwt encodes the session triple into a bearer token. The token
// is only trusted after the matching session row is confirmed live.
func (m *JwtManager) CreateSessionJwt(userId, companyId, sessionId uuid.UUID) (string, error) {
	claims := map[string]interface{}{
		userIdKey:    userId.String(),
		companyIdKey: companyId.String(),
		sessionIdKey: sessionId.String(),
		"exp":        time.Now().UTC().Add(m.tokenExpiry),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func valueFromClaims(r *http.Request, key string) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, fmt.Errorf("error retrieving auth claims: %w", err)
	}

	valueUncasted, ok := claims[key]
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid token: unable to locate key %v in claims", key)
	}

	value, ok := valueUncasted.(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid token: value for key %v has invalid type", key)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid '%v' provided for claim %v: %w", value, key, err)
	}

	return id, nil
}

type requestContextKey string

const userRequestContextKey requestContextKey = "user"

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(userRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}
