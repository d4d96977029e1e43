package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"workforce_platform/workforce/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrCompanyNotActive   = errors.New("company is not active")
	ErrUserNotActive      = errors.New("user is not active")
	ErrSessionExpired     = errors.New("session is expired or has been terminated")
	ErrGeneratingJwt      = errors.New("error generating jwt")
)

// SessionProvider issues bearer tokens backed by session rows. A token is
// only valid while a matching, unexpired session row exists for the user and
// company encoded in its claims.
type SessionProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

type SessionProviderArgs struct {
	Secret      []byte
	TokenExpiry time.Duration
}

func NewSessionProvider(db *gorm.DB, auditLog AuditLogger, args SessionProviderArgs) *SessionProvider {
	return &SessionProvider{
		jwtManager: NewJwtManager(args.Secret, args.TokenExpiry),
		db:         db,
		auditLog:   auditLog,
	}
}

type LoginResult struct {
	UserId      uuid.UUID
	SessionId   uuid.UUID
	AccessToken string
}

func (auth *SessionProvider) lookupUser(companyId uuid.UUID, empId, email string) (schema.User, error) {
	var user schema.User
	var result *gorm.DB
	if empId != "" {
		result = auth.db.First(&user, "company_id = ? AND emp_id = ?", companyId, empId)
	} else {
		result = auth.db.First(&user, "company_id = ? AND email = ?", companyId, email)
	}
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrInvalidCredentials
		}
		slog.Error("sql error looking up user for login", "error", result.Error)
		return user, schema.ErrDbAccessFailed
	}
	return user, nil
}

// Login authenticates with either emp id or email, both resolve to the same
// user record within the company.
func (auth *SessionProvider) Login(companyId uuid.UUID, empId, email, password, ipAddress, userAgent string) (LoginResult, error) {
	company, err := schema.GetCompany(companyId, auth.db)
	if err != nil {
		if errors.Is(err, schema.ErrCompanyNotFound) {
			return LoginResult{}, ErrCompanyNotActive
		}
		return LoginResult{}, err
	}
	if company.Status != schema.Active {
		return LoginResult{}, ErrCompanyNotActive
	}

	user, err := auth.lookupUser(companyId, empId, email)
	if err != nil {
		return LoginResult{}, err
	}

	if user.Status != schema.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	session := schema.Session{
		Id:        uuid.New(),
		UserId:    user.Id,
		CompanyId: companyId,
		IpAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(auth.jwtManager.TokenExpiry()),
	}

	result := auth.db.Create(&session)
	if result.Error != nil {
		slog.Error("sql error creating session", "user_id", user.Id, "error", result.Error)
		return LoginResult{}, schema.ErrDbAccessFailed
	}

	token, err := auth.jwtManager.CreateSessionJwt(user.Id, companyId, session.Id)
	if err != nil {
		return LoginResult{}, ErrGeneratingJwt
	}

	return LoginResult{UserId: user.Id, SessionId: session.Id, AccessToken: token}, nil
}

// Logout deletes exactly the caller's own session row.
func (auth *SessionProvider) Logout(sessionId, userId uuid.UUID) error {
	result := auth.db.Where("id = ? AND user_id = ?", sessionId, userId).Delete(&schema.Session{})
	if result.Error != nil {
		slog.Error("sql error deleting session", "session_id", sessionId, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return schema.ErrSessionNotFound
	}
	return nil
}

const sessionRequestContextKey requestContextKey = "session_id"

func SessionIdFromContext(r *http.Request) (uuid.UUID, error) {
	sessionUntyped := r.Context().Value(sessionRequestContextKey)
	sessionId, ok := sessionUntyped.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("session id not found in request context")
	}
	return sessionId, nil
}

func (auth *SessionProvider) addUserToContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := valueFromClaims(r, userIdKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			companyId, err := valueFromClaims(r, companyIdKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			sessionId, err := valueFromClaims(r, sessionIdKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			session, err := schema.GetSession(sessionId, userId, companyId, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrSessionNotFound) {
					http.Error(w, ErrSessionExpired.Error(), http.StatusUnauthorized)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			// Expiry is checked against wall clock time on every request, the
			// background sweeper is only hygiene for the sessions table.
			if time.Now().UTC().After(session.ExpiresAt) {
				http.Error(w, ErrSessionExpired.Error(), http.StatusUnauthorized)
				return
			}

			user, err := schema.GetUser(userId, companyId, auth.db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}
				http.Error(w, fmt.Sprintf("unable to find user %v: %v", userId, err), http.StatusInternalServerError)
				return
			}

			if user.Status != schema.Active {
				http.Error(w, ErrUserNotActive.Error(), http.StatusForbidden)
				return
			}

			reqCtx := r.Context()
			reqCtx = context.WithValue(reqCtx, userRequestContextKey, user)
			reqCtx = context.WithValue(reqCtx, sessionRequestContextKey, sessionId)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func (auth *SessionProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator(), auth.addUserToContext(), auth.auditLog.Middleware}
}

// SweepExpiredSessions deletes expired session rows on the given interval
// until Stop is closed.
func (auth *SessionProvider) SweepExpiredSessions(interval time.Duration, stop <-chan bool) {
	slog.Info("session sweeper: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			result := auth.db.Where("expires_at < ?", time.Now().UTC()).Delete(&schema.Session{})
			if result.Error != nil {
				slog.Error("session sweeper: sql error deleting expired sessions", "error", result.Error)
			} else if result.RowsAffected > 0 {
				slog.Info("session sweeper: removed expired sessions", "count", result.RowsAffected)
			}
		case <-stop:
			slog.Info("session sweeper: stopped")
			return
		}
	}
}
