package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"workforce_platform/utils"
	"workforce_platform/workforce/auth"
	"workforce_platform/workforce/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/logout", s.Logout)
		r.Get("/me", s.Home)

		r.Get("/{user_id}/profile", s.Profile)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly(s.db))

		r.Get("/list", s.List)
		r.Post("/create", s.CreateUser)

		r.Get("/sessions", s.ListSessions)
		r.Delete("/sessions/{session_id}", s.TerminateSession)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.HrOrAdminOnly(s.db))

		r.Post("/{user_id}", s.UpdateUser)
	})

	return r
}

type loginRequest struct {
	CompanyId uuid.UUID `json:"company_id"`
	EmpId     string    `json:"emp_id"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.EmpId == "" && params.Email == "" {
		http.Error(w, "either emp_id or email is required", http.StatusBadRequest)
		return
	}

	login, err := s.userAuth.Login(params.CompanyId, params.EmpId, params.Email, params.Password, clientAddr(r), r.UserAgent())
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrCompanyNotActive):
			responseCode = http.StatusForbidden
		case errors.Is(err, auth.ErrInvalidCredentials):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	loginCount.Inc()

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func (s *UserService) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sessionId, err := auth.SessionIdFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := s.userAuth.Logout(sessionId, user.Id); err != nil {
		if errors.Is(err, schema.ErrSessionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("logout failed: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

type homeResponse struct {
	User     userInfo           `json:"user"`
	Features []auth.FeatureInfo `json:"features"`
	Pages    []auth.PageInfo    `json:"pages"`
}

type userInfo struct {
	Id             uuid.UUID `json:"id"`
	EmpId          string    `json:"emp_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Status         string    `json:"status"`
	IsCompanyAdmin bool      `json:"is_company_admin"`
	Company        string    `json:"company,omitempty"`
}

func (s *UserService) resolveHome(user schema.User, companyName string) (homeResponse, error) {
	features, err := auth.ResolveFeatures(user, s.db)
	if err != nil {
		return homeResponse{}, CodedError(err, http.StatusInternalServerError)
	}

	pages, err := auth.ResolvePages(features, s.db)
	if err != nil {
		return homeResponse{}, CodedError(err, http.StatusInternalServerError)
	}

	return homeResponse{
		User: userInfo{
			Id:             user.Id,
			EmpId:          user.EmpId,
			Name:           user.Name,
			Email:          user.Email,
			Status:         user.Status,
			IsCompanyAdmin: user.IsCompanyAdmin,
			Company:        companyName,
		},
		Features: features,
		Pages:    pages,
	}, nil
}

func (s *UserService) Home(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	company, err := schema.GetCompany(user.CompanyId, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading company: %v", err), http.StatusInternalServerError)
		return
	}

	res, err := s.resolveHome(user, company.Name)
	if err != nil {
		http.Error(w, fmt.Sprintf("error resolving home: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

// Profile reuses the home resolution against the target user. Visible to the
// target themselves, HR, and company admins.
func (s *UserService) Profile(w http.ResponseWriter, r *http.Request) {
	targetId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !auth.IsSelf(user, targetId) {
		ok, err := auth.IsHrOrAdmin(user, s.db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "user must be HR or company admin to view other profiles", http.StatusForbidden)
			return
		}
	}

	target, err := schema.GetUser(targetId, user.CompanyId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := s.resolveHome(target, "")
	if err != nil {
		http.Error(w, fmt.Sprintf("error resolving profile: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, res)
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var users []schema.User
	result := s.db.Where("company_id = ?", user.CompanyId).Order("created_at DESC").Find(&users)
	if result.Error != nil {
		slog.Error("sql error listing users", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]userInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, userInfo{
			Id:             u.Id,
			EmpId:          u.EmpId,
			Name:           u.Name,
			Email:          u.Email,
			Status:         u.Status,
			IsCompanyAdmin: u.IsCompanyAdmin,
		})
	}
	utils.WriteJsonResponse(w, infos)
}

type createUserRequest struct {
	EmpId          string `json:"emp_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	IsCompanyAdmin bool   `json:"is_company_admin"`
}

type createUserResponse struct {
	UserId uuid.UUID `json:"user_id"`
}

func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	var params createUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.EmpId == "" || params.Name == "" || params.Password == "" {
		http.Error(w, "emp_id, name, and password must be specified", http.StatusBadRequest)
		return
	}

	admin, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(params.Password), 10)
	if err != nil {
		http.Error(w, fmt.Sprintf("error encrypting password: %v", err), http.StatusInternalServerError)
		return
	}

	newUser := schema.User{
		Id:             uuid.New(),
		CompanyId:      admin.CompanyId,
		EmpId:          params.EmpId,
		Name:           params.Name,
		Email:          params.Email,
		Password:       hashedPwd,
		Status:         schema.Active,
		IsCompanyAdmin: params.IsCompanyAdmin,
		CreatedAt:      time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "company_id = ? AND (emp_id = ? OR (email != '' AND email = ?))", admin.CompanyId, params.EmpId, params.Email)
		if result.Error != nil {
			slog.Error("sql error checking for existing emp_id/email", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user with emp_id %v or email %v already exists", params.EmpId, params.Email), http.StatusConflict)
		}

		if result := txn.Create(&newUser); result.Error != nil {
			return dbCreateError(result.Error, "creating new user entry")
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating user: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createUserResponse{UserId: newUser.Id})
}

type updateUserRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	IsCompanyAdmin bool   `json:"is_company_admin"`
}

func (s *UserService) UpdateUser(w http.ResponseWriter, r *http.Request) {
	targetId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status != schema.Active && params.Status != schema.Inactive {
		http.Error(w, fmt.Sprintf("invalid user status '%v'", params.Status), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		target, err := schema.GetUser(targetId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// HR can edit profiles but the admin flag stays admin-only.
		if params.IsCompanyAdmin != target.IsCompanyAdmin && !user.IsCompanyAdmin {
			return CodedError(errors.New("only company admins can change the admin flag"), http.StatusForbidden)
		}

		result := txn.Model(&schema.User{}).
			Where("id = ? AND company_id = ?", targetId, user.CompanyId).
			Updates(map[string]interface{}{
				"name":             params.Name,
				"email":            params.Email,
				"status":           params.Status,
				"is_company_admin": params.IsCompanyAdmin,
			})
		if result.Error != nil {
			slog.Error("sql error updating user", "user_id", targetId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating user: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type sessionInfo struct {
	SessionId uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	EmpId     string    `json:"emp_id"`
	IpAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoginAt   time.Time `json:"login_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *UserService) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var sessions []schema.Session
	result := s.db.Preload("User").Where("company_id = ?", user.CompanyId).Order("created_at DESC").Find(&sessions)
	if result.Error != nil {
		slog.Error("sql error listing sessions", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing sessions: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]sessionInfo, 0, len(sessions))
	for _, session := range sessions {
		info := sessionInfo{
			SessionId: session.Id,
			IpAddress: session.IpAddress,
			UserAgent: session.UserAgent,
			LoginAt:   session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
		}
		if session.User != nil {
			info.Name = session.User.Name
			info.EmpId = session.User.EmpId
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *UserService) TerminateSession(w http.ResponseWriter, r *http.Request) {
	sessionId, err := utils.URLParamUUID(r, "session_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := s.db.Where("id = ? AND company_id = ?", sessionId, user.CompanyId).Delete(&schema.Session{})
	if result.Error != nil {
		slog.Error("sql error terminating session", "session_id", sessionId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error terminating session: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, schema.ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}

	utils.WriteSuccess(w)
}
