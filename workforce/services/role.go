package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"workforce_platform/utils"
	"workforce_platform/workforce/auth"
	"workforce_platform/workforce/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *RoleService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)
	r.Use(auth.AdminOnly(s.db))

	r.Post("/create", s.CreateRole)
	r.Get("/list", s.List)

	r.Route("/{role_id}", func(r chi.Router) {
		r.Delete("/", s.DeleteRole)

		r.Post("/features/{feature_id}", s.AssignFeature)
		r.Delete("/features/{feature_id}", s.RemoveFeature)

		r.Post("/users/{user_id}", s.AssignUser)
		r.Delete("/users/{user_id}", s.RemoveUser)
	})

	return r
}

type createRoleRequest struct {
	Name string `json:"name"`
}

type createRoleResponse struct {
	RoleId uuid.UUID `json:"role_id"`
}

func (s *RoleService) CreateRole(w http.ResponseWriter, r *http.Request) {
	var params createRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "role name must be specified", http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newRole := schema.Role{Id: uuid.New(), CompanyId: user.CompanyId, Name: params.Name}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existingRole schema.Role
		result := txn.Limit(1).Find(&existingRole, "company_id = ? AND name = ?", user.CompanyId, params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate role name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("role with name %v already exists", params.Name), http.StatusConflict)
		}

		if result := txn.Create(&newRole); result.Error != nil {
			return dbCreateError(result.Error, "creating new role")
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createRoleResponse{RoleId: newRole.Id})
}

type roleInfo struct {
	Id       uuid.UUID          `json:"id"`
	Name     string             `json:"name"`
	Features []auth.FeatureInfo `json:"features"`
}

func (s *RoleService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var roles []schema.Role
	result := s.db.Preload("Features").Preload("Features.Feature").Where("company_id = ?", user.CompanyId).Order("name").Find(&roles)
	if result.Error != nil {
		slog.Error("sql error listing roles", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing roles: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]roleInfo, 0, len(roles))
	for _, role := range roles {
		features := make([]auth.FeatureInfo, 0, len(role.Features))
		for _, rf := range role.Features {
			if rf.Feature != nil {
				features = append(features, auth.FeatureInfo{Id: rf.FeatureId, Code: rf.Feature.Code, Name: rf.Feature.Name})
			}
		}
		infos = append(infos, roleInfo{Id: role.Id, Name: role.Name, Features: features})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *RoleService) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, user.CompanyId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.RoleFeature{}, "role_id = ?", roleId); result.Error != nil {
			slog.Error("sql error deleting role features", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.UserRole{}, "role_id = ?", roleId); result.Error != nil {
			slog.Error("sql error deleting user roles", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.Role{Id: roleId}); result.Error != nil {
			slog.Error("sql error deleting role", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// AssignFeature grants a feature to a role. The feature must currently be
// enabled for the company, a grant is rejected otherwise. The grant is not
// re-validated if the entitlement is later revoked, the resolver masks it at
// read time instead.
func (s *RoleService) AssignFeature(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	featureId, err := utils.URLParamUUID(r, "feature_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, user.CompanyId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		var companyFeature schema.CompanyFeature
		result := txn.Limit(1).Find(&companyFeature, "company_id = ? AND feature_id = ? AND enabled = ?", user.CompanyId, featureId, true)
		if result.Error != nil {
			slog.Error("sql error checking feature entitlement", "feature_id", featureId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("feature %v is not enabled for the company", featureId), http.StatusConflict)
		}

		if result := txn.Save(&schema.RoleFeature{RoleId: roleId, FeatureId: featureId}); result.Error != nil {
			slog.Error("sql error creating role feature entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning feature to role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *RoleService) RemoveFeature(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	featureId, err := utils.URLParamUUID(r, "feature_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, user.CompanyId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Delete(&schema.RoleFeature{RoleId: roleId, FeatureId: featureId})
		if result.Error != nil {
			slog.Error("sql error deleting role feature entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("feature is not assigned to role"), http.StatusNotFound)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing feature from role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *RoleService) AssignUser(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, user.CompanyId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if err := checkUserExists(txn, userId, user.CompanyId); err != nil {
			return err
		}

		if result := txn.Save(&schema.UserRole{UserId: userId, RoleId: roleId}); result.Error != nil {
			slog.Error("sql error creating user role entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning role to user: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *RoleService) RemoveUser(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, user.CompanyId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Delete(&schema.UserRole{UserId: userId, RoleId: roleId})
		if result.Error != nil {
			slog.Error("sql error deleting user role entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("user does not hold role"), http.StatusNotFound)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing role from user: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
