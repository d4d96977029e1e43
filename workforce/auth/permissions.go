package auth

import (
	"fmt"
	"net/http"
	"slices"
	"workforce_platform/workforce/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsCompanyAdmin {
				http.Error(w, fmt.Sprintf("user %v is not a company admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// IsHrOrAdmin reports whether the user is a company admin or holds a role
// named "HR". Any HR user in the company passes, the check is not scoped to
// the target's manager or team.
func IsHrOrAdmin(user schema.User, db *gorm.DB) (bool, error) {
	if user.IsCompanyAdmin {
		return true, nil
	}

	names, err := schema.UserRoleNames(user.Id, user.CompanyId, db)
	if err != nil {
		return false, err
	}

	return slices.Contains(names, schema.HrRoleName), nil
}

func HrOrAdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			ok, err := IsHrOrAdmin(user, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !ok {
				http.Error(w, "user must be HR or company admin to access endpoint", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func IsSelf(user schema.User, targetUserId uuid.UUID) bool {
	return user.Id == targetUserId
}

// IsProjectLeader reports whether the user manages the team assigned to the
// project. Projects without a team have no leader.
func IsProjectLeader(user schema.User, project *schema.Project, db *gorm.DB) (bool, error) {
	if project.TeamId == nil {
		return false, nil
	}

	team, err := schema.GetTeam(*project.TeamId, project.CompanyId, db)
	if err != nil {
		return false, err
	}

	return team.ManagerId == user.Id, nil
}

func IsTaskAssignee(user schema.User, task *schema.Task) bool {
	return task.AssignedTo == user.Id
}
