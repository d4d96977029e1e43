package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrFeatureNotFound      = errors.New("feature not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrLeaveNotFound        = errors.New("leave request not found")
	ErrLeadNotFound         = errors.New("lead not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrTeamMemberNotFound   = errors.New("team membership not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetCompany(companyId uuid.UUID, db *gorm.DB) (Company, error) {
	var company Company

	result := db.First(&company, "id = ?", companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return company, ErrCompanyNotFound
		}
		slog.Error("sql error in get company", "company_id", companyId, "error", result.Error)
		return company, ErrDbAccessFailed
	}

	return company, nil
}

func GetUser(userId, companyId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ? AND company_id = ?", userId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetSession(sessionId, userId, companyId uuid.UUID, db *gorm.DB) (Session, error) {
	var session Session

	result := db.First(&session, "id = ? AND user_id = ? AND company_id = ?", sessionId, userId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return session, ErrSessionNotFound
		}
		slog.Error("sql error in get session", "session_id", sessionId, "error", result.Error)
		return session, ErrDbAccessFailed
	}

	return session, nil
}

func GetRole(roleId, companyId uuid.UUID, db *gorm.DB) (Role, error) {
	var role Role

	result := db.First(&role, "id = ? AND company_id = ?", roleId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return role, ErrRoleNotFound
		}
		slog.Error("sql error in get role", "role_id", roleId, "error", result.Error)
		return role, ErrDbAccessFailed
	}

	return role, nil
}

func GetTeam(teamId, companyId uuid.UUID, db *gorm.DB) (Team, error) {
	var team Team

	result := db.First(&team, "id = ? AND company_id = ?", teamId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return team, ErrTeamNotFound
		}
		slog.Error("sql error in get team", "team_id", teamId, "error", result.Error)
		return team, ErrDbAccessFailed
	}

	return team, nil
}

func GetLead(leadId, companyId uuid.UUID, db *gorm.DB) (Lead, error) {
	var lead Lead

	result := db.First(&lead, "id = ? AND company_id = ?", leadId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return lead, ErrLeadNotFound
		}
		slog.Error("sql error in get lead", "lead_id", leadId, "error", result.Error)
		return lead, ErrDbAccessFailed
	}

	return lead, nil
}

func GetProject(projectId, companyId uuid.UUID, db *gorm.DB, loadTeam bool) (Project, error) {
	var project Project

	query := db
	if loadTeam {
		query = query.Preload("Team")
	}

	result := query.First(&project, "id = ? AND company_id = ?", projectId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetTask(taskId, companyId uuid.UUID, db *gorm.DB) (Task, error) {
	var task Task

	result := db.First(&task, "id = ? AND company_id = ?", taskId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return task, ErrTaskNotFound
		}
		slog.Error("sql error in get task", "task_id", taskId, "error", result.Error)
		return task, ErrDbAccessFailed
	}

	return task, nil
}

func GetLeaveRequest(leaveId, companyId uuid.UUID, db *gorm.DB) (LeaveRequest, error) {
	var leave LeaveRequest

	result := db.First(&leave, "id = ? AND company_id = ?", leaveId, companyId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return leave, ErrLeaveNotFound
		}
		slog.Error("sql error in get leave request", "leave_id", leaveId, "error", result.Error)
		return leave, ErrDbAccessFailed
	}

	return leave, nil
}

// UserRoleNames returns the names of the roles held by the user within the
// company. Used by the HR predicate.
func UserRoleNames(userId, companyId uuid.UUID, db *gorm.DB) ([]string, error) {
	var names []string
	result := db.Model(&UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND roles.company_id = ?", userId, companyId).
		Pluck("roles.name", &names)
	if result.Error != nil {
		slog.Error("sql error in user role names", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	return names, nil
}
