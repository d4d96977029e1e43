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

type TeamService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *TeamService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Post("/create", s.CreateTeam)

		r.Route("/{team_id}", func(r chi.Router) {
			r.Delete("/", s.DeleteTeam)

			r.Post("/users/{user_id}", s.AddUserToTeam)
			r.Delete("/users/{user_id}", s.RemoveUserFromTeam)

			r.Post("/manager/{user_id}", s.SetManager)
		})
	})

	r.Get("/{team_id}/users", s.TeamUsers)

	return r
}

type createTeamRequest struct {
	Name      string    `json:"name"`
	ManagerId uuid.UUID `json:"manager_id"`
}

type createTeamResponse struct {
	TeamId uuid.UUID `json:"team_id"`
}

func (s *TeamService) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var params createTeamRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "team name must be specified", http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newTeam := schema.Team{Id: uuid.New(), CompanyId: user.CompanyId, Name: params.Name, ManagerId: params.ManagerId}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkUserExists(txn, params.ManagerId, user.CompanyId); err != nil {
			return err
		}

		var existingTeam schema.Team
		result := txn.Limit(1).Find(&existingTeam, "company_id = ? AND name = ?", user.CompanyId, params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate team name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("team with name %v already exists", params.Name), http.StatusConflict)
		}

		if result := txn.Create(&newTeam); result.Error != nil {
			return dbCreateError(result.Error, "creating new team")
		}

		// The manager is always a member of their own team.
		if result := txn.Save(&schema.TeamMember{TeamId: newTeam.Id, UserId: params.ManagerId}); result.Error != nil {
			slog.Error("sql error adding manager to team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createTeamResponse{TeamId: newTeam.Id})
}

func (s *TeamService) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
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
		if err := checkTeamExists(txn, teamId, user.CompanyId); err != nil {
			return err
		}

		if result := txn.Delete(&schema.TeamMember{}, "team_id = ?", teamId); result.Error != nil {
			slog.Error("sql error deleting team members", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// Projects keep running but lose their team assignment, and with it
		// their leader, until a new team is assigned.
		result := txn.Model(&schema.Project{}).Where("team_id = ?", teamId).Update("team_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching projects from team", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.Team{Id: teamId}); result.Error != nil {
			slog.Error("sql error deleting team", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) AddUserToTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
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
		if err := checkTeamExists(txn, teamId, user.CompanyId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId, user.CompanyId); err != nil {
			return err
		}

		if result := txn.Save(&schema.TeamMember{TeamId: teamId, UserId: userId}); result.Error != nil {
			slog.Error("sql error creating team member entry", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding user to team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) RemoveUserFromTeam(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
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
		team, err := schema.GetTeam(teamId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTeamNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if team.ManagerId == userId {
			return CodedError(errors.New("cannot remove the team manager, assign a new manager first"), http.StatusConflict)
		}

		result := txn.Delete(&schema.TeamMember{TeamId: teamId, UserId: userId})
		if result.Error != nil {
			slog.Error("sql error deleting team member entry", "team_id", teamId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrTeamMemberNotFound, http.StatusNotFound)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing user from team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *TeamService) SetManager(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
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
		if err := checkTeamExists(txn, teamId, user.CompanyId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId, user.CompanyId); err != nil {
			return err
		}

		if result := txn.Model(&schema.Team{Id: teamId}).Update("manager_id", userId); result.Error != nil {
			slog.Error("sql error updating team manager", "team_id", teamId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Save(&schema.TeamMember{TeamId: teamId, UserId: userId}); result.Error != nil {
			slog.Error("sql error adding new manager to team", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error setting team manager: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type teamInfo struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ManagerId uuid.UUID `json:"manager_id"`
}

func (s *TeamService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var teams []schema.Team
	result := s.db.Where("company_id = ?", user.CompanyId).Order("name").Find(&teams)
	if result.Error != nil {
		slog.Error("sql error listing teams", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing teams: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]teamInfo, 0, len(teams))
	for _, team := range teams {
		infos = append(infos, teamInfo{Id: team.Id, Name: team.Name, ManagerId: team.ManagerId})
	}

	utils.WriteJsonResponse(w, infos)
}

type teamUserInfo struct {
	UserId  uuid.UUID `json:"user_id"`
	Name    string    `json:"name"`
	EmpId   string    `json:"emp_id"`
	Manager bool      `json:"manager"`
}

func (s *TeamService) TeamUsers(w http.ResponseWriter, r *http.Request) {
	teamId, err := utils.URLParamUUID(r, "team_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	team, err := schema.GetTeam(teamId, user.CompanyId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var members []schema.TeamMember
	result := s.db.Preload("User").Where("team_id = ?", teamId).Find(&members)
	if result.Error != nil {
		slog.Error("sql error listing team users", "team_id", teamId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing team users: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]teamUserInfo, 0, len(members))
	for _, member := range members {
		info := teamUserInfo{UserId: member.UserId, Manager: member.UserId == team.ManagerId}
		if member.User != nil {
			info.Name = member.User.Name
			info.EmpId = member.User.EmpId
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}
