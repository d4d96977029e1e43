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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectService drives the project lifecycle from team assignment through
// completion. Projects are opened by the lead pipeline, never created here.
type ProjectService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.List)

	r.Route("/{project_id}", func(r chi.Router) {
		r.Get("/", s.GetProject)
		r.Get("/status-log", s.StatusLog)

		r.With(auth.AdminOnly(s.db)).Post("/assign-team", s.AssignTeam)

		r.Post("/planning", s.SubmitPlanning)
		r.Post("/start", s.Start)
		r.Post("/complete", s.Complete)

		r.Mount("/tasks", taskRoutes(s))
	})

	return r
}

func (s *ProjectService) loadProject(r *http.Request) (schema.Project, schema.User, error) {
	var project schema.Project

	user, err := auth.UserFromContext(r)
	if err != nil {
		return project, user, CodedError(err, http.StatusInternalServerError)
	}

	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		return project, user, CodedError(err, http.StatusBadRequest)
	}

	project, err = schema.GetProject(projectId, user.CompanyId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			return project, user, CodedError(err, http.StatusNotFound)
		}
		return project, user, CodedError(err, http.StatusInternalServerError)
	}

	return project, user, nil
}

func (s *ProjectService) requireLeader(user schema.User, project *schema.Project) error {
	leader, err := auth.IsProjectLeader(user, project, s.db)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}
	if !leader {
		return CodedError(errors.New("only the project leader can perform this action"), http.StatusForbidden)
	}
	return nil
}

func logStatusChange(txn *gorm.DB, projectId uuid.UUID, oldStatus, newStatus string, changedBy uuid.UUID) error {
	entry := schema.ProjectStatusLog{
		Id:        uuid.New(),
		ProjectId: projectId,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedBy: changedBy,
		ChangedAt: time.Now().UTC(),
	}
	if result := txn.Create(&entry); result.Error != nil {
		slog.Error("sql error writing project status log", "project_id", projectId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

// transitionProject moves the project between statuses with the guard in the
// WHERE clause, so a stale read cannot double apply a transition.
func transitionProject(txn *gorm.DB, project *schema.Project, fromStatus, toStatus string, changedBy uuid.UUID, extraUpdates map[string]interface{}) error {
	updates := map[string]interface{}{"status": toStatus}
	for key, value := range extraUpdates {
		updates[key] = value
	}

	result := txn.Model(&schema.Project{}).
		Where("id = ? AND status = ?", project.Id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		slog.Error("sql error transitioning project", "project_id", project.Id, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return CodedError(fmt.Errorf("project must be %v to perform this action, current status is %v", fromStatus, project.Status), http.StatusConflict)
	}

	return logStatusChange(txn, project.Id, fromStatus, toStatus, changedBy)
}

type projectInfo struct {
	Id        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	LeadId    *uuid.UUID `json:"lead_id,omitempty"`
	TeamId    *uuid.UUID `json:"team_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toProjectInfo(project schema.Project) projectInfo {
	return projectInfo{
		Id:        project.Id,
		Name:      project.Name,
		Status:    project.Status,
		LeadId:    project.LeadId,
		TeamId:    project.TeamId,
		CreatedAt: project.CreatedAt,
	}
}

func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	query := s.db.Where("company_id = ?", user.CompanyId)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var projects []schema.Project
	result := query.Order("created_at DESC").Find(&projects)
	if result.Error != nil {
		slog.Error("sql error listing projects", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing projects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]projectInfo, 0, len(projects))
	for _, project := range projects {
		infos = append(infos, toProjectInfo(project))
	}
	utils.WriteJsonResponse(w, infos)
}

type planningInfo struct {
	Objectives string    `json:"objectives"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	UpdatedBy  uuid.UUID `json:"updated_by"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type projectDetailResponse struct {
	projectInfo
	Planning *planningInfo `json:"planning,omitempty"`
}

func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	project, _, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading project: %v", err), GetResponseCode(err))
		return
	}

	detail := projectDetailResponse{projectInfo: toProjectInfo(project)}

	var planning schema.ProjectPlanning
	result := s.db.Limit(1).Find(&planning, "project_id = ?", project.Id)
	if result.Error != nil {
		slog.Error("sql error loading project planning", "project_id", project.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading project: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected != 0 {
		detail.Planning = &planningInfo{
			Objectives: planning.Objectives,
			StartDate:  planning.StartDate,
			EndDate:    planning.EndDate,
			UpdatedBy:  planning.UpdatedBy,
			UpdatedAt:  planning.UpdatedAt,
		}
	}

	utils.WriteJsonResponse(w, detail)
}

type assignTeamRequest struct {
	TeamId uuid.UUID `json:"team_id"`
}

// AssignTeam attaches a team to an unassigned project. The team's manager
// becomes the project leader through the team relationship.
func (s *ProjectService) AssignTeam(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning team: %v", err), GetResponseCode(err))
		return
	}

	var params assignTeamRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTeamExists(txn, params.TeamId, user.CompanyId); err != nil {
			return err
		}

		return transitionProject(txn, &project, schema.ProjectUnassigned, schema.ProjectAssigned, user.Id,
			map[string]interface{}{"team_id": params.TeamId})
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning team: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type planningRequest struct {
	Objectives string `json:"objectives"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// SubmitPlanning writes or rewrites the project plan. Only the leader can
// plan, and only before execution starts: the plan is locked once the project
// is In Progress.
func (s *ProjectService) SubmitPlanning(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error submitting planning: %v", err), GetResponseCode(err))
		return
	}

	var params planningRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Objectives == "" {
		http.Error(w, "planning objectives must be specified", http.StatusBadRequest)
		return
	}
	if params.StartDate != "" {
		if _, err := utils.ParseDate(params.StartDate); err != nil {
			http.Error(w, fmt.Sprintf("invalid start date: %v", err), http.StatusBadRequest)
			return
		}
	}
	if params.EndDate != "" {
		if _, err := utils.ParseDate(params.EndDate); err != nil {
			http.Error(w, fmt.Sprintf("invalid end date: %v", err), http.StatusBadRequest)
			return
		}
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error submitting planning: %v", err), GetResponseCode(err))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		// The lock check is a compare-on-write update like transitionProject,
		// the handler's project snapshot can go stale before the plan lands.
		result := txn.Model(&schema.Project{}).
			Where("id = ? AND status IN ?", project.Id, []string{schema.ProjectAssigned, schema.ProjectPlanned}).
			Update("status", schema.ProjectPlanned)
		if result.Error != nil {
			slog.Error("sql error locking project for planning", "project_id", project.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("planning is locked once the project status is %v", project.Status), http.StatusConflict)
		}

		planning := schema.ProjectPlanning{
			ProjectId:  project.Id,
			Objectives: params.Objectives,
			StartDate:  params.StartDate,
			EndDate:    params.EndDate,
			UpdatedBy:  user.Id,
			UpdatedAt:  time.Now().UTC(),
		}
		result = txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"objectives", "start_date", "end_date", "updated_by", "updated_at"}),
		}).Create(&planning)
		if result.Error != nil {
			slog.Error("sql error saving project planning", "project_id", project.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if project.Status == schema.ProjectPlanned {
			// Re-planning an already planned project keeps it Planned.
			return nil
		}

		return logStatusChange(txn, project.Id, schema.ProjectAssigned, schema.ProjectPlanned, user.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error submitting planning: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ProjectService) Start(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error starting project: %v", err), GetResponseCode(err))
		return
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error starting project: %v", err), GetResponseCode(err))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		return transitionProject(txn, &project, schema.ProjectPlanned, schema.ProjectInProgress, user.Id, nil)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error starting project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// Complete closes the project. Every task must be Done, the check runs
// inside the transaction so a task status change cannot race past the gate.
func (s *ProjectService) Complete(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error completing project: %v", err), GetResponseCode(err))
		return
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error completing project: %v", err), GetResponseCode(err))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		// Every task must be Done, even rejected suggestions. The leader's
		// completion override is the way to close those out.
		var openTasks int64
		result := txn.Model(&schema.Task{}).
			Where("project_id = ? AND status <> ?", project.Id, schema.TaskDone).
			Count(&openTasks)
		if result.Error != nil {
			slog.Error("sql error counting open tasks", "project_id", project.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if openTasks != 0 {
			return CodedError(fmt.Errorf("project has %v unfinished tasks", openTasks), http.StatusConflict)
		}

		return transitionProject(txn, &project, schema.ProjectInProgress, schema.ProjectCompleted, user.Id, nil)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error completing project: %v", err), GetResponseCode(err))
		return
	}

	projectsCompleted.Inc()

	utils.WriteSuccess(w)
}

type statusLogEntry struct {
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy uuid.UUID `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

func (s *ProjectService) StatusLog(w http.ResponseWriter, r *http.Request) {
	project, _, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading status log: %v", err), GetResponseCode(err))
		return
	}

	var logs []schema.ProjectStatusLog
	result := s.db.Where("project_id = ?", project.Id).Order("changed_at").Find(&logs)
	if result.Error != nil {
		slog.Error("sql error loading project status log", "project_id", project.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading status log: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	entries := make([]statusLogEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, statusLogEntry{
			OldStatus: log.OldStatus,
			NewStatus: log.NewStatus,
			ChangedBy: log.ChangedBy,
			ChangedAt: log.ChangedAt,
		})
	}
	utils.WriteJsonResponse(w, entries)
}
