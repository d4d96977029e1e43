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
)

// Task routes are mounted under /projects/{project_id}/tasks so every task
// operation resolves its project first.
func taskRoutes(s *ProjectService) chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.ListTasks)
	r.Post("/create", s.CreateTask)
	r.Post("/suggest", s.SuggestTask)

	r.Route("/{task_id}", func(r chi.Router) {
		r.Post("/approve", s.ApproveTask)
		r.Post("/status", s.UpdateTaskStatus)
		r.Post("/complete", s.CompleteTask)
		r.Get("/updates", s.TaskUpdates)
	})

	return r
}

type taskRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	AssignedTo       uuid.UUID  `json:"assigned_to"`
	DependencyTaskId *uuid.UUID `json:"dependency_task_id"`
}

type taskResponse struct {
	TaskId uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

func (s *ProjectService) buildTask(txn *gorm.DB, project *schema.Project, params taskRequest) (schema.Task, error) {
	task := schema.Task{
		Id:               uuid.New(),
		ProjectId:        project.Id,
		CompanyId:        project.CompanyId,
		Title:            params.Title,
		Description:      params.Description,
		AssignedTo:       params.AssignedTo,
		DependencyTaskId: params.DependencyTaskId,
		CreatedAt:        time.Now().UTC(),
	}

	if err := checkUserExists(txn, params.AssignedTo, project.CompanyId); err != nil {
		return task, err
	}

	if params.DependencyTaskId != nil {
		var dependency schema.Task
		result := txn.Limit(1).Find(&dependency, "id = ? AND project_id = ?", *params.DependencyTaskId, project.Id)
		if result.Error != nil {
			slog.Error("sql error checking task dependency", "error", result.Error)
			return task, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return task, CodedError(errors.New("dependency task not found in this project"), http.StatusNotFound)
		}
	}

	return task, nil
}

// requireProjectInProgress re-reads the project status under the transaction,
// the snapshot from loadProject can go stale before the write applies.
func requireProjectInProgress(txn *gorm.DB, projectId uuid.UUID) error {
	var project schema.Project
	result := txn.Select("status").Limit(1).Find(&project, "id = ?", projectId)
	if result.Error != nil {
		slog.Error("sql error checking project status", "project_id", projectId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return CodedError(schema.ErrProjectNotFound, http.StatusNotFound)
	}
	if project.Status != schema.ProjectInProgress {
		return CodedError(fmt.Errorf("project must be %v for task changes, current status is %v", schema.ProjectInProgress, project.Status), http.StatusConflict)
	}
	return nil
}

// CreateTask adds a task directly as Active. Leader only, and only once the
// project is In Progress. Team members go through the suggestion flow instead.
func (s *ProjectService) CreateTask(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating task: %v", err), GetResponseCode(err))
		return
	}

	var params taskRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "task title must be specified", http.StatusBadRequest)
		return
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error creating task: %v", err), GetResponseCode(err))
		return
	}

	var task schema.Task
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := requireProjectInProgress(txn, project.Id); err != nil {
			return err
		}

		task, err = s.buildTask(txn, &project, params)
		if err != nil {
			return err
		}
		task.Status = schema.TaskActive

		if result := txn.Create(&task); result.Error != nil {
			return dbCreateError(result.Error, "creating task")
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating task: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, taskResponse{TaskId: task.Id, Status: task.Status})
}

// SuggestTask lets a non-leader propose a task. The suggestion sits in
// Pending Approval until the leader decides. The leader cannot suggest, they
// create tasks directly.
func (s *ProjectService) SuggestTask(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error suggesting task: %v", err), GetResponseCode(err))
		return
	}

	var params taskRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Title == "" {
		http.Error(w, "task title must be specified", http.StatusBadRequest)
		return
	}

	leader, err := auth.IsProjectLeader(user, &project, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if leader {
		http.Error(w, "project leader cannot suggest tasks, use task creation instead", http.StatusConflict)
		return
	}

	var task schema.Task
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := requireProjectInProgress(txn, project.Id); err != nil {
			return err
		}

		task, err = s.buildTask(txn, &project, params)
		if err != nil {
			return err
		}
		task.Status = schema.TaskPendingApproval
		task.SuggestedBy = &user.Id

		if result := txn.Create(&task); result.Error != nil {
			return dbCreateError(result.Error, "creating task suggestion")
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error suggesting task: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, taskResponse{TaskId: task.Id, Status: task.Status})
}

type approveTaskRequest struct {
	Approve bool `json:"approve"`
}

// ApproveTask decides a suggested task. Approval activates it, rejection is
// terminal. The status guard is in the WHERE clause so a suggestion cannot be
// decided twice.
func (s *ProjectService) ApproveTask(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error approving task: %v", err), GetResponseCode(err))
		return
	}

	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params approveTaskRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error approving task: %v", err), GetResponseCode(err))
		return
	}

	newStatus := schema.TaskRejected
	if params.Approve {
		newStatus = schema.TaskActive
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		task, err := schema.GetTask(taskId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTaskNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if task.ProjectId != project.Id {
			return CodedError(schema.ErrTaskNotFound, http.StatusNotFound)
		}

		result := txn.Model(&schema.Task{}).
			Where("id = ? AND status = ?", taskId, schema.TaskPendingApproval).
			Update("status", newStatus)
		if result.Error != nil {
			slog.Error("sql error approving task", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("task is not pending approval, current status is %v", task.Status), http.StatusConflict)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error approving task: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, taskResponse{TaskId: taskId, Status: newStatus})
}

type taskStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateTaskStatus records the assignee's progress on a task. The project
// must be In Progress. Every change is captured in the task update log.
func (s *ProjectService) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error updating task: %v", err), GetResponseCode(err))
		return
	}

	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params taskStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status == "" {
		http.Error(w, "task status must be specified", http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := requireProjectInProgress(txn, project.Id); err != nil {
			return err
		}

		task, err := schema.GetTask(taskId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTaskNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if task.ProjectId != project.Id {
			return CodedError(schema.ErrTaskNotFound, http.StatusNotFound)
		}

		if !auth.IsTaskAssignee(user, &task) {
			return CodedError(errors.New("only the task assignee can update task status"), http.StatusForbidden)
		}

		// Only the project status gates assignee updates. The assignee is free
		// to move a task out of any prior status, including Rejected.
		updates := map[string]interface{}{"status": params.Status}
		if params.Status == schema.TaskDone {
			updates["completed_at"] = time.Now().UTC()
		}

		if result := txn.Model(&schema.Task{}).Where("id = ?", taskId).Updates(updates); result.Error != nil {
			slog.Error("sql error updating task status", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return logTaskUpdate(txn, taskId, task.Status, params.Status, params.Note, user.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating task: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// CompleteTask is the leader's override to close a task regardless of who it
// is assigned to.
func (s *ProjectService) CompleteTask(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error completing task: %v", err), GetResponseCode(err))
		return
	}

	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.requireLeader(user, &project); err != nil {
		http.Error(w, fmt.Sprintf("error completing task: %v", err), GetResponseCode(err))
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		task, err := schema.GetTask(taskId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTaskNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		if task.ProjectId != project.Id {
			return CodedError(schema.ErrTaskNotFound, http.StatusNotFound)
		}

		if task.Status == schema.TaskDone {
			return CodedError(errors.New("task is already done"), http.StatusConflict)
		}

		updates := map[string]interface{}{"status": schema.TaskDone, "completed_at": time.Now().UTC()}
		if result := txn.Model(&schema.Task{}).Where("id = ?", taskId).Updates(updates); result.Error != nil {
			slog.Error("sql error completing task", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return logTaskUpdate(txn, taskId, task.Status, schema.TaskDone, "completed by project leader", user.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error completing task: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func logTaskUpdate(txn *gorm.DB, taskId uuid.UUID, oldStatus, newStatus, note string, updatedBy uuid.UUID) error {
	entry := schema.TaskUpdate{
		Id:        uuid.New(),
		TaskId:    taskId,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      note,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now().UTC(),
	}
	if result := txn.Create(&entry); result.Error != nil {
		slog.Error("sql error writing task update", "task_id", taskId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

type taskInfo struct {
	Id               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	AssignedTo       uuid.UUID  `json:"assigned_to"`
	Status           string     `json:"status"`
	DependencyTaskId *uuid.UUID `json:"dependency_task_id,omitempty"`
	SuggestedBy      *uuid.UUID `json:"suggested_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func (s *ProjectService) ListTasks(w http.ResponseWriter, r *http.Request) {
	project, _, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing tasks: %v", err), GetResponseCode(err))
		return
	}

	var tasks []schema.Task
	result := s.db.Where("project_id = ?", project.Id).Order("created_at").Find(&tasks)
	if result.Error != nil {
		slog.Error("sql error listing tasks", "project_id", project.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing tasks: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]taskInfo, 0, len(tasks))
	for _, task := range tasks {
		infos = append(infos, taskInfo{
			Id:               task.Id,
			Title:            task.Title,
			Description:      task.Description,
			AssignedTo:       task.AssignedTo,
			Status:           task.Status,
			DependencyTaskId: task.DependencyTaskId,
			SuggestedBy:      task.SuggestedBy,
			CreatedAt:        task.CreatedAt,
			CompletedAt:      task.CompletedAt,
		})
	}
	utils.WriteJsonResponse(w, infos)
}

type taskUpdateEntry struct {
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Note      string    `json:"note,omitempty"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *ProjectService) TaskUpdates(w http.ResponseWriter, r *http.Request) {
	project, user, err := s.loadProject(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing task updates: %v", err), GetResponseCode(err))
		return
	}

	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := schema.GetTask(taskId, user.CompanyId, s.db)
	if err != nil || task.ProjectId != project.Id {
		http.Error(w, schema.ErrTaskNotFound.Error(), http.StatusNotFound)
		return
	}

	var updates []schema.TaskUpdate
	result := s.db.Where("task_id = ?", taskId).Order("updated_at").Find(&updates)
	if result.Error != nil {
		slog.Error("sql error listing task updates", "task_id", taskId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing task updates: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	entries := make([]taskUpdateEntry, 0, len(updates))
	for _, update := range updates {
		entries = append(entries, taskUpdateEntry{
			OldStatus: update.OldStatus,
			NewStatus: update.NewStatus,
			Note:      update.Note,
			UpdatedBy: update.UpdatedBy,
			UpdatedAt: update.UpdatedAt,
		})
	}
	utils.WriteJsonResponse(w, entries)
}
