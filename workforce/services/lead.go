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

type LeadService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *LeadService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateLead)
	r.Get("/list", s.List)
	r.Get("/{lead_id}", s.GetLead)
	r.Post("/{lead_id}", s.UpdateLead)

	return r
}

type createLeadRequest struct {
	ClientName       string     `json:"client_name"`
	ContactEmail     string     `json:"contact_email"`
	ContactPhone     string     `json:"contact_phone"`
	Status           string     `json:"status"`
	AssignedUserId   *uuid.UUID `json:"assigned_user_id"`
	NextFollowUpDate *string    `json:"next_follow_up_date"`
}

type createLeadResponse struct {
	LeadId uuid.UUID `json:"lead_id"`
}

func (s *LeadService) CreateLead(w http.ResponseWriter, r *http.Request) {
	var params createLeadRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.ClientName == "" {
		http.Error(w, "client name must be specified", http.StatusBadRequest)
		return
	}
	if params.Status == "" {
		http.Error(w, "lead status must be specified", http.StatusBadRequest)
		return
	}
	if params.NextFollowUpDate != nil {
		if _, err := utils.ParseDate(*params.NextFollowUpDate); err != nil {
			http.Error(w, fmt.Sprintf("invalid follow up date: %v", err), http.StatusBadRequest)
			return
		}
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newLead := schema.Lead{
		Id:               uuid.New(),
		CompanyId:        user.CompanyId,
		ClientName:       params.ClientName,
		ContactEmail:     params.ContactEmail,
		ContactPhone:     params.ContactPhone,
		Status:           params.Status,
		AssignedUserId:   params.AssignedUserId,
		NextFollowUpDate: params.NextFollowUpDate,
		CreatedAt:        time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if params.AssignedUserId != nil {
			if err := checkUserExists(txn, *params.AssignedUserId, user.CompanyId); err != nil {
				return err
			}
		}

		// A lead created directly as Won gets its project immediately.
		if params.Status == schema.LeadWon {
			if err := createProjectForLead(txn, &newLead); err != nil {
				return err
			}
			newLead.ProjectCreated = true
		}

		if result := txn.Create(&newLead); result.Error != nil {
			return dbCreateError(result.Error, "creating lead")
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating lead: %v", err), GetResponseCode(err))
		return
	}

	if newLead.ProjectCreated {
		leadsWon.Inc()
	}

	utils.WriteJsonResponse(w, createLeadResponse{LeadId: newLead.Id})
}

// createProjectForLead opens the delivery project for a won lead. The project
// starts Unassigned, named after the client, and is created at most once per
// lead regardless of later status churn.
func createProjectForLead(txn *gorm.DB, lead *schema.Lead) error {
	project := schema.Project{
		Id:        uuid.New(),
		CompanyId: lead.CompanyId,
		LeadId:    &lead.Id,
		Name:      lead.ClientName,
		Status:    schema.ProjectUnassigned,
		CreatedAt: time.Now().UTC(),
	}
	if result := txn.Create(&project); result.Error != nil {
		return dbCreateError(result.Error, "creating project for won lead")
	}
	return nil
}

type leadInfo struct {
	Id               uuid.UUID  `json:"id"`
	ClientName       string     `json:"client_name"`
	ContactEmail     string     `json:"contact_email"`
	ContactPhone     string     `json:"contact_phone"`
	Status           string     `json:"status"`
	AssignedUserId   *uuid.UUID `json:"assigned_user_id,omitempty"`
	NextFollowUpDate *string    `json:"next_follow_up_date,omitempty"`
	ProjectCreated   bool       `json:"project_created"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toLeadInfo(lead schema.Lead) leadInfo {
	return leadInfo{
		Id:               lead.Id,
		ClientName:       lead.ClientName,
		ContactEmail:     lead.ContactEmail,
		ContactPhone:     lead.ContactPhone,
		Status:           lead.Status,
		AssignedUserId:   lead.AssignedUserId,
		NextFollowUpDate: lead.NextFollowUpDate,
		ProjectCreated:   lead.ProjectCreated,
		CreatedAt:        lead.CreatedAt,
	}
}

func (s *LeadService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	query := s.db.Where("company_id = ?", user.CompanyId)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var leads []schema.Lead
	result := query.Order("created_at DESC").Find(&leads)
	if result.Error != nil {
		slog.Error("sql error listing leads", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing leads: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]leadInfo, 0, len(leads))
	for _, lead := range leads {
		infos = append(infos, toLeadInfo(lead))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *LeadService) GetLead(w http.ResponseWriter, r *http.Request) {
	leadId, err := utils.URLParamUUID(r, "lead_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	lead, err := schema.GetLead(leadId, user.CompanyId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrLeadNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, toLeadInfo(lead))
}

type updateLeadRequest struct {
	Status           *string    `json:"status"`
	AssignedUserId   *uuid.UUID `json:"assigned_user_id"`
	NextFollowUpDate *string    `json:"next_follow_up_date"`
	ContactEmail     *string    `json:"contact_email"`
	ContactPhone     *string    `json:"contact_phone"`
}

// UpdateLead applies a partial update. Moving the status to Won creates the
// delivery project exactly once: the project_created flag is flipped in the
// same transaction and checked before creating, so re-winning a lead that was
// moved away from Won and back is a no-op on the project side.
func (s *LeadService) UpdateLead(w http.ResponseWriter, r *http.Request) {
	leadId, err := utils.URLParamUUID(r, "lead_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateLeadRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Status != nil && *params.Status == "" {
		http.Error(w, "lead status cannot be empty", http.StatusBadRequest)
		return
	}
	if params.NextFollowUpDate != nil && *params.NextFollowUpDate != "" {
		if _, err := utils.ParseDate(*params.NextFollowUpDate); err != nil {
			http.Error(w, fmt.Sprintf("invalid follow up date: %v", err), http.StatusBadRequest)
			return
		}
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var wonNow bool

	err = s.db.Transaction(func(txn *gorm.DB) error {
		lead, err := schema.GetLead(leadId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrLeadNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		updates := map[string]interface{}{}
		if params.Status != nil {
			updates["status"] = *params.Status
		}
		if params.AssignedUserId != nil {
			if err := checkUserExists(txn, *params.AssignedUserId, user.CompanyId); err != nil {
				return err
			}
			updates["assigned_user_id"] = *params.AssignedUserId
		}
		if params.NextFollowUpDate != nil {
			updates["next_follow_up_date"] = *params.NextFollowUpDate
		}
		if params.ContactEmail != nil {
			updates["contact_email"] = *params.ContactEmail
		}
		if params.ContactPhone != nil {
			updates["contact_phone"] = *params.ContactPhone
		}

		if params.Status != nil && *params.Status == schema.LeadWon && !lead.ProjectCreated {
			if err := createProjectForLead(txn, &lead); err != nil {
				return err
			}
			updates["project_created"] = true
			wonNow = true
		}

		if len(updates) == 0 {
			return nil
		}

		// Guard on project_created so two concurrent Won updates cannot both
		// create a project.
		query := txn.Model(&schema.Lead{}).Where("id = ?", leadId)
		if wonNow {
			query = query.Where("project_created = ?", false)
		}
		result := query.Updates(updates)
		if result.Error != nil {
			slog.Error("sql error updating lead", "lead_id", leadId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("lead was updated concurrently, retry"), http.StatusConflict)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating lead: %v", err), GetResponseCode(err))
		return
	}

	if wonNow {
		leadsWon.Inc()
	}

	utils.WriteSuccess(w)
}
