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

type LeaveService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *LeaveService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/apply", s.Apply)
	r.Get("/list", s.ListOwn)
	r.Post("/{leave_id}/cancel", s.Cancel)

	r.Group(func(r chi.Router) {
		r.Use(auth.HrOrAdminOnly(s.db))

		r.Get("/pending", s.ListPending)
		r.Post("/{leave_id}/review", s.Review)
	})

	return r
}

type applyLeaveRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type applyLeaveResponse struct {
	LeaveId   uuid.UUID `json:"leave_id"`
	TotalDays int       `json:"total_days"`
}

func (s *LeaveService) Apply(w http.ResponseWriter, r *http.Request) {
	var params applyLeaveRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Type == "" {
		http.Error(w, "leave type must be specified", http.StatusBadRequest)
		return
	}

	start, err := utils.ParseDate(params.StartDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid start date: %v", err), http.StatusBadRequest)
		return
	}
	end, err := utils.ParseDate(params.EndDate)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid end date: %v", err), http.StatusBadRequest)
		return
	}

	if end.Before(start) {
		http.Error(w, "end date cannot be before start date", http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Both endpoints are inclusive, a single day leave has total_days = 1.
	totalDays := int(end.Sub(start).Hours()/24) + 1

	leave := schema.LeaveRequest{
		Id:        uuid.New(),
		CompanyId: user.CompanyId,
		UserId:    user.Id,
		Type:      params.Type,
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		TotalDays: totalDays,
		Reason:    params.Reason,
		Status:    schema.LeavePending,
		CreatedAt: time.Now().UTC(),
	}

	if result := s.db.Create(&leave); result.Error != nil {
		err := dbCreateError(result.Error, "creating leave request")
		http.Error(w, fmt.Sprintf("error applying for leave: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, applyLeaveResponse{LeaveId: leave.Id, TotalDays: totalDays})
}

type leaveInfo struct {
	Id          uuid.UUID  `json:"id"`
	UserId      uuid.UUID  `json:"user_id"`
	Type        string     `json:"type"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	TotalDays   int        `json:"total_days"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func leaveInfos(leaves []schema.LeaveRequest) []leaveInfo {
	infos := make([]leaveInfo, 0, len(leaves))
	for _, leave := range leaves {
		infos = append(infos, leaveInfo{
			Id:          leave.Id,
			UserId:      leave.UserId,
			Type:        leave.Type,
			StartDate:   leave.StartDate,
			EndDate:     leave.EndDate,
			TotalDays:   leave.TotalDays,
			Reason:      leave.Reason,
			Status:      leave.Status,
			ReviewedBy:  leave.ReviewedBy,
			ReviewNotes: leave.ReviewNotes,
			CreatedAt:   leave.CreatedAt,
		})
	}
	return infos
}

func (s *LeaveService) ListOwn(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var leaves []schema.LeaveRequest
	result := s.db.Where("company_id = ? AND user_id = ?", user.CompanyId, user.Id).Order("created_at DESC").Find(&leaves)
	if result.Error != nil {
		slog.Error("sql error listing leave requests", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing leave requests: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, leaveInfos(leaves))
}

func (s *LeaveService) ListPending(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var leaves []schema.LeaveRequest
	result := s.db.Where("company_id = ? AND status = ?", user.CompanyId, schema.LeavePending).Order("created_at").Find(&leaves)
	if result.Error != nil {
		slog.Error("sql error listing pending leave requests", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing leave requests: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, leaveInfos(leaves))
}

// Cancel withdraws the caller's own leave request. Only pending requests can
// be cancelled, reviewed requests are final.
func (s *LeaveService) Cancel(w http.ResponseWriter, r *http.Request) {
	leaveId, err := utils.URLParamUUID(r, "leave_id")
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
		leave, err := schema.GetLeaveRequest(leaveId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrLeaveNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if leave.UserId != user.Id {
			return CodedError(errors.New("only the requester can cancel a leave request"), http.StatusForbidden)
		}

		result := txn.Model(&schema.LeaveRequest{}).
			Where("id = ? AND status = ?", leaveId, schema.LeavePending).
			Update("status", schema.LeaveCancelled)
		if result.Error != nil {
			slog.Error("sql error cancelling leave request", "leave_id", leaveId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("leave request is already %v", leave.Status), http.StatusConflict)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error cancelling leave request: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type reviewLeaveRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// Review decides a pending leave request. Approval writes a Leave attendance
// row for every day in the range, in the same transaction as the status
// change, so a request is never approved with a partially written ledger.
func (s *LeaveService) Review(w http.ResponseWriter, r *http.Request) {
	leaveId, err := utils.URLParamUUID(r, "leave_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params reviewLeaveRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newStatus := schema.LeaveRejected
	if params.Approve {
		newStatus = schema.LeaveApproved
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		leave, err := schema.GetLeaveRequest(leaveId, user.CompanyId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrLeaveNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		now := time.Now().UTC()
		result := txn.Model(&schema.LeaveRequest{}).
			Where("id = ? AND status = ?", leaveId, schema.LeavePending).
			Updates(map[string]interface{}{
				"status":       newStatus,
				"reviewed_by":  user.Id,
				"reviewed_at":  now,
				"review_notes": params.Notes,
			})
		if result.Error != nil {
			slog.Error("sql error reviewing leave request", "leave_id", leaveId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("leave request is already %v", leave.Status), http.StatusConflict)
		}

		if !params.Approve {
			return nil
		}

		start, err := utils.ParseDate(leave.StartDate)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		end, err := utils.ParseDate(leave.EndDate)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			err := upsertAttendance(txn, leave.CompanyId, leave.UserId, utils.FormatDate(day), schema.OnLeave, user.Id)
			if err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error reviewing leave request: %v", err), GetResponseCode(err))
		return
	}

	if params.Approve {
		leaveDecisions.WithLabelValues("approved").Inc()
	} else {
		leaveDecisions.WithLabelValues("rejected").Inc()
	}

	utils.WriteSuccess(w)
}
