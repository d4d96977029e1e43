package services

import (
	"fmt"
	"log/slog"
	"math"
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

// AttendanceService owns the per-user per-day attendance ledger. Days with no
// row are reported as Unmarked but never stored.
type AttendanceService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *AttendanceService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/summary/{user_id}", s.MonthlySummary)

	r.Group(func(r chi.Router) {
		r.Use(auth.HrOrAdminOnly(s.db))

		r.Post("/mark", s.Mark)
		r.Get("/day", s.DayRoster)
		r.Get("/day/counts", s.DayCounts)
	})

	return r
}

type markAttendanceRequest struct {
	UserId uuid.UUID `json:"user_id"`
	Date   string    `json:"date"`
	Status string    `json:"status"`
}

func (s *AttendanceService) Mark(w http.ResponseWriter, r *http.Request) {
	var params markAttendanceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if _, err := utils.ParseDate(params.Date); err != nil {
		http.Error(w, fmt.Sprintf("invalid date: %v", err), http.StatusBadRequest)
		return
	}

	if err := schema.CheckValidAttendanceStatus(params.Status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkUserExists(txn, params.UserId, user.CompanyId); err != nil {
			return err
		}

		return upsertAttendance(txn, user.CompanyId, params.UserId, params.Date, params.Status, user.Id)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error marking attendance: %v", err), GetResponseCode(err))
		return
	}

	attendanceMarked.Inc()

	utils.WriteSuccess(w)
}

// upsertAttendance writes the attendance row for (company, user, date),
// overwriting any existing status for that day. Shared with leave approval,
// which fans approved days out through the same path.
func upsertAttendance(txn *gorm.DB, companyId, userId uuid.UUID, date, status string, markedBy uuid.UUID) error {
	entry := schema.Attendance{
		Id:        uuid.New(),
		CompanyId: companyId,
		UserId:    userId,
		Date:      date,
		Status:    status,
		MarkedBy:  markedBy,
		MarkedAt:  time.Now().UTC(),
	}

	result := txn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "marked_by", "marked_at"}),
	}).Create(&entry)
	if result.Error != nil {
		slog.Error("sql error upserting attendance", "user_id", userId, "date", date, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

type dayRosterEntry struct {
	UserId uuid.UUID `json:"user_id"`
	EmpId  string    `json:"emp_id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

func (s *AttendanceService) DayRoster(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := utils.ParseDate(date); err != nil {
		http.Error(w, fmt.Sprintf("invalid date: %v", err), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Active users with no row for the day surface as Unmarked.
	entries := make([]dayRosterEntry, 0)
	result := s.db.Table("users").
		Select("users.id AS user_id, users.emp_id, users.name, COALESCE(attendances.status, ?) AS status", schema.Unmarked).
		Joins("LEFT JOIN attendances ON attendances.user_id = users.id AND attendances.company_id = users.company_id AND attendances.date = ?", date).
		Where("users.company_id = ? AND users.status = ?", user.CompanyId, schema.Active).
		Order("users.name").
		Scan(&entries)
	if result.Error != nil {
		slog.Error("sql error loading day roster", "date", date, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading roster: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, entries)
}

type dayCountsResponse struct {
	Date     string `json:"date"`
	Present  int64  `json:"present"`
	Absent   int64  `json:"absent"`
	OnLeave  int64  `json:"on_leave"`
	Unmarked int64  `json:"unmarked"`
}

func (s *AttendanceService) DayCounts(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := utils.ParseDate(date); err != nil {
		http.Error(w, fmt.Sprintf("invalid date: %v", err), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var rows []struct {
		Status string
		Count  int64
	}
	// Only active users count, matching the roster. Deactivated users can
	// still have rows for the day.
	result := s.db.Model(&schema.Attendance{}).
		Select("attendances.status, COUNT(*) AS count").
		Joins("JOIN users ON users.id = attendances.user_id").
		Where("attendances.company_id = ? AND attendances.date = ? AND users.status = ?", user.CompanyId, date, schema.Active).
		Group("attendances.status").
		Scan(&rows)
	if result.Error != nil {
		slog.Error("sql error counting attendance", "date", date, "error", result.Error)
		http.Error(w, fmt.Sprintf("error counting attendance: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	var activeUsers int64
	result = s.db.Model(&schema.User{}).
		Where("company_id = ? AND status = ?", user.CompanyId, schema.Active).
		Count(&activeUsers)
	if result.Error != nil {
		slog.Error("sql error counting active users", "error", result.Error)
		http.Error(w, fmt.Sprintf("error counting attendance: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	counts := dayCountsResponse{Date: date}
	var marked int64
	for _, row := range rows {
		switch row.Status {
		case schema.Present:
			counts.Present = row.Count
		case schema.Absent:
			counts.Absent = row.Count
		case schema.OnLeave:
			counts.OnLeave = row.Count
		}
		marked += row.Count
	}
	if activeUsers > marked {
		counts.Unmarked = activeUsers - marked
	}

	utils.WriteJsonResponse(w, counts)
}

type monthlySummaryResponse struct {
	UserId     uuid.UUID `json:"user_id"`
	Month      string    `json:"month"`
	Present    int64     `json:"present"`
	Absent     int64     `json:"absent"`
	OnLeave    int64     `json:"on_leave"`
	Percentage float64   `json:"percentage"`
}

// MonthlySummary reports a user's attendance for a calendar month. Users can
// always read their own summary, HR and admins can read anyone's.
func (s *AttendanceService) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	month := r.URL.Query().Get("month")
	if _, err := time.Parse("2006-01", month); err != nil {
		http.Error(w, fmt.Sprintf("invalid month, expected YYYY-MM: %v", err), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !auth.IsSelf(user, userId) {
		ok, err := auth.IsHrOrAdmin(user, s.db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "user does not have permission to view this attendance summary", http.StatusForbidden)
			return
		}
	}

	if err := checkUserExists(s.db, userId, user.CompanyId); err != nil {
		http.Error(w, fmt.Sprintf("error loading attendance summary: %v", err), GetResponseCode(err))
		return
	}

	var rows []struct {
		Status string
		Count  int64
	}
	result := s.db.Model(&schema.Attendance{}).
		Select("status, COUNT(*) AS count").
		Where("company_id = ? AND user_id = ? AND date LIKE ?", user.CompanyId, userId, month+"-%").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		slog.Error("sql error loading attendance summary", "user_id", userId, "month", month, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading attendance summary: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	summary := monthlySummaryResponse{UserId: userId, Month: month}
	for _, row := range rows {
		switch row.Status {
		case schema.Present:
			summary.Present = row.Count
		case schema.Absent:
			summary.Absent = row.Count
		case schema.OnLeave:
			summary.OnLeave = row.Count
		}
	}

	total := summary.Present + summary.Absent + summary.OnLeave
	if total > 0 {
		summary.Percentage = math.Round(float64(summary.Present)/float64(total)*10000) / 100
	}

	utils.WriteJsonResponse(w, summary)
}
