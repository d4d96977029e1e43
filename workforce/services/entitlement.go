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

// EntitlementService owns the per-company enabled feature set and the
// subscription state that gates it.
type EntitlementService struct {
	db       *gorm.DB
	userAuth *auth.SessionProvider
}

func (s *EntitlementService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/plans", s.ListPlans)

	r.Group(func(r chi.Router) {
		r.Use(auth.AdminOnly(s.db))

		r.Get("/features", s.ListFeatures)
		r.Post("/features/{feature_id}/enable", s.EnableFeature)
		r.Post("/features/{feature_id}/disable", s.DisableFeature)

		r.Get("/subscription", s.CurrentSubscription)
		r.Post("/subscribe", s.Subscribe)
		r.Post("/subscription/cancel", s.CancelSubscription)
	})

	return r
}

type planInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (s *EntitlementService) ListPlans(w http.ResponseWriter, r *http.Request) {
	var plans []schema.Plan
	result := s.db.Order("name").Find(&plans)
	if result.Error != nil {
		slog.Error("sql error listing plans", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing plans: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]planInfo, 0, len(plans))
	for _, plan := range plans {
		infos = append(infos, planInfo{Id: plan.Id, Name: plan.Name})
	}
	utils.WriteJsonResponse(w, infos)
}

type companyFeatureInfo struct {
	FeatureId uuid.UUID `json:"feature_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
}

func (s *EntitlementService) ListFeatures(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]companyFeatureInfo, 0)
	result := s.db.Table("features").
		Select("features.id AS feature_id, features.code, features.name, COALESCE(company_features.enabled, ?) AS enabled", false).
		Joins("LEFT JOIN company_features ON company_features.feature_id = features.id AND company_features.company_id = ?", user.CompanyId).
		Order("features.name").
		Scan(&infos)
	if result.Error != nil {
		slog.Error("sql error listing company features", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing features: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, infos)
}

func checkActiveSubscription(txn *gorm.DB, companyId uuid.UUID) error {
	var subscription schema.Subscription
	result := txn.Limit(1).Find(&subscription, "company_id = ? AND status = ?", companyId, schema.SubscriptionActive)
	if result.Error != nil {
		slog.Error("sql error checking active subscription", "company_id", companyId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return CodedError(errors.New("company has no active subscription"), http.StatusConflict)
	}
	return nil
}

func (s *EntitlementService) setFeatureEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
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
		if err := checkActiveSubscription(txn, user.CompanyId); err != nil {
			return err
		}

		if err := checkFeatureExists(txn, featureId); err != nil {
			return err
		}

		entry := schema.CompanyFeature{CompanyId: user.CompanyId, FeatureId: featureId, Enabled: enabled}
		result := txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "feature_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled"}),
		}).Create(&entry)
		if result.Error != nil {
			slog.Error("sql error updating company feature", "feature_id", featureId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating feature entitlement: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *EntitlementService) EnableFeature(w http.ResponseWriter, r *http.Request) {
	s.setFeatureEnabled(w, r, true)
}

// DisableFeature only flips the company flag. RoleFeature rows referencing
// the feature are kept and masked by the resolver at read time, so a later
// re-enable restores existing role grants.
func (s *EntitlementService) DisableFeature(w http.ResponseWriter, r *http.Request) {
	s.setFeatureEnabled(w, r, false)
}

type subscriptionInfo struct {
	Id           uuid.UUID `json:"id"`
	PlanId       uuid.UUID `json:"plan_id"`
	PlanName     string    `json:"plan_name"`
	Status       string    `json:"status"`
	BillingCycle string    `json:"billing_cycle"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

func (s *EntitlementService) CurrentSubscription(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var subscription schema.Subscription
	result := s.db.Preload("Plan").First(&subscription, "company_id = ? AND status = ?", user.CompanyId, schema.SubscriptionActive)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, schema.ErrSubscriptionNotFound.Error(), http.StatusNotFound)
			return
		}
		slog.Error("sql error loading subscription", "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading subscription: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	info := subscriptionInfo{
		Id:           subscription.Id,
		PlanId:       subscription.PlanId,
		Status:       subscription.Status,
		BillingCycle: subscription.BillingCycle,
		StartDate:    subscription.StartDate,
		EndDate:      subscription.EndDate,
	}
	if subscription.Plan != nil {
		info.PlanName = subscription.Plan.Name
	}
	utils.WriteJsonResponse(w, info)
}

type subscribeRequest struct {
	PlanId       uuid.UUID `json:"plan_id"`
	BillingCycle string    `json:"billing_cycle"`
}

type subscribeResponse struct {
	SubscriptionId uuid.UUID `json:"subscription_id"`
}

func (s *EntitlementService) Subscribe(w http.ResponseWriter, r *http.Request) {
	var params subscribeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidBillingCycle(params.BillingCycle); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	period := 30 * 24 * time.Hour
	if params.BillingCycle == schema.BillingYearly {
		period = 365 * 24 * time.Hour
	}

	newSubscription := schema.Subscription{
		Id:           uuid.New(),
		CompanyId:    user.CompanyId,
		PlanId:       params.PlanId,
		Status:       schema.SubscriptionActive,
		BillingCycle: params.BillingCycle,
		StartDate:    now,
		EndDate:      now.Add(period),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var plan schema.Plan
		result := txn.First(&plan, "id = ?", params.PlanId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(errors.New("plan not found"), http.StatusNotFound)
			}
			slog.Error("sql error loading plan", "plan_id", params.PlanId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		var existing schema.Subscription
		result = txn.Limit(1).Find(&existing, "company_id = ? AND status = ?", user.CompanyId, schema.SubscriptionActive)
		if result.Error != nil {
			slog.Error("sql error checking for active subscription", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(errors.New("company already has an active subscription"), http.StatusConflict)
		}

		// The partial unique index on (company_id) WHERE status = 'active'
		// rejects concurrent subscribe races that pass the check above.
		if result := txn.Create(&newSubscription); result.Error != nil {
			return dbCreateError(result.Error, "creating subscription")
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating subscription: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, subscribeResponse{SubscriptionId: newSubscription.Id})
}

func (s *EntitlementService) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := s.db.Model(&schema.Subscription{}).
		Where("company_id = ? AND status = ?", user.CompanyId, schema.SubscriptionActive).
		Update("status", schema.SubscriptionCancelled)
	if result.Error != nil {
		slog.Error("sql error cancelling subscription", "error", result.Error)
		http.Error(w, fmt.Sprintf("error cancelling subscription: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "company has no active subscription", http.StatusConflict)
		return
	}

	utils.WriteSuccess(w)
}
