package auth

import (
	"log/slog"

	"workforce_platform/workforce/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FeatureInfo struct {
	Id   uuid.UUID `json:"-"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

type PageInfo struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Route string `json:"route"`
}

// ResolveFeatures computes the effective feature set for a user. Company
// admins see every feature currently enabled for the company regardless of
// their roles. Other users see the distinct features granted via their roles,
// filtered by what the company currently has enabled, so disabling a company
// feature removes it from every role holder on the next call. Resolution is
// side effect free and runs against live rows, never a stored snapshot.
func ResolveFeatures(user schema.User, db *gorm.DB) ([]FeatureInfo, error) {
	features := make([]FeatureInfo, 0)

	var result *gorm.DB
	if user.IsCompanyAdmin {
		result = db.Table("company_features").
			Select("features.id, features.code, features.name").
			Joins("JOIN features ON features.id = company_features.feature_id").
			Where("company_features.company_id = ? AND company_features.enabled = ?", user.CompanyId, true).
			Order("features.name").
			Scan(&features)
	} else {
		result = db.Table("user_roles").
			Distinct("features.id, features.code, features.name").
			Joins("JOIN roles ON roles.id = user_roles.role_id").
			Joins("JOIN role_features ON role_features.role_id = roles.id").
			Joins("JOIN features ON features.id = role_features.feature_id").
			Joins("JOIN company_features ON company_features.feature_id = features.id AND company_features.company_id = roles.company_id").
			Where("user_roles.user_id = ? AND roles.company_id = ? AND company_features.enabled = ?", user.Id, user.CompanyId, true).
			Order("features.name").
			Scan(&features)
	}

	if result.Error != nil {
		slog.Error("sql error resolving user features", "user_id", user.Id, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	return features, nil
}

// ResolvePages returns the distinct pages reachable from the given feature
// set. An empty feature set short circuits without a query.
func ResolvePages(features []FeatureInfo, db *gorm.DB) ([]PageInfo, error) {
	pages := make([]PageInfo, 0)
	if len(features) == 0 {
		return pages, nil
	}

	featureIds := make([]uuid.UUID, 0, len(features))
	for _, feature := range features {
		featureIds = append(featureIds, feature.Id)
	}

	result := db.Table("pages").
		Distinct("pages.code, pages.name, pages.route").
		Where("pages.feature_id IN ?", featureIds).
		Order("pages.code").
		Scan(&pages)
	if result.Error != nil {
		slog.Error("sql error resolving pages", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	return pages, nil
}
