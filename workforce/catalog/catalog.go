package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"workforce_platform/workforce/schema"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Catalog is the platform-wide definition of features, their pages, and the
// subscription plans. It is loaded from a yaml file at startup and seeded
// into the database, re-seeding is idempotent.
type Catalog struct {
	Features []FeatureSpec `yaml:"features"`
	Plans    []PlanSpec    `yaml:"plans"`
}

type FeatureSpec struct {
	Code  string     `yaml:"code"`
	Name  string     `yaml:"name"`
	Pages []PageSpec `yaml:"pages"`
}

type PageSpec struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Route string `yaml:"route"`
}

type PlanSpec struct {
	Name string `yaml:"name"`
}

func Load(path string) (Catalog, error) {
	var catalog Catalog

	data, err := os.ReadFile(path)
	if err != nil {
		return catalog, fmt.Errorf("error reading catalog file '%v': %w", path, err)
	}

	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return catalog, fmt.Errorf("error parsing catalog file '%v': %w", path, err)
	}

	return catalog.validate()
}

func (c Catalog) validate() (Catalog, error) {
	seenFeatures := map[string]bool{}
	for _, feature := range c.Features {
		if feature.Code == "" || feature.Name == "" {
			return c, fmt.Errorf("catalog feature is missing code or name")
		}
		if seenFeatures[feature.Code] {
			return c, fmt.Errorf("duplicate feature code '%v' in catalog", feature.Code)
		}
		seenFeatures[feature.Code] = true

		seenPages := map[string]bool{}
		for _, page := range feature.Pages {
			if page.Code == "" || page.Route == "" {
				return c, fmt.Errorf("page in feature '%v' is missing code or route", feature.Code)
			}
			if seenPages[page.Code] {
				return c, fmt.Errorf("duplicate page code '%v' in feature '%v'", page.Code, feature.Code)
			}
			seenPages[page.Code] = true
		}
	}

	seenPlans := map[string]bool{}
	for _, plan := range c.Plans {
		if plan.Name == "" {
			return c, fmt.Errorf("catalog plan is missing name")
		}
		if seenPlans[plan.Name] {
			return c, fmt.Errorf("duplicate plan name '%v' in catalog", plan.Name)
		}
		seenPlans[plan.Name] = true
	}

	return c, nil
}

// Seed writes the catalog into the database. Features are matched by code and
// plans by name, so rerunning with an updated catalog refreshes names and
// pages without changing identities referenced by role grants.
func Seed(db *gorm.DB, catalog Catalog) error {
	return db.Transaction(func(txn *gorm.DB) error {
		for _, spec := range catalog.Features {
			if err := seedFeature(txn, spec); err != nil {
				return err
			}
		}

		for _, spec := range catalog.Plans {
			plan := schema.Plan{Id: uuid.New(), Name: spec.Name}
			result := txn.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&plan)
			if result.Error != nil {
				return fmt.Errorf("error seeding plan '%v': %w", spec.Name, result.Error)
			}
		}

		return nil
	})
}

func seedFeature(txn *gorm.DB, spec FeatureSpec) error {
	var feature schema.Feature
	result := txn.Limit(1).Find(&feature, "code = ?", spec.Code)
	if result.Error != nil {
		return fmt.Errorf("error loading feature '%v': %w", spec.Code, result.Error)
	}

	if result.RowsAffected == 0 {
		feature = schema.Feature{Id: uuid.New(), Code: spec.Code, Name: spec.Name}
		if result := txn.Create(&feature); result.Error != nil {
			return fmt.Errorf("error seeding feature '%v': %w", spec.Code, result.Error)
		}
		slog.Info("catalog: created feature", "code", spec.Code)
	} else if feature.Name != spec.Name {
		if result := txn.Model(&feature).Update("name", spec.Name); result.Error != nil {
			return fmt.Errorf("error renaming feature '%v': %w", spec.Code, result.Error)
		}
	}

	// Pages are replaced wholesale, the catalog is their source of truth.
	if result := txn.Delete(&schema.Page{}, "feature_id = ?", feature.Id); result.Error != nil {
		return fmt.Errorf("error clearing pages for feature '%v': %w", spec.Code, result.Error)
	}

	for _, pageSpec := range spec.Pages {
		page := schema.Page{
			Id:        uuid.New(),
			FeatureId: feature.Id,
			Code:      pageSpec.Code,
			Name:      pageSpec.Name,
			Route:     pageSpec.Route,
		}
		if result := txn.Create(&page); result.Error != nil {
			return fmt.Errorf("error seeding page '%v': %w", pageSpec.Code, result.Error)
		}
	}

	return nil
}
