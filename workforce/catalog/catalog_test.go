package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"workforce_platform/workforce/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testCatalogYaml = `
features:
  - code: attendance
    name: Attendance
    pages:
      - code: attendance-dashboard
        name: Attendance Dashboard
        route: /attendance
  - code: leave
    name: Leave Management
    pages:
      - code: leave-requests
        name: Leave Requests
        route: /leave

plans:
  - name: Starter
  - name: Business
`

func writeCatalog(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	return path
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := Load(writeCatalog(t, testCatalogYaml))
	require.NoError(t, err)

	require.Len(t, catalog.Features, 2)
	assert.Equal(t, "attendance", catalog.Features[0].Code)
	assert.Equal(t, "/attendance", catalog.Features[0].Pages[0].Route)
	require.Len(t, catalog.Plans, 2)
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	dupFeature := `
features:
  - code: attendance
    name: Attendance
  - code: attendance
    name: Attendance Again
`
	_, err := Load(writeCatalog(t, dupFeature))
	assert.ErrorContains(t, err, "duplicate feature code")

	dupPlan := `
plans:
  - name: Starter
  - name: Starter
`
	_, err = Load(writeCatalog(t, dupPlan))
	assert.ErrorContains(t, err, "duplicate plan name")

	missingRoute := `
features:
  - code: attendance
    name: Attendance
    pages:
      - code: dashboard
        name: Dashboard
`
	_, err = Load(writeCatalog(t, missingRoute))
	assert.ErrorContains(t, err, "missing code or route")
}

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&schema.Feature{}, &schema.Page{}, &schema.Plan{}))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := setupDb(t)

	catalog, err := Load(writeCatalog(t, testCatalogYaml))
	require.NoError(t, err)

	require.NoError(t, Seed(db, catalog))
	require.NoError(t, Seed(db, catalog))

	var features []schema.Feature
	require.NoError(t, db.Find(&features).Error)
	assert.Len(t, features, 2)

	var plans []schema.Plan
	require.NoError(t, db.Find(&plans).Error)
	assert.Len(t, plans, 2)
}

func TestSeedPreservesFeatureIdentity(t *testing.T) {
	db := setupDb(t)

	catalog, err := Load(writeCatalog(t, testCatalogYaml))
	require.NoError(t, err)
	require.NoError(t, Seed(db, catalog))

	var before schema.Feature
	require.NoError(t, db.First(&before, "code = ?", "attendance").Error)

	// A rename keeps the feature id stable so role grants stay valid.
	catalog.Features[0].Name = "Attendance v2"
	require.NoError(t, Seed(db, catalog))

	var after schema.Feature
	require.NoError(t, db.First(&after, "code = ?", "attendance").Error)
	assert.Equal(t, before.Id, after.Id)
	assert.Equal(t, "Attendance v2", after.Name)
}
