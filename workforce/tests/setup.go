package tests

import (
	"bytes"
	"testing"
	"time"
	"workforce_platform/workforce/auth"
	"workforce_platform/workforce/catalog"
	"workforce_platform/workforce/schema"
	"workforce_platform/workforce/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	workforce services.Workforce
	api       chi.Router
	db        *gorm.DB

	companyId uuid.UUID
	adminId   uuid.UUID
}

const (
	adminEmpId    = "admin001"
	adminEmail    = "admin@acme.test"
	adminPassword = "admin_password123"
)

var testCatalog = catalog.Catalog{
	Features: []catalog.FeatureSpec{
		{Code: "attendance", Name: "Attendance", Pages: []catalog.PageSpec{
			{Code: "attendance-dashboard", Name: "Attendance Dashboard", Route: "/attendance"},
		}},
		{Code: "leave", Name: "Leave Management", Pages: []catalog.PageSpec{
			{Code: "leave-requests", Name: "Leave Requests", Route: "/leave"},
			{Code: "leave-approvals", Name: "Leave Approvals", Route: "/leave/approvals"},
		}},
		{Code: "crm", Name: "Sales Pipeline", Pages: []catalog.PageSpec{
			{Code: "leads", Name: "Leads", Route: "/crm/leads"},
		}},
		{Code: "projects", Name: "Project Management", Pages: []catalog.PageSpec{
			{Code: "project-list", Name: "Projects", Route: "/projects"},
		}},
	},
	Plans: []catalog.PlanSpec{
		{Name: "Starter"}, {Name: "Business"},
	},
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(
		&schema.Company{}, &schema.Plan{}, &schema.Subscription{},
		&schema.Feature{}, &schema.Page{}, &schema.CompanyFeature{},
		&schema.Role{}, &schema.RoleFeature{},
		&schema.User{}, &schema.UserRole{}, &schema.Session{},
		&schema.Attendance{}, &schema.LeaveRequest{},
		&schema.Lead{}, &schema.Team{}, &schema.TeamMember{},
		&schema.Project{}, &schema.ProjectPlanning{}, &schema.Task{},
		&schema.ProjectStatusLog{}, &schema.TaskUpdate{},
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := catalog.Seed(db, testCatalog); err != nil {
		t.Fatal(err)
	}

	company := schema.Company{Id: uuid.New(), Name: "Acme", Status: schema.Active}
	if err := db.Create(&company).Error; err != nil {
		t.Fatal(err)
	}

	password, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 10)
	if err != nil {
		t.Fatal(err)
	}
	admin := schema.User{
		Id:             uuid.New(),
		CompanyId:      company.Id,
		EmpId:          adminEmpId,
		Name:           "Admin",
		Email:          adminEmail,
		Password:       password,
		Status:         schema.Active,
		IsCompanyAdmin: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatal(err)
	}

	userAuth := auth.NewSessionProvider(db, auth.NewAuditLogger(new(bytes.Buffer)), auth.SessionProviderArgs{
		Secret:      []byte("290zcv02ai249"),
		TokenExpiry: time.Hour,
	})

	workforce := services.NewWorkforce(db, userAuth)

	return &testEnv{
		workforce: workforce,
		api:       workforce.Routes(),
		db:        db,
		companyId: company.Id,
		adminId:   admin.Id,
	}
}

func (t *testEnv) newClient() client {
	return client{api: t.api, companyId: t.companyId}
}

func (t *testEnv) adminClient(test *testing.T) client {
	c := t.newClient()
	if err := c.login(adminEmpId, adminPassword); err != nil {
		test.Fatal(err)
	}
	return c
}

// subscribe gives the company an active subscription so entitlement gated
// operations succeed.
func (t *testEnv) subscribe(test *testing.T, admin *client) {
	plans, err := admin.listPlans()
	if err != nil {
		test.Fatal(err)
	}
	if len(plans) == 0 {
		test.Fatal("no plans seeded")
	}
	if err := admin.subscribe(plans[0].Id, "monthly"); err != nil {
		test.Fatal(err)
	}
}

// newUser creates a user via the admin client and returns a logged in client
// for them.
func (t *testEnv) newUser(test *testing.T, admin *client, empId string) (client, uuid.UUID) {
	userId, err := admin.createUser(empId, empId+" User", empId+"@acme.test", empId+"_password", false)
	if err != nil {
		test.Fatal(err)
	}

	c := t.newClient()
	if err := c.login(empId, empId+"_password"); err != nil {
		test.Fatal(err)
	}

	return c, userId
}

// featureId looks up a seeded catalog feature by code.
func (t *testEnv) featureId(test *testing.T, code string) uuid.UUID {
	var feature schema.Feature
	if err := t.db.First(&feature, "code = ?", code).Error; err != nil {
		test.Fatalf("feature %v not found: %v", code, err)
	}
	return feature.Id
}
