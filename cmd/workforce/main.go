package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"workforce_platform/workforce/auth"
	"workforce_platform/workforce/catalog"
	"workforce_platform/workforce/config"
	"workforce_platform/workforce/schema"
	"workforce_platform/workforce/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func initLogging(logDir string) *os.File {
	err := os.MkdirAll(logDir, 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(logDir, "workforce.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}

	logger := slog.New(slogmulti.Fanout(
		slog.NewJSONHandler(logFile, nil),
		slog.NewTextHandler(os.Stderr, nil),
	))
	slog.SetDefault(logger)
	slog.Info("logging initialized", "log_file", logFile.Name())

	return logFile
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
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
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

// bootstrapCompany creates the first company and its admin user on an empty
// database so the platform is reachable after a fresh deploy.
func bootstrapCompany(db *gorm.DB, cfg config.Config) {
	if cfg.BootstrapCompany == "" {
		return
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Company
		result := txn.Limit(1).Find(&existing)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 0 {
			return nil
		}

		company := schema.Company{Id: uuid.New(), Name: cfg.BootstrapCompany, Status: schema.Active}
		if result := txn.Create(&company); result.Error != nil {
			return result.Error
		}

		password, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapAdminPassword), 10)
		if err != nil {
			return err
		}

		admin := schema.User{
			Id:             uuid.New(),
			CompanyId:      company.Id,
			EmpId:          cfg.BootstrapAdminEmpId,
			Name:           cfg.BootstrapAdminName,
			Email:          cfg.BootstrapAdminEmail,
			Password:       password,
			Status:         schema.Active,
			IsCompanyAdmin: true,
		}
		if result := txn.Create(&admin); result.Error != nil {
			return result.Error
		}

		slog.Info("bootstrapped company and admin", "company", company.Name, "admin", admin.EmpId)
		return nil
	})
	if err != nil {
		log.Fatalf("error bootstrapping company: %v", err)
	}
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logFile := initLogging(cfg.LogDir)
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	dsn, err := cfg.PostgresDsn()
	if err != nil {
		log.Fatalf("error building db dsn: %v", err)
	}
	db := initDb(dsn)

	platformCatalog, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("error loading catalog: %v", err)
	}
	if err := catalog.Seed(db, platformCatalog); err != nil {
		log.Fatalf("error seeding catalog: %v", err)
	}

	bootstrapCompany(db, cfg)

	userAuth := auth.NewSessionProvider(db, auth.NewAuditLogger(auditLog), auth.SessionProviderArgs{
		Secret:      []byte(cfg.JwtSecret),
		TokenExpiry: cfg.TokenExpiry,
	})

	workforce := services.NewWorkforce(db, userAuth)
	workforce.StartSessionSweeper(cfg.SweepInterval)
	defer workforce.StopSessionSweeper()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Mount("/api/v1", workforce.Routes())
	r.Handle("/metrics", promhttp.Handler())

	slog.Info("starting server", "port", cfg.Port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
