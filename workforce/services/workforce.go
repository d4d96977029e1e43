package services

import (
	"log"
	"net/http"
	"os"
	"time"
	"workforce_platform/utils"
	"workforce_platform/workforce/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

// Workforce bundles the platform services behind a single router.
type Workforce struct {
	user        UserService
	role        RoleService
	entitlement EntitlementService
	team        TeamService
	attendance  AttendanceService
	leave       LeaveService
	lead        LeadService
	project     ProjectService

	db       *gorm.DB
	userAuth *auth.SessionProvider
	stop     chan bool
}

func NewWorkforce(db *gorm.DB, userAuth *auth.SessionProvider) Workforce {
	return Workforce{
		user:        UserService{db: db, userAuth: userAuth},
		role:        RoleService{db: db, userAuth: userAuth},
		entitlement: EntitlementService{db: db, userAuth: userAuth},
		team:        TeamService{db: db, userAuth: userAuth},
		attendance:  AttendanceService{db: db, userAuth: userAuth},
		leave:       LeaveService{db: db, userAuth: userAuth},
		lead:        LeadService{db: db, userAuth: userAuth},
		project:     ProjectService{db: db, userAuth: userAuth},
		db:          db,
		userAuth:    userAuth,
		stop:        make(chan bool, 1),
	}
}

func (m *Workforce) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", m.user.Routes())
	r.Mount("/role", m.role.Routes())
	r.Mount("/entitlement", m.entitlement.Routes())
	r.Mount("/team", m.team.Routes())
	r.Mount("/attendance", m.attendance.Routes())
	r.Mount("/leave", m.leave.Routes())
	r.Mount("/lead", m.lead.Routes())
	r.Mount("/project", m.project.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

// StartSessionSweeper launches the background cleanup of expired session
// rows. StopSessionSweeper shuts it down.
func (m *Workforce) StartSessionSweeper(interval time.Duration) {
	go m.userAuth.SweepExpiredSessions(interval, m.stop)
}

func (m *Workforce) StopSessionSweeper() {
	close(m.stop)
}
