package schema

import (
	"time"

	"github.com/google/uuid"
)

type Company struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name   string `gorm:"size:200;not null"`
	Status string `gorm:"size:50;not null;default:'active'"`

	Subscriptions []Subscription `gorm:"constraint:OnDelete:CASCADE"`
	Features      []CompanyFeature `gorm:"constraint:OnDelete:CASCADE"`
}

type Plan struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:100;not null"`
}

type Subscription struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index:idx_company_active_subscription,unique,where:status = 'active'"`
	PlanId    uuid.UUID `gorm:"type:uuid;not null"`

	Status       string `gorm:"size:50;not null"`
	BillingCycle string `gorm:"size:50;not null"`

	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time

	Plan *Plan
}

type Feature struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Code string `gorm:"unique;size:100;not null"`
	Name string `gorm:"size:200;not null"`

	Pages []Page `gorm:"constraint:OnDelete:CASCADE"`
}

type Page struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FeatureId uuid.UUID `gorm:"type:uuid;not null"`

	Code  string `gorm:"size:100;not null"`
	Name  string `gorm:"size:200;not null"`
	Route string `gorm:"size:200;not null"`
}

type CompanyFeature struct {
	CompanyId uuid.UUID `gorm:"type:uuid;primaryKey"`
	FeatureId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Enabled bool `gorm:"not null;default:false"`

	Feature *Feature `gorm:"constraint:OnDelete:CASCADE"`
}

type Role struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name string `gorm:"size:100;not null"`

	Features []RoleFeature `gorm:"constraint:OnDelete:CASCADE"`
}

type RoleFeature struct {
	RoleId    uuid.UUID `gorm:"type:uuid;primaryKey"`
	FeatureId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Role    *Role    `gorm:"constraint:OnDelete:CASCADE"`
	Feature *Feature `gorm:"constraint:OnDelete:CASCADE"`
}

type User struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyId uuid.UUID `gorm:"type:uuid;not null;index;index:idx_company_emp_id,unique,priority:1;index:idx_company_email,unique,priority:1"`

	EmpId string `gorm:"size:50;not null;index:idx_company_emp_id,unique,priority:2"`
	Name  string `gorm:"size:200;not null"`
	Email string `gorm:"size:254;index:idx_company_email,unique,priority:2"`

	Password []byte

	Status         string `gorm:"size:50;not null;default:'active'"`
	IsCompanyAdmin bool   `gorm:"not null;default:false"`

	CreatedAt time.Time

	Roles []UserRole `gorm:"constraint:OnDelete:CASCADE"`
}

type UserRole struct {
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoleId uuid.UUID `gorm:"type:uuid;primaryKey"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
	Role *Role `gorm:"constraint:OnDelete:CASCADE"`
}

type Session struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`
	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`

	IpAddress string `gorm:"size:100"`
	UserAgent string `gorm:"size:500"`

	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type Attendance struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index:idx_attendance_day,unique,priority:1"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index:idx_attendance_day,unique,priority:2"`
	Date      string    `gorm:"size:10;not null;index:idx_attendance_day,unique,priority:3"`

	Status string `gorm:"size:50;not null"`

	MarkedBy uuid.UUID `gorm:"type:uuid;not null"`
	MarkedAt time.Time `gorm:"not null"`
}

type LeaveRequest struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`

	Type      string `gorm:"size:50;not null"`
	StartDate string `gorm:"size:10;not null"`
	EndDate   string `gorm:"size:10;not null"`
	TotalDays int    `gorm:"not null"`
	Reason    string

	Status string `gorm:"size:50;not null"`

	ReviewedBy  *uuid.UUID `gorm:"type:uuid"`
	ReviewedAt  *time.Time
	ReviewNotes string

	CreatedAt time.Time
}

type Lead struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`

	ClientName   string `gorm:"size:200;not null"`
	ContactEmail string `gorm:"size:254"`
	ContactPhone string `gorm:"size:50"`

	Status         string     `gorm:"size:100;not null"`
	AssignedUserId *uuid.UUID `gorm:"type:uuid"`

	NextFollowUpDate *string `gorm:"size:10"`

	ProjectCreated bool `gorm:"not null;default:false"`

	CreatedAt time.Time
}

type Team struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`

	Name      string    `gorm:"size:100;not null"`
	ManagerId uuid.UUID `gorm:"type:uuid;not null"`

	Members []TeamMember `gorm:"constraint:OnDelete:CASCADE"`
}

type TeamMember struct {
	TeamId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Team *Team `gorm:"constraint:OnDelete:CASCADE"`
	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CompanyId uuid.UUID  `gorm:"type:uuid;not null;index"`
	LeadId    *uuid.UUID `gorm:"type:uuid"`

	Name   string `gorm:"size:200;not null"`
	Status string `gorm:"size:50;not null"`

	TeamId *uuid.UUID `gorm:"type:uuid"`
	Team   *Team      `gorm:"constraint:OnDelete:SET NULL"`

	CreatedAt time.Time
}

type ProjectPlanning struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`

	Objectives string `gorm:"not null"`
	StartDate  string `gorm:"size:10"`
	EndDate    string `gorm:"size:10"`

	UpdatedBy uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
}

type Task struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`
	CompanyId uuid.UUID `gorm:"type:uuid;not null;index"`

	Title       string `gorm:"size:200;not null"`
	Description string

	AssignedTo uuid.UUID `gorm:"type:uuid;not null"`
	Status     string    `gorm:"size:50;not null"`

	DependencyTaskId *uuid.UUID `gorm:"type:uuid"`
	SuggestedBy      *uuid.UUID `gorm:"type:uuid"`

	CreatedAt   time.Time
	CompletedAt *time.Time

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
}

type ProjectStatusLog struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId uuid.UUID `gorm:"type:uuid;not null;index"`

	OldStatus string `gorm:"size:50;not null"`
	NewStatus string `gorm:"size:50;not null"`

	ChangedBy uuid.UUID `gorm:"type:uuid;not null"`
	ChangedAt time.Time `gorm:"not null"`
}

type TaskUpdate struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaskId uuid.UUID `gorm:"type:uuid;not null;index"`

	OldStatus string `gorm:"size:50;not null"`
	NewStatus string `gorm:"size:50;not null"`
	Note      string

	UpdatedBy uuid.UUID `gorm:"type:uuid;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
