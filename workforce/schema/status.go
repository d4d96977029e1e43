package schema

import "fmt"

const (
	Active   = "active"
	Inactive = "inactive"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

const (
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

func CheckValidBillingCycle(cycle string) error {
	if cycle != BillingMonthly && cycle != BillingYearly {
		return fmt.Errorf("invalid billing cycle '%v', must be '%v' or '%v'", cycle, BillingMonthly, BillingYearly)
	}
	return nil
}

const (
	Present = "Present"
	Absent  = "Absent"
	OnLeave = "Leave"

	// Unmarked is never stored, it is synthesized for roster rows with no
	// attendance record for the requested day.
	Unmarked = "Unmarked"
)

func CheckValidAttendanceStatus(status string) error {
	if status != Present && status != Absent && status != OnLeave {
		return fmt.Errorf("invalid attendance status '%v', must be one of '%v', '%v', '%v'", status, Present, Absent, OnLeave)
	}
	return nil
}

const (
	LeavePending   = "Pending"
	LeaveApproved  = "Approved"
	LeaveRejected  = "Rejected"
	LeaveCancelled = "Cancelled"
)

// LeadWon is the only lead status with systemic effect, the rest of the lead
// status vocabulary is free form.
const LeadWon = "Won"

const (
	ProjectUnassigned = "Unassigned"
	ProjectAssigned   = "Assigned"
	ProjectPlanned    = "Planned"
	ProjectInProgress = "In Progress"
	ProjectCompleted  = "Completed"
)

const (
	TaskPendingApproval = "Pending Approval"
	TaskActive          = "Active"
	TaskRejected        = "Rejected"
	TaskDone            = "Done"
)

// HrRoleName grants leave review and attendance administration to holders of
// a role with this name, in addition to company admins.
const HrRoleName = "HR"
