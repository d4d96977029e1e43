package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workforce_logins_total",
		Help: "Successful logins",
	})

	attendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workforce_attendance_marked_total",
		Help: "Attendance records marked or overwritten",
	})

	leaveDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workforce_leave_decisions_total",
		Help: "Leave review decisions",
	}, []string{"decision"})

	leadsWon = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workforce_leads_won_total",
		Help: "Leads transitioned to Won",
	})

	projectsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workforce_projects_completed_total",
		Help: "Projects transitioned to Completed",
	})
)
