package tests

import (
	"errors"
	"testing"
)

func TestApplyLeave(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp1")

	_, totalDays, err := user.applyLeave("vacation", "2026-05-04", "2026-05-06", "trip")
	if err != nil {
		t.Fatal(err)
	}
	if totalDays != 3 {
		t.Fatalf("inclusive range should be 3 days, got %d", totalDays)
	}

	_, totalDays, err = user.applyLeave("sick", "2026-05-04", "2026-05-04", "")
	if err != nil {
		t.Fatal(err)
	}
	if totalDays != 1 {
		t.Fatalf("single day leave should be 1 day, got %d", totalDays)
	}

	_, _, err = user.applyLeave("vacation", "2026-05-06", "2026-05-04", "")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("end before start should be rejected, got %v", err)
	}

	_, _, err = user.applyLeave("", "2026-05-04", "2026-05-06", "")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing type should be rejected, got %v", err)
	}
}

func TestLeaveApprovalFansOutAttendance(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, userId := env.newUser(t, &admin, "emp1")

	leaveId, _, err := user.applyLeave("vacation", "2026-05-04", "2026-05-06", "trip")
	if err != nil {
		t.Fatal(err)
	}

	err = user.reviewLeave(leaveId, true, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("requester cannot review their own leave, got %v", err)
	}

	// The day was already marked Present, approval overwrites it.
	if err := admin.markAttendance(userId, "2026-05-04", "Present"); err != nil {
		t.Fatal(err)
	}

	if err := admin.reviewLeave(leaveId, true, "enjoy"); err != nil {
		t.Fatal(err)
	}

	summary, err := user.monthlySummary(userId, "2026-05")
	if err != nil {
		t.Fatal(err)
	}
	if summary.OnLeave != 3 || summary.Present != 0 {
		t.Fatalf("approval should write 3 leave days, got %+v", summary)
	}

	// A decided request cannot be reviewed again.
	err = admin.reviewLeave(leaveId, false, "changed my mind")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("re-review should conflict, got %v", err)
	}

	pending, err := admin.pendingLeaves()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("no requests should remain pending, got %v", pending)
	}
}

func TestLeaveRejectionWritesNoAttendance(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, userId := env.newUser(t, &admin, "emp1")

	leaveId, _, err := user.applyLeave("vacation", "2026-05-04", "2026-05-05", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.reviewLeave(leaveId, false, "busy period"); err != nil {
		t.Fatal(err)
	}

	summary, err := user.monthlySummary(userId, "2026-05")
	if err != nil {
		t.Fatal(err)
	}
	if summary.OnLeave != 0 {
		t.Fatalf("rejection should not touch attendance, got %+v", summary)
	}
}

func TestCancelLeave(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp1")
	other, _ := env.newUser(t, &admin, "emp2")

	leaveId, _, err := user.applyLeave("vacation", "2026-05-04", "2026-05-05", "")
	if err != nil {
		t.Fatal(err)
	}

	err = other.cancelLeave(leaveId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the requester can cancel, got %v", err)
	}

	if err := user.cancelLeave(leaveId); err != nil {
		t.Fatal(err)
	}

	// Cancelled requests can no longer be reviewed.
	err = admin.reviewLeave(leaveId, true, "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("reviewing a cancelled request should conflict, got %v", err)
	}

	err = user.cancelLeave(leaveId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("double cancel should conflict, got %v", err)
	}
}

func TestHrRoleCanReviewLeave(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp1")
	hr, hrId := env.newUser(t, &admin, "hr1")

	leaveId, _, err := user.applyLeave("sick", "2026-05-04", "2026-05-04", "")
	if err != nil {
		t.Fatal(err)
	}

	_, err = hr.pendingLeaves()
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("user without HR role cannot list pending leaves, got %v", err)
	}

	role, err := admin.createRole("HR")
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.assignRoleToUser(role, hrId); err != nil {
		t.Fatal(err)
	}

	pending, err := hr.pendingLeaves()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending request, got %v", pending)
	}

	if err := hr.reviewLeave(leaveId, true, ""); err != nil {
		t.Fatal(err)
	}
}
