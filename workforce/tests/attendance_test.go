package tests

import (
	"errors"
	"testing"
)

func TestMarkAttendanceIdempotent(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, userId := env.newUser(t, &admin, "emp1")

	err := user.markAttendance(userId, "2026-03-02", "Present")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot mark attendance, got %v", err)
	}

	if err := admin.markAttendance(userId, "2026-03-02", "Present"); err != nil {
		t.Fatal(err)
	}

	// Re-marking the same day overwrites instead of duplicating.
	if err := admin.markAttendance(userId, "2026-03-02", "Absent"); err != nil {
		t.Fatal(err)
	}

	summary, err := admin.monthlySummary(userId, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Present != 0 || summary.Absent != 1 {
		t.Fatalf("expected single absent day, got %+v", summary)
	}

	err = admin.markAttendance(userId, "2026-03-02", "Late")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("invalid status should be rejected, got %v", err)
	}

	err = admin.markAttendance(userId, "03/02/2026", "Present")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("invalid date format should be rejected, got %v", err)
	}
}

func TestDayRosterAndCounts(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	_, idA := env.newUser(t, &admin, "empA")
	_, idB := env.newUser(t, &admin, "empB")
	env.newUser(t, &admin, "empC")

	if err := admin.markAttendance(idA, "2026-03-02", "Present"); err != nil {
		t.Fatal(err)
	}
	if err := admin.markAttendance(idB, "2026-03-02", "Leave"); err != nil {
		t.Fatal(err)
	}

	roster, err := admin.dayRoster("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}

	statuses := map[string]string{}
	for _, entry := range roster {
		statuses[entry.EmpId] = entry.Status
	}
	// admin + 3 users, only two of them marked.
	if len(roster) != 4 {
		t.Fatalf("expected 4 roster rows, got %d", len(roster))
	}
	if statuses["empA"] != "Present" || statuses["empB"] != "Leave" || statuses["empC"] != "Unmarked" {
		t.Fatalf("roster statuses wrong: %v", statuses)
	}

	counts, err := admin.dayCounts("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if counts.Present != 1 || counts.OnLeave != 1 || counts.Absent != 0 || counts.Unmarked != 2 {
		t.Fatalf("day counts wrong: %+v", counts)
	}

	// A marked user who is later deactivated drops out of both views.
	if err := admin.updateUser(idA, "Emp A", "empA@acme.test", "inactive", false); err != nil {
		t.Fatal(err)
	}

	roster, err = admin.dayRoster("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(roster) != 3 {
		t.Fatalf("deactivated users should leave the roster, got %v", roster)
	}

	counts, err = admin.dayCounts("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if counts.Present != 0 || counts.OnLeave != 1 || counts.Unmarked != 2 {
		t.Fatalf("day counts should cover active users only, got %+v", counts)
	}
}

func TestMonthlySummary(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, userId := env.newUser(t, &admin, "emp1")
	other, _ := env.newUser(t, &admin, "emp2")

	days := map[string]string{
		"2026-03-02": "Present",
		"2026-03-03": "Present",
		"2026-03-04": "Absent",
		"2026-03-05": "Leave",
		"2026-04-01": "Present", // outside the queried month
	}
	for date, status := range days {
		if err := admin.markAttendance(userId, date, status); err != nil {
			t.Fatal(err)
		}
	}

	summary, err := user.monthlySummary(userId, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Present != 2 || summary.Absent != 1 || summary.OnLeave != 1 {
		t.Fatalf("summary counts wrong: %+v", summary)
	}
	if summary.Percentage != 50.0 {
		t.Fatalf("expected 50%% attendance, got %v", summary.Percentage)
	}

	// No marked days resolves to zero percent, not a division error.
	empty, err := user.monthlySummary(userId, "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if empty.Percentage != 0 || empty.Present != 0 {
		t.Fatalf("empty month should be all zeros, got %+v", empty)
	}

	_, err = other.monthlySummary(userId, "2026-03")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("users cannot read other summaries, got %v", err)
	}

	_, err = user.monthlySummary(userId, "March 2026")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("invalid month should be rejected, got %v", err)
	}
}
