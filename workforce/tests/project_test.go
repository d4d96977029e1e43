package tests

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type projectFixture struct {
	admin  client
	leader client
	member client

	leaderId  uuid.UUID
	memberId  uuid.UUID
	projectId uuid.UUID
	teamId    uuid.UUID
}

// newProjectFixture wins a lead into a project and assigns a team whose
// manager is the project leader.
func newProjectFixture(t *testing.T, env *testEnv) *projectFixture {
	admin := env.adminClient(t)

	leader, leaderId := env.newUser(t, &admin, "lead1")
	member, memberId := env.newUser(t, &admin, "member1")

	teamId, err := admin.createTeam("Delivery", leaderId)
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.addUserToTeam(teamId, memberId); err != nil {
		t.Fatal(err)
	}

	leadId, err := admin.createLead("Initech", "Won")
	if err != nil {
		t.Fatal(err)
	}
	_ = leadId

	projects, err := admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("expected one project, got %v", projects)
	}

	return &projectFixture{
		admin:     admin,
		leader:    leader,
		member:    member,
		leaderId:  leaderId,
		memberId:  memberId,
		projectId: projects[0].Id,
		teamId:    teamId,
	}
}

func (f *projectFixture) toInProgress(t *testing.T) {
	if err := f.admin.assignTeamToProject(f.projectId, f.teamId); err != nil {
		t.Fatal(err)
	}
	if err := f.leader.submitPlanning(f.projectId, "ship it", "2026-06-01", "2026-08-01"); err != nil {
		t.Fatal(err)
	}
	if err := f.leader.startProject(f.projectId); err != nil {
		t.Fatal(err)
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	f := newProjectFixture(t, env)

	// Nothing is gated on a leader until a team is assigned.
	err := f.leader.submitPlanning(f.projectId, "plan", "", "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("planning without a team should be forbidden, got %v", err)
	}

	err = f.member.assignTeamToProject(f.projectId, f.teamId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only admins can assign teams, got %v", err)
	}

	if err := f.admin.assignTeamToProject(f.projectId, f.teamId); err != nil {
		t.Fatal(err)
	}

	err = f.admin.assignTeamToProject(f.projectId, f.teamId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("team assignment is one-shot, got %v", err)
	}

	err = f.member.submitPlanning(f.projectId, "plan", "", "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the leader can plan, got %v", err)
	}

	err = f.leader.startProject(f.projectId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("starting before planning should conflict, got %v", err)
	}

	if err := f.leader.submitPlanning(f.projectId, "ship it", "2026-06-01", "2026-08-01"); err != nil {
		t.Fatal(err)
	}

	// Re-planning before the start is allowed.
	if err := f.leader.submitPlanning(f.projectId, "ship it faster", "2026-06-01", "2026-07-01"); err != nil {
		t.Fatal(err)
	}

	err = f.member.startProject(f.projectId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the leader can start, got %v", err)
	}

	if err := f.leader.startProject(f.projectId); err != nil {
		t.Fatal(err)
	}

	// The plan is locked once execution starts.
	err = f.leader.submitPlanning(f.projectId, "new plan", "", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("planning after start should conflict, got %v", err)
	}

	if err := f.leader.completeProject(f.projectId); err != nil {
		t.Fatal(err)
	}

	log, err := f.admin.projectStatusLog(f.projectId)
	if err != nil {
		t.Fatal(err)
	}
	want := []statusLogRow{
		{OldStatus: "Unassigned", NewStatus: "Assigned"},
		{OldStatus: "Assigned", NewStatus: "Planned"},
		{OldStatus: "Planned", NewStatus: "In Progress"},
		{OldStatus: "In Progress", NewStatus: "Completed"},
	}
	if len(log) != len(want) {
		t.Fatalf("expected %d log rows, got %v", len(want), log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log row %d wrong: got %+v want %+v", i, log[i], want[i])
		}
	}
}

func TestProjectCompletionGatedOnTasks(t *testing.T) {
	env := setupTestEnv(t)
	f := newProjectFixture(t, env)
	f.toInProgress(t)

	task, err := f.leader.createTask(f.projectId, "build backend", f.memberId)
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != "Active" {
		t.Fatalf("leader created tasks start active, got %v", task.Status)
	}

	err = f.leader.completeProject(f.projectId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("completion with open tasks should conflict, got %v", err)
	}

	if err := f.member.updateTaskStatus(f.projectId, task.TaskId, "Done", "finished"); err != nil {
		t.Fatal(err)
	}

	if err := f.leader.completeProject(f.projectId); err != nil {
		t.Fatal(err)
	}

	err = f.leader.completeProject(f.projectId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("double completion should conflict, got %v", err)
	}
}

func TestTaskSuggestionWorkflow(t *testing.T) {
	env := setupTestEnv(t)
	f := newProjectFixture(t, env)
	f.toInProgress(t)

	_, err := f.member.createTask(f.projectId, "sneaky task", f.memberId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("non leaders cannot create tasks directly, got %v", err)
	}

	_, err = f.leader.suggestTask(f.projectId, "leader suggestion", f.memberId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("the leader cannot suggest tasks, got %v", err)
	}

	suggestion, err := f.member.suggestTask(f.projectId, "add caching", f.memberId)
	if err != nil {
		t.Fatal(err)
	}
	if suggestion.Status != "Pending Approval" {
		t.Fatalf("suggestions start pending, got %v", suggestion.Status)
	}

	_, err = f.member.approveTask(f.projectId, suggestion.TaskId, true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the leader decides suggestions, got %v", err)
	}

	decided, err := f.leader.approveTask(f.projectId, suggestion.TaskId, true)
	if err != nil {
		t.Fatal(err)
	}
	if decided.Status != "Active" {
		t.Fatalf("approved suggestion should be active, got %v", decided.Status)
	}

	_, err = f.leader.approveTask(f.projectId, suggestion.TaskId, true)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("a decided suggestion cannot be decided again, got %v", err)
	}

	rejected, err := f.member.suggestTask(f.projectId, "rewrite in rust", f.memberId)
	if err != nil {
		t.Fatal(err)
	}
	decided, err = f.leader.approveTask(f.projectId, rejected.TaskId, false)
	if err != nil {
		t.Fatal(err)
	}
	if decided.Status != "Rejected" {
		t.Fatalf("rejected suggestion should be rejected, got %v", decided.Status)
	}

	// Rejected tasks still count against completion until they are Done.
	err = f.leader.completeProject(f.projectId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("completion with a rejected task should conflict, got %v", err)
	}

	// Only the project status gates assignee updates, so the assignee can
	// move even a Rejected task.
	if err := f.member.updateTaskStatus(f.projectId, rejected.TaskId, "Done", "closing out"); err != nil {
		t.Fatal(err)
	}

	if err := f.leader.completeTask(f.projectId, suggestion.TaskId); err != nil {
		t.Fatal(err)
	}
	if err := f.leader.completeProject(f.projectId); err != nil {
		t.Fatal(err)
	}
}

func TestTaskStatusUpdates(t *testing.T) {
	env := setupTestEnv(t)
	f := newProjectFixture(t, env)

	if err := f.admin.assignTeamToProject(f.projectId, f.teamId); err != nil {
		t.Fatal(err)
	}
	if err := f.leader.submitPlanning(f.projectId, "plan", "", ""); err != nil {
		t.Fatal(err)
	}

	// Tasks only exist once execution starts.
	_, err := f.leader.createTask(f.projectId, "design schema", f.memberId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("task creation before the project starts should conflict, got %v", err)
	}
	_, err = f.member.suggestTask(f.projectId, "early idea", f.memberId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("task suggestion before the project starts should conflict, got %v", err)
	}

	if err := f.leader.startProject(f.projectId); err != nil {
		t.Fatal(err)
	}

	task, err := f.leader.createTask(f.projectId, "design schema", f.memberId)
	if err != nil {
		t.Fatal(err)
	}

	err = f.leader.updateTaskStatus(f.projectId, task.TaskId, "in review", "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("only the assignee updates task status, got %v", err)
	}

	// Assignees may use free form statuses.
	if err := f.member.updateTaskStatus(f.projectId, task.TaskId, "in review", "waiting on feedback"); err != nil {
		t.Fatal(err)
	}

	// The leader override closes the task regardless of assignee.
	if err := f.leader.completeTask(f.projectId, task.TaskId); err != nil {
		t.Fatal(err)
	}

	err = f.leader.completeTask(f.projectId, task.TaskId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("completing a done task should conflict, got %v", err)
	}

	tasks, err := f.leader.listTasks(f.projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Status != "Done" {
		t.Fatalf("expected one done task, got %v", tasks)
	}

	// Updates stop again once the project itself moves on.
	if err := f.leader.completeProject(f.projectId); err != nil {
		t.Fatal(err)
	}
	err = f.member.updateTaskStatus(f.projectId, task.TaskId, "reopened", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("updates on a completed project should conflict, got %v", err)
	}
}
