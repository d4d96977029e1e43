package tests

import (
	"errors"
	"testing"
)

func TestWonLeadCreatesProjectOnce(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)

	leadId, err := admin.createLead("Initech", "Contacted")
	if err != nil {
		t.Fatal(err)
	}

	projects, err := admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("no project should exist before the lead is won, got %v", projects)
	}

	if err := admin.updateLeadStatus(leadId, "Won"); err != nil {
		t.Fatal(err)
	}

	projects, err = admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("winning the lead should create one project, got %v", projects)
	}
	if projects[0].Name != "Initech" || projects[0].Status != "Unassigned" {
		t.Fatalf("project should be named after the client and start unassigned, got %+v", projects[0])
	}

	lead, err := admin.getLead(leadId)
	if err != nil {
		t.Fatal(err)
	}
	if !lead.ProjectCreated {
		t.Fatal("project_created flag should be set")
	}

	// Moving away from Won and back must not open a second project.
	if err := admin.updateLeadStatus(leadId, "Negotiating"); err != nil {
		t.Fatal(err)
	}
	if err := admin.updateLeadStatus(leadId, "Won"); err != nil {
		t.Fatal(err)
	}

	projects, err = admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("re-winning should not create another project, got %d projects", len(projects))
	}
}

func TestLeadCreatedAsWon(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)

	leadId, err := admin.createLead("Globex", "Won")
	if err != nil {
		t.Fatal(err)
	}

	lead, err := admin.getLead(leadId)
	if err != nil {
		t.Fatal(err)
	}
	if !lead.ProjectCreated {
		t.Fatal("lead created as Won should open its project immediately")
	}

	projects, err := admin.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Name != "Globex" {
		t.Fatalf("expected one project for Globex, got %v", projects)
	}
}

func TestLeadValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)

	_, err := admin.createLead("", "New")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing client name should be rejected, got %v", err)
	}

	_, err = admin.createLead("NoStatus", "")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing status should be rejected, got %v", err)
	}

	leadId, err := admin.createLead("Hooli", "New")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Post("/lead/"+leadId.String()).Json(map[string]string{"next_follow_up_date": "soon"}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("invalid follow up date should be rejected, got %v", err)
	}
}
