package tests

import (
	"errors"
	"testing"
)

func TestLoginLogout(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp42")

	home, err := user.home()
	if err != nil {
		t.Fatal(err)
	}
	if home.User.EmpId != "emp42" || home.User.IsCompanyAdmin || home.User.Company != "Acme" {
		t.Fatalf("invalid home info %v", home)
	}

	if err := user.logout(); err != nil {
		t.Fatal(err)
	}

	// The token is still cryptographically valid but the session row is gone.
	_, err = user.home()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}

	byEmail := env.newClient()
	if err := byEmail.loginWithEmail("emp42@acme.test", "emp42_password"); err != nil {
		t.Fatal(err)
	}

	wrongPwd := env.newClient()
	err = wrongPwd.login("emp42", "not_the_password")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}

	missingId := env.newClient()
	err = missingId.Post("/user/login").Json(map[string]interface{}{
		"company_id": env.companyId, "password": "pwd",
	}).Do(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected bad request when emp_id and email are both missing, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp1")

	_, err := user.createUser("emp2", "Emp Two", "emp2@acme.test", "pwd12345", false)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("non admins cannot create users, got %v", err)
	}

	if _, err := admin.createUser("emp2", "Emp Two", "emp2@acme.test", "pwd12345", false); err != nil {
		t.Fatal(err)
	}

	_, err = admin.createUser("emp2", "Duplicate", "other@acme.test", "pwd12345", false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate emp_id should conflict, got %v", err)
	}

	_, err = admin.createUser("emp3", "Duplicate Email", "emp2@acme.test", "pwd12345", false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email should conflict, got %v", err)
	}

	_, err = admin.createUser("", "No Emp Id", "nobody@acme.test", "pwd12345", false)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing emp_id should be rejected, got %v", err)
	}
}

func TestDeactivatedUserCannotLogin(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, userId := env.newUser(t, &admin, "emp9")

	if err := admin.updateUser(userId, "Emp Nine", "emp9@acme.test", "inactive", false); err != nil {
		t.Fatal(err)
	}

	// Existing sessions stop working immediately.
	_, err := user.home()
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("inactive user session should be rejected, got %v", err)
	}

	fresh := env.newClient()
	err = fresh.login("emp9", "emp9_password")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive user login should fail, got %v", err)
	}

	if err := admin.updateUser(userId, "Emp Nine", "emp9@acme.test", "active", false); err != nil {
		t.Fatal(err)
	}
	if err := fresh.login("emp9", "emp9_password"); err != nil {
		t.Fatal(err)
	}
}

func TestHrCannotGrantAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	hr, hrId := env.newUser(t, &admin, "empHr")
	_, otherId := env.newUser(t, &admin, "empOther")

	hrRole, err := admin.createRole("HR")
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.assignRoleToUser(hrRole, hrId); err != nil {
		t.Fatal(err)
	}

	// HR edits profiles but the admin flag is out of reach.
	if err := hr.updateUser(otherId, "Renamed", "empOther@acme.test", "active", false); err != nil {
		t.Fatal(err)
	}

	err = hr.updateUser(otherId, "Renamed", "empOther@acme.test", "active", true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("HR granting admin should be forbidden, got %v", err)
	}

	err = hr.updateUser(hrId, "Emp Hr", "empHr@acme.test", "active", true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("HR self promotion should be forbidden, got %v", err)
	}

	if err := admin.updateUser(otherId, "Renamed", "empOther@acme.test", "active", true); err != nil {
		t.Fatal(err)
	}
}

func TestSessionAdministration(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	user, _ := env.newUser(t, &admin, "emp7")

	_, err := user.listSessions()
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("non admins cannot list sessions, got %v", err)
	}

	sessions, err := admin.listSessions()
	if err != nil {
		t.Fatal(err)
	}

	var target *sessionEntry
	for i := range sessions {
		if sessions[i].EmpId == "emp7" {
			target = &sessions[i]
		}
	}
	if target == nil {
		t.Fatal("expected a session for emp7")
	}

	if err := admin.terminateSession(target.SessionId); err != nil {
		t.Fatal(err)
	}

	_, err = user.home()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("terminated session should be rejected, got %v", err)
	}

	err = admin.terminateSession(target.SessionId)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("terminating a missing session should 404, got %v", err)
	}
}

func TestProfileVisibility(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	userA, idA := env.newUser(t, &admin, "empA")
	_, idB := env.newUser(t, &admin, "empB")

	if _, err := userA.profile(idA); err != nil {
		t.Fatal(err)
	}

	_, err := userA.profile(idB)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular users cannot view other profiles, got %v", err)
	}

	if _, err := admin.profile(idB); err != nil {
		t.Fatal(err)
	}

	// Granting the HR role unlocks other users' profiles.
	hrRole, err := admin.createRole("HR")
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.assignRoleToUser(hrRole, idA); err != nil {
		t.Fatal(err)
	}

	if _, err := userA.profile(idB); err != nil {
		t.Fatal(err)
	}
}
