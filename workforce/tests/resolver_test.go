package tests

import (
	"errors"
	"testing"
)

func featureCodes(home homeInfo) map[string]bool {
	codes := map[string]bool{}
	for _, feature := range home.Features {
		codes[feature.Code] = true
	}
	return codes
}

func pageCodes(home homeInfo) map[string]bool {
	codes := map[string]bool{}
	for _, page := range home.Pages {
		codes[page.Code] = true
	}
	return codes
}

func TestFeatureEnablementRequiresSubscription(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	attendance := env.featureId(t, "attendance")

	err := admin.enableFeature(attendance)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("enabling features without a subscription should conflict, got %v", err)
	}

	env.subscribe(t, &admin)

	if err := admin.enableFeature(attendance); err != nil {
		t.Fatal(err)
	}

	plans, err := admin.listPlans()
	if err != nil {
		t.Fatal(err)
	}
	err = admin.subscribe(plans[0].Id, "monthly")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second active subscription should conflict, got %v", err)
	}

	err = admin.subscribe(plans[0].Id, "weekly")
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("invalid billing cycle should be rejected, got %v", err)
	}

	if err := admin.cancelSubscription(); err != nil {
		t.Fatal(err)
	}
	err = admin.cancelSubscription()
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("cancelling without an active subscription should conflict, got %v", err)
	}

	err = admin.enableFeature(attendance)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("enabling features after cancellation should conflict, got %v", err)
	}
}

func TestAccessResolution(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	env.subscribe(t, &admin)

	attendance := env.featureId(t, "attendance")
	leave := env.featureId(t, "leave")
	crm := env.featureId(t, "crm")

	if err := admin.enableFeature(attendance); err != nil {
		t.Fatal(err)
	}
	if err := admin.enableFeature(leave); err != nil {
		t.Fatal(err)
	}

	// Admins see every enabled feature without any role grants.
	home, err := admin.home()
	if err != nil {
		t.Fatal(err)
	}
	codes := featureCodes(home)
	if !codes["attendance"] || !codes["leave"] || codes["crm"] {
		t.Fatalf("admin features wrong: %v", codes)
	}

	user, userId := env.newUser(t, &admin, "emp1")

	// No roles means no features, regardless of what the company enabled.
	home, err = user.home()
	if err != nil {
		t.Fatal(err)
	}
	if len(home.Features) != 0 || len(home.Pages) != 0 {
		t.Fatalf("user without roles should resolve nothing, got %v", home)
	}

	role, err := admin.createRole("Staff")
	if err != nil {
		t.Fatal(err)
	}
	if err := admin.assignFeatureToRole(role, attendance); err != nil {
		t.Fatal(err)
	}

	// The crm feature is not enabled for the company, granting it must fail.
	err = admin.assignFeatureToRole(role, crm)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("granting a disabled feature should conflict, got %v", err)
	}

	if err := admin.assignRoleToUser(role, userId); err != nil {
		t.Fatal(err)
	}

	home, err = user.home()
	if err != nil {
		t.Fatal(err)
	}
	codes = featureCodes(home)
	if !codes["attendance"] || codes["leave"] || len(codes) != 1 {
		t.Fatalf("role user features wrong: %v", codes)
	}
	pages := pageCodes(home)
	if !pages["attendance-dashboard"] || len(pages) != 1 {
		t.Fatalf("role user pages wrong: %v", pages)
	}

	// Disabling the feature masks it instantly, the role grant is untouched.
	if err := admin.disableFeature(attendance); err != nil {
		t.Fatal(err)
	}
	home, err = user.home()
	if err != nil {
		t.Fatal(err)
	}
	if len(home.Features) != 0 {
		t.Fatalf("disabled feature should be masked, got %v", home.Features)
	}

	if err := admin.enableFeature(attendance); err != nil {
		t.Fatal(err)
	}
	home, err = user.home()
	if err != nil {
		t.Fatal(err)
	}
	if !featureCodes(home)["attendance"] {
		t.Fatal("re-enabling should restore the existing role grant")
	}

	// Removing the role grant removes the feature.
	if err := admin.removeFeatureFromRole(role, attendance); err != nil {
		t.Fatal(err)
	}
	home, err = user.home()
	if err != nil {
		t.Fatal(err)
	}
	if len(home.Features) != 0 {
		t.Fatalf("revoked grant should resolve nothing, got %v", home.Features)
	}
}

func TestOverlappingRoleGrantsDeduplicated(t *testing.T) {
	env := setupTestEnv(t)

	admin := env.adminClient(t)
	env.subscribe(t, &admin)

	attendance := env.featureId(t, "attendance")
	if err := admin.enableFeature(attendance); err != nil {
		t.Fatal(err)
	}

	user, userId := env.newUser(t, &admin, "emp1")

	for _, name := range []string{"RoleA", "RoleB"} {
		role, err := admin.createRole(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := admin.assignFeatureToRole(role, attendance); err != nil {
			t.Fatal(err)
		}
		if err := admin.assignRoleToUser(role, userId); err != nil {
			t.Fatal(err)
		}
	}

	home, err := user.home()
	if err != nil {
		t.Fatal(err)
	}
	if len(home.Features) != 1 {
		t.Fatalf("overlapping grants should deduplicate, got %v", home.Features)
	}
}
