package account

import "testing"

func TestResolveRolePrecedence(t *testing.T) {
	cases := []struct {
		name     string
		claim    []string
		fallback string
		want     Role
	}{
		{"admin wins over editor", []string{"editor", "admin"}, "normal", RoleAdmin},
		{"editor over normal", []string{"normal", "editor"}, "normal", RoleEditor},
		{"normal claim", []string{"normal"}, "editor", RoleNormal},
		{"empty claim uses fallback", nil, "editor", RoleEditor},
		{"invalid fallback degrades to normal", nil, "superuser", RoleNormal},
		{"empty fallback degrades to normal", nil, "", RoleNormal},
		{"unknown claim values ignored", []string{"root", "wheel"}, "dataset_operator", RoleDatasetOperator},
	}
	for _, tc := range cases {
		if got := ResolveRole(tc.claim, tc.fallback); got != tc.want {
			t.Fatalf("%s: ResolveRole(%v, %q)=%q, want %q", tc.name, tc.claim, tc.fallback, got, tc.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{"owner", "admin", "editor", "normal", "dataset_operator"} {
		if !ValidRole(role) {
			t.Fatalf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"", "root", "Admin"} {
		if ValidRole(role) {
			t.Fatalf("expected %q to be invalid", role)
		}
	}
}

func TestRolePredicates(t *testing.T) {
	if !RoleAdmin.Privileged() || !RoleOwner.Privileged() {
		t.Fatal("owner and admin are privileged")
	}
	if RoleEditor.Privileged() {
		t.Fatal("editor is not privileged")
	}
	if !RoleEditor.CanEdit() {
		t.Fatal("editor can edit")
	}
	if RoleNormal.CanEdit() {
		t.Fatal("normal cannot edit")
	}
}
