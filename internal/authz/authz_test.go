package authz

import "testing"

func TestPermissionTable(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionActivityCreate, true},
		{RoleAdmin, ActionActivityDelete, true},
		{RoleAdmin, ActionActivityStatus, true},
		{RoleAdmin, ActionEvidenceUpload, true},
		{RoleAdmin, ActionAuditSubmit, true},
		{RoleAdmin, ActionCatalogEdit, true},
		{RoleSupervisor, ActionActivityCreate, true},
		{RoleSupervisor, ActionActivityDelete, true},
		{RoleSupervisor, ActionActivityStatus, true},
		{RoleSupervisor, ActionEvidenceUpload, true},
		{RoleSupervisor, ActionAuditSubmit, true},
		{RoleSupervisor, ActionCatalogEdit, false},
		{RoleOperator, ActionActivityCreate, false},
		{RoleOperator, ActionActivityDelete, false},
		{RoleOperator, ActionActivityStatus, true},
		{RoleOperator, ActionEvidenceUpload, true},
		{RoleOperator, ActionAuditSubmit, false},
		{RoleOperator, ActionCatalogEdit, false},
	}
	for _, c := range cases {
		if got := IsPermitted(c.role, c.action); got != c.want {
			t.Errorf("IsPermitted(%s, %s) = %v, want %v", c.role, c.action, got, c.want)
		}
	}
}

func TestTableIsTotal(t *testing.T) {
	for _, role := range Roles {
		for _, action := range Actions {
			IsPermitted(role, action) // must not panic
		}
	}
}

func TestUnknownRolePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown role")
		}
	}()
	IsPermitted(Role("guest"), ActionActivityCreate)
}

func TestUnknownActionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown action")
		}
	}()
	IsPermitted(RoleAdmin, Action("activity.export"))
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"admin", "Admin", " SUPERVISOR ", "operator"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
	}
	if _, err := ParseRole("guest"); err == nil {
		t.Errorf("expected error for unknown role")
	}
}

func TestRequire(t *testing.T) {
	if err := Require(RoleOperator, ActionEvidenceUpload); err != nil {
		t.Fatalf("operator evidence upload: %v", err)
	}
	err := Require(RoleOperator, ActionActivityDelete)
	if err == nil {
		t.Fatalf("expected denial")
	}
	de, ok := err.(DeniedError)
	if !ok {
		t.Fatalf("expected DeniedError, got %T", err)
	}
	if de.Role != RoleOperator || de.Action != ActionActivityDelete {
		t.Fatalf("unexpected denial payload: %+v", de)
	}
}
