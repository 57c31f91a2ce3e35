// Package authz holds the role/permission table for the three user
// roles. The table is closed: callers pass known roles and actions, and
// anything else is a programming error.
package authz

import (
	"fmt"
	"strings"
)

// Role is a closed enumeration with privilege order Admin > Supervisor > Operator.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleOperator   Role = "operator"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleSupervisor, RoleOperator}

// Action is something a user can attempt against the system.
type Action string

const (
	ActionActivityCreate Action = "activity.create"
	ActionActivityDelete Action = "activity.delete"
	ActionActivityStatus Action = "activity.status"
	ActionEvidenceUpload Action = "activity.evidence"
	ActionAuditSubmit    Action = "activity.audit"
	ActionCatalogEdit    Action = "catalog.edit"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionActivityCreate,
	ActionActivityDelete,
	ActionActivityStatus,
	ActionEvidenceUpload,
	ActionAuditSubmit,
	ActionCatalogEdit,
}

var permissions = map[Role]map[Action]bool{
	RoleAdmin: {
		ActionActivityCreate: true,
		ActionActivityDelete: true,
		ActionActivityStatus: true,
		ActionEvidenceUpload: true,
		ActionAuditSubmit:    true,
		ActionCatalogEdit:    true,
	},
	RoleSupervisor: {
		ActionActivityCreate: true,
		ActionActivityDelete: true,
		ActionActivityStatus: true,
		ActionEvidenceUpload: true,
		ActionAuditSubmit:    true,
		ActionCatalogEdit:    false,
	},
	RoleOperator: {
		ActionActivityCreate: false,
		ActionActivityDelete: false,
		ActionActivityStatus: true,
		ActionEvidenceUpload: true,
		ActionAuditSubmit:    false,
		ActionCatalogEdit:    false,
	},
}

// IsPermitted reports whether role may perform action. It is a total
// function over the closed enums and panics on anything outside them.
func IsPermitted(role Role, action Action) bool {
	actions, ok := permissions[role]
	if !ok {
		panic(fmt.Sprintf("authz: unknown role %q", role))
	}
	allowed, ok := actions[action]
	if !ok {
		panic(fmt.Sprintf("authz: unknown action %q", action))
	}
	return allowed
}

// ParseRole normalizes a role string from config, claims, or flags.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSupervisor:
		return RoleSupervisor, nil
	case RoleOperator:
		return RoleOperator, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DeniedError indicates the acting role lacks the permission.
type DeniedError struct {
	Role   Role
	Action Action
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("role %s not permitted to %s", e.Role, e.Action)
}

// Require returns a DeniedError when role may not perform action.
func Require(role Role, action Action) error {
	if IsPermitted(role, action) {
		return nil
	}
	return DeniedError{Role: role, Action: action}
}
