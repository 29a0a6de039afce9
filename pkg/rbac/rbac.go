package rbac

import "fmt"

// Capability constants.
const (
	CapabilityManageStages  = "stage:manage"
	CapabilityCreateJob     = "job:create"
	CapabilityUpdateJob     = "job:update"
	CapabilityMoveBackward  = "job:move_backward"
	CapabilityReadInternal  = "comment:internal:read"
	CapabilityWriteComments = "comment:write"
)

// Role constants. Doctors are the referring customers; operators are lab
// technicians; supervisors additionally hold the backward-move capability.
const (
	RoleDoctor     = "doctor"
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

var rolePermissions = map[string][]string{
	RoleDoctor: {
		CapabilityWriteComments,
	},
	RoleOperator: {
		CapabilityCreateJob,
		CapabilityUpdateJob,
		CapabilityWriteComments,
		CapabilityReadInternal,
	},
	RoleSupervisor: {
		CapabilityCreateJob,
		CapabilityUpdateJob,
		CapabilityMoveBackward,
		CapabilityWriteComments,
		CapabilityReadInternal,
	},
	RoleAdmin: {
		CapabilityManageStages,
		CapabilityCreateJob,
		CapabilityUpdateJob,
		CapabilityMoveBackward,
		CapabilityWriteComments,
		CapabilityReadInternal,
	},
}

// HasCapability checks whether a role grants the given capability.
func HasCapability(role, capability string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == capability {
			return true
		}
	}
	return false
}

// CheckCapability returns a typed error instead of a boolean so callers
// can pass it straight up.
func CheckCapability(role, capability string) error {
	if !HasCapability(role, capability) {
		return &PermissionDeniedError{Role: role, Capability: capability}
	}
	return nil
}

// IsStaff reports whether the role belongs to lab personnel. Non-staff
// callers only ever see externally visible comments.
func IsStaff(role string) bool {
	return HasCapability(role, CapabilityReadInternal)
}

// PermissionDeniedError reports a missing capability.
type PermissionDeniedError struct {
	Role       string
	Capability string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks capability %q", e.Role, e.Capability)
}
