package rbac

import "testing"

func TestBackwardCapabilityByRole(t *testing.T) {
	if HasCapability(RoleOperator, CapabilityMoveBackward) {
		t.Fatalf("operators must not move jobs backward")
	}
	if !HasCapability(RoleSupervisor, CapabilityMoveBackward) {
		t.Fatalf("supervisors hold the backward capability")
	}
	if !HasCapability(RoleAdmin, CapabilityMoveBackward) {
		t.Fatalf("admins hold the backward capability")
	}
}

func TestStageManagementIsAdminOnly(t *testing.T) {
	for _, role := range []string{RoleDoctor, RoleOperator, RoleSupervisor} {
		if HasCapability(role, CapabilityManageStages) {
			t.Fatalf("role %q must not manage stages", role)
		}
	}
	if !HasCapability(RoleAdmin, CapabilityManageStages) {
		t.Fatalf("admin must manage stages")
	}
}

func TestUnknownRoleHasNothing(t *testing.T) {
	if HasCapability("intern", CapabilityWriteComments) {
		t.Fatalf("unknown roles get no capabilities")
	}
}

func TestCheckCapabilityError(t *testing.T) {
	err := CheckCapability(RoleDoctor, CapabilityMoveBackward)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := err.(*PermissionDeniedError); !ok {
		t.Fatalf("expected PermissionDeniedError, got %T", err)
	}
}

func TestIsStaff(t *testing.T) {
	if IsStaff(RoleDoctor) {
		t.Fatalf("doctors are not staff")
	}
	for _, role := range []string{RoleOperator, RoleSupervisor, RoleAdmin} {
		if !IsStaff(role) {
			t.Fatalf("role %q should be staff", role)
		}
	}
}
