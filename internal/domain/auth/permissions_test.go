package auth

import "testing"

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if !ValidRole(role) {
			t.Fatalf("role %s is not a known role", role)
		}
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestOnlyAdminManagesWeights(t *testing.T) {
	for role, perms := range RolePermissions {
		for _, perm := range perms {
			if perm == PermAnalyticsWeights && role != RoleAdmin {
				t.Fatalf("role %s must not hold %s", role, PermAnalyticsWeights)
			}
		}
	}
}

func TestCanViewEmployee(t *testing.T) {
	self := UserContext{UserID: "e1", Role: RoleEmployee}
	if !CanViewEmployee(self, "e1") {
		t.Fatal("employee should see own data")
	}
	if CanViewEmployee(self, "e2") {
		t.Fatal("employee should not see other employees")
	}
	for _, role := range []string{RoleManager, RoleHR, RoleAdmin} {
		if !CanViewEmployee(UserContext{UserID: "x", Role: role}, "e2") {
			t.Fatalf("%s should see any employee", role)
		}
	}
}
