package auth

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

var Roles = []string{RoleEmployee, RoleManager, RoleHR, RoleAdmin}

const (
	PermTasksRead        = "tasks.read"
	PermTasksWrite       = "tasks.write"
	PermTasksReview      = "tasks.review"
	PermTasksComment     = "tasks.comment"
	PermUsersRead        = "users.read"
	PermUsersWrite       = "users.write"
	PermUsersInvite      = "users.invite"
	PermAnalyticsRead    = "analytics.read"
	PermAnalyticsWeights = "analytics.weights"
	PermStatsRead        = "stats.read"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
)

var DefaultPermissions = []string{
	PermTasksRead,
	PermTasksWrite,
	PermTasksReview,
	PermTasksComment,
	PermUsersRead,
	PermUsersWrite,
	PermUsersInvite,
	PermAnalyticsRead,
	PermAnalyticsWeights,
	PermStatsRead,
	PermReportsRead,
	PermAuditRead,
}

// RolePermissions is seeded into role_permissions on startup. Employees hold
// analytics.read so they can open their own rating; handlers narrow that to
// self-access with CanViewEmployee.
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermTasksRead,
		PermTasksComment,
		PermAnalyticsRead,
		PermStatsRead,
	},
	RoleManager: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksReview,
		PermTasksComment,
		PermUsersRead,
		PermAnalyticsRead,
		PermStatsRead,
		PermReportsRead,
	},
	RoleHR: {
		PermTasksRead,
		PermTasksWrite,
		PermTasksComment,
		PermUsersRead,
		PermUsersWrite,
		PermUsersInvite,
		PermAnalyticsRead,
		PermStatsRead,
		PermReportsRead,
		PermAuditRead,
	},
	RoleAdmin: DefaultPermissions,
}

func ValidRole(role string) bool {
	for _, candidate := range Roles {
		if role == candidate {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether a role may read any employee's data rather
// than only its own.
func IsPrivileged(role string) bool {
	return role == RoleAdmin || role == RoleHR || role == RoleManager
}

// CanViewEmployee allows employees to see themselves and privileged roles
// to see anyone.
func CanViewEmployee(user UserContext, employeeID string) bool {
	if IsPrivileged(user.Role) {
		return true
	}
	return user.UserID != "" && user.UserID == employeeID
}
