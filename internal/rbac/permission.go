// ABOUTME: Permission constants and the default permission-to-roles matrix.
// ABOUTME: The matrix is explicit per permission so access changes are reviewable.
package rbac

// Permission represents an actionable capability within the platform.
type Permission string

// Platform permissions. Values use the dotted <area>.<verb> form that also
// appears in audit events, so grep finds both the grant and its uses.
const (
	// Admin surface
	PermManageUsers     Permission = "admin.manage_users"
	PermManageRoles     Permission = "admin.manage_roles"
	PermInviteUsers     Permission = "admin.invite_users"
	PermConfigureSystem Permission = "admin.configure_system"
	PermViewAllUsers    Permission = "admin.view_all_users"
	PermViewAuditLog    Permission = "admin.view_audit_log"

	// Engagement surface
	PermManageEvents      Permission = "events.manage"
	PermManageRewards     Permission = "rewards.manage"
	PermViewTeamAnalytics Permission = "analytics.view_team"
	PermCreateRecognition Permission = "recognition.create"
	PermViewRecognition   Permission = "recognition.view"
	PermEditOwnProfile    Permission = "profile.edit_own"
	PermJoinChallenges    Permission = "challenges.join"
)

// DefaultMatrix returns the built-in permission matrix. The slices are
// intentionally explicit rather than derived from role rank so that a
// permission can be narrower than the hierarchy implies — MANAGE_ROLES is
// owner-only even though admins outrank facilitators everywhere else.
//
// Callers get a fresh map on each call; the evaluator copies it again at
// construction, so shared mutable state never escapes.
func DefaultMatrix() map[Permission][]Role {
	everyone := []Role{RoleOwner, RoleAdmin, RoleFacilitator, RoleParticipant}
	return map[Permission][]Role{
		PermManageUsers:     {RoleOwner, RoleAdmin},
		PermManageRoles:     {RoleOwner},
		PermInviteUsers:     {RoleOwner, RoleAdmin},
		PermConfigureSystem: {RoleOwner, RoleAdmin},
		PermViewAllUsers:    {RoleOwner, RoleAdmin},
		PermViewAuditLog:    {RoleOwner, RoleAdmin},

		PermManageEvents:      {RoleOwner, RoleAdmin, RoleFacilitator},
		PermManageRewards:     {RoleOwner, RoleAdmin},
		PermViewTeamAnalytics: {RoleOwner, RoleAdmin, RoleFacilitator},
		PermCreateRecognition: everyone,
		PermViewRecognition:   everyone,
		PermEditOwnProfile:    everyone,
		PermJoinChallenges:    everyone,
	}
}
