// ABOUTME: RBAC Role type with ordered integer constants for privilege comparison.
// ABOUTME: ParseRole converts a stored role string to a Role; unknown maps to zero.
package rbac

// Role represents a privilege level. Higher integer values grant more
// privileges. The zero value means "no role" and is what evaluator methods
// return for an absent user; it never satisfies any check.
type Role int

// Role privilege levels, ordered from least to most privileged.
const (
	RoleParticipant Role = 1 // default floor for every known user
	RoleFacilitator Role = 2 // runs team events and activities
	RoleAdmin       Role = 3 // platform administrator
	RoleOwner       Role = 4 // allowlist-only superuser
)

// ParseRole converts a role string from storage or an API request to a Role.
// Unknown or empty values map to the zero Role, which fails every check —
// callers that need a floor instead of a failure should use EffectiveRole.
func ParseRole(s string) Role {
	switch s {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "facilitator":
		return RoleFacilitator
	case "participant":
		return RoleParticipant
	default:
		return 0
	}
}

// valid reports whether r is one of the four defined privilege levels.
func (r Role) valid() bool {
	return r >= RoleParticipant && r <= RoleOwner
}

// String returns the storage form of the role ("owner", "admin", ...).
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleFacilitator:
		return "facilitator"
	case RoleParticipant:
		return "participant"
	default:
		return "unknown"
	}
}

// DisplayName returns the human-facing label for the role. Participants are
// shown as "Employee"; anything unrecognized (including the zero Role) is
// shown as "User".
func (r Role) DisplayName() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleFacilitator:
		return "Facilitator"
	case RoleParticipant:
		return "Employee"
	default:
		return "User"
	}
}
