// ABOUTME: Pure access-control evaluator: effective-role derivation, permission
// ABOUTME: checks, assignment legality, and resource-ownership checks. Fail-closed.

// Package rbac decides who may do what. Every decision is a pure function of
// the user record passed in and configuration frozen at construction time:
// there is no I/O, no mutation, and no error path. Absent or malformed input
// always degrades to the most restrictive answer (zero Role, false), never to
// a panic and never to an over-permissive default.
package rbac

import "strings"

// User is the narrow slice of a directory record the evaluator reads.
// A nil *User is the explicit "no authenticated user" input and denies
// everything.
type User struct {
	Email    string
	Role     string // directory role field; "admin" is the only elevated value
	UserType string // directory category; "facilitator" is the only elevated value
}

// Config is the evaluator's injected configuration. It is read once by
// NewEvaluator and may be discarded afterwards; the evaluator keeps private
// copies so later mutation by the caller has no effect.
type Config struct {
	// OwnerEmails is the out-of-band superuser allowlist. Membership is
	// compared case-insensitively; entries are folded at construction so the
	// comparison is symmetric regardless of how they were written.
	OwnerEmails []string

	// Permissions maps each permission to the roles that hold it. A nil map
	// means DefaultMatrix. A permission absent from the map denies
	// unconditionally.
	Permissions map[Permission][]Role
}

// Evaluator answers access-control questions. Safe for concurrent use: all
// state is written once in NewEvaluator and only read afterwards.
type Evaluator struct {
	owners      map[string]struct{}
	permissions map[Permission]map[Role]struct{}
}

// NewEvaluator builds an Evaluator from cfg. Owner emails are lower-cased and
// the permission matrix is deep-copied into membership sets.
func NewEvaluator(cfg Config) *Evaluator {
	matrix := cfg.Permissions
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	e := &Evaluator{
		owners:      make(map[string]struct{}, len(cfg.OwnerEmails)),
		permissions: make(map[Permission]map[Role]struct{}, len(matrix)),
	}
	for _, email := range cfg.OwnerEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			e.owners[email] = struct{}{}
		}
	}
	for perm, roles := range matrix {
		set := make(map[Role]struct{}, len(roles))
		for _, r := range roles {
			set[r] = struct{}{}
		}
		e.permissions[perm] = set
	}
	return e
}

// IsOwner reports whether u's email is on the owner allowlist. The allowlist
// is the only path to ownership: it deliberately does not depend on any
// directory-managed field, so a compromised admin cannot mint owners.
func (e *Evaluator) IsOwner(u *User) bool {
	if u == nil || u.Email == "" {
		return false
	}
	_, ok := e.owners[strings.ToLower(u.Email)]
	return ok
}

// EffectiveRole derives u's single effective role. Checks run in strict
// priority order and the first match wins:
//
//  1. owner allowlist membership
//  2. directory Role == "admin"
//  3. directory UserType == "facilitator"
//  4. participant floor (any other user, including an empty record)
//
// Returns the zero Role for a nil user.
func (e *Evaluator) EffectiveRole(u *User) Role {
	switch {
	case u == nil:
		return 0
	case e.IsOwner(u):
		return RoleOwner
	case u.Role == "admin":
		return RoleAdmin
	case u.UserType == "facilitator":
		return RoleFacilitator
	default:
		return RoleParticipant
	}
}

// HasPermission reports whether u's effective role holds p. Unknown
// permissions deny: a typo'd or not-yet-configured permission name must never
// grant access.
func (e *Evaluator) HasPermission(u *User, p Permission) bool {
	role := e.EffectiveRole(u)
	if !role.valid() {
		return false
	}
	holders, ok := e.permissions[p]
	if !ok {
		return false
	}
	_, ok = holders[role]
	return ok
}

// HasAnyPermission reports whether u holds at least one of perms.
func (e *Evaluator) HasAnyPermission(u *User, perms ...Permission) bool {
	for _, p := range perms {
		if e.HasPermission(u, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether u holds every one of perms.
// Vacuously true for an empty list, matching the usual every() semantics;
// callers gate on at least one permission in practice.
func (e *Evaluator) HasAllPermissions(u *User, perms ...Permission) bool {
	for _, p := range perms {
		if !e.HasPermission(u, p) {
			return false
		}
	}
	return true
}

// HasRoleOrHigher reports whether u's effective role ranks at or above min.
// An unrecognized min denies: comparing against an undefined rank must never
// silently pass.
func (e *Evaluator) HasRoleOrHigher(u *User, min Role) bool {
	if !min.valid() {
		return false
	}
	role := e.EffectiveRole(u)
	return role.valid() && role >= min
}

// CanAccessUserResource reports whether u may access a resource owned by
// resourceOwnerEmail. Holders of the view-all-users permission bypass
// ownership; otherwise only the owner themselves may access it. Emails
// compare case-insensitively, consistent with the owner allowlist.
func (e *Evaluator) CanAccessUserResource(u *User, resourceOwnerEmail string) bool {
	if u == nil || resourceOwnerEmail == "" {
		return false
	}
	if e.HasPermission(u, PermViewAllUsers) {
		return true
	}
	return u.Email != "" && strings.EqualFold(u.Email, resourceOwnerEmail)
}

// CanAssignRole reports whether u may grant target to another user. The rules
// encode strict escalation prevention: a principal can never grant a role
// with privilege at or above their own, and only an owner may create admins.
// The owner role is never grantable here — the allowlist is the only path.
func (e *Evaluator) CanAssignRole(u *User, target Role) bool {
	if u == nil {
		return false
	}
	switch target {
	case RoleOwner:
		return false
	case RoleAdmin:
		return e.EffectiveRole(u) == RoleOwner
	case RoleFacilitator, RoleParticipant:
		role := e.EffectiveRole(u)
		return role == RoleOwner || role == RoleAdmin
	default:
		return false
	}
}

// DisplayRole returns the human-facing label for u's effective role.
func (e *Evaluator) DisplayRole(u *User) string {
	return e.EffectiveRole(u).DisplayName()
}
