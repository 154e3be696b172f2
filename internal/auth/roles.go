// Package auth holds tenant roles, their permissions and bearer-token
// verification. Sessions and token issuance belong to the external identity
// provider; this package only checks what it is handed.
package auth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

var (
	// ErrUnauthorized means the caller could not be identified or does not
	// own exactly one tenant.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller's role lacks a required permission.
	ErrForbidden = errors.New("forbidden")
)

// Role is a tenant membership role.
type Role string

// Roles.
const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

// Permissions.
const (
	PermGuestsRead        = "guests:read"
	PermGuestsWrite       = "guests:write"
	PermReservationsRead  = "reservations:read"
	PermReservationsWrite = "reservations:write"
	PermMessagesRead      = "messages:read"
	PermMessagesSend      = "messages:send"
	PermTemplatesRead     = "templates:read"
	PermTemplatesWrite    = "templates:write"
	PermSettingsRead      = "settings:read"
	PermSettingsWrite     = "settings:write"

	permAll = "*"
)

var rolePermissions = map[Role][]string{
	RoleOwner: {permAll},
	RoleAdmin: {
		PermGuestsRead, PermGuestsWrite,
		PermReservationsRead, PermReservationsWrite,
		PermMessagesRead, PermMessagesSend,
		PermTemplatesRead, PermTemplatesWrite,
		PermSettingsRead, PermSettingsWrite,
	},
	RoleAgent: {
		PermGuestsRead,
		PermReservationsRead,
		PermMessagesRead, PermMessagesSend,
		PermTemplatesRead,
	},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// HasPermission reports whether role grants permission. Unknown roles grant
// nothing.
func HasPermission(role Role, permission string) bool {
	perms := rolePermissions[role]
	return slices.Contains(perms, permAll) || slices.Contains(perms, permission)
}

// RequirePermission returns an error wrapping [ErrForbidden] unless role
// grants permission.
func RequirePermission(role Role, permission string) error {
	if !HasPermission(role, permission) {
		return fmt.Errorf("%w: insufficient permissions, required: %s", ErrForbidden, permission)
	}
	return nil
}

// OwnedTenant returns the single tenant the memberships grant ownership of.
// No owner membership, or owner memberships in more than one tenant, is
// [ErrUnauthorized].
func OwnedTenant(members []store.Member) (string, error) {
	var owned []string
	for _, m := range members {
		if Role(m.Role) == RoleOwner {
			owned = append(owned, m.TenantID)
		}
	}
	switch len(owned) {
	case 1:
		return owned[0], nil
	case 0:
		return "", fmt.Errorf("%w: caller does not own a tenant", ErrUnauthorized)
	default:
		return "", fmt.Errorf("%w: caller owns %d tenants", ErrUnauthorized, len(owned))
	}
}

// ActiveMembership returns the caller's membership when they belong to
// exactly one tenant, which is the tenant every read is scoped to.
func ActiveMembership(members []store.Member) (store.Member, error) {
	switch len(members) {
	case 1:
		return members[0], nil
	case 0:
		return store.Member{}, fmt.Errorf("%w: user must have a tenant, complete onboarding first", ErrUnauthorized)
	default:
		return store.Member{}, fmt.Errorf("%w: user belongs to %d tenants", ErrUnauthorized, len(members))
	}
}
