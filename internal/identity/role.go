// ABOUTME: Closed role enumeration for portal users
// ABOUTME: Maps server role strings to admin, teacher, student or unknown

package identity

import "strings"

// Role is the portal role of an identity.
type Role uint8

const (
	// RoleUnknown is any role string the client does not recognise.
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeacher
	RoleStudent
)

// Roles lists the known roles in priority order.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

// ParseRole converts a server role string. Matching is case-insensitive.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "teacher":
		return RoleTeacher, true
	case "student":
		return RoleStudent, true
	default:
		return RoleUnknown, false
	}
}

// String returns the wire name of the role
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	default:
		return "unknown"
	}
}

// Known reports whether r is one of the three portal roles.
func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// Home returns the landing path for the role, or "" for an unknown role.
func (r Role) Home() string {
	if !r.Known() {
		return ""
	}
	return "/" + r.String()
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unrecognised names decode
// to RoleUnknown without error.
func (r *Role) UnmarshalText(text []byte) error {
	*r, _ = ParseRole(string(text))
	return nil
}
