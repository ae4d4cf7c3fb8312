// ABOUTME: Immutable snapshot of the session seen by views and the route guard
// ABOUTME: Exposes the lifecycle phase and derived per-role booleans

package session

import "github.com/uniportal/gradeportal/internal/identity"

// Phase is the position of a session in its lifecycle.
type Phase int

const (
	// PhaseUnresolved is startup before the stored token has been checked.
	PhaseUnresolved Phase = iota
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUnresolved:
		return "unresolved"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "invalid"
	}
}

// State is a copy of the session at one point in time. Changing it does not
// affect the Provider.
type State struct {
	Identity *identity.Identity
	Loading  bool
}

// Phase derives the lifecycle phase.
func (s State) Phase() Phase {
	switch {
	case s.Identity != nil:
		return PhaseAuthenticated
	case s.Loading:
		return PhaseUnresolved
	default:
		return PhaseAnonymous
	}
}

// IsAuthenticated reports whether an identity has been resolved.
func (s State) IsAuthenticated() bool {
	return s.Identity != nil
}

// Role returns the identity's role, or RoleUnknown when anonymous.
func (s State) Role() identity.Role {
	if s.Identity == nil {
		return identity.RoleUnknown
	}
	return s.Identity.Role
}

func (s State) IsAdmin() bool   { return s.Role() == identity.RoleAdmin }
func (s State) IsTeacher() bool { return s.Role() == identity.RoleTeacher }
func (s State) IsStudent() bool { return s.Role() == identity.RoleStudent }
