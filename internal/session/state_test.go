// ABOUTME: Tests for session state snapshots
// ABOUTME: Phase derivation and role helpers

package session

import (
	"testing"

	"github.com/uniportal/gradeportal/internal/identity"
)

func TestState_Phase(t *testing.T) {
	teacher := &identity.Identity{ID: "u1", Role: identity.RoleTeacher}

	tests := []struct {
		name  string
		state State
		want  Phase
	}{
		{"startup", State{Loading: true}, PhaseUnresolved},
		{"anonymous", State{}, PhaseAnonymous},
		{"authenticated", State{Identity: teacher}, PhaseAuthenticated},
		{"authenticated while loading", State{Identity: teacher, Loading: true}, PhaseAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Phase(); got != tt.want {
				t.Errorf("Phase() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestState_RoleHelpers(t *testing.T) {
	st := State{Identity: &identity.Identity{ID: "u1", Role: identity.RoleTeacher}}
	if !st.IsTeacher() || st.IsAdmin() || st.IsStudent() {
		t.Errorf("unexpected role helpers for %v", st.Role())
	}

	var anon State
	if anon.Role() != identity.RoleUnknown || anon.IsAuthenticated() {
		t.Error("expected anonymous state to have no role")
	}
}
