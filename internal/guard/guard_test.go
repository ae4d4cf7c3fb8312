// ABOUTME: Tests for the route guard
// ABOUTME: Loading precedence, login redirects, role homes, purity and the panic boundary

package guard

import (
	"reflect"
	"strings"
	"testing"

	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/session"
)

func signedIn(role identity.Role) session.State {
	return session.State{Identity: &identity.Identity{ID: "u1", Role: role}}
}

func TestProtect_WrongRoleRedirectsToOwnHome(t *testing.T) {
	tests := []struct {
		actual   identity.Role
		required identity.Role
		want     string
	}{
		{identity.RoleStudent, identity.RoleAdmin, "/student"},
		{identity.RoleStudent, identity.RoleTeacher, "/student"},
		{identity.RoleTeacher, identity.RoleAdmin, "/teacher"},
		{identity.RoleTeacher, identity.RoleStudent, "/teacher"},
		{identity.RoleAdmin, identity.RoleTeacher, "/admin"},
		{identity.RoleAdmin, identity.RoleStudent, "/admin"},
	}

	for _, tt := range tests {
		t.Run(tt.actual.String()+"->"+tt.required.String(), func(t *testing.T) {
			path := tt.required.Home()
			d := Protect(signedIn(tt.actual), path, tt.required)
			if d.Outcome != Redirect {
				t.Fatalf("expected redirect, got %s", d)
			}
			if d.Location != tt.want {
				t.Errorf("location = %q, want %q", d.Location, tt.want)
			}
			if d.Location == path {
				t.Error("redirect must never point at the requested path")
			}
		})
	}
}

func TestProtect_AnonymousRedirectsToLogin(t *testing.T) {
	d := Protect(session.State{}, "/teacher", identity.RoleTeacher)

	if d.Outcome != Redirect {
		t.Fatalf("expected redirect, got %s", d)
	}
	if d.Location != "/login?from=%2Fteacher" {
		t.Errorf("location = %q", d.Location)
	}
	if d.From != "/teacher" {
		t.Errorf("expected from to be remembered, got %q", d.From)
	}
}

func TestProtect_AnonymousAnyRole(t *testing.T) {
	d := Protect(session.State{}, "/settings", AnyRole)
	if d.Outcome != Redirect || !strings.HasPrefix(d.Location, LoginPath) {
		t.Errorf("expected login redirect, got %s", d)
	}
}

func TestProtect_LoadingTakesPrecedence(t *testing.T) {
	states := []session.State{
		{Loading: true},
		{Loading: true, Identity: &identity.Identity{ID: "u1", Role: identity.RoleStudent}},
		{Loading: true, Identity: &identity.Identity{ID: "u2", Role: identity.RoleUnknown}},
	}
	for _, st := range states {
		for _, role := range []identity.Role{AnyRole, identity.RoleAdmin, identity.RoleStudent} {
			if d := Protect(st, "/admin", role); d.Outcome != Loading {
				t.Errorf("expected loading for %+v/%s, got %s", st, role, d)
			}
		}
		if d := Root(st); d.Outcome != Loading {
			t.Errorf("expected Root loading, got %s", d)
		}
	}
}

func TestProtect_RendersMatchingRole(t *testing.T) {
	for _, role := range identity.Roles {
		if d := Protect(signedIn(role), role.Home(), role); d.Outcome != Render {
			t.Errorf("expected render for %s, got %s", role, d)
		}
		if d := Protect(signedIn(role), "/profile", AnyRole); d.Outcome != Render {
			t.Errorf("expected render with no role constraint for %s, got %s", role, d)
		}
	}
}

func TestProtect_UnknownRoleGoesToLogin(t *testing.T) {
	st := signedIn(identity.RoleUnknown)

	for _, role := range []identity.Role{AnyRole, identity.RoleAdmin} {
		d := Protect(st, "/admin", role)
		if d.Outcome != Redirect || !strings.HasPrefix(d.Location, LoginPath) {
			t.Errorf("expected login redirect for unknown role, got %s", d)
		}
	}
	if d := Root(st); d.Location != LoginPath {
		t.Errorf("expected Root to send unknown role to login, got %s", d)
	}
}

func TestProtect_IsIdempotent(t *testing.T) {
	states := []session.State{
		{Loading: true},
		{},
		signedIn(identity.RoleAdmin),
		signedIn(identity.RoleStudent),
		signedIn(identity.RoleUnknown),
	}

	for _, st := range states {
		before := *copyState(st)
		first := Protect(st, "/teacher", identity.RoleTeacher)
		second := Protect(st, "/teacher", identity.RoleTeacher)
		if first != second {
			t.Errorf("expected identical decisions, got %s then %s", first, second)
		}
		if !reflect.DeepEqual(before, *copyState(st)) {
			t.Errorf("expected state untouched, got %+v", st)
		}
	}
}

func copyState(st session.State) *session.State {
	cp := st
	if st.Identity != nil {
		ident := *st.Identity
		cp.Identity = &ident
	}
	return &cp
}

func TestRoot(t *testing.T) {
	if d := Root(session.State{}); d.Outcome != Redirect || d.Location != LoginPath {
		t.Errorf("expected plain login redirect, got %s", d)
	}
	for _, role := range identity.Roles {
		d := Root(signedIn(role))
		if d.Outcome != Redirect || d.Location != role.Home() {
			t.Errorf("expected redirect to %s, got %s", role.Home(), d)
		}
	}
}

func TestRouteRole(t *testing.T) {
	tests := []struct {
		path string
		role identity.Role
		ok   bool
	}{
		{"/admin", identity.RoleAdmin, true},
		{"/teacher/classes", identity.RoleTeacher, true},
		{"/student", identity.RoleStudent, true},
		{"/students", identity.RoleUnknown, false},
		{"/login", identity.RoleUnknown, false},
		{"/", identity.RoleUnknown, false},
	}
	for _, tt := range tests {
		role, ok := RouteRole(tt.path)
		if role != tt.role || ok != tt.ok {
			t.Errorf("RouteRole(%q) = %v, %v; want %v, %v", tt.path, role, ok, tt.role, tt.ok)
		}
	}
}

func TestDecision_String(t *testing.T) {
	if s := (Decision{Outcome: Redirect, Location: "/admin"}).String(); s != "redirect /admin" {
		t.Errorf("got %q", s)
	}
	if s := (Decision{Outcome: Render}).String(); s != "render" {
		t.Errorf("got %q", s)
	}
}

func TestBoundary_RecoversPanic(t *testing.T) {
	out := Boundary(func() string {
		panic("broken widget")
	}, func(recovered any) string {
		return "fallback: " + recovered.(string)
	})

	if out != "fallback: broken widget" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestBoundary_PassesThrough(t *testing.T) {
	out := Boundary(func() string { return "ok" }, func(any) string { return "fallback" })
	if out != "ok" {
		t.Errorf("unexpected output %q", out)
	}
}
