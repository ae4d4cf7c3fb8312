// ABOUTME: Route guard deciding whether a protected view renders or redirects
// ABOUTME: Pure functions of session state plus a panic boundary for views

package guard

import (
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/session"
)

// LoginPath is where anonymous users are sent.
const LoginPath = "/login"

// AnyRole places no role constraint on a protected view.
const AnyRole = identity.RoleUnknown

// Outcome is what the caller should do with a view.
type Outcome int

const (
	Loading Outcome = iota
	Render
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "invalid"
	}
}

// Decision is the guard's answer for one request.
type Decision struct {
	Outcome Outcome
	// Location is the redirect target, including any query.
	Location string
	// From is the originally requested path on a redirect to login.
	From string
}

func (d Decision) String() string {
	if d.Outcome == Redirect {
		return fmt.Sprintf("redirect %s", d.Location)
	}
	return d.Outcome.String()
}

// toLogin builds the login redirect, remembering where the user was going.
func toLogin(from string) Decision {
	if from == "" || from == LoginPath {
		return Decision{Outcome: Redirect, Location: LoginPath}
	}
	return Decision{
		Outcome:  Redirect,
		Location: LoginPath + "?from=" + url.QueryEscape(from),
		From:     from,
	}
}

// Protect decides for a view at path that requires role (AnyRole for none).
//
// Loading wins over everything. An anonymous session, or an identity whose
// role is not one of the known three, goes to login. A role mismatch goes to
// the identity's own home, never to path.
func Protect(st session.State, path string, role identity.Role) Decision {
	if st.Loading {
		return Decision{Outcome: Loading}
	}
	if st.Identity == nil || !st.Identity.Role.Known() {
		return toLogin(path)
	}
	if role != AnyRole && st.Identity.Role != role {
		return Decision{Outcome: Redirect, Location: st.Identity.Role.Home()}
	}
	return Decision{Outcome: Render}
}

// Root decides for "/". It never renders.
func Root(st session.State) Decision {
	if st.Loading {
		return Decision{Outcome: Loading}
	}
	if st.Identity == nil || !st.Identity.Role.Known() {
		return toLogin("")
	}
	return Decision{Outcome: Redirect, Location: st.Identity.Role.Home()}
}

// RouteRole returns the role a path requires and whether the path is a
// protected role home.
func RouteRole(path string) (identity.Role, bool) {
	for _, r := range identity.Roles {
		if path == r.Home() || strings.HasPrefix(path, r.Home()+"/") {
			return r, true
		}
	}
	return identity.RoleUnknown, false
}

// Boundary runs render and recovers a panic from it, returning fallback's
// output instead. One broken view must not take down the program.
func Boundary(render func() string, fallback func(recovered any) string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("View render panicked", "panic", r, "stack", string(debug.Stack()))
			out = fallback(r)
		}
	}()
	return render()
}
