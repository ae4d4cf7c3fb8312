// ABOUTME: Tests for the root TUI model
// ABOUTME: Drives screens through Update and checks guard-driven navigation and views

package tui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/config"
	"github.com/uniportal/gradeportal/internal/devserver"
	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/session"
	"github.com/uniportal/gradeportal/internal/tokenstore"
)

func newTestApp(t *testing.T) (*App, *session.Provider) {
	t.Helper()
	s, err := devserver.New(&config.ServerConfig{
		JWTSecret:      "tui-secret-0123456789",
		AccessTokenTTL: time.Minute,
		RefreshWindow:  time.Hour,
		ResetTokenTTL:  time.Hour,
		MaxAdmins:      1,
		RateLimitAuth:  1000,
		SeedUsers:      true,
	}, devserver.WithBcryptCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("failed to create dev server: %v", err)
	}
	server := httptest.NewServer(s.Router())
	t.Cleanup(server.Close)

	c := client.New(server.URL, client.WithTokenStore(tokenstore.NewMemoryStore("")))
	prov := session.New(c, session.WithSettleDelay(0))
	app := New(context.Background(), prov, c)
	t.Cleanup(app.Close)

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, prov
}

// started resolves the session and delivers the result to the app.
func started(t *testing.T, a *App, prov *session.Provider) tea.Cmd {
	t.Helper()
	err := prov.Start(context.Background())
	_, cmd := a.Update(startedMsg{err: err})
	return cmd
}

// run executes cmd and returns its message.
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return cmd()
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// signIn fills and submits the login form and processes the result.
func signIn(t *testing.T, a *App, email, password string) tea.Cmd {
	t.Helper()
	if a.Path() != PathLogin {
		t.Fatalf("expected login screen, got %s", a.Path())
	}
	a.login.inputs[0].SetValue("")
	a.login.focus = 0
	a.login.applyFocus()

	a.Update(keys(email))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	a.Update(keys(password))
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})

	submit := run(t, cmd)
	if _, ok := submit.(submitLoginMsg); !ok {
		t.Fatalf("expected submitLoginMsg, got %T", submit)
	}
	_, cmd = a.Update(submit)
	_, cmd = a.Update(run(t, cmd))
	return cmd
}

func TestApp_LoadingUntilStarted(t *testing.T) {
	a, _ := newTestApp(t)

	if !strings.Contains(a.View(), "Checking your session") {
		t.Error("expected loading view before the session resolves")
	}
	if a.Path() != PathRoot {
		t.Errorf("expected to stay on %s while loading, got %s", PathRoot, a.Path())
	}
}

func TestApp_AnonymousGoesToLogin(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	if a.Path() != PathLogin {
		t.Fatalf("expected %s, got %s", PathLogin, a.Path())
	}
	if !strings.Contains(a.View(), "Sign in") {
		t.Error("expected login form")
	}
}

func TestApp_LoginLandsOnRoleHome(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	fetch := signIn(t, a, "teacher@uni.test", devserver.SeedPassword)
	if a.Path() != "/teacher" {
		t.Fatalf("expected /teacher, got %s", a.Path())
	}

	a.Update(run(t, fetch))
	view := a.View()
	for _, want := range []string{"Teaching", "Tomas Teacher", "Welcome back, Tomas"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestApp_RememberedDestinationIsGuarded(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	a.navigate("/admin")
	if a.Path() != PathLogin || a.from != "/admin" {
		t.Fatalf("expected login remembering /admin, got %s from %q", a.Path(), a.from)
	}

	signIn(t, a, "student@uni.test", devserver.SeedPassword)
	if a.Path() != "/student" {
		t.Errorf("expected a student to end at /student, got %s", a.Path())
	}
}

func TestApp_LoginFailureShowsMessage(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	if cmd := signIn(t, a, "teacher@uni.test", "wrong-password"); cmd != nil {
		t.Error("expected no follow-up command after a failed login")
	}
	if a.Path() != PathLogin {
		t.Errorf("expected to stay on login, got %s", a.Path())
	}
	if !strings.Contains(a.View(), "Invalid email or password") {
		t.Error("expected the failure message")
	}
	if a.login.inputs[0].Value() != "teacher@uni.test" {
		t.Error("expected email kept after failure")
	}
}

func TestApp_LoginRequiresBothFields(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no submit with empty fields")
	}
	if !strings.Contains(a.View(), "Email and password are required") {
		t.Error("expected validation message")
	}
}

func TestApp_ForgotPasswordKeepsEmail(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)

	a.Update(keys("student@uni.test"))
	a.Update(tea.KeyMsg{Type: tea.KeyCtrlF})
	if a.Path() != PathForgot {
		t.Fatalf("expected %s, got %s", PathForgot, a.Path())
	}
	if a.forgot.input.Value() != "student@uni.test" {
		t.Errorf("expected email carried over, got %q", a.forgot.input.Value())
	}

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = a.Update(run(t, cmd))
	if _, ok := run(t, cmd).(forgotDoneMsg); !ok {
		t.Fatal("expected forgotDoneMsg")
	}
	a.Update(run(t, cmd))
	if !strings.Contains(a.View(), "reset link is on its way") {
		t.Error("expected confirmation notice")
	}

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if a.Path() != PathLogin {
		t.Errorf("expected esc to return to login, got %s", a.Path())
	}
}

func TestApp_AuthenticatedSkipsPublicScreens(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)
	signIn(t, a, "admin@uni.test", devserver.SeedPassword)

	for _, p := range []string{PathLogin, PathRegister, PathForgot, "/nowhere"} {
		a.navigate(p)
		if a.Path() != "/admin" {
			t.Errorf("navigate(%s): expected /admin, got %s", p, a.Path())
		}
	}
}

func TestApp_UnknownRoleGetsLoginForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":{"token":"t1","user":{"_id":"u9","firstName":"Reg","lastName":"Istrar","email":"reg@uni.test","role":"registrar"}}}`))
	}))
	defer server.Close()

	c := client.New(server.URL, client.WithTokenStore(tokenstore.NewMemoryStore("")))
	prov := session.New(c, session.WithSettleDelay(0))
	a := New(context.Background(), prov, c)
	defer a.Close()
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	started(t, a, prov)

	if _, err := prov.Login(context.Background(), client.Credentials{Email: "reg@uni.test", Password: "pw"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	a.Update(stateChangedMsg{})

	for _, p := range []string{PathRoot, PathLogin, "/admin"} {
		a.navigate(p)
		if a.Path() != PathLogin {
			t.Errorf("navigate(%s): expected %s, got %s", p, PathLogin, a.Path())
		}
		if a.login == nil || !strings.Contains(a.View(), "Sign in") {
			t.Errorf("navigate(%s): expected login form", p)
		}
	}
}

func TestApp_WrongRoleRedirectsHome(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)
	signIn(t, a, "teacher@uni.test", devserver.SeedPassword)

	for _, p := range []string{"/admin", "/student/grades"} {
		a.navigate(p)
		if a.Path() != "/teacher" {
			t.Errorf("navigate(%s): expected /teacher, got %s", p, a.Path())
		}
	}
}

func TestApp_StaleOverviewIgnored(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)
	signIn(t, a, "teacher@uni.test", devserver.SeedPassword)

	a.Update(overviewLoadedMsg{path: "/admin", overview: &Overview{Greeting: "not mine"}})
	if a.overview != nil {
		t.Error("expected overview for another path to be dropped")
	}

	a.Update(overviewLoadedMsg{path: "/teacher", err: client.ErrNetworkUnavailable})
	if !strings.Contains(a.View(), "Cannot reach the server") {
		t.Error("expected overview error in the view")
	}
}

func TestApp_Logout(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)
	signIn(t, a, "student@uni.test", devserver.SeedPassword)

	_, cmd := a.Update(keys("o"))
	a.Update(run(t, cmd))

	if a.Path() != PathLogin {
		t.Errorf("expected login after logout, got %s", a.Path())
	}
	if prov.State().IsAuthenticated() {
		t.Error("expected session cleared")
	}
	if a.login.inputs[0].Value() != "student@uni.test" {
		t.Errorf("expected cached email prefilled, got %q", a.login.inputs[0].Value())
	}
}

func TestApp_SessionLostWhileOnHome(t *testing.T) {
	a, prov := newTestApp(t)
	started(t, a, prov)
	signIn(t, a, "student@uni.test", devserver.SeedPassword)

	prov.Logout(context.Background())
	a.Update(stateChangedMsg{})

	if a.Path() != PathLogin || a.from != "/student" {
		t.Errorf("expected login remembering /student, got %s from %q", a.Path(), a.from)
	}
}

func TestApp_CloseStopsNotifications(t *testing.T) {
	a, prov := newTestApp(t)
	a.Close()

	started(t, a, prov)
	select {
	case <-a.changes:
		t.Error("expected no change signal after Close")
	default:
	}
}

func TestApp_CtrlCQuits(t *testing.T) {
	a, _ := newTestApp(t)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := run(t, cmd).(tea.QuitMsg); !ok {
		t.Error("expected quit")
	}
}

func TestRenderHome_NarrowStacksPanels(t *testing.T) {
	ident := &identity.Identity{ID: "u1", FullName: "Ada Lovelace", Email: "ada@uni.test", Role: identity.RoleAdmin, IsActive: true}
	wide := renderHome(ident, nil, "", 120)
	narrow := renderHome(ident, nil, "", 60)

	if strings.Count(narrow, "\n") <= strings.Count(wide, "\n") {
		t.Error("expected narrow layout to be taller")
	}
}

func TestRenderBroken(t *testing.T) {
	out := renderBroken(errors.New("nil overview"))
	if !strings.Contains(out, "failed to render") || !strings.Contains(out, "nil overview") {
		t.Errorf("unexpected fallback %q", out)
	}
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		in, path, from string
	}{
		{"/login?from=%2Fadmin", "/login", "/admin"},
		{"/login", "/login", ""},
		{"/teacher", "/teacher", ""},
	}
	for _, tt := range tests {
		p, from := splitLocation(tt.in)
		if p != tt.path || from != tt.from {
			t.Errorf("splitLocation(%q) = %q, %q", tt.in, p, from)
		}
	}
}

func TestYearLabel(t *testing.T) {
	tests := map[string]string{"1": "1st year", "2": "2nd year", "3": "3rd year", "4": "4th year", "Graduate": "Graduate"}
	for in, want := range tests {
		if got := yearLabel(in); got != want {
			t.Errorf("yearLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{time.Second, "just now"},
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
	}
	for _, tt := range tests {
		if got := formatTimeSince(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("formatTimeSince(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
