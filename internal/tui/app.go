// ABOUTME: Root bubbletea model for the portal TUI
// ABOUTME: Routes between screens by asking the guard about the current session

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/guard"
	"github.com/uniportal/gradeportal/internal/session"
	"github.com/uniportal/gradeportal/internal/tui/styles"
)

// Public screen paths. Role homes come from identity.Role.Home.
const (
	PathRoot     = "/"
	PathLogin    = guard.LoginPath
	PathRegister = "/register"
	PathForgot   = "/forgot-password"
)

// Layout constants
const (
	minTerminalWidth = 80 // Minimum width before using single-column layout
	panelPadding     = 4  // Total horizontal padding from panel borders (2 each side)
	maxRedirects     = 4
)

// API is the part of the REST client the screens call directly.
type API interface {
	GetJSON(ctx context.Context, path string, out any) error
	ForgotPassword(ctx context.Context, email string) error
}

// stateChangedMsg is sent when the session provider publishes a change
type stateChangedMsg struct{}

// startedMsg is sent when session resolution at launch finishes
type startedMsg struct {
	err error
}

// authDoneMsg is sent when a login or registration completes
type authDoneMsg struct {
	register bool
	err      error
}

// forgotDoneMsg is sent when the reset request completes
type forgotDoneMsg struct {
	err error
}

// overviewLoadedMsg is sent when a role overview fetch completes
type overviewLoadedMsg struct {
	path     string
	overview *Overview
	err      error
}

// resyncedMsg is sent when a manual re-sync with the server completes
type resyncedMsg struct {
	err error
}

// loggedOutMsg is sent when logout completes
type loggedOutMsg struct{}

// App is the root model for the TUI
type App struct {
	provider *session.Provider
	api      API
	ctx      context.Context

	state session.State
	path  string
	from  string

	width  int
	height int

	spinner  spinner.Model
	login    *loginForm
	register *registerForm
	forgot   *forgotForm

	overview     *Overview
	overviewErr  string
	overviewPath string
	lastUpdate   time.Time
	notice       string
	lastEmail    string

	changes     chan struct{}
	unsubscribe func()
}

// New creates the TUI application on top of a session provider. The App
// subscribes to the provider; call Close when done.
func New(ctx context.Context, provider *session.Provider, api API) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	a := &App{
		provider: provider,
		api:      api,
		ctx:      ctx,
		state:    provider.State(),
		path:     PathRoot,
		spinner:  sp,
		changes:  make(chan struct{}, 1),
	}
	a.unsubscribe = provider.Subscribe(func(session.State) {
		select {
		case a.changes <- struct{}{}:
		default:
		}
	})
	return a
}

// Close unsubscribes from the provider. Results arriving later are dropped.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// Path returns the current screen path.
func (a *App) Path() string {
	return a.path
}

// waitForChange blocks until the provider publishes a change.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changes:
			return stateChangedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: a.provider.Start(a.ctx)}
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForChange(), a.start())
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.register != nil {
			return a, a.register.Update(msg)
		}
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case stateChangedMsg:
		a.state = a.provider.State()
		return a, tea.Batch(a.waitForChange(), a.resolve())

	case startedMsg:
		if msg.err != nil {
			slog.Debug("Session start finished without identity", "error", msg.err)
		}
		a.state = a.provider.State()
		return a, a.resolve()

	case submitLoginMsg:
		return a, a.doLogin(msg)

	case submitRegisterMsg:
		return a, a.doRegister(msg)

	case registerCancelledMsg:
		return a, a.navigate(PathLogin)

	case authDoneMsg:
		a.state = a.provider.State()
		if msg.err != nil {
			text := session.Describe(msg.err)
			if msg.register && a.register != nil {
				a.register.setResult(text)
			} else if a.login != nil {
				a.login.setResult(text)
			}
			return a, nil
		}
		target := a.from
		if target == "" {
			target = PathRoot
		}
		return a, a.navigate(target)

	case submitForgotMsg:
		return a, a.doForgot(msg.email)

	case forgotDoneMsg:
		if a.forgot != nil {
			text := ""
			if msg.err != nil {
				text = session.Describe(msg.err)
			}
			a.forgot.setResult(text)
		}
		return a, nil

	case overviewLoadedMsg:
		if msg.path != a.path {
			return a, nil
		}
		if msg.err != nil {
			a.overviewErr = session.Describe(msg.err)
			return a, nil
		}
		a.overview = msg.overview
		a.overviewErr = ""
		a.lastUpdate = time.Now()
		return a, nil

	case resyncedMsg:
		a.state = a.provider.State()
		if msg.err != nil {
			a.notice = ""
			return a, a.resolve()
		}
		a.notice = "Session re-synced"
		a.overview = nil
		a.overviewPath = ""
		return a, a.resolve()

	case loggedOutMsg:
		a.state = a.provider.State()
		a.overview = nil
		a.overviewPath = ""
		return a, a.navigate(PathLogin)

	default:
		if a.path == PathRegister && a.register != nil {
			return a, a.register.Update(msg)
		}
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.path {
	case PathLogin:
		switch msg.String() {
		case "ctrl+r":
			return a, a.navigate(PathRegister)
		case "ctrl+f":
			return a, a.navigate(PathForgot)
		case "esc":
			return a, tea.Quit
		}
		if a.login != nil {
			return a, a.login.Update(msg)
		}

	case PathRegister:
		if a.register != nil {
			return a, a.register.Update(msg)
		}

	case PathForgot:
		if msg.String() == "esc" {
			return a, a.navigate(PathLogin)
		}
		if a.forgot != nil {
			return a, a.forgot.Update(msg)
		}

	default:
		if a.state.Loading {
			if msg.String() == "q" {
				return a, tea.Quit
			}
			return a, nil
		}
		switch msg.String() {
		case "q":
			return a, tea.Quit
		case "r":
			a.notice = "Re-syncing..."
			return a, a.resync()
		case "o":
			return a, a.logout()
		}
	}
	return a, nil
}

// navigate moves to path, which may carry a ?from= query, and applies the
// guard.
func (a *App) navigate(path string) tea.Cmd {
	p, from := splitLocation(path)
	if p != a.path {
		a.leave()
	}
	a.path = p
	if from != "" || p != PathLogin {
		a.from = from
	}
	return a.resolve()
}

// leave tears down the current screen's transient state.
func (a *App) leave() {
	a.notice = ""
	switch a.path {
	case PathLogin:
		if a.login != nil {
			a.lastEmail = strings.TrimSpace(a.login.inputs[0].Value())
		}
		a.login = nil
	case PathRegister:
		a.register = nil
	case PathForgot:
		a.forgot = nil
	}
}

// resolve applies the guard to the current path until it settles on a
// screen to render.
func (a *App) resolve() tea.Cmd {
	for i := 0; i < maxRedirects; i++ {
		d, screenCmd := a.decide()
		if d.Outcome != guard.Redirect {
			return screenCmd
		}
		slog.Debug("Guard redirect", "from", a.path, "to", d.Location)
		p, from := splitLocation(d.Location)
		a.leave()
		a.path = p
		a.from = from
	}
	slog.Warn("Too many guard redirects", "path", a.path)
	return nil
}

// decide returns the guard decision for the current path and, when the
// screen renders, any command it needs to start.
func (a *App) decide() (guard.Decision, tea.Cmd) {
	switch a.path {
	case PathRoot:
		return guard.Root(a.state), nil

	case PathLogin, PathRegister, PathForgot:
		// An identity without a known role has no home to go to; it signs in again.
		if a.state.IsAuthenticated() && a.state.Identity.Role.Known() {
			if a.from != "" {
				return guard.Decision{Outcome: guard.Redirect, Location: a.from}, nil
			}
			return guard.Root(a.state), nil
		}
		return guard.Decision{Outcome: guard.Render}, a.openPublic()
	}

	role, ok := guard.RouteRole(a.path)
	if !ok {
		return guard.Decision{Outcome: guard.Redirect, Location: PathRoot}, nil
	}
	d := guard.Protect(a.state, a.path, role)
	if d.Outcome == guard.Render && a.overviewPath != a.path {
		a.overview = nil
		a.overviewErr = ""
		a.overviewPath = a.path
		return d, a.fetchOverview(a.path)
	}
	return d, nil
}

// openPublic creates the form for a public screen if it is not open yet.
func (a *App) openPublic() tea.Cmd {
	switch a.path {
	case PathLogin:
		if a.login == nil {
			email := a.lastEmail
			if cached := a.provider.CachedIdentity(); email == "" && cached != nil {
				email = cached.Email
			}
			a.login = newLoginForm(email)
		}
	case PathRegister:
		if a.register == nil {
			a.register = newRegisterForm()
			return a.register.Init()
		}
	case PathForgot:
		if a.forgot == nil {
			a.forgot = newForgotForm(a.lastEmail)
		}
	}
	return nil
}

// splitLocation separates a guard location into its path and from query.
func splitLocation(loc string) (string, string) {
	u, err := url.Parse(loc)
	if err != nil {
		return loc, ""
	}
	return u.Path, u.Query().Get("from")
}

func (a *App) doLogin(msg submitLoginMsg) tea.Cmd {
	return func() tea.Msg {
		_, err := a.provider.Login(a.ctx, client.Credentials{Email: msg.email, Password: msg.password})
		return authDoneMsg{err: err}
	}
}

func (a *App) doRegister(msg submitRegisterMsg) tea.Cmd {
	return func() tea.Msg {
		_, err := a.provider.Register(a.ctx, msg.reg)
		return authDoneMsg{register: true, err: err}
	}
}

func (a *App) doForgot(email string) tea.Cmd {
	return func() tea.Msg {
		return forgotDoneMsg{err: a.api.ForgotPassword(a.ctx, email)}
	}
}

// fetchOverview loads the role overview for a home path
func (a *App) fetchOverview(path string) tea.Cmd {
	return func() tea.Msg {
		var env struct {
			Data Overview `json:"data"`
		}
		if err := a.api.GetJSON(a.ctx, overviewPath(path), &env); err != nil {
			return overviewLoadedMsg{path: path, err: err}
		}
		return overviewLoadedMsg{path: path, overview: &env.Data}
	}
}

func (a *App) resync() tea.Cmd {
	return func() tea.Msg {
		_, err := a.provider.RefreshAuth(a.ctx)
		return resyncedMsg{err: err}
	}
}

func (a *App) logout() tea.Cmd {
	return func() tea.Msg {
		a.provider.Logout(a.ctx)
		return loggedOutMsg{}
	}
}

// View implements tea.Model
func (a *App) View() string {
	var content string

	switch a.path {
	case PathLogin:
		if a.login != nil {
			content = a.login.View()
		}
	case PathRegister:
		if a.register != nil {
			content = a.register.View()
		}
	case PathForgot:
		if a.forgot != nil {
			content = a.forgot.View()
		}
	default:
		content = a.viewProtected()
	}

	return a.wrapWithFrame(content)
}

// viewProtected renders a role home, or the loading view while the session
// is unresolved.
func (a *App) viewProtected() string {
	if a.state.Loading || a.state.Identity == nil {
		return styles.Panel.Render(a.spinner.View() + " Checking your session...")
	}
	ident := a.state.Identity
	body := guard.Boundary(func() string {
		return renderHome(ident, a.overview, a.overviewErr, a.frameWidth())
	}, renderBroken)
	if a.notice != "" {
		body += "\n" + styles.Subtitle.Render(a.notice)
	}
	return body
}

func (a *App) frameWidth() int {
	if a.width < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width
}

// renderHeader creates the header bar with app branding and the signed-in user
func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftText := " " + titleStyle.Render("University Grading Portal") + " "

	rightText := ""
	if ident := a.state.Identity; ident != nil {
		rightText = " " + contextStyle.Render(ident.DisplayName()) + " " + styles.RoleBadge(ident.Role) + " "
	}

	fillWidth := width - 4 - lipgloss.Width(leftText) - lipgloss.Width(rightText) // -4 for ╭─ and ─╮
	if fillWidth < 0 {
		fillWidth = 0
	}

	return borderStyle.Render("╭─") + leftText + borderStyle.Render(strings.Repeat("─", fillWidth)) + rightText + borderStyle.Render("─╮")
}

// shortcuts lists the key help for the current screen
func (a *App) shortcuts() []string {
	switch a.path {
	case PathLogin:
		return []string{"Tab Next", "Enter Sign-in", "^R Register", "^F Forgot", "Esc Quit"}
	case PathRegister:
		return []string{"Tab Next", "Enter Confirm", "Esc Back"}
	case PathForgot:
		return []string{"Enter Send", "Esc Back"}
	default:
		if a.state.Loading {
			return []string{"q Quit"}
		}
		return []string{"r Re-sync", "o Sign-out", "q Quit"}
	}
}

// renderFooter creates the footer with keyboard shortcuts and status
func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	shortcuts := a.shortcuts()
	var styled []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		styled = append(styled, styles.KeyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
	}
	leftText := " " + strings.Join(styled, "  ")

	rightText := ""
	if !a.lastUpdate.IsZero() && a.overview != nil {
		rightText = statusStyle.Render("Updated "+formatTimeSince(a.lastUpdate)) + " "
	}

	fillWidth := width - 4 - lipgloss.Width(leftText) - lipgloss.Width(rightText) // -4 for ╰─ and ─╯
	if fillWidth < 0 {
		fillWidth = 0
	}

	return borderStyle.Render("╰─") + leftText + borderStyle.Render(strings.Repeat("─", fillWidth)) + rightText + borderStyle.Render("─╯")
}

// formatTimeSince formats a duration since the given time in human-readable form
func formatTimeSince(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 5 {
			return "just now"
		}
		return fmt.Sprintf("%ds ago", secs)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}

// Run starts the TUI and blocks until the user quits
func Run(ctx context.Context, provider *session.Provider, api API) error {
	app := New(ctx, provider, api)
	defer app.Close()

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
