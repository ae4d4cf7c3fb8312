// ABOUTME: Account registration screen as a bubbletea model
// ABOUTME: Embeds a huh form with the portal theme and reports the collected fields

package tui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/uniportal/gradeportal/internal/client"
	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/tui/styles"
)

// submitRegisterMsg is sent when the registration form completes
type submitRegisterMsg struct {
	reg client.Registration
}

// registerCancelledMsg is sent when the user leaves the form with Esc
type registerCancelledMsg struct{}

// registerForm collects a new account's details
type registerForm struct {
	form    *huh.Form
	err     string
	pending bool

	firstName string
	lastName  string
	email     string
	password  string
	role      identity.Role
}

// formTheme returns the huh theme for portal forms.
func formTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().
		Foreground(styles.Muted).
		MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().
		Foreground(styles.Danger).
		SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)
	t.Focused.SelectSelector = lipgloss.NewStyle().
		Foreground(styles.Primary).
		SetString("> ")
	t.Focused.SelectedOption = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().
		Foreground(styles.Primary)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().
		Foreground(styles.Muted)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().
		Foreground(styles.Muted)

	return t
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at < 1 || at == len(s)-1 {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validatePassword(s string) error {
	if len(s) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func roleOptions() []huh.Option[identity.Role] {
	opts := make([]huh.Option[identity.Role], 0, len(identity.Roles))
	for _, r := range identity.Roles {
		label := strings.ToUpper(r.String()[:1]) + r.String()[1:]
		opts = append(opts, huh.NewOption(label, r))
	}
	return opts
}

func newRegisterForm() *registerForm {
	f := &registerForm{role: identity.RoleStudent}
	f.form = f.build()
	return f
}

func (f *registerForm) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First name").CharLimit(100).Value(&f.firstName).Validate(required("first name")),
			huh.NewInput().Title("Last name").CharLimit(100).Value(&f.lastName).Validate(required("last name")),
			huh.NewInput().Title("Email").CharLimit(254).Value(&f.email).Validate(validateEmail),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).CharLimit(72).Value(&f.password).Validate(validatePassword),
			huh.NewSelect[identity.Role]().Title("Role").Options(roleOptions()...).Value(&f.role),
		).Title("Create an account").
			Description("Esc returns to sign in"),
	).WithTheme(formTheme()).WithShowHelp(false)
}

// setResult records a failed submit and reopens the form with the same values.
func (f *registerForm) setResult(errText string) {
	f.pending = false
	f.err = errText
	if errText != "" {
		f.password = ""
		f.form = f.build()
	}
}

func (f *registerForm) Init() tea.Cmd {
	return f.form.Init()
}

func (f *registerForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		return func() tea.Msg { return registerCancelledMsg{} }
	}
	if f.pending {
		return nil
	}

	model, cmd := f.form.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		f.form = form
	}

	if f.form.State == huh.StateCompleted {
		f.pending = true
		f.err = ""
		reg := client.Registration{
			FirstName: strings.TrimSpace(f.firstName),
			LastName:  strings.TrimSpace(f.lastName),
			Email:     strings.TrimSpace(f.email),
			Password:  f.password,
			Role:      f.role,
		}
		return func() tea.Msg { return submitRegisterMsg{reg: reg} }
	}
	return cmd
}

func (f *registerForm) View() string {
	var sb strings.Builder
	sb.WriteString(f.form.View())
	if f.pending {
		sb.WriteString("\n")
		sb.WriteString(styles.Subtitle.Render("Creating account..."))
	}
	if f.err != "" {
		sb.WriteString("\n")
		sb.WriteString(styles.StatusCritical.Render(f.err))
	}
	return sb.String()
}
