// ABOUTME: Login and forgot-password forms built from bubbles text inputs
// ABOUTME: Tab moves focus, Enter submits; the App runs the resulting commands

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uniportal/gradeportal/internal/tui/styles"
)

// submitLoginMsg is sent when the login form is submitted
type submitLoginMsg struct {
	email    string
	password string
}

// submitForgotMsg is sent when the forgot-password form is submitted
type submitForgotMsg struct {
	email string
}

// loginForm collects email and password
type loginForm struct {
	inputs  []textinput.Model
	focus   int
	err     string
	pending bool
}

func newLoginForm(email string) *loginForm {
	emailInput := textinput.New()
	emailInput.Placeholder = "you@university.edu"
	emailInput.Prompt = "Email     "
	emailInput.CharLimit = 254
	emailInput.SetValue(email)

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.Prompt = "Password  "
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.CharLimit = 72

	f := &loginForm{inputs: []textinput.Model{emailInput, passwordInput}}
	if email != "" {
		f.focus = 1
	}
	f.applyFocus()
	return f
}

func (f *loginForm) applyFocus() {
	for i := range f.inputs {
		if i == f.focus {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

// setResult records the outcome of a submit.
func (f *loginForm) setResult(errText string) {
	f.pending = false
	f.err = errText
	if errText != "" {
		f.inputs[1].SetValue("")
		f.focus = 1
		f.applyFocus()
	}
}

func (f *loginForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.focus = (f.focus + 1) % len(f.inputs)
			f.applyFocus()
			return nil
		case "shift+tab", "up":
			f.focus = (f.focus + len(f.inputs) - 1) % len(f.inputs)
			f.applyFocus()
			return nil
		case "enter":
			if f.pending {
				return nil
			}
			email := strings.TrimSpace(f.inputs[0].Value())
			password := f.inputs[1].Value()
			if email == "" || password == "" {
				f.err = "Email and password are required"
				return nil
			}
			f.pending = true
			f.err = ""
			return func() tea.Msg { return submitLoginMsg{email: email, password: password} }
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *loginForm) View() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Sign in"))
	sb.WriteString("\n")
	for _, in := range f.inputs {
		sb.WriteString(in.View())
		sb.WriteString("\n")
	}
	if f.pending {
		sb.WriteString(styles.Subtitle.Render("Signing in..."))
		sb.WriteString("\n")
	}
	if f.err != "" {
		sb.WriteString(styles.StatusCritical.Render(f.err))
		sb.WriteString("\n")
	}
	return sb.String()
}

// forgotForm asks for the email to send a reset link to
type forgotForm struct {
	input   textinput.Model
	err     string
	notice  string
	pending bool
}

func newForgotForm(email string) *forgotForm {
	in := textinput.New()
	in.Placeholder = "you@university.edu"
	in.Prompt = "Email  "
	in.CharLimit = 254
	in.SetValue(email)
	in.Focus()
	return &forgotForm{input: in}
}

func (f *forgotForm) setResult(errText string) {
	f.pending = false
	f.err = errText
	if errText == "" {
		f.notice = "If that email is registered, a reset link is on its way"
	}
}

func (f *forgotForm) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if f.pending {
			return nil
		}
		email := strings.TrimSpace(f.input.Value())
		if email == "" {
			f.err = "Email is required"
			return nil
		}
		f.pending = true
		f.err = ""
		f.notice = ""
		return func() tea.Msg { return submitForgotMsg{email: email} }
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f *forgotForm) View() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Reset your password"))
	sb.WriteString("\n")
	sb.WriteString(f.input.View())
	sb.WriteString("\n")
	switch {
	case f.pending:
		sb.WriteString(styles.Subtitle.Render("Sending..."))
	case f.err != "":
		sb.WriteString(styles.StatusCritical.Render(f.err))
	case f.notice != "":
		sb.WriteString(styles.StatusOK.Render(f.notice))
	}
	sb.WriteString("\n")
	return sb.String()
}
