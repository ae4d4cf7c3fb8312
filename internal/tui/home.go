// ABOUTME: Role home screens shown once the guard lets a session through
// ABOUTME: Renders the profile and the role's overview payload

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/uniportal/gradeportal/internal/identity"
	"github.com/uniportal/gradeportal/internal/tui/styles"
)

// Overview is the payload of GET /api/<role>/overview.
type Overview struct {
	Role        string `json:"role"`
	Greeting    string `json:"greeting"`
	GeneratedAt string `json:"generatedAt"`
}

// overviewPath returns the overview endpoint for a role home path.
func overviewPath(home string) string {
	return "/api" + home + "/overview"
}

func homeTitle(r identity.Role) string {
	switch r {
	case identity.RoleAdmin:
		return "Administration"
	case identity.RoleTeacher:
		return "Teaching"
	case identity.RoleStudent:
		return "My grades"
	default:
		return "Home"
	}
}

// renderHome draws a role home. ident must not be nil.
func renderHome(ident *identity.Identity, ov *Overview, ovErr string, width int) string {
	accent := styles.RoleColor(ident.Role)
	title := lipgloss.NewStyle().Foreground(accent).Bold(true).MarginBottom(1)

	var profile strings.Builder
	profile.WriteString(title.Render(homeTitle(ident.Role)) + "  " + styles.RoleBadge(ident.Role) + "\n\n")
	profile.WriteString(styles.Field("Name", ident.DisplayName()) + "\n")
	profile.WriteString(styles.Field("Email", ident.Email) + "\n")
	profile.WriteString(styles.Field("Account", ident.ID) + "\n")
	if ident.StudentID != "" {
		profile.WriteString(styles.Field("Student ID", ident.StudentID) + "\n")
	}
	if ident.EmployeeID != "" {
		profile.WriteString(styles.Field("Employee ID", ident.EmployeeID) + "\n")
	}
	if ident.YearLevel != "" {
		profile.WriteString(styles.Field("Year", yearLabel(ident.YearLevel)) + "\n")
	}
	status := styles.StatusOK.Render("active")
	if !ident.IsActive {
		status = styles.StatusWarning.Render("inactive")
	}
	profile.WriteString(styles.LabelStyle.Render("Status") + " " + status)

	var overview strings.Builder
	overview.WriteString(styles.Title.Render("Overview") + "\n")
	switch {
	case ovErr != "":
		overview.WriteString(styles.StatusCritical.Render(ovErr))
	case ov == nil:
		overview.WriteString(styles.Subtitle.Render("Loading..."))
	default:
		overview.WriteString(ov.Greeting + "\n\n")
		overview.WriteString(styles.Field("Generated", ov.GeneratedAt))
	}

	panelWidth := width - panelPadding
	if width >= minTerminalWidth {
		panelWidth = (width - panelPadding) / 2
	}
	if panelWidth < 20 {
		panelWidth = 20
	}
	left := styles.ActivePanel.BorderForeground(accent).Width(panelWidth).Render(profile.String())
	right := styles.Panel.Width(panelWidth).Render(overview.String())
	if width < minTerminalWidth {
		return lipgloss.JoinVertical(lipgloss.Left, left, right)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// renderBroken is the fallback when a home view panics.
func renderBroken(recovered any) string {
	return styles.Panel.Render(
		styles.StatusCritical.Render("This view failed to render.") + "\n" +
			styles.Subtitle.Render(fmt.Sprint(recovered)) + "\n" +
			"Press " + styles.KeyStyle.Render("r") + " to re-sync or " + styles.KeyStyle.Render("o") + " to sign out.",
	)
}

// yearLabel formats a year level for display.
func yearLabel(s string) string {
	if n, err := strconv.Atoi(s); err == nil {
		switch n {
		case 1:
			return "1st year"
		case 2:
			return "2nd year"
		case 3:
			return "3rd year"
		default:
			return fmt.Sprintf("%dth year", n)
		}
	}
	return s
}
