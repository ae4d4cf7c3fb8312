// ABOUTME: Shared lipgloss styles for consistent TUI appearance
// ABOUTME: Defines colors, borders, role accents and text styles used by the portal screens

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/uniportal/gradeportal/internal/identity"
)

var (
	// Colors - Core palette
	Primary   = lipgloss.Color("#2563EB") // Blue
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#F9FAFB") // Light

	// Colors - Role accents
	AdminAccent   = lipgloss.Color("#DC2626")
	TeacherAccent = lipgloss.Color("#7C3AED")
	StudentAccent = lipgloss.Color("#0891B2")

	Accent = lipgloss.Color("#60A5FA") // Lighter blue for highlights

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			MarginBottom(1)

	// Status indicators
	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	// Panels
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	ActivePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	// Label style for field names
	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(12)

	// Key style for keyboard shortcuts
	KeyStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	// Value style for emphasized data
	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)
)

// RoleColor returns the accent color for a role.
func RoleColor(r identity.Role) lipgloss.Color {
	switch r {
	case identity.RoleAdmin:
		return AdminAccent
	case identity.RoleTeacher:
		return TeacherAccent
	case identity.RoleStudent:
		return StudentAccent
	default:
		return Muted
	}
}

// RoleBadge renders a role as a colored label.
func RoleBadge(r identity.Role) string {
	return lipgloss.NewStyle().
		Foreground(Text).
		Background(RoleColor(r)).
		Bold(true).
		Padding(0, 1).
		Render(r.String())
}

// Field renders a label and value on one line.
func Field(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}
