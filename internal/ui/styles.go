package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/rirc/internal/session"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	errorColor     = lipgloss.Color("#EF4444") // Red
	warningColor   = lipgloss.Color("#F59E0B") // Amber/Yellow

	// Channel bar styles
	navStyle = lipgloss.NewStyle().
			Padding(0, 1)

	navCurrentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	navInactiveStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Padding(0, 1)

	navActivityStyles = map[session.Activity]lipgloss.Style{
		session.ActivityNone:         navStyle,
		session.ActivityJoinPartQuit: navStyle.Foreground(mutedColor),
		session.ActivityChat:         navStyle.Foreground(secondaryColor),
		session.ActivityPinged:       navStyle.Foreground(errorColor).Bold(true),
	}

	// Scrollback styles
	timeStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	fromStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) // blue
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray

	kindStyles = map[session.Kind]lipgloss.Style{
		session.KindStatus:       statusStyle,
		session.KindChat:         lipgloss.NewStyle(),
		session.KindNotice:       lipgloss.NewStyle().Foreground(warningColor),
		session.KindJoinPartQuit: statusStyle,
		session.KindError:        lipgloss.NewStyle().Foreground(errorColor),
		session.KindPinged:       lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		session.KindSelf:         lipgloss.NewStyle(),
	}

	// Status bar styles
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0")).
			Background(lipgloss.Color("#2D2D2D"))

	statusBarOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor).
				Background(lipgloss.Color("#2D2D2D"))

	// Help and input styles
	helpKeyStyle  = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	helpDescStyle = lipgloss.NewStyle().Foreground(mutedColor)
	promptStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
)
