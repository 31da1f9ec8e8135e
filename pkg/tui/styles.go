package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
// Single source of truth for watch-view colors.
var (
	steelBlue   = lipgloss.Color("#7AA2F7") // accents and action badges
	mossGreen   = lipgloss.Color("#9ECE6A") // success states
	emberRed    = lipgloss.Color("#F7768E") // errors and failed states
	sandYellow  = lipgloss.Color("#E0AF68") // aborted states and warnings
	mutedGray   = lipgloss.Color("#565F89") // secondary text
	brightWhite = lipgloss.Color("#C0CAF5") // primary text
	inkBlack    = lipgloss.Color("#1A1B26") // badge text on colored background
)

// Common styles, pre-configured per element.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(steelBlue).
			Bold(true)

	instructionStyle = lipgloss.NewStyle().
				Foreground(brightWhite)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(sandYellow)

	ruleStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	actionBadge = lipgloss.NewStyle().
			Foreground(inkBlack).
			Background(steelBlue).
			Padding(0, 1).
			Bold(true)

	statusBadge = lipgloss.NewStyle().
			Foreground(inkBlack).
			Background(mossGreen).
			Padding(0, 1).
			Bold(true)

	errorBadge = lipgloss.NewStyle().
			Foreground(inkBlack).
			Background(emberRed).
			Padding(0, 1).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(mossGreen).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(emberRed).
			Bold(true)

	abortedStyle = lipgloss.NewStyle().
			Foreground(sandYellow).
			Bold(true)
)
