package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorShade   = lipgloss.Color("#1F3A4D")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	WarnTextStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	InfoTextStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	DebitStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	CreditStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	DuplicateStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Strikethrough(true)

	DrawBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	BusyBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	// Canvas layers.
	PageInkStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RegionStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	RegionLabelStyle = lipgloss.NewStyle().
				Foreground(ColorCyan).
				Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	PendingFillStyle = lipgloss.NewStyle().
				Foreground(ColorGray).
				Background(ColorShade)

	CursorStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)
)
