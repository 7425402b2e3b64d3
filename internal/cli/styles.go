package cli

import "github.com/charmbracelet/lipgloss"

// Output styles. lipgloss degrades to plain text when stdout is not a
// terminal, so these are safe in hooks and pipes.
var (
	stylePass = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	styleFail = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	styleMuted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	styleHeading = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
)
