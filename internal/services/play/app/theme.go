package play

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header    lipgloss.Style
	Frame     lipgloss.Style
	Narrative lipgloss.Style
	Muted     lipgloss.Style
	Accent    lipgloss.Style
	Success   lipgloss.Style
	Danger    lipgloss.Style
	Input     lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#FFD75F")
	secondary := lipgloss.Color("#7D7D7D")
	success := lipgloss.Color("#87D787")
	danger := lipgloss.Color("#FF5F5F")

	return theme{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),
		Narrative: lipgloss.NewStyle().
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(secondary),
		Accent: lipgloss.NewStyle().
			Foreground(accent),
		Success: lipgloss.NewStyle().
			Foreground(success),
		Danger: lipgloss.NewStyle().
			Foreground(danger),
		Input: lipgloss.NewStyle().
			Foreground(accent),
	}
}
