package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	Header     lipgloss.Style
	Reasoning  lipgloss.Style
	Narrative  lipgloss.Style
	Patch      lipgloss.Style
	Cleared    lipgloss.Style
	FormPanel  lipgloss.Style
	FormLabel  lipgloss.Style
	Input      lipgloss.Style
	InputBusy  lipgloss.Style
	StatusInfo lipgloss.Style
	StatusWarn lipgloss.Style
	StatusErr  lipgloss.Style
}

type BorderColors struct {
	Unselected string
	Focused    string
	Busy       string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		Unselected: "#CCCCCC",
		Focused:    "#FFFF99", // Light yellow
		Busy:       "#FFB6C1", // Light pink
	}

	darkModeColors := BorderColors{
		Unselected: "#444444",
		Focused:    "#DDDD77", // Desaturated yellow for dark mode
		Busy:       "#DD7090", // Desaturated pink for dark mode
	}

	return &Style{
		Header: lipgloss.NewStyle().Bold(true),
		Reasoning: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#777777", Dark: "#888888"}).
			PaddingLeft(2),
		Narrative: lipgloss.NewStyle().PaddingLeft(1),
		Patch: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}).
			PaddingLeft(1),
		Cleared: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#A15C00", Dark: "#FFB74D"}).
			PaddingLeft(1),
		FormPanel: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Unselected,
				Dark:  darkModeColors.Unselected,
			}),
		FormLabel: lipgloss.NewStyle().Bold(true),
		Input: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Focused,
				Dark:  darkModeColors.Focused,
			}),
		InputBusy: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: lightModeColors.Busy,
				Dark:  darkModeColors.Busy,
			}),
		StatusInfo: lipgloss.NewStyle().Faint(true),
		StatusWarn: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A15C00", Dark: "#FFB74D"}),
		StatusErr:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}),
	}
}
