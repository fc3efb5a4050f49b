package cli

import "github.com/charmbracelet/lipgloss"

// Text-mode output styles.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Width(10)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// field renders one "Label: value" line of a result block.
func field(label, value string) string {
	return "  " + labelStyle.Render(label+":") + valueStyle.Render(value)
}
