package tui

import "github.com/charmbracelet/lipgloss"

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorMuted       lipgloss.TerminalColor = ac("240", "243")
	colorSelectedBg  lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorSelectedFg  lipgloss.TerminalColor = ac("235", "255")
	colorHoverBorder lipgloss.TerminalColor = ac("#0284c7", "#38bdf8")
	colorCardBorder  lipgloss.TerminalColor = ac("250", "243")
	colorError       lipgloss.TerminalColor = ac("#b91c1c", "#f87171")
	colorSuccess     lipgloss.TerminalColor = ac("#15803d", "#4ade80")

	priorityColors = map[string]lipgloss.TerminalColor{
		"high":   ac("#b91c1c", "#f87171"),
		"medium": ac("#a16207", "#facc15"),
		"low":    ac("#15803d", "#4ade80"),
	}
)

func styleMuted() lipgloss.Style { return lipgloss.NewStyle().Foreground(colorMuted) }

func styleTitle() lipgloss.Style { return lipgloss.NewStyle().Bold(true) }

func styleColumn(hover bool) lipgloss.Style {
	border := colorCardBorder
	if hover {
		border = colorHoverBorder
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1)
}

func styleCard(selected bool) lipgloss.Style {
	st := lipgloss.NewStyle()
	if selected {
		st = st.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	}
	return st
}

func stylePriority(p string) lipgloss.Style {
	if c, ok := priorityColors[p]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return styleMuted()
}

func styleFlash(isErr bool) lipgloss.Style {
	if isErr {
		return lipgloss.NewStyle().Foreground(colorError)
	}
	return lipgloss.NewStyle().Foreground(colorSuccess)
}
