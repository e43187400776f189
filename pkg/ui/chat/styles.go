package chat

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header      lipgloss.Style
	headerMeta  lipgloss.Style
	divider     lipgloss.Style
	bootLine    lipgloss.Style
	bootDone    lipgloss.Style
	customerBox lipgloss.Style
	customerTag lipgloss.Style
	botBox      lipgloss.Style
	botTag      lipgloss.Style
	errorBox    lipgloss.Style
	errorTag    lipgloss.Style
	stamp       lipgloss.Style
	status      lipgloss.Style
	statusBusy  lipgloss.Style
	statusErr   lipgloss.Style
	hint        lipgloss.Style
	inputLabel  lipgloss.Style
	input       lipgloss.Style
	viewport    lipgloss.Style
}

// Colors follow a boarding-pass palette: navy frame, teal bot, amber customer.
const (
	navy  = lipgloss.Color("24")
	teal  = lipgloss.Color("37")
	amber = lipgloss.Color("214")
	cream = lipgloss.Color("230")
	slate = lipgloss.Color("236")
	ink   = lipgloss.Color("16")
	alert = lipgloss.Color("203")
	muted = lipgloss.Color("244")
)

func defaultTheme() theme {
	tag := func(bg lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(ink).Background(bg).Padding(0, 1)
	}
	box := func(border lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Background(slate).
			Padding(0, 1)
	}

	return theme{
		header:      lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(cream).Background(navy),
		headerMeta:  lipgloss.NewStyle().Foreground(lipgloss.Color("153")),
		divider:     lipgloss.NewStyle().Foreground(navy),
		bootLine:    lipgloss.NewStyle().Foreground(lipgloss.Color("152")),
		bootDone:    lipgloss.NewStyle().Foreground(teal).Bold(true),
		customerBox: box(amber),
		customerTag: tag(amber),
		botBox:      box(teal),
		botTag:      tag(teal),
		errorBox:    box(alert).Foreground(alert),
		errorTag:    tag(alert),
		stamp:       lipgloss.NewStyle().Foreground(muted).Italic(true),
		status:      lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true),
		statusBusy:  lipgloss.NewStyle().Foreground(amber).Bold(true),
		statusErr:   lipgloss.NewStyle().Foreground(alert).Bold(true),
		hint:        lipgloss.NewStyle().Foreground(muted),
		inputLabel:  lipgloss.NewStyle().Bold(true).Foreground(cream),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(navy).
			Padding(0, 1),
	}
}
