package style

import "github.com/charmbracelet/lipgloss"

// Цвета дашборда
var (
	Cyan    = lipgloss.Color("#00E5FF") // заголовки, выделение
	Magenta = lipgloss.Color("#FF1B6B") // активная вкладка
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")
	Purple  = lipgloss.Color("#8B5CF6")

	Base02 = lipgloss.Color("#262831")
	Base01 = lipgloss.Color("#6C7280")
	Base2  = lipgloss.Color("#ECEFF4")
	Base1  = lipgloss.Color("#B4BCC8")
)

// Palette maps dashboard roles to colors.
type Palette struct {
	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Border    lipgloss.Color

	Buy       lipgloss.Color
	Sell      lipgloss.Color
	Redeem    lipgloss.Color
	Graduated lipgloss.Color
	Error     lipgloss.Color
}

// DefaultPalette returns the default color palette.
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Accent:    Magenta,
		Text:      Base2,
		TextMuted: Base01,
		Border:    Base02,
		Buy:       Green,
		Sell:      Red,
		Redeem:    Purple,
		Graduated: Yellow,
		Error:     Red,
	}
}

// Styles are the lipgloss styles shared by the dashboard views.
type Styles struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Pane      lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Graduated lipgloss.Style
}

// NewStyles builds Styles from p.
func NewStyles(p Palette) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		Tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(p.TextMuted),
		ActiveTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(p.Text).Background(p.Accent),
		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Label:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Value:     lipgloss.NewStyle().Foreground(p.Text),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Error:     lipgloss.NewStyle().Foreground(p.Error),
		Graduated: lipgloss.NewStyle().Bold(true).Foreground(p.Graduated),
	}
}

// ActionColor returns the color used for a trade action label.
func (p Palette) ActionColor(action string) lipgloss.Color {
	switch action {
	case "buy":
		return p.Buy
	case "sell":
		return p.Sell
	case "redeem":
		return p.Redeem
	default:
		return p.TextMuted
	}
}
