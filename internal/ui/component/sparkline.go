package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/memecurve/internal/ui/style"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a price series as a one-line bar chart.
type Sparkline struct {
	data  []float64
	width int
	color lipgloss.Color
}

// NewSparkline creates a sparkline keeping at most width points.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 1
	}
	return &Sparkline{width: width, color: style.DefaultPalette().Primary}
}

// SetData replaces the series, keeping only the last width points.
func (s *Sparkline) SetData(data []float64) *Sparkline {
	if len(data) > s.width {
		data = data[len(data)-s.width:]
	}
	s.data = append(s.data[:0], data...)
	return s
}

// AddDataPoint appends one value.
func (s *Sparkline) AddDataPoint(value float64) *Sparkline {
	s.data = append(s.data, value)
	if len(s.data) > s.width {
		s.data = s.data[len(s.data)-s.width:]
	}
	return s
}

// Len returns the number of buffered points.
func (s *Sparkline) Len() int { return len(s.data) }

// View renders the bars followed by the trend arrow.
func (s *Sparkline) View() string {
	p := style.DefaultPalette()
	if len(s.data) == 0 {
		return lipgloss.NewStyle().Foreground(p.TextMuted).Render(strings.Repeat("▁", s.width))
	}

	bars := lipgloss.NewStyle().Foreground(s.color).Render(s.blocks())
	trend := s.Trend()
	color := p.TextMuted
	switch trend {
	case "↗":
		color = p.Buy
	case "↘":
		color = p.Sell
	}
	return bars + " " + lipgloss.NewStyle().Foreground(color).Render(trend)
}

func (s *Sparkline) blocks() string {
	lo, hi := s.data[0], s.data[0]
	for _, v := range s.data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var b strings.Builder
	for _, v := range s.data {
		idx := len(sparkChars) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[idx])
	}
	for i := len(s.data); i < s.width; i++ {
		b.WriteRune(' ')
	}
	return b.String()
}

// Trend compares the last point against the first.
func (s *Sparkline) Trend() string {
	if len(s.data) < 2 {
		return "→"
	}
	first, last := s.data[0], s.data[len(s.data)-1]
	switch {
	case last > first:
		return "↗"
	case last < first:
		return "↘"
	default:
		return "→"
	}
}
