// ==============================================
// File: internal/ui/dashboard.go
// ==============================================
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/ui/component"
	"github.com/rovshanmuradov/memecurve/internal/ui/style"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
)

const (
	sparkWidth    = 32
	recentTrades  = 6
	recentLogs    = 4
	defaultHeight = 10
)

// Source feeds the dashboard. Curves are grouped by scenario, trades are
// looked up by curve address.
type Source interface {
	Scenarios() []string
	Curves(ctx context.Context, scenario string) ([]multicall.MemeData, error)
	Trades(curve string) []history.Trade
}

// LogSource supplies the log tail shown under the curve details.
type LogSource interface {
	GetRecentLogs(limit int) []logger.LogEntry
}

type tickMsg time.Time

type curvesMsg struct {
	scenario string
	curves   []multicall.MemeData
	err      error
}

// Dashboard lists every curve of the selected scenario with live prices
// and the trade tape of the highlighted curve.
type Dashboard struct {
	ctx     context.Context
	source  Source
	logs    LogSource
	logger  *zap.Logger
	refresh time.Duration

	keys    KeyMap
	help    help.Model
	styles  style.Styles
	palette style.Palette
	table   table.Model
	spark   *component.Sparkline

	scenarios []string
	active    int
	curves    []multicall.MemeData
	trades    []history.Trade
	updated   time.Time
	err       error

	width, height int
}

// NewDashboard creates the dashboard model. refresh <= 0 disables polling.
func NewDashboard(ctx context.Context, source Source, refresh time.Duration, logger *zap.Logger) *Dashboard {
	palette := style.DefaultPalette()

	t := table.New(
		table.WithColumns(columns(0)),
		table.WithFocused(true),
		table.WithHeight(defaultHeight),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Bold(true).Foreground(palette.Primary).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(palette.Border)
	ts.Selected = ts.Selected.Bold(true).Foreground(palette.Text).Background(palette.Accent)
	t.SetStyles(ts)

	return &Dashboard{
		ctx:       ctx,
		source:    source,
		logger:    logger.Named("dashboard"),
		refresh:   refresh,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		styles:    style.NewStyles(palette),
		palette:   palette,
		table:     t,
		spark:     component.NewSparkline(sparkWidth),
		scenarios: source.Scenarios(),
	}
}

// WithLogs enables the log pane.
func (d *Dashboard) WithLogs(logs LogSource) *Dashboard {
	d.logs = logs
	return d
}

func columns(width int) []table.Column {
	name := 14
	if width > 110 {
		name += (width - 110) / 2
	}
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Symbol", Width: 8},
		{Title: "Name", Width: name},
		{Title: "Market", Width: 14},
		{Title: "Floor", Width: 14},
		{Title: "Reserve", Width: 12},
		{Title: "Sold %", Width: 7},
		{Title: "Fees", Width: 10},
		{Title: "State", Width: 10},
	}
}

// Init loads the first scenario and starts the refresh timer.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.load(), d.tick())
}

// Scenario returns the name of the selected scenario.
func (d *Dashboard) Scenario() string {
	if len(d.scenarios) == 0 {
		return ""
	}
	return d.scenarios[d.active]
}

// Selected returns the highlighted curve.
func (d *Dashboard) Selected() (multicall.MemeData, bool) {
	i := d.table.Cursor()
	if i < 0 || i >= len(d.curves) {
		return multicall.MemeData{}, false
	}
	return d.curves[i], true
}

func (d *Dashboard) load() tea.Cmd {
	name := d.Scenario()
	if name == "" {
		return nil
	}
	return func() tea.Msg {
		curves, err := d.source.Curves(d.ctx, name)
		return curvesMsg{scenario: name, curves: curves, err: err}
	}
}

func (d *Dashboard) tick() tea.Cmd {
	if d.refresh <= 0 {
		return nil
	}
	return tea.Tick(d.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles keys, window resizes, timer ticks and loaded data.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.help.Width = msg.Width
		d.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 18; h > 3 {
			d.table.SetHeight(h)
		}
		return d, nil

	case tickMsg:
		return d, tea.Batch(d.load(), d.tick())

	case curvesMsg:
		if msg.scenario != d.Scenario() {
			// устаревший ответ после переключения вкладки
			return d, nil
		}
		d.err = msg.err
		if msg.err != nil {
			d.logger.Warn("load curves failed", zap.String("scenario", msg.scenario), zap.Error(msg.err))
			return d, nil
		}
		d.curves = msg.curves
		d.updated = time.Now()
		d.table.SetRows(d.rows())
		if d.table.Cursor() >= len(d.curves) {
			d.table.SetCursor(0)
		}
		d.selectCurve()
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
			return d, nil
		case key.Matches(msg, d.keys.Refresh):
			return d, d.load()
		case key.Matches(msg, d.keys.Next):
			return d, d.switchScenario(1)
		case key.Matches(msg, d.keys.Prev):
			return d, d.switchScenario(-1)
		}
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	d.selectCurve()
	return d, cmd
}

func (d *Dashboard) switchScenario(step int) tea.Cmd {
	n := len(d.scenarios)
	if n < 2 {
		return nil
	}
	d.active = (d.active + step + n) % n
	d.curves = nil
	d.trades = nil
	d.table.SetRows(nil)
	d.table.SetCursor(0)
	d.spark.SetData(nil)
	return d.load()
}

func (d *Dashboard) selectCurve() {
	sel, ok := d.Selected()
	if !ok {
		d.trades = nil
		d.spark.SetData(nil)
		return
	}
	d.trades = d.source.Trades(sel.Address.String())
	prices := make([]float64, 0, len(d.trades))
	for _, t := range d.trades {
		if t.Action == history.ActionRedeem {
			continue
		}
		prices = append(prices, types.ToDecimal(t.Price).InexactFloat64())
	}
	d.spark.SetData(prices)
}

func (d *Dashboard) rows() []table.Row {
	rows := make([]table.Row, 0, len(d.curves))
	for _, c := range d.curves {
		state := "trading"
		if c.Graduated {
			state = "graduated"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", c.Index),
			c.Symbol,
			c.Name,
			types.FormatUnits(c.MarketPrice, 12),
			types.FormatUnits(c.FloorPrice, 12),
			types.FormatUnits(c.BaseReserveReal, 4),
			soldPercent(c),
			types.FormatUnits(c.TotalFees, 4),
			state,
		})
	}
	return rows
}

// soldPercent is circulating supply as a share of max supply.
func soldPercent(c multicall.MemeData) string {
	if c.MaxSupply == nil || c.MaxSupply.IsZero() || c.Circulating == nil {
		return "0.00"
	}
	total := types.ToDecimal(c.MaxSupply)
	return types.ToDecimal(c.Circulating).Div(total).Shift(2).StringFixed(2)
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.styles.Title.Render("memecurve") + "  " + d.tabs() + "\n\n")

	if len(d.scenarios) == 0 {
		b.WriteString(d.styles.Muted.Render("no scenarios loaded") + "\n")
		b.WriteString(d.help.View(d.keys))
		return b.String()
	}

	b.WriteString(d.styles.Pane.Render(d.table.View()) + "\n")
	b.WriteString(d.details() + "\n")
	if d.logs != nil {
		b.WriteString(d.logTail())
	}

	status := "updated " + d.updated.Format("15:04:05")
	if d.updated.IsZero() {
		status = "loading…"
	}
	if d.err != nil {
		status = d.styles.Error.Render("error: " + d.err.Error())
	}
	b.WriteString(d.styles.Muted.Render(status) + "\n")
	b.WriteString(d.help.View(d.keys))
	return b.String()
}

func (d *Dashboard) tabs() string {
	parts := make([]string, 0, len(d.scenarios))
	for i, name := range d.scenarios {
		if i == d.active {
			parts = append(parts, d.styles.ActiveTab.Render(name))
			continue
		}
		parts = append(parts, d.styles.Tab.Render(name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (d *Dashboard) details() string {
	sel, ok := d.Selected()
	if !ok {
		return d.styles.Pane.Render(d.styles.Muted.Render("no curves"))
	}

	title := fmt.Sprintf("%s (%s)", sel.Name, sel.Symbol)
	if sel.Graduated {
		title += " " + d.styles.Graduated.Render("★ graduated")
	}
	lines := []string{
		d.styles.Title.Render(title),
		d.field("curve", sel.Address.String()),
		d.field("status", sel.Status),
		d.field("tvl", types.FormatUnits(sel.TVL, 4)),
		d.field("price", d.spark.View()),
	}
	left := strings.Join(lines, "\n")

	tape := []string{d.styles.Label.Render("recent trades")}
	from := len(d.trades) - recentTrades
	if from < 0 {
		from = 0
	}
	for i := len(d.trades) - 1; i >= from; i-- {
		tape = append(tape, d.tradeLine(d.trades[i]))
	}
	if len(tape) == 1 {
		tape = append(tape, d.styles.Muted.Render("no trades yet"))
	}
	right := strings.Join(tape, "\n")

	return lipgloss.JoinHorizontal(lipgloss.Top,
		d.styles.Pane.Render(left),
		d.styles.Pane.Render(right),
	)
}

func (d *Dashboard) field(label, value string) string {
	return d.styles.Label.Render(fmt.Sprintf("%-7s", label)) + d.styles.Value.Render(value)
}

func (d *Dashboard) tradeLine(t history.Trade) string {
	action := lipgloss.NewStyle().
		Foreground(d.palette.ActionColor(string(t.Action))).
		Render(fmt.Sprintf("%-6s", t.Action))
	return fmt.Sprintf("%s %s %s base / %s tok",
		d.styles.Muted.Render(t.Timestamp.Format("15:04:05")),
		action,
		types.FormatUnits(t.BaseAmount, 4),
		types.FormatUnits(t.TokenAmount, 2),
	)
}

func (d *Dashboard) logTail() string {
	var b strings.Builder
	for _, e := range d.logs.GetRecentLogs(recentLogs) {
		line := fmt.Sprintf("%s %-5s %s", e.Timestamp.Format("15:04:05"), e.Level, e.Message)
		switch e.Level {
		case "WARN", "ERROR":
			b.WriteString(d.styles.Error.Render(line))
		default:
			b.WriteString(d.styles.Muted.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
