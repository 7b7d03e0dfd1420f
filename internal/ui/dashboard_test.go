package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
)

type fakeSource struct {
	names  []string
	curves map[string][]multicall.MemeData
	trades map[string][]history.Trade
	err    error
}

func (f *fakeSource) Scenarios() []string { return f.names }

func (f *fakeSource) Curves(_ context.Context, name string) ([]multicall.MemeData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.curves[name], nil
}

func (f *fakeSource) Trades(curve string) []history.Trade { return f.trades[curve] }

func meme(index uint64, symbol string, graduated bool) multicall.MemeData {
	return multicall.MemeData{
		Index:           index,
		Address:         solana.PublicKey{byte(index), 1},
		Name:            "Meme " + symbol,
		Symbol:          symbol,
		Status:          "gm",
		MarketPrice:     types.MustParseUnits("0.0000002"),
		FloorPrice:      types.MustParseUnits("0.0000001"),
		BaseReserveReal: types.Units(10),
		MaxSupply:       types.Units(1000),
		Circulating:     types.Units(250),
		TVL:             types.Units(10),
		TotalFees:       types.MustParseUnits("0.1"),
		Graduated:       graduated,
	}
}

func newFake() *fakeSource {
	a, b, c := meme(1, "AAA", false), meme(2, "BBB", true), meme(1, "CCC", false)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &fakeSource{
		names: []string{"one", "two"},
		curves: map[string][]multicall.MemeData{
			"one": {a, b},
			"two": {c},
		},
		trades: map[string][]history.Trade{
			b.Address.String(): {
				{Timestamp: ts, Action: history.ActionBuy, BaseAmount: types.Units(5), TokenAmount: types.Units(100), Price: types.MustParseUnits("0.05")},
				{Timestamp: ts, Action: history.ActionSell, BaseAmount: types.Units(1), TokenAmount: types.Units(20), Price: types.MustParseUnits("0.04")},
				{Timestamp: ts, Action: history.ActionRedeem, BaseAmount: types.Units(1), TokenAmount: types.Units(20)},
			},
		},
	}
}

func loaded(t *testing.T, src Source) *Dashboard {
	t.Helper()
	d := NewDashboard(context.Background(), src, 0, zap.NewNop())
	cmd := d.load()
	require.NotNil(t, cmd)
	d.Update(cmd())
	return d
}

func TestDashboardLoadsCurves(t *testing.T) {
	d := loaded(t, newFake())

	assert.Equal(t, "one", d.Scenario())
	require.Len(t, d.table.Rows(), 2)
	assert.Equal(t, "AAA", d.table.Rows()[0][1])
	assert.Equal(t, "25.00", d.table.Rows()[0][6])
	assert.Equal(t, "graduated", d.table.Rows()[1][8])

	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, "AAA", sel.Symbol)
	assert.Empty(t, d.trades)

	view := d.View()
	assert.Contains(t, view, "Meme AAA")
	assert.Contains(t, view, "one")
	assert.False(t, d.updated.IsZero())
}

func TestDashboardCursorSelectsTrades(t *testing.T) {
	d := loaded(t, newFake())

	d.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, "BBB", sel.Symbol)
	assert.Len(t, d.trades, 3)
	// redeem has no curve price
	assert.Equal(t, 2, d.spark.Len())
	assert.Equal(t, "↘", d.spark.Trend())
	assert.Contains(t, d.View(), "graduated")
}

func TestDashboardSwitchScenario(t *testing.T) {
	d := loaded(t, newFake())
	stale := d.load()()

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.NotNil(t, cmd)
	assert.Equal(t, "two", d.Scenario())
	assert.Empty(t, d.table.Rows())

	// ответ для прежней вкладки игнорируется
	d.Update(stale)
	assert.Empty(t, d.table.Rows())

	d.Update(cmd())
	require.Len(t, d.table.Rows(), 1)
	assert.Equal(t, "CCC", d.table.Rows()[0][1])

	d.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "one", d.Scenario())
}

func TestDashboardLoadError(t *testing.T) {
	src := newFake()
	src.err = errors.New("boom")
	d := loaded(t, src)

	assert.Empty(t, d.table.Rows())
	assert.Contains(t, d.View(), "error: boom")
}

func TestDashboardQuitAndHelp(t *testing.T) {
	d := loaded(t, newFake())

	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, d.help.ShowAll)

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDashboardWithoutScenarios(t *testing.T) {
	d := NewDashboard(context.Background(), &fakeSource{}, time.Second, zap.NewNop())
	assert.Nil(t, d.load())
	assert.Contains(t, d.View(), "no scenarios loaded")

	_, cmd := d.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestSoldPercent(t *testing.T) {
	assert.Equal(t, "0.00", soldPercent(multicall.MemeData{}))
	m := meme(1, "X", false)
	m.Circulating = types.Units(1000)
	assert.Equal(t, "100.00", soldPercent(m))
}

func TestDashboardLogPane(t *testing.T) {
	buf, err := logger.NewLogBuffer(10)
	require.NoError(t, err)
	buf.Add(logger.LogEntry{Timestamp: time.Now(), Level: "INFO", Message: "scenario finished"})
	buf.Add(logger.LogEntry{Timestamp: time.Now(), Level: "WARN", Message: "curve graduated"})

	d := loaded(t, newFake())
	assert.NotContains(t, d.View(), "scenario finished")

	d.WithLogs(buf)
	view := d.View()
	assert.Contains(t, view, "scenario finished")
	assert.Contains(t, view, "curve graduated")
}
