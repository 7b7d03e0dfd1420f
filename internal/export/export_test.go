package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

var exportTime = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

func newExporter() *TradeExporter {
	return NewTradeExporter(types.NewFixedClock(exportTime), zap.NewNop())
}

func generateTestTrades() []history.Trade {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	curveA, curveB := "CurveAAAAAAAAAAAAA", "CurveBBBBBBBBBBBBB"
	return []history.Trade{
		{ID: "3", Timestamp: base.Add(2 * time.Hour), Curve: curveA, Symbol: "A", Action: history.ActionSell,
			Trader: "bob", BaseAmount: types.Units(2), TokenAmount: types.Units(200), Fee: types.MustParseUnits("0.02")},
		{ID: "1", Timestamp: base, Curve: curveA, Symbol: "A", Action: history.ActionBuy,
			Trader: "alice", BaseAmount: types.Units(5), TokenAmount: types.Units(500), Fee: types.MustParseUnits("0.05")},
		{ID: "2", Timestamp: base.Add(30 * time.Minute), Curve: curveB, Symbol: "B", Action: history.ActionBuy,
			Trader: "bob", BaseAmount: types.Units(1), TokenAmount: types.Units(100), Fee: types.MustParseUnits("0.01")},
		{ID: "4", Timestamp: base.Add(26 * time.Hour), Curve: curveB, Symbol: "B", Action: history.ActionRedeem,
			Trader: "carol", BaseAmount: types.Units(3), TokenAmount: types.Units(50), Fee: types.Zero()},
	}
}

func TestTradeExportCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter().ExportTrades(generateTestTrades(), ExportOptions{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Contains(t, path, "trades_all_20240502_093000.csv")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, history.CSVHeaders(), rows[0])
	// sorted by timestamp
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{rows[1][0], rows[2][0], rows[3][0], rows[4][0]})
}

func TestTradeExportJSONSummary(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter().ExportTrades(generateTestTrades(), ExportOptions{Format: FormatJSON, OutputDir: dir})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out struct {
		TradeCount int `json:"trade_count"`
		Trades     []struct {
			BaseAmount string `json:"base_amount"`
		} `json:"trades"`
		Summary struct {
			BuyCount      int    `json:"buy_count"`
			SellCount     int    `json:"sell_count"`
			RedeemCount   int    `json:"redeem_count"`
			UniqueCurves  int    `json:"unique_curves"`
			UniqueTraders int    `json:"unique_traders"`
			TotalVolume   string `json:"total_volume"`
			TotalFees     string `json:"total_fees"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 4, out.TradeCount)
	assert.Equal(t, "5", out.Trades[0].BaseAmount)
	assert.Equal(t, 2, out.Summary.BuyCount)
	assert.Equal(t, 1, out.Summary.SellCount)
	assert.Equal(t, 1, out.Summary.RedeemCount)
	assert.Equal(t, 2, out.Summary.UniqueCurves)
	assert.Equal(t, 3, out.Summary.UniqueTraders)
	assert.Equal(t, "8", out.Summary.TotalVolume)
	assert.Equal(t, "0.08", out.Summary.TotalFees)
}

func TestTradeExportFilters(t *testing.T) {
	e := newExporter()
	trades := generateTestTrades()

	got := e.filterTrades(trades, ExportOptions{ActionFilter: history.ActionBuy})
	assert.Len(t, got, 2)

	got = e.filterTrades(trades, ExportOptions{CurveFilter: "CurveBBBBBBBBBBBBB"})
	assert.Len(t, got, 2)

	from := time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
	got = e.filterTrades(trades, ExportOptions{StartTime: from, EndTime: from.Add(2 * time.Hour)})
	assert.Len(t, got, 2)

	_, err := e.ExportTrades(trades, ExportOptions{Format: FormatCSV, OutputDir: t.TempDir(), ActionFilter: "burn"})
	assert.Error(t, err)

	_, err = e.ExportTrades(trades, ExportOptions{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)

	path, err := e.ExportTrades(trades, ExportOptions{
		Format: FormatCSV, OutputDir: t.TempDir(),
		ActionFilter: history.ActionSell, CurveFilter: "CurveAAAAAAAAAAAAA",
	})
	require.NoError(t, err)
	assert.Contains(t, path, "trades_sell_CurveAAA_")
}

func TestDailyReport(t *testing.T) {
	dir := t.TempDir()
	e := newExporter()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	path, err := e.ExportDailyReport(generateTestTrades(), day, dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var report struct {
		TradeCount      int `json:"trade_count"`
		HourlyBreakdown []struct {
			Hour       int `json:"hour"`
			TradeCount int `json:"trade_count"`
		} `json:"hourly_breakdown"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 3, report.TradeCount)
	require.Len(t, report.HourlyBreakdown, 2)
	assert.Equal(t, 10, report.HourlyBreakdown[0].Hour)
	assert.Equal(t, 2, report.HourlyBreakdown[0].TradeCount)

	path, err = e.ExportDailyReport(generateTestTrades(), day.AddDate(0, 0, 5), dir)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestExportCurves(t *testing.T) {
	data := []multicall.MemeData{{
		Index:           1,
		Address:         solana.NewWallet().PublicKey(),
		Mint:            solana.NewWallet().PublicKey(),
		Name:            "Meme",
		Symbol:          "MEME",
		BaseReserveReal: types.MustParseUnits("12.5"),
		MarketPrice:     types.MustParseUnits("0.0000001"),
		Graduated:       true,
	}}
	e := newExporter()

	path, err := e.ExportCurves(data, FormatCSV, t.TempDir())
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MEME", rows[1][4])
	assert.Equal(t, "12.5", rows[1][6])
	assert.Equal(t, "0", rows[1][7])
	assert.Equal(t, "true", rows[1][13])

	path, err = e.ExportCurves(data, FormatJSON, t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = e.ExportCurves(nil, FormatCSV, t.TempDir())
	assert.Error(t, err)
}
