package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	CurveFilter  string         // reserve address
	ActionFilter history.Action // buy, sell or redeem
	OutputDir    string
}

// TradeExporter writes trade history and curve snapshots to files.
type TradeExporter struct {
	clock  types.Clock
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(clock types.Clock, logger *zap.Logger) *TradeExporter {
	return &TradeExporter{clock: clock, logger: logger}
}

// ExportTrades exports trades based on the provided options
func (te *TradeExporter) ExportTrades(trades []history.Trade, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	outputPath := filepath.Join(options.OutputDir, te.generateFilename("trades", options))
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = writeCSV(outputPath, history.CSVHeaders(), len(filtered), func(i int) []string {
			return filtered[i].ToCSV()
		})
	case FormatJSON:
		views := make([]tradeView, len(filtered))
		for i := range filtered {
			views[i] = newTradeView(filtered[i])
		}
		err = writeJSON(outputPath, struct {
			ExportTime time.Time     `json:"export_time"`
			TradeCount int           `json:"trade_count"`
			Trades     []tradeView   `json:"trades"`
			Summary    ExportSummary `json:"summary"`
		}{
			ExportTime: te.clock.Now(),
			TradeCount: len(filtered),
			Trades:     views,
			Summary:    calculateSummary(filtered),
		})
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// ExportCurves writes one row per curve.
func (te *TradeExporter) ExportCurves(curves []multicall.MemeData, format ExportFormat, outputDir string) (string, error) {
	if len(curves) == 0 {
		return "", fmt.Errorf("no curves to export")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, te.generateFilename("curves", ExportOptions{Format: format}))

	views := make([]curveView, len(curves))
	for i := range curves {
		views[i] = newCurveView(curves[i])
	}

	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(outputPath, curveHeaders(), len(views), func(i int) []string {
			return views[i].row()
		})
	case FormatJSON:
		err = writeJSON(outputPath, struct {
			ExportTime time.Time   `json:"export_time"`
			Curves     []curveView `json:"curves"`
		}{ExportTime: te.clock.Now(), Curves: views})
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Curves exported",
		zap.String("file", outputPath),
		zap.Int("count", len(views)))
	return outputPath, nil
}

// filterTrades applies filters to the trade list
func (te *TradeExporter) filterTrades(trades []history.Trade, options ExportOptions) []history.Trade {
	var filtered []history.Trade
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && !trade.Timestamp.Before(options.EndTime) {
			continue
		}
		if options.CurveFilter != "" && trade.Curve != options.CurveFilter {
			continue
		}
		if options.ActionFilter != "" && trade.Action != options.ActionFilter {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

func (te *TradeExporter) generateFilename(kind string, options ExportOptions) string {
	prefix := kind + "_all"
	if options.ActionFilter != "" {
		prefix = fmt.Sprintf("%s_%s", kind, options.ActionFilter)
	}
	if len(options.CurveFilter) >= 8 {
		prefix += "_" + options.CurveFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, te.clock.Now().Format("20060102_150405"), options.Format)
}

func writeCSV(path string, header []string, n int, row func(int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

type tradeView struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Index       uint64          `json:"index"`
	Curve       string          `json:"curve"`
	Symbol      string          `json:"symbol"`
	Action      history.Action  `json:"action"`
	Trader      string          `json:"trader"`
	Referrer    string          `json:"referrer,omitempty"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Fee         decimal.Decimal `json:"fee"`
	Price       decimal.Decimal `json:"price"`
}

func newTradeView(t history.Trade) tradeView {
	return tradeView{
		ID:          t.ID,
		Timestamp:   t.Timestamp,
		Index:       t.Index,
		Curve:       t.Curve,
		Symbol:      t.Symbol,
		Action:      t.Action,
		Trader:      t.Trader,
		Referrer:    t.Referrer,
		BaseAmount:  types.ToDecimal(t.BaseAmount),
		TokenAmount: types.ToDecimal(t.TokenAmount),
		Fee:         types.ToDecimal(t.Fee),
		Price:       types.ToDecimal(t.Price),
	}
}

type curveView struct {
	Index            uint64          `json:"index"`
	Address          string          `json:"address"`
	Mint             string          `json:"mint"`
	Name             string          `json:"name"`
	Symbol           string          `json:"symbol"`
	Status           string          `json:"status"`
	BaseReserveReal  decimal.Decimal `json:"base_reserve_real"`
	TokenReserveReal decimal.Decimal `json:"token_reserve_real"`
	Circulating      decimal.Decimal `json:"circulating"`
	FloorPrice       decimal.Decimal `json:"floor_price"`
	MarketPrice      decimal.Decimal `json:"market_price"`
	TVL              decimal.Decimal `json:"tvl"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	Graduated        bool            `json:"graduated"`
}

func newCurveView(m multicall.MemeData) curveView {
	return curveView{
		Index:            m.Index,
		Address:          m.Address.String(),
		Mint:             m.Mint.String(),
		Name:             m.Name,
		Symbol:           m.Symbol,
		Status:           m.Status,
		BaseReserveReal:  types.ToDecimal(m.BaseReserveReal),
		TokenReserveReal: types.ToDecimal(m.TokenReserveReal),
		Circulating:      types.ToDecimal(m.Circulating),
		FloorPrice:       types.ToDecimal(m.FloorPrice),
		MarketPrice:      types.ToDecimal(m.MarketPrice),
		TVL:              types.ToDecimal(m.TVL),
		TotalFees:        types.ToDecimal(m.TotalFees),
		Graduated:        m.Graduated,
	}
}

func curveHeaders() []string {
	return []string{"index", "address", "mint", "name", "symbol", "status",
		"base_reserve_real", "token_reserve_real", "circulating",
		"floor_price", "market_price", "tvl", "total_fees", "graduated"}
}

func (c curveView) row() []string {
	return []string{
		strconv.FormatUint(c.Index, 10), c.Address, c.Mint, c.Name, c.Symbol, c.Status,
		c.BaseReserveReal.String(), c.TokenReserveReal.String(), c.Circulating.String(),
		c.FloorPrice.String(), c.MarketPrice.String(), c.TVL.String(), c.TotalFees.String(),
		strconv.FormatBool(c.Graduated),
	}
}

// calculateSummary calculates summary statistics for the export
func calculateSummary(trades []history.Trade) ExportSummary {
	summary := ExportSummary{
		TotalTrades:     len(trades),
		TotalBuyVolume:  decimal.Zero,
		TotalSellVolume: decimal.Zero,
		TotalRedeemed:   decimal.Zero,
		TotalFees:       decimal.Zero,
	}
	if len(trades) == 0 {
		return summary
	}
	summary.StartDate = trades[0].Timestamp
	summary.EndDate = trades[len(trades)-1].Timestamp

	curves := make(map[string]bool)
	traders := make(map[string]bool)
	for _, trade := range trades {
		curves[trade.Curve] = true
		traders[trade.Trader] = true
		base := types.ToDecimal(trade.BaseAmount)
		summary.TotalFees = summary.TotalFees.Add(types.ToDecimal(trade.Fee))

		switch trade.Action {
		case history.ActionBuy:
			summary.BuyCount++
			summary.TotalBuyVolume = summary.TotalBuyVolume.Add(base)
		case history.ActionSell:
			summary.SellCount++
			summary.TotalSellVolume = summary.TotalSellVolume.Add(base)
		case history.ActionRedeem:
			summary.RedeemCount++
			summary.TotalRedeemed = summary.TotalRedeemed.Add(base)
		}
	}
	summary.UniqueCurves = len(curves)
	summary.UniqueTraders = len(traders)
	summary.TotalVolume = summary.TotalBuyVolume.Add(summary.TotalSellVolume)
	return summary
}

// ExportSummary contains summary statistics for exported trades
type ExportSummary struct {
	TotalTrades     int             `json:"total_trades"`
	BuyCount        int             `json:"buy_count"`
	SellCount       int             `json:"sell_count"`
	RedeemCount     int             `json:"redeem_count"`
	UniqueCurves    int             `json:"unique_curves"`
	UniqueTraders   int             `json:"unique_traders"`
	TotalVolume     decimal.Decimal `json:"total_volume"`
	TotalBuyVolume  decimal.Decimal `json:"total_buy_volume"`
	TotalSellVolume decimal.Decimal `json:"total_sell_volume"`
	TotalRedeemed   decimal.Decimal `json:"total_redeemed"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
}

// ExportDailyReport exports a daily summary report
func (te *TradeExporter) ExportDailyReport(trades []history.Trade, date time.Time, outputDir string) (string, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	options := ExportOptions{
		StartTime: startOfDay,
		EndTime:   startOfDay.Add(24 * time.Hour),
	}

	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		te.logger.Info("No trades for daily report", zap.Time("date", startOfDay))
		return "", nil
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102")))

	views := make([]tradeView, len(filtered))
	for i := range filtered {
		views[i] = newTradeView(filtered[i])
	}
	report := DailyReport{
		Date:            startOfDay,
		TradeCount:      len(filtered),
		Summary:         calculateSummary(filtered),
		HourlyBreakdown: calculateHourlyBreakdown(filtered),
		Trades:          views,
	}
	if err := writeJSON(outputPath, report); err != nil {
		return "", err
	}

	te.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("trades", len(filtered)))
	return outputPath, nil
}

// DailyReport represents a daily trading report
type DailyReport struct {
	Date            time.Time     `json:"date"`
	TradeCount      int           `json:"trade_count"`
	Summary         ExportSummary `json:"summary"`
	HourlyBreakdown []HourlyStats `json:"hourly_breakdown"`
	Trades          []tradeView   `json:"trades"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour       int             `json:"hour"`
	TradeCount int             `json:"trade_count"`
	BuyCount   int             `json:"buy_count"`
	SellCount  int             `json:"sell_count"`
	Volume     decimal.Decimal `json:"volume"`
}

func calculateHourlyBreakdown(trades []history.Trade) []HourlyStats {
	hourly := make(map[int]*HourlyStats)
	for _, trade := range trades {
		if trade.Action == history.ActionRedeem {
			continue
		}
		hour := trade.Timestamp.Hour()
		stats, ok := hourly[hour]
		if !ok {
			stats = &HourlyStats{Hour: hour, Volume: decimal.Zero}
			hourly[hour] = stats
		}
		stats.TradeCount++
		stats.Volume = stats.Volume.Add(types.ToDecimal(trade.BaseAmount))
		if trade.Action == history.ActionBuy {
			stats.BuyCount++
		} else {
			stats.SellCount++
		}
	}

	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, ok := hourly[hour]; ok {
			breakdown = append(breakdown, *stats)
		}
	}
	return breakdown
}

