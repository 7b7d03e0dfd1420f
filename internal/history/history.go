// internal/history/history.go
package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/events"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

// DefaultFlushInterval is how often the CSV journal is flushed to disk.
const DefaultFlushInterval = 30 * time.Second

// TradeHistory keeps the most recent trades in memory and journals every
// trade to a CSV file.
type TradeHistory struct {
	mu        sync.RWMutex
	csvWriter *CSVWriter
	trades    []Trade
	maxTrades int
	logger    *zap.Logger

	// Statistics
	buys        int
	sells       int
	redeems     int
	baseVolume  *uint256.Int
	feesCharged *uint256.Int
}

// NewTradeHistory creates <dir>/trades/trades_<timestamp>.csv.
func NewTradeHistory(dir string, maxTrades int, clock types.Clock, zapLogger *zap.Logger) (*TradeHistory, error) {
	if maxTrades <= 0 {
		return nil, fmt.Errorf("max trades must be positive, got %d", maxTrades)
	}
	filename := fmt.Sprintf("trades_%s.csv", clock.Now().Format("20060102_150405"))
	csvPath := filepath.Join(dir, "trades", filename)

	csvWriter, err := NewCSVWriter(csvPath, CSVHeaders(), DefaultFlushInterval, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	zapLogger.Info("Trade history initialized",
		zap.String("csv_file", csvPath),
		zap.Int("max_memory_trades", maxTrades))

	return &TradeHistory{
		csvWriter:   csvWriter,
		trades:      make([]Trade, 0, maxTrades),
		maxTrades:   maxTrades,
		logger:      zapLogger,
		baseVolume:  types.Zero(),
		feesCharged: types.Zero(),
	}, nil
}

// Path returns the CSV journal path.
func (th *TradeHistory) Path() string { return th.csvWriter.Path() }

// LogTrade journals a trade and keeps it in the ring buffer.
func (th *TradeHistory) LogTrade(trade Trade) error {
	th.mu.Lock()
	defer th.mu.Unlock()

	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if err := th.csvWriter.WriteRecord(trade.ToCSV()); err != nil {
		th.logger.Error("Failed to write trade to CSV",
			zap.String("trade_id", trade.ID),
			zap.Error(err))
		return fmt.Errorf("failed to write trade: %w", err)
	}

	if len(th.trades) >= th.maxTrades {
		th.trades = th.trades[1:]
	}
	th.trades = append(th.trades, trade)

	switch trade.Action {
	case ActionBuy:
		th.buys++
	case ActionSell:
		th.sells++
	case ActionRedeem:
		th.redeems++
	}
	if trade.Action != ActionRedeem && trade.BaseAmount != nil {
		th.baseVolume.Add(th.baseVolume, trade.BaseAmount)
	}
	if trade.Fee != nil {
		th.feesCharged.Add(th.feesCharged, trade.Fee)
	}

	th.logger.Debug("Trade logged",
		zap.String("id", trade.ID),
		zap.String("action", string(trade.Action)),
		zap.String("symbol", trade.Symbol),
		zap.String("base", types.ToDecimal(trade.BaseAmount).String()))
	return nil
}

// Handlers routes trade and redeem events into the history.
func (th *TradeHistory) Handlers() events.Handlers {
	return events.Handlers{Trade: th.onTrade, Redeem: th.onRedeem}
}

// Handle implements events.Handler.
func (th *TradeHistory) Handle(ctx context.Context, event events.Event) error {
	return th.Handlers().Handle(ctx, event)
}

// Subscribe registers the history on the trade and redeem events of bus.
func (th *TradeHistory) Subscribe(bus *events.Bus) *events.Subscription {
	h := th.Handlers()
	return bus.Subscribe(h, h.Types()...)
}

func (th *TradeHistory) onTrade(_ context.Context, e *events.TradeEvent) error {
	action := ActionBuy
	if e.Type() == events.CurveSell {
		action = ActionSell
	}
	t := Trade{
		Timestamp:   e.Timestamp(),
		Index:       e.Index,
		Curve:       e.Curve.String(),
		Symbol:      e.Symbol,
		Action:      action,
		Trader:      e.Trader.String(),
		BaseAmount:  types.Clone(e.BaseAmount),
		TokenAmount: types.Clone(e.TokenAmount),
		Fee:         types.Clone(e.Fee),
		Price:       types.Clone(e.MarketPrice),
	}
	if !e.Referrer.IsZero() {
		t.Referrer = e.Referrer.String()
	}
	return th.LogTrade(t)
}

func (th *TradeHistory) onRedeem(_ context.Context, e *events.RedeemEvent) error {
	return th.LogTrade(Trade{
		Timestamp:   e.Timestamp(),
		Index:       e.Index,
		Curve:       e.Curve.String(),
		Symbol:      e.Symbol,
		Action:      ActionRedeem,
		Trader:      e.Holder.String(),
		BaseAmount:  types.Clone(e.Payout),
		TokenAmount: types.Clone(e.Tokens),
		Fee:         types.Zero(),
		Price:       types.Zero(),
	})
}

// GetRecentTrades returns up to limit most recent trades, oldest first.
func (th *TradeHistory) GetRecentTrades(limit int) []Trade {
	th.mu.RLock()
	defer th.mu.RUnlock()

	if limit <= 0 || limit > len(th.trades) {
		limit = len(th.trades)
	}
	result := make([]Trade, limit)
	copy(result, th.trades[len(th.trades)-limit:])
	return result
}

// GetTradeByID returns a buffered trade by id.
func (th *TradeHistory) GetTradeByID(id string) (*Trade, bool) {
	th.mu.RLock()
	defer th.mu.RUnlock()

	for i := len(th.trades) - 1; i >= 0; i-- {
		if th.trades[i].ID == id {
			trade := th.trades[i]
			return &trade, true
		}
	}
	return nil, false
}

// GetTradesByCurve returns the buffered trades of one curve.
func (th *TradeHistory) GetTradesByCurve(curve string) []Trade {
	th.mu.RLock()
	defer th.mu.RUnlock()

	var result []Trade
	for _, trade := range th.trades {
		if trade.Curve == curve {
			result = append(result, trade)
		}
	}
	return result
}

// GetStatistics returns totals since the history was opened.
func (th *TradeHistory) GetStatistics() TradeStatistics {
	th.mu.RLock()
	defer th.mu.RUnlock()
	return th.statsLocked()
}

func (th *TradeHistory) statsLocked() TradeStatistics {
	return TradeStatistics{
		TotalTrades: th.buys + th.sells + th.redeems,
		BuyCount:    th.buys,
		SellCount:   th.sells,
		RedeemCount: th.redeems,
		BaseVolume:  th.baseVolume.Clone(),
		FeesCharged: th.feesCharged.Clone(),
	}
}

// Flush forces buffered journal rows to disk.
func (th *TradeHistory) Flush() error {
	return th.csvWriter.Flush()
}

// Close flushes and closes the journal.
func (th *TradeHistory) Close() error {
	th.mu.Lock()
	defer th.mu.Unlock()

	stats := th.statsLocked()
	th.logger.Info("Closing trade history",
		zap.Int("total_trades", stats.TotalTrades),
		zap.String("base_volume", types.ToDecimal(stats.BaseVolume).String()),
		zap.String("fees", types.ToDecimal(stats.FeesCharged).String()))

	return th.csvWriter.Close()
}

// TradeStatistics holds aggregate trade statistics.
type TradeStatistics struct {
	TotalTrades int          `json:"total_trades"`
	BuyCount    int          `json:"buy_count"`
	SellCount   int          `json:"sell_count"`
	RedeemCount int          `json:"redeem_count"`
	BaseVolume  *uint256.Int `json:"base_volume"`
	FeesCharged *uint256.Int `json:"fees_charged"`
}
