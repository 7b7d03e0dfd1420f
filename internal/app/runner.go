// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/config"
	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/export"
	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/scenario"
	"github.com/rovshanmuradov/memecurve/internal/storage"
	"github.com/rovshanmuradov/memecurve/internal/storage/gormstore"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/metrics"
)

// Runner wires configuration, metrics, persistence and trade history around
// the scenario engine.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	promRegistry *prometheus.Registry
	metrics      *metrics.Collector
	store        storage.Storage
	history      *history.TradeHistory
	exporter     *export.TradeExporter
	scenarios    *scenario.Manager
	runner       *scenario.Runner
}

// NewRunner принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		logger:    logger,
		exporter:  export.NewTradeExporter(types.SystemClock{}, logger.Named("export")),
		scenarios: scenario.NewManager(logger),
	}
}

// Initialize opens storage and the trade journal and builds the engine options.
func (r *Runner) Initialize(ctx context.Context) error {
	r.promRegistry = prometheus.NewRegistry()
	r.promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(r.promRegistry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	r.metrics = collector

	if r.cfg.Storage.Enabled {
		store, err := gormstore.Open(ctx, r.cfg.StorageOptions(), r.logger)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if err := store.RunMigrations(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("storage: %w", err)
		}
		r.store = store
	}

	th, err := history.NewTradeHistory(r.cfg.History.Dir, r.cfg.History.MaxTrades, types.SystemClock{}, r.logger.Named("history"))
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	r.history = th

	policy, err := r.cfg.RegistryPolicy()
	if err != nil {
		return err
	}
	routerCfg, err := r.cfg.RouterConfig()
	if err != nil {
		return err
	}
	native, err := r.cfg.NativeMint()
	if err != nil {
		return err
	}
	opts := scenario.Options{
		Policy:      policy,
		Router:      routerCfg,
		NativeMint:  native,
		EventBuffer: r.cfg.Events.BufferSize,
		Metrics:     r.metrics,
		OnGraduate:  r.onGraduate,
	}
	r.runner = scenario.NewRunner(opts, r.setupEngine, r.logger)

	r.logger.Info("Runner initialized",
		zap.Bool("storage", r.store != nil),
		zap.String("history", th.Path()),
		zap.String("program_id", policy.ProgramID.String()))
	return nil
}

// setupEngine subscribes the journal and the storage projection to a fresh
// scenario engine.
func (r *Runner) setupEngine(name string, e *scenario.Engine) error {
	r.history.Subscribe(e.Bus)
	if r.store != nil {
		storage.NewRecorder(r.store, e.Registry, r.logger.With(zap.String("scenario", name))).Subscribe(e.Bus)
	}
	return nil
}

// onGraduate only logs: liquidity migration belongs to the host.
func (r *Runner) onGraduate(_ context.Context, snap curve.Snapshot) {
	r.logger.Info("Curve graduated",
		zap.Uint64("index", snap.Meta.Index),
		zap.String("symbol", snap.Meta.Symbol),
		zap.String("reserve", types.ToDecimal(snap.State.BaseReserveReal).String()))
}

// RunScenarios loads path and runs its scenarios, at most parallel at a time.
func (r *Runner) RunScenarios(ctx context.Context, path string, parallel int) ([]*scenario.Result, error) {
	if r.runner == nil {
		return nil, errors.New("runner is not initialized")
	}
	scenarios, err := r.scenarios.LoadFile(path)
	if err != nil {
		return nil, err
	}
	r.logger.Info(fmt.Sprintf("📋 Loaded %d scenarios", len(scenarios)))

	start := time.Now()
	results, err := r.runner.RunAll(ctx, scenarios, parallel)
	r.logger.Info("Scenarios finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	for _, res := range results {
		if res != nil {
			r.metrics.SetCurves(res.Engine.Registry.Count())
		}
	}
	return results, err
}

// MemeData reads every curve of a finished scenario as seen by account.
func (r *Runner) MemeData(ctx context.Context, res *scenario.Result, account solana.PublicKey) ([]multicall.MemeData, error) {
	data, err := res.Engine.Multicall.GetAll(ctx, account)
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		r.metrics.SetReserve(d.Symbol, d.BaseReserveReal)
	}
	return data, nil
}

// Export writes the buffered trades and the curves of every result to dir.
func (r *Runner) Export(ctx context.Context, results []*scenario.Result, dir string, format export.ExportFormat) ([]string, error) {
	var files []string
	trades := r.history.GetRecentTrades(0)
	if len(trades) > 0 {
		path, err := r.exporter.ExportTrades(trades, export.ExportOptions{Format: format, OutputDir: dir})
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	var curves []multicall.MemeData
	for _, res := range results {
		if res == nil {
			continue
		}
		data, err := r.MemeData(ctx, res, solana.PublicKey{})
		if err != nil {
			return files, err
		}
		curves = append(curves, data...)
	}
	if len(curves) > 0 {
		path, err := r.exporter.ExportCurves(curves, format, dir)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// Statistics returns the journal totals.
func (r *Runner) Statistics() history.TradeStatistics {
	return r.history.GetStatistics()
}

// Handler serves the metrics registry.
func (r *Runner) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.promRegistry, promhttp.HandlerOpts{Registry: r.promRegistry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ServeMetrics blocks serving /metrics until ctx is cancelled.
func (r *Runner) ServeMetrics(ctx context.Context) error {
	server := &http.Server{
		Addr:              r.cfg.Metrics.Listen,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutCtx)
}

// Shutdown closes results, the journal and storage.
func (r *Runner) Shutdown(ctx context.Context, results []*scenario.Result) {
	r.logger.Info("👋 Shutting down gracefully")
	for _, res := range results {
		if err := res.Close(ctx); err != nil {
			r.logger.Warn("Failed to close scenario engine", zap.Error(err))
		}
	}
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			r.logger.Warn("Failed to close trade history", zap.Error(err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
}
