// ====================================
// File: cmd/memecurve/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/app"
	"github.com/rovshanmuradov/memecurve/internal/config"
	"github.com/rovshanmuradov/memecurve/internal/export"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/scenario"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml/json/toml)")
	scenarioPath := flag.String("scenario", "scenarios/lifecycle.yaml", "Scenario file to run")
	parallel := flag.Int("parallel", 4, "Scenarios run concurrently")
	exportDir := flag.String("export", "", "Export trades and curves to this directory")
	format := flag.String("format", "csv", "Export format: csv or json")
	serve := flag.Bool("serve", false, "Keep serving /metrics after the run until interrupted")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()
	zl := appLogger.WithComponent("memecurve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	end := appLogger.TrackPerformance("run")
	err = run(ctx, cfg, zl, options{
		scenario: *scenarioPath,
		parallel: *parallel,
		export:   *exportDir,
		format:   export.ExportFormat(*format),
		serve:    *serve,
	})
	end()
	if err != nil {
		zl.Error("Run failed", zap.Error(err))
		_ = appLogger.Sync()
		os.Exit(1)
	}
}

type options struct {
	scenario string
	parallel int
	export   string
	format   export.ExportFormat
	serve    bool
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger, opts options) error {
	runner := app.NewRunner(cfg, zl)
	if err := runner.Initialize(ctx); err != nil {
		return err
	}

	metricsErr := make(chan error, 1)
	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	if cfg.Metrics.Enabled {
		go func() { metricsErr <- runner.ServeMetrics(serveCtx) }()
	}

	results, runErr := runner.RunScenarios(ctx, opts.scenario, opts.parallel)
	defer runner.Shutdown(context.Background(), results)

	for _, res := range results {
		if res == nil {
			continue
		}
		printResult(ctx, runner, res)
	}
	stats := runner.Statistics()
	fmt.Printf("\ntrades: %d buys, %d sells, %d redeems; volume %s; fees %s\n",
		stats.BuyCount, stats.SellCount, stats.RedeemCount,
		types.ToDecimal(stats.BaseVolume).String(), types.ToDecimal(stats.FeesCharged).String())
	if runErr != nil {
		return runErr
	}

	if opts.export != "" {
		files, err := runner.Export(ctx, results, opts.export, opts.format)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println("exported", f)
		}
	}

	if opts.serve && cfg.Metrics.Enabled {
		zl.Info("Serving metrics until interrupted", zap.String("addr", cfg.Metrics.Listen))
		<-ctx.Done()
	}
	cancelServe()
	if cfg.Metrics.Enabled {
		return <-metricsErr
	}
	return nil
}

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

func printResult(ctx context.Context, runner *app.Runner, res *scenario.Result) {
	fmt.Println(titleStyle.Render("▶ " + res.Name))
	for _, st := range res.Steps {
		mark := "✓"
		line := st.Summary
		if st.Err != nil {
			mark = "✗"
			line = st.Err.Error()
		}
		fmt.Printf("  %s %2d %-10s %s\n", mark, st.Index, st.Op, line)
	}

	data, err := runner.MemeData(ctx, res, solana.PublicKey{})
	if err != nil || len(data) == 0 {
		return
	}
	fmt.Println(curveTable(data).Render())
}

func curveTable(data []multicall.MemeData) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "SYMBOL", "RESERVE", "CIRCULATING", "PRICE", "FLOOR", "FEES", "STATUS")
	for _, d := range data {
		state := d.Status
		if d.Graduated {
			state = "graduated"
		}
		t.Row(
			strconv.FormatUint(d.Index, 10),
			d.Symbol,
			types.FormatUnits(d.BaseReserveReal, 4),
			types.FormatUnits(d.Circulating, 0),
			types.ToDecimal(d.MarketPrice).String(),
			types.ToDecimal(d.FloorPrice).String(),
			types.FormatUnits(d.TotalFees, 6),
			state,
		)
	}
	return t
}
