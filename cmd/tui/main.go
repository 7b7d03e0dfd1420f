package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/app"
	"github.com/rovshanmuradov/memecurve/internal/config"
	"github.com/rovshanmuradov/memecurve/internal/ui"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml/json/toml)")
	scenarioPath := flag.String("scenario", "scenarios/lifecycle.yaml", "Scenario file to run")
	parallel := flag.Int("parallel", 4, "Scenarios run concurrently")
	refresh := flag.Duration("refresh", 2*time.Second, "Dashboard refresh interval")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// терминал занят дашбордом: логи в файл и в буфер для панели
	cfg.Logging.Console = false
	logBuffer, err := logger.NewLogBuffer(200)
	if err != nil {
		log.Fatalf("Failed to create log buffer: %v", err)
	}
	logCfg := cfg.LoggerConfig()
	logCfg.Buffer = logBuffer

	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
	}()
	zl := appLogger.WithComponent("tui")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := app.NewRunner(cfg, zl)
	if err := runner.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	results, err := runner.RunScenarios(ctx, *scenarioPath, *parallel)
	defer runner.Shutdown(context.Background(), results)
	if err != nil {
		// частичные результаты всё равно показываем
		zl.Warn("Some scenarios failed", zap.Error(err))
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := runner.ServeMetrics(ctx); err != nil {
				zl.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	source := runner.NewDashboardSource(results, solana.PublicKey{})
	dashboard := ui.NewDashboard(ctx, source, *refresh, zl).WithLogs(logBuffer)

	program := tea.NewProgram(dashboard, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		zl.Error("TUI error", zap.Error(err))
	}
}
