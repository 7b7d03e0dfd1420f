// =============================================
// File: internal/scenario/engine.go
// =============================================
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memecurve/internal/events"
	"github.com/rovshanmuradov/memecurve/internal/ledger"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/quote"
	"github.com/rovshanmuradov/memecurve/internal/registry"
	"github.com/rovshanmuradov/memecurve/internal/router"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/metrics"
)

// Options describe the engine every scenario runs against.
type Options struct {
	Policy     registry.Policy
	Router     router.Config
	NativeMint solana.PublicKey
	// Start is the initial clock value; zero means now.
	Start       time.Time
	EventBuffer int
	Workers     int
	Metrics     *metrics.Collector
	// OnGraduate is passed to the router as its graduation hook.
	OnGraduate router.GraduationHook
}

// Engine is a complete in-memory exchange: one ledger, one registry and a
// router publishing synchronously to its own bus.
type Engine struct {
	Clock     *types.FixedClock
	Ledger    *ledger.Memory
	Registry  *registry.Registry
	Router    *router.Router
	Quotes    *quote.Service
	Multicall *multicall.Multicall
	Bus       *events.Bus
}

// NewEngine builds a fresh engine.
func NewEngine(opts Options, logger *zap.Logger) (*Engine, error) {
	start := opts.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}

	clock := types.NewFixedClock(start)
	reg, err := registry.New(opts.Policy, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	led := ledger.NewMemory(clock, logger)
	bus := events.NewBus(logger, buffer)

	routerOpts := []router.Option{
		router.WithClock(clock),
		router.WithPublisher(bus.Sync()),
		router.WithMetrics(opts.Metrics),
	}
	if opts.OnGraduate != nil {
		routerOpts = append(routerOpts, router.WithGraduationHook(opts.OnGraduate))
	}
	rt, err := router.New(opts.Router, reg, led, logger, routerOpts...)
	if err != nil {
		_ = bus.Shutdown(context.Background())
		return nil, fmt.Errorf("router: %w", err)
	}

	quotes := quote.NewService(reg, logger)
	return &Engine{
		Clock:     clock,
		Ledger:    led,
		Registry:  reg,
		Router:    rt,
		Quotes:    quotes,
		Multicall: multicall.New(reg, led, quotes, opts.Router.BaseMint, opts.NativeMint, opts.Workers, logger),
		Bus:       bus,
	}, nil
}

// Close stops the engine's bus.
func (e *Engine) Close(ctx context.Context) error {
	return e.Bus.Shutdown(ctx)
}
