package app

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/memecurve/internal/history"
	"github.com/rovshanmuradov/memecurve/internal/multicall"
	"github.com/rovshanmuradov/memecurve/internal/scenario"
)

// DashboardSource exposes finished scenarios to the terminal dashboard.
type DashboardSource struct {
	runner  *Runner
	results map[string]*scenario.Result
	names   []string
	viewer  solana.PublicKey
}

// NewDashboardSource indexes results by scenario name. Failed scenarios
// (nil results) are skipped. viewer is the account balances are read for.
func (r *Runner) NewDashboardSource(results []*scenario.Result, viewer solana.PublicKey) *DashboardSource {
	src := &DashboardSource{
		runner:  r,
		results: make(map[string]*scenario.Result, len(results)),
		viewer:  viewer,
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		src.results[res.Name] = res
		src.names = append(src.names, res.Name)
	}
	return src
}

// Scenarios returns scenario names in run order.
func (s *DashboardSource) Scenarios() []string {
	return append([]string(nil), s.names...)
}

// Curves reads every curve of the named scenario.
func (s *DashboardSource) Curves(ctx context.Context, name string) ([]multicall.MemeData, error) {
	res, ok := s.results[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return s.runner.MemeData(ctx, res, s.viewer)
}

// Trades returns the journalled trades of one curve, oldest first.
func (s *DashboardSource) Trades(curve string) []history.Trade {
	if s.runner.history == nil {
		return nil
	}
	return s.runner.history.GetTradesByCurve(curve)
}
