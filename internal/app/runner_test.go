package app

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memecurve/internal/config"
	"github.com/rovshanmuradov/memecurve/internal/export"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Storage.Enabled = true
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = filepath.Join(dir, "memecurve.db")
	cfg.History.Dir = filepath.Join(dir, "history")
	return cfg
}

func TestRunScenariosEndToEnd(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, r.Initialize(ctx))

	results, err := r.RunScenarios(ctx, filepath.Join("..", "..", "scenarios", "lifecycle.yaml"), 2)
	require.NoError(t, err)
	defer r.Shutdown(ctx, results)
	require.Len(t, results, 2)

	stats := r.Statistics()
	assert.Positive(t, stats.BuyCount)
	assert.Positive(t, stats.SellCount)
	assert.Equal(t, 1, stats.RedeemCount)

	// every scenario has its own program id, so both projections coexist
	rows, err := r.store.ListCurves(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	data, err := r.MemeData(ctx, results[0], results[0].Accounts["alice"])
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.True(t, data[0].Graduated)

	src := r.NewDashboardSource(append(results, nil), results[0].Accounts["alice"])
	assert.Equal(t, []string{results[0].Name, results[1].Name}, src.Scenarios())
	curves, err := src.Curves(ctx, results[0].Name)
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.NotEmpty(t, src.Trades(curves[0].Address.String()))
	_, err = src.Curves(ctx, "missing")
	assert.Error(t, err)

	files, err := r.Export(ctx, results, t.TempDir(), export.FormatCSV)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "memecurve_graduations_total 1")
	assert.Contains(t, string(body), `memecurve_operations_total{op="buy",status="success"}`)
}

func TestRunScenariosRequiresInitialize(t *testing.T) {
	r := NewRunner(testConfig(t), zaptest.NewLogger(t))
	_, err := r.RunScenarios(context.Background(), "missing.yaml", 1)
	assert.Error(t, err)
}
