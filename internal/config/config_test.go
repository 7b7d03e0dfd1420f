package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	policy, err := cfg.RegistryPolicy()
	require.NoError(t, err)
	assert.Equal(t, types.Units(30).Dec(), policy.Params.BaseReserveVirtual.Dec())
	assert.Equal(t, types.Units(1_000_000_000).Dec(), policy.Params.MaxSupply.Dec())
	assert.Equal(t, uint64(DefaultFeeBps), policy.Params.FeeBps)
	assert.Equal(t, types.MustParseUnits("0.01").Dec(), policy.MinCreationPayment.Dec())
	assert.False(t, policy.ProgramID.IsZero())

	rc, err := cfg.RouterConfig()
	require.NoError(t, err)
	assert.Equal(t, solana.SolMint, rc.BaseMint)
	assert.False(t, rc.Treasury.IsZero())

	again, err := LoadConfig("")
	require.NoError(t, err)
	rc2, err := again.RouterConfig()
	require.NoError(t, err)
	assert.Equal(t, rc.Treasury, rc2.Treasury, "derived treasury must be stable")
}

func TestLoadFileAndEnv(t *testing.T) {
	treasury := solana.NewWallet().PublicKey()
	path := writeConfig(t, `
engine:
  treasury: `+treasury.String()+`
  virtual_base_reserve: "12.5"
  fee_bps: 50
  unique_names: false
storage:
  enabled: true
  driver: sqlite
  dsn: test.db
history:
  max_trades: 10
`)
	t.Setenv("MEMECURVE_ENGINE_FEE_BPS", "75")
	t.Setenv("MEMECURVE_METRICS_LISTEN", ":9999")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), cfg.Engine.FeeBps)
	assert.Equal(t, ":9999", cfg.Metrics.Listen)
	assert.Equal(t, 10, cfg.History.MaxTrades)

	policy, err := cfg.RegistryPolicy()
	require.NoError(t, err)
	assert.Equal(t, types.MustParseUnits("12.5").Dec(), policy.Params.BaseReserveVirtual.Dec())
	assert.False(t, policy.UniqueNames)

	rc, err := cfg.RouterConfig()
	require.NoError(t, err)
	assert.Equal(t, treasury, rc.Treasury)

	opts := cfg.StorageOptions()
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "test.db", opts.DSN)
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"bad amount":      "engine:\n  max_supply: \"abc\"\n",
		"too many digits": "engine:\n  min_creation_payment: \"0.0000000000000000001\"\n",
		"fee too high":    "engine:\n  fee_bps: 10000\n",
		"split overflow":  "engine:\n  protocol_share_bps: 9000\n  creator_share_bps: 2000\n",
		"bad base mint":   "engine:\n  base_mint: \"not-a-key\"\n",
		"bad driver":      "storage:\n  enabled: true\n  driver: mysql\n",
		"bad postgres":    "storage:\n  enabled: true\n  driver: postgres\n  dsn: \"http://db\"\n",
		"decimals":        "engine:\n  decimals: 9\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestRegistryPolicyBoundsInvariant(t *testing.T) {
	cases := map[string]string{
		// 30 units * 1e32 units: above 2^200 but inside 256 bits
		"above headroom": "engine:\n  max_supply: \"100000000000000000000000000000000\"\n",
		// 1e40 * 1e9 units: the product itself leaves 256 bits
		"product overflow": "engine:\n  virtual_base_reserve: \"10000000000000000000000000000000000000000\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrOverflow)
		})
	}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	policy, err := cfg.RegistryPolicy()
	require.NoError(t, err)
	k, err := policy.Params.InitialK()
	require.NoError(t, err)
	assert.True(t, k.Lt(curve.MaxInvariant))
}

func TestMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
