// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/memecurve/internal/curve"
	"github.com/rovshanmuradov/memecurve/internal/registry"
	"github.com/rovshanmuradov/memecurve/internal/router"
	"github.com/rovshanmuradov/memecurve/internal/storage/gormstore"
	"github.com/rovshanmuradov/memecurve/internal/types"
	"github.com/rovshanmuradov/memecurve/internal/utils/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. MEMECURVE_ENGINE_FEE_BPS.
const EnvPrefix = "MEMECURVE"

type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Events  EventsConfig  `mapstructure:"events"`
	History HistoryConfig `mapstructure:"history"`
}

// EngineConfig holds curve policy. Amounts are human readable decimals.
type EngineConfig struct {
	ProgramID  string `mapstructure:"program_id"`
	BaseMint   string `mapstructure:"base_mint"`
	NativeMint string `mapstructure:"native_mint"`
	Treasury   string `mapstructure:"treasury"`
	Decimals   int32  `mapstructure:"decimals"`

	VirtualBaseReserve  string `mapstructure:"virtual_base_reserve"`
	VirtualTokenReserve string `mapstructure:"virtual_token_reserve"`
	MaxSupply           string `mapstructure:"max_supply"`

	FeeBps           uint64 `mapstructure:"fee_bps"`
	ProtocolShareBps uint64 `mapstructure:"protocol_share_bps"`
	CreatorShareBps  uint64 `mapstructure:"creator_share_bps"`
	ReferrerShareBps uint64 `mapstructure:"referrer_share_bps"`

	MinCreationPayment string `mapstructure:"min_creation_payment"`
	MinStatusBalance   string `mapstructure:"min_status_balance"`
	MaxNameLength      int    `mapstructure:"max_name_length"`
	MaxSymbolLength    int    `mapstructure:"max_symbol_length"`
	MaxURILength       int    `mapstructure:"max_uri_length"`
	MaxStatusLength    int    `mapstructure:"max_status_length"`
	UniqueNames        bool   `mapstructure:"unique_names"`
}

type LoggingConfig struct {
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
	Console     bool   `mapstructure:"console"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
}

type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Retries      int    `mapstructure:"retries"`
	RetryDelayMs int    `mapstructure:"retry_delay_ms"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type HistoryConfig struct {
	Dir       string `mapstructure:"dir"`
	MaxTrades int    `mapstructure:"max_trades"`
}

const (
	DefaultFeeBps          = 100
	DefaultProtocolShare   = 7000
	DefaultCreatorShare    = 2000
	DefaultReferrerShare   = 1000
	DefaultMaxNameLength   = 32
	DefaultMaxSymbolLength = 10
	DefaultMaxURILength    = 200
	DefaultMaxStatusLength = 140
	DefaultEventBuffer     = 1024
	DefaultMaxTrades       = 1000
	DefaultRetries         = 3
	DefaultRetryDelayMs    = 500
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"engine.program_id":            "",
		"engine.base_mint":             solana.SolMint.String(),
		"engine.native_mint":           solana.SolMint.String(),
		"engine.treasury":              "",
		"engine.decimals":              types.Decimals,
		"engine.virtual_base_reserve":  "30",
		"engine.virtual_token_reserve": "250000000",
		"engine.max_supply":            "1000000000",
		"engine.fee_bps":               DefaultFeeBps,
		"engine.protocol_share_bps":    DefaultProtocolShare,
		"engine.creator_share_bps":     DefaultCreatorShare,
		"engine.referrer_share_bps":    DefaultReferrerShare,
		"engine.min_creation_payment":  "0.01",
		"engine.min_status_balance":    "1000",
		"engine.max_name_length":       DefaultMaxNameLength,
		"engine.max_symbol_length":     DefaultMaxSymbolLength,
		"engine.max_uri_length":        DefaultMaxURILength,
		"engine.max_status_length":     DefaultMaxStatusLength,
		"engine.unique_names":          true,
		"logging.file":                 "memecurve.log",
		"logging.development":          false,
		"logging.console":              true,
		"logging.max_size":             100,
		"logging.max_age":              7,
		"logging.max_backups":          3,
		"logging.compress":             true,
		"storage.enabled":              false,
		"storage.driver":               gormstore.DriverSQLite,
		"storage.dsn":                  "memecurve.db",
		"storage.retries":              DefaultRetries,
		"storage.retry_delay_ms":       DefaultRetryDelayMs,
		"metrics.enabled":              true,
		"metrics.listen":               ":9090",
		"events.buffer_size":           DefaultEventBuffer,
		"history.dir":                  "history",
		"history.max_trades":           DefaultMaxTrades,
	}
}

// LoadConfig reads path (optional) and applies MEMECURVE_* environment
// overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	loadEnvironmentVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, validateConfig(&cfg)
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func validateConfig(cfg *Config) error {
	if cfg.Engine.Decimals != types.Decimals {
		return fmt.Errorf("engine.decimals: only %d is supported", types.Decimals)
	}
	if _, err := cfg.RegistryPolicy(); err != nil {
		return err
	}
	if _, err := cfg.RouterConfig(); err != nil {
		return err
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if cfg.Storage.Enabled {
		switch cfg.Storage.Driver {
		case gormstore.DriverPostgres:
			if err := validateURLWithCache(cfg.Storage.DSN, "postgres"); err != nil {
				return errors.New("storage.dsn must be a postgres:// URL")
			}
		case gormstore.DriverSQLite:
			if cfg.Storage.DSN == "" {
				return errors.New("storage.dsn is empty")
			}
		default:
			return fmt.Errorf("unsupported storage.driver %q", cfg.Storage.Driver)
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return errors.New("metrics.listen is empty")
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Engine.FeeBps >= types.BpsDenominator {
		return errors.New("invalid engine.fee_bps")
	}
	if cfg.Engine.MaxStatusLength <= 0 {
		return errors.New("invalid engine.max_status_length")
	}
	if cfg.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}
	if cfg.History.MaxTrades <= 0 {
		return errors.New("invalid history.max_trades")
	}
	if cfg.Storage.Retries < 0 || cfg.Storage.RetryDelayMs < 0 {
		return errors.New("invalid storage retry settings")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// ProgramID returns the configured program id, or a fixed id derived from the
// system program when none is set.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	if c.Engine.ProgramID == "" {
		return solana.CreateWithSeed(solana.SystemProgramID, "memecurve", solana.SystemProgramID)
	}
	pk, err := solana.PublicKeyFromBase58(c.Engine.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("engine.program_id: %w", err)
	}
	return pk, nil
}

// NativeMint is the asset reported as the native balance by multicall.
func (c *Config) NativeMint() (solana.PublicKey, error) {
	return parseKey("engine.native_mint", c.Engine.NativeMint)
}

// RegistryPolicy builds the curve factory policy.
func (c *Config) RegistryPolicy() (registry.Policy, error) {
	e := c.Engine
	programID, err := c.ProgramID()
	if err != nil {
		return registry.Policy{}, err
	}

	amounts := map[string]*uint256.Int{}
	for key, raw := range map[string]string{
		"virtual_base_reserve":  e.VirtualBaseReserve,
		"virtual_token_reserve": e.VirtualTokenReserve,
		"max_supply":            e.MaxSupply,
		"min_creation_payment":  e.MinCreationPayment,
	} {
		v, err := c.parseAmount(raw)
		if err != nil {
			return registry.Policy{}, fmt.Errorf("engine.%s: %w", key, err)
		}
		amounts[key] = v
	}

	params := curve.Params{
		BaseReserveVirtual:  amounts["virtual_base_reserve"],
		TokenReserveVirtual: amounts["virtual_token_reserve"],
		MaxSupply:           amounts["max_supply"],
		FeeBps:              e.FeeBps,
		Split: curve.FeeSplit{
			ProtocolBps: e.ProtocolShareBps,
			CreatorBps:  e.CreatorShareBps,
			ReferrerBps: e.ReferrerShareBps,
		},
	}
	// V·(max_supply+Vt) должен оставлять запас под 2^200
	if err := params.Validate(); err != nil {
		return registry.Policy{}, fmt.Errorf("engine: %w", err)
	}
	if e.MaxNameLength <= 0 || e.MaxSymbolLength <= 0 {
		return registry.Policy{}, errors.New("engine: invalid name/symbol length limits")
	}

	return registry.Policy{
		ProgramID:          programID,
		Params:             params,
		MinCreationPayment: amounts["min_creation_payment"],
		MaxNameLength:      e.MaxNameLength,
		MaxSymbolLength:    e.MaxSymbolLength,
		MaxURILength:       e.MaxURILength,
		UniqueNames:        e.UniqueNames,
	}, nil
}

// RouterConfig builds the router policy. An empty treasury is derived from
// the program id.
func (c *Config) RouterConfig() (router.Config, error) {
	base, err := parseKey("engine.base_mint", c.Engine.BaseMint)
	if err != nil {
		return router.Config{}, err
	}
	var treasury solana.PublicKey
	if c.Engine.Treasury == "" {
		programID, err := c.ProgramID()
		if err != nil {
			return router.Config{}, err
		}
		if treasury, err = solana.CreateWithSeed(programID, "treasury", programID); err != nil {
			return router.Config{}, err
		}
	} else if treasury, err = parseKey("engine.treasury", c.Engine.Treasury); err != nil {
		return router.Config{}, err
	}
	minStatus, err := c.parseAmount(c.Engine.MinStatusBalance)
	if err != nil {
		return router.Config{}, fmt.Errorf("engine.min_status_balance: %w", err)
	}
	return router.Config{
		BaseMint:         base,
		Treasury:         treasury,
		MinStatusBalance: minStatus,
		MaxStatusLength:  c.Engine.MaxStatusLength,
	}, nil
}

// LoggerConfig maps the logging section onto the logger package.
func (c *Config) LoggerConfig() *logger.Config {
	l := c.Logging
	return &logger.Config{
		LogFile:     l.File,
		MaxSize:     l.MaxSize,
		MaxAge:      l.MaxAge,
		MaxBackups:  l.MaxBackups,
		Compress:    l.Compress,
		Development: l.Development,
		Console:     l.Console,
	}
}

// StorageOptions maps the storage section onto gormstore.
func (c *Config) StorageOptions() gormstore.Options {
	return gormstore.Options{
		Driver:     c.Storage.Driver,
		DSN:        c.Storage.DSN,
		MaxRetries: c.Storage.Retries,
		RetryDelay: time.Duration(c.Storage.RetryDelayMs) * time.Millisecond,
	}
}

func (c *Config) parseAmount(raw string) (*uint256.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Zero(), nil
	}
	return types.ParseUnits(strings.TrimSpace(raw), c.Engine.Decimals)
}

func parseKey(field, raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", field, err)
	}
	return pk, nil
}
