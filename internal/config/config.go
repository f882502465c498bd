// Package config loads the backtest run configuration from YAML, with
// environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/NmX69/quant-lab/internal/model"
)

// Config is the full run configuration.
type Config struct {
	Asset string `yaml:"asset"`
	Data  string `yaml:"data"`
	Mode  string `yaml:"mode" validate:"oneof=conservative balanced aggressive"`

	Strategy    string `yaml:"strategy"`
	UseRouter   bool   `yaml:"use_router"`
	StrategyDir string `yaml:"strategy_dir"`

	// Router maps regime labels to strategy keys; empty uses the built-in
	// table.
	Router map[string]string `yaml:"router"`

	PositionPct float64 `yaml:"position_pct" validate:"gte=0,lte=100"`
	RiskPct     float64 `yaml:"risk_pct" validate:"gte=0,lte=100"`
	RewardRR    float64 `yaml:"reward_rr" validate:"gte=0"`
	MaxCandles  int     `yaml:"max_candles" validate:"gte=0"`

	ReportPath string `yaml:"report_path"`
	LedgerPath string `yaml:"ledger_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Mode:        "balanced",
		UseRouter:   true,
		StrategyDir: "strategies",
		PositionPct: 15,
		RiskPct:     1.0,
		RewardRR:    1.5,
	}
}

// Load reads the YAML configuration at path, fills defaults, applies
// environment overrides, and validates the result. An empty path yields the
// defaults plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file if present. A missing file is not an error.
func LoadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to load env file")
		}
	}
}

// RouterMappings converts the YAML router table into typed regime labels.
func (c Config) RouterMappings() map[model.RegimeLabel]string {
	if len(c.Router) == 0 {
		return nil
	}
	mappings := make(map[model.RegimeLabel]string, len(c.Router))
	for regime, name := range c.Router {
		mappings[model.RegimeLabel(regime)] = name
	}
	return mappings
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("BACKTEST_ASSET", &cfg.Asset)
	setString("BACKTEST_DATA", &cfg.Data)
	setString("BACKTEST_MODE", &cfg.Mode)
	setString("BACKTEST_STRATEGY", &cfg.Strategy)
	setString("BACKTEST_STRATEGY_DIR", &cfg.StrategyDir)
	setString("BACKTEST_REPORT_PATH", &cfg.ReportPath)
	setString("BACKTEST_LEDGER_PATH", &cfg.LedgerPath)

	if v, ok := os.LookupEnv("BACKTEST_USE_ROUTER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Warn().Str("value", v).Msg("invalid BACKTEST_USE_ROUTER, ignoring")
		} else {
			cfg.UseRouter = b
		}
	}
	if v, ok := os.LookupEnv("BACKTEST_MAX_CANDLES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn().Str("value", v).Msg("invalid BACKTEST_MAX_CANDLES, ignoring")
		} else {
			cfg.MaxCandles = n
		}
	}
}
