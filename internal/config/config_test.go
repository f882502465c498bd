package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NmX69/quant-lab/internal/model"
)

const sampleYAML = `
asset: BTCUSDT
data: testdata/btc_1h.csv
mode: aggressive
use_router: true
strategy_dir: strategies
router:
  trending_up: trend_macd
  trending_down: trend_macd
  ranging: range_rsi_bb
position_pct: 20
risk_pct: 2
reward_rr: 3
max_candles: 5000
report_path: out/report.json
ledger_path: out/trades.csv
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_Load(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Asset)
	assert.Equal(t, "aggressive", cfg.Mode)
	assert.True(t, cfg.UseRouter)
	assert.Equal(t, 20.0, cfg.PositionPct)
	assert.Equal(t, 2.0, cfg.RiskPct)
	assert.Equal(t, 3.0, cfg.RewardRR)
	assert.Equal(t, 5000, cfg.MaxCandles)
	assert.Equal(t, "out/report.json", cfg.ReportPath)
}

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "balanced", cfg.Mode)
	assert.True(t, cfg.UseRouter)
	assert.Equal(t, "strategies", cfg.StrategyDir)
	assert.Equal(t, 15.0, cfg.PositionPct)
	assert.Equal(t, 1.0, cfg.RiskPct)
	assert.Equal(t, 1.5, cfg.RewardRR)
}

func Test_Load_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "asset: ETHUSDT\ndata: eth.csv\n"))
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Asset)
	assert.Equal(t, "balanced", cfg.Mode, "unset fields keep their defaults")
	assert.Equal(t, 15.0, cfg.PositionPct)
}

func Test_Load_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		description string
	}{
		{
			name:        "Invalid mode",
			content:     "mode: yolo\n",
			description: "Mode must come from the closed set",
		},
		{
			name:        "Position percent out of range",
			content:     "position_pct: 150\n",
			description: "Position percent is capped at 100",
		},
		{
			name:        "Malformed YAML",
			content:     "asset: [unclosed\n",
			description: "Parse errors surface instead of silently using defaults",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err, tt.description)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func Test_Load_EnvOverrides(t *testing.T) {
	t.Setenv("BACKTEST_ASSET", "SOLUSDT")
	t.Setenv("BACKTEST_MODE", "conservative")
	t.Setenv("BACKTEST_USE_ROUTER", "false")
	t.Setenv("BACKTEST_MAX_CANDLES", "1234")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", cfg.Asset, "env overrides beat the file")
	assert.Equal(t, "conservative", cfg.Mode)
	assert.False(t, cfg.UseRouter)
	assert.Equal(t, 1234, cfg.MaxCandles)
	assert.Equal(t, "testdata/btc_1h.csv", cfg.Data, "untouched fields keep the file values")
}

func Test_Load_EnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("BACKTEST_USE_ROUTER", "perhaps")
	t.Setenv("BACKTEST_MAX_CANDLES", "many")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.True(t, cfg.UseRouter, "unparseable booleans keep the file value")
	assert.Equal(t, 5000, cfg.MaxCandles, "unparseable integers keep the file value")
}

func Test_RouterMappings(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	mappings := cfg.RouterMappings()
	assert.Equal(t, map[model.RegimeLabel]string{
		model.RegimeTrendingUp:   "trend_macd",
		model.RegimeTrendingDown: "trend_macd",
		model.RegimeRanging:      "range_rsi_bb",
	}, mappings)

	t.Run("empty table maps to nil", func(t *testing.T) {
		assert.Nil(t, Config{}.RouterMappings(), "nil signals the engine to use the default table")
	})
}
