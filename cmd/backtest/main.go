/*
Package main implements the command-line runner for the regime-aware
strategy backtester.

The runner loads an OHLCV candle series from CSV, enriches it with the
indicator suite and regime labels, loads the strategy catalog from a JSON
directory, simulates the configured strategy (fixed or regime-routed) over
the series, and prints the summary report. Optional JSON report and CSV
trade-ledger artifacts can be written alongside.

Usage:

	go run main.go -config=run.yaml
	go run main.go -data=btc_1h.csv -asset=BTCUSDT -router
	go run main.go -data=btc_1h.csv -asset=BTCUSDT -strategy=trend_macd -mode=aggressive

Flags override values from the YAML configuration file, which in turn can be
overridden by BACKTEST_* environment variables (optionally loaded from .env).
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NmX69/quant-lab/internal/config"
	"github.com/NmX69/quant-lab/internal/data"
	"github.com/NmX69/quant-lab/internal/engine"
	"github.com/NmX69/quant-lab/internal/indicator"
	"github.com/NmX69/quant-lab/internal/report"
	"github.com/NmX69/quant-lab/internal/strategy"
	"github.com/NmX69/quant-lab/internal/utils"
)

func main() {
	// Command-line flags for configuring the run
	var (
		configPath  = flag.String("config", "", "Path to the YAML run configuration")
		dataPath    = flag.String("data", "", "Path to the OHLCV candle CSV")
		asset       = flag.String("asset", "", "Asset tag for the report header")
		mode        = flag.String("mode", "", "Execution mode: conservative, balanced, aggressive")
		strategyKey = flag.String("strategy", "", "Strategy key (disables the router)")
		router      = flag.Bool("router", false, "Route strategies by regime")
		strategyDir = flag.String("strategy-dir", "", "Directory of strategy JSON files")
		maxCandles  = flag.Int("max-candles", 0, "Use only the last N candles (0 = all)")
		reportPath  = flag.String("report", "", "Write the JSON report to this path")
		ledgerPath  = flag.String("ledger", "", "Write the trade-ledger CSV to this path")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// Initialize structured logger with timestamp and info level
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	config.LoadEnvFile(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	applyFlags(&cfg, *dataPath, *asset, *mode, *strategyKey, *router, *strategyDir, *maxCandles, *reportPath, *ledgerPath)

	if cfg.Data == "" {
		log.Fatal().Msg("no candle data file configured (use -data or the config file)")
	}
	if cfg.Asset != "" {
		if err := utils.ValidateAsset(cfg.Asset); err != nil {
			log.Fatal().Err(err).Msg("invalid asset tag")
		}
		cfg.Asset = utils.NormalizeAsset(cfg.Asset)
	}
	if !cfg.UseRouter && cfg.Strategy == "" {
		log.Fatal().Msg("no strategy configured (use -strategy or -router)")
	}

	raw, err := data.LoadCSV(cfg.Data)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load candle data")
	}
	log.Info().Int("candles", len(raw)).Str("file", cfg.Data).Msg("loaded candle data")

	candles := indicator.Enrich(raw)
	log.Info().
		Int("candles", len(candles)).
		Int("warmup_dropped", len(raw)-len(candles)).
		Msg("computed indicators and regimes")

	registry := strategy.NewRegistry()
	if err := registry.LoadDir(cfg.StrategyDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StrategyDir).Msg("failed to load strategies")
	}
	log.Info().Strs("strategies", registry.List()).Msg("loaded strategy catalog")

	params := engine.Params{
		Asset:       cfg.Asset,
		Mode:        cfg.Mode,
		Strategy:    cfg.Strategy,
		UseRouter:   cfg.UseRouter,
		Mappings:    cfg.RouterMappings(),
		PositionPct: cfg.PositionPct,
		RiskPct:     cfg.RiskPct,
		RewardRR:    cfg.RewardRR,
		MaxCandles:  cfg.MaxCandles,
	}

	summary, result, err := engine.Run(candles, params, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	fmt.Print(summary)

	if cfg.ReportPath != "" {
		rep := report.Build(&result)
		if err := report.WriteJSON(rep, cfg.ReportPath); err != nil {
			log.Fatal().Err(err).Msg("failed to write report")
		}
		log.Info().Str("path", cfg.ReportPath).Msg("wrote JSON report")
	}
	if cfg.LedgerPath != "" {
		if err := report.WriteTradesCSV(result.Trades, cfg.LedgerPath); err != nil {
			log.Fatal().Err(err).Msg("failed to write trade ledger")
		}
		log.Info().Str("path", cfg.LedgerPath).Int("trades", len(result.Trades)).Msg("wrote trade ledger")
	}
}

// applyFlags overlays non-empty flag values onto the loaded configuration.
// Flags have the highest precedence.
func applyFlags(cfg *config.Config, dataPath, asset, mode, strategyKey string, router bool, strategyDir string, maxCandles int, reportPath, ledgerPath string) {
	if dataPath != "" {
		cfg.Data = dataPath
	}
	if asset != "" {
		cfg.Asset = asset
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if strategyKey != "" {
		cfg.Strategy = strategyKey
		cfg.UseRouter = false
	}
	if router {
		cfg.UseRouter = true
	}
	if strategyDir != "" {
		cfg.StrategyDir = strategyDir
	}
	if maxCandles > 0 {
		cfg.MaxCandles = maxCandles
	}
	if reportPath != "" {
		cfg.ReportPath = reportPath
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
}
