package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/NmX69/quant-lab/internal/condition"
)

// Registry holds loaded strategy configurations keyed by the lower-cased
// definition file stem. Registry reads hand out copies, never shared
// pointers, so callers cannot corrupt the loaded definitions.
type Registry struct {
	strategies map[string]Config
	validate   *validator.Validate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Config),
		validate:   validator.New(),
	}
}

// LoadDir loads every *.json file from dir into the registry. Invalid files
// are logged and skipped; they never poison already-loaded strategies.
// If no valid strategy loads (or the directory is missing), a built-in
// fallback strategy is installed so a run can always resolve something.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("strategies directory not readable")
		r.installFallback()
		return nil
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}

		name := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		path := filepath.Join(dir, e.Name())

		cfg, err := r.loadFile(name, path)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name()).Msg("skipping strategy")
			continue
		}

		r.strategies[name] = cfg
		loaded++
		log.Info().Str("strategy", name).Msg("strategy loaded")
	}

	if loaded == 0 {
		log.Warn().Str("dir", dir).Msg("no valid strategies loaded, using fallback")
		r.installFallback()
	}
	return nil
}

// Register validates and adds a single strategy under the given key.
func (r *Registry) Register(name string, cfg Config) error {
	if err := r.validate.Struct(&cfg); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidStrategy, name, err)
	}
	if err := validateSemantics(name, &cfg); err != nil {
		return err
	}
	r.strategies[strings.ToLower(name)] = cfg
	return nil
}

// Get returns a copy of the named strategy.
func (r *Registry) Get(name string) (Config, error) {
	cfg, ok := r.strategies[strings.ToLower(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownStrategy, name, r.List())
	}
	return cfg.clone(), nil
}

// List returns the sorted strategy keys.
func (r *Registry) List() []string {
	keys := make([]string, 0, len(r.strategies))
	for k := range r.strategies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) loadFile(name, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Config{}, fmt.Errorf("%w %q: empty file", ErrInvalidStrategy, name)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %q: %v", ErrInvalidStrategy, name, err)
	}
	if err := r.validate.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w %q: %v", ErrInvalidStrategy, name, err)
	}
	if err := validateSemantics(name, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// installFallback registers the built-in strategy catalog used when no
// definition files are available. The names cover every entry of the default
// regime table so router mode works out of the box.
func (r *Registry) installFallback() {
	adxTrending := 25.0
	rsiOversold := 35.0
	rsiOverbought := 65.0

	r.strategies["trend_macd"] = Config{
		Name:      "Trend MACD",
		Regime:    "trending",
		Direction: DirectionLong,
		Entry: EntryPolicy{Conditions: []condition.Condition{
			{Type: condition.TypeMACDCross, Direction: "up"},
			{Type: condition.TypeADX, Above: &adxTrending},
			{Type: condition.TypePriceAboveEMA, Period: 150},
		}},
		Exit: ExitPolicy{
			StopLoss:    StopValue{Pct: 0.03},
			TakeProfit:  StopValue{Pct: 0.18},
			PartialExit: 0.5,
			SignalExit: []condition.Condition{
				{Type: condition.TypeMACDCross, Direction: "down"},
			},
		},
		Risk: RiskPolicy{Sizing: "fixed_usd", MaxExposureUSD: 15.0},
	}

	r.strategies["range_rsi_bb"] = Config{
		Name:      "Range RSI + Bollinger",
		Regime:    "ranging",
		Direction: DirectionLong,
		Entry: EntryPolicy{Conditions: []condition.Condition{
			{Type: condition.TypeRSI, Below: &rsiOversold},
			{Type: condition.TypePriceNearBBLower},
		}},
		Exit: ExitPolicy{
			StopLoss:   StopValue{Pct: 0.02},
			TakeProfit: StopValue{Pct: 0.03},
			SignalExit: []condition.Condition{
				{Type: condition.TypeRSI, Above: &rsiOverbought},
			},
		},
		Risk: RiskPolicy{Sizing: "fixed_usd", MaxExposureUSD: 15.0},
	}

	log.Info().Msg("built-in strategy catalog loaded (trend_macd, range_rsi_bb)")
}
