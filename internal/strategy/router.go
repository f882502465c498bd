package strategy

import (
	"errors"
	"fmt"

	"github.com/NmX69/quant-lab/internal/model"
)

// ErrUnmappedRegime indicates a router lookup for a regime with no strategy
// entry. This is a configuration bug: resolution fails fast instead of
// silently substituting a default, which would corrupt downstream analytics.
var ErrUnmappedRegime = errors.New("no strategy mapped for regime")

// DefaultRegimeTable is the regime-to-strategy mapping used when the caller
// supplies none.
var DefaultRegimeTable = map[model.RegimeLabel]string{
	model.RegimeTrendingUp:   "trend_macd",
	model.RegimeTrendingDown: "trend_macd",
	model.RegimeRanging:      "range_rsi_bb",
}

// Router resolves the active strategy for a regime from a per-regime lookup
// table. In router mode the engine re-resolves on every candle, so a routed
// strategy's entry conditions, exit policy, and risk policy can change
// mid-trade when the regime flips.
type Router struct {
	table    map[model.RegimeLabel]string
	registry *Registry
}

// NewRouter creates a router over the registry. A nil or empty table falls
// back to DefaultRegimeTable.
func NewRouter(registry *Registry, table map[model.RegimeLabel]string) *Router {
	if len(table) == 0 {
		table = DefaultRegimeTable
	}
	return &Router{table: table, registry: registry}
}

// Active returns the strategy configuration mapped to the given regime.
func (r *Router) Active(regime model.RegimeLabel) (Config, error) {
	name, ok := r.table[regime]
	if !ok || name == "" {
		return Config{}, fmt.Errorf("%w: %s", ErrUnmappedRegime, regime)
	}
	return r.registry.Get(name)
}
