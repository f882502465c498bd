package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/NmX69/quant-lab/internal/model"
)

// WriteJSON writes the full report as indented JSON.
func WriteJSON(rep *Report, path string) error {
	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

var ledgerHeader = []string{
	"entry_time", "exit_time", "trade_type", "strategy", "regime",
	"entry_price", "exit_price", "position", "pnl", "pnl_pct", "pnl_r",
	"mae_pct", "mfe_pct", "stop_distance_pct", "take_profit_multiple",
	"hold_hours", "exit_reason",
}

// WriteTradesCSV writes the trade ledger as a flat CSV, one row per full or
// partial close.
func WriteTradesCSV(trades []model.TradeRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ledger file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ledgerHeader); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			t.TradeType,
			t.Strategy,
			string(t.Regime),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.Position.String(),
			t.PnL.String(),
			t.PnLPct.StringFixed(4),
			strconv.FormatFloat(t.PnLR, 'f', 4, 64),
			t.MAE.StringFixed(4),
			t.MFE.StringFixed(4),
			strconv.FormatFloat(t.StopDistancePct, 'f', 6, 64),
			strconv.FormatFloat(t.TakeProfitMultiple, 'f', 2, 64),
			strconv.FormatFloat(t.HoldTimeHours, 'f', 2, 64),
			string(t.ExitReason),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write ledger row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}
