// Package data loads raw OHLCV candle series from CSV files.
package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NmX69/quant-lab/internal/model"
)

var (
	// ErrNoCandles indicates the file contained a header but no data rows.
	ErrNoCandles = errors.New("no candle rows in file")

	// ErrUnsortedCandles indicates timestamps are not strictly ascending.
	ErrUnsortedCandles = errors.New("candle timestamps not strictly ascending")
)

// expected CSV column order; a header row is required.
var columns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// LoadCSV reads an OHLCV series from path. The file must have a
// timestamp,open,high,low,close,volume header, rows sorted by ascending
// timestamp, and positive prices. Timestamps may be RFC 3339 or unix
// epoch seconds/milliseconds.
func LoadCSV(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	candles, err := ReadCandles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return candles, nil
}

// ReadCandles parses an OHLCV CSV stream. See LoadCSV for the format.
func ReadCandles(r io.Reader) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoCandles
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var candles []model.Candle
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++

		c, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(candles) > 0 && !c.Timestamp.After(candles[len(candles)-1].Timestamp) {
			return nil, fmt.Errorf("line %d: %w", line, ErrUnsortedCandles)
		}
		candles = append(candles, c)
	}

	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return candles, nil
}

func checkHeader(header []string) error {
	if len(header) < len(columns) {
		return fmt.Errorf("header has %d columns, want %d", len(header), len(columns))
	}
	for i, want := range columns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("header column %d is %q, want %q", i, header[i], want)
		}
	}
	return nil
}

func parseRow(record []string) (model.Candle, error) {
	if len(record) < len(columns) {
		return model.Candle{}, fmt.Errorf("row has %d columns, want %d", len(record), len(columns))
	}

	ts, err := parseTimestamp(record[0])
	if err != nil {
		return model.Candle{}, err
	}

	prices := make([]decimal.Decimal, 4)
	for i, name := range []string{"open", "high", "low", "close"} {
		d, err := decimal.NewFromString(strings.TrimSpace(record[i+1]))
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse %s %q: %w", name, record[i+1], err)
		}
		if !d.IsPositive() {
			return model.Candle{}, fmt.Errorf("%s must be positive, got %s", name, d)
		}
		prices[i] = d
	}

	volume, err := decimal.NewFromString(strings.TrimSpace(record[5]))
	if err != nil {
		return model.Candle{}, fmt.Errorf("parse volume %q: %w", record[5], err)
	}
	if volume.IsNegative() {
		return model.Candle{}, fmt.Errorf("volume must be non-negative, got %s", volume)
	}

	return model.Candle{
		Timestamp: ts,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    volume,
	}, nil
}

// parseTimestamp accepts RFC 3339, a bare "2006-01-02 15:04:05" layout, or
// unix epoch seconds/milliseconds. Epoch values above 1e12 are treated as
// milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		if epoch > 1_000_000_000_000 {
			return time.UnixMilli(epoch).UTC(), nil
		}
		return time.Unix(epoch, 0).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
