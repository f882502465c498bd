// Package utils provides common utility functions for data validation.
//
// This package contains utilities for working with trading asset tags,
// including validating the asset identifier carried into report headers and
// exported artifacts.
package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions for validation functions
var (
	ErrEmptyAsset   = errors.New("asset tag cannot be empty")
	ErrInvalidAsset = errors.New("invalid asset tag")
)

// quoteAssets contains the quote currencies an asset tag may end with.
// This map is used for O(1) suffix lookup when validating tags.
var quoteAssets = map[string]bool{
	"USDT": true, // Tether USD
	"USDC": true, // USD Coin
	"USD":  true, // US dollar
	"BTC":  true, // Bitcoin
	"ETH":  true, // Ethereum
	"EUR":  true, // Euro
}

// supportedQuotesCache is a pre-computed string of supported quote assets
// to avoid rebuilding this string on every validation error.
var supportedQuotesCache = joinKeys(quoteAssets)

// ValidateAsset validates a trading asset tag.
//
// Two spellings are accepted:
//   - "BASEQUOTE" (e.g. "BTCUSDT"), where QUOTE must be a supported quote
//   - "BASE-QUOTE" (e.g. "BTC-USDT"), the dash-separated exchange form
//
// Validation is case-insensitive. The tag only labels reports, so this is a
// typo guard, not an exchange listing check.
func ValidateAsset(asset string) error {
	if asset == "" {
		return ErrEmptyAsset
	}

	tag := strings.ToUpper(strings.TrimSpace(asset))

	if base, quote, ok := strings.Cut(tag, "-"); ok {
		if base == "" {
			return fmt.Errorf("%w %q: base asset cannot be empty", ErrInvalidAsset, asset)
		}
		if !quoteAssets[quote] {
			return fmt.Errorf("%w %q: unsupported quote asset %s (supported: %s)",
				ErrInvalidAsset, asset, quote, supportedQuotesCache)
		}
		return nil
	}

	for quote := range quoteAssets {
		if strings.HasSuffix(tag, quote) && len(tag) > len(quote) {
			return nil
		}
	}
	return fmt.Errorf("%w %q: tag must end with a supported quote asset (supported: %s)",
		ErrInvalidAsset, asset, supportedQuotesCache)
}

// NormalizeAsset upper-cases an asset tag and strips the dash separator, so
// "btc-usdt" and "BTCUSDT" label the same series in reports.
func NormalizeAsset(asset string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(asset)), "-", "")
}

// joinKeys builds a comma-separated string from the map keys. The order is
// not guaranteed, the string is only used in error messages.
func joinKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
