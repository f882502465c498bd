package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ValidateAsset(t *testing.T) {
	tests := []struct {
		name        string
		asset       string
		wantErr     error
		description string
	}{
		{
			name:        "Compact tag",
			asset:       "BTCUSDT",
			description: "The common exchange spelling validates",
		},
		{
			name:        "Dash-separated tag",
			asset:       "BTC-USDT",
			description: "The separated form validates too",
		},
		{
			name:        "Lower case",
			asset:       "eth-usdc",
			description: "Validation is case-insensitive",
		},
		{
			name:        "Fiat quote",
			asset:       "SOLEUR",
			description: "Fiat quote currencies are supported",
		},
		{
			name:        "Empty tag",
			asset:       "",
			wantErr:     ErrEmptyAsset,
			description: "Empty tags are rejected explicitly",
		},
		{
			name:        "Unsupported quote",
			asset:       "BTC-DOGE",
			wantErr:     ErrInvalidAsset,
			description: "Unknown quote assets are rejected",
		},
		{
			name:        "Missing base",
			asset:       "-USDT",
			wantErr:     ErrInvalidAsset,
			description: "A bare quote is not a pair",
		},
		{
			name:        "Quote only compact",
			asset:       "USDT",
			wantErr:     ErrInvalidAsset,
			description: "The compact form still needs a base prefix",
		},
		{
			name:        "No recognizable quote",
			asset:       "GIBBERISH",
			wantErr:     ErrInvalidAsset,
			description: "Tags without a known quote suffix are rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAsset(tt.asset)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr, tt.description)
				return
			}
			assert.NoError(t, err, tt.description)
		})
	}
}

func Test_NormalizeAsset(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		want  string
	}{
		{name: "Already compact", asset: "BTCUSDT", want: "BTCUSDT"},
		{name: "Dash removed", asset: "BTC-USDT", want: "BTCUSDT"},
		{name: "Case folded", asset: "eth-usdt", want: "ETHUSDT"},
		{name: "Whitespace trimmed", asset: "  solusdt ", want: "SOLUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAsset(tt.asset))
		})
	}
}
