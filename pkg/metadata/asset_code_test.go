package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetCodeString(t *testing.T) {
	tests := []struct {
		name     string
		code     AssetCode
		expected string
	}{
		{
			name:     "Basic Case",
			code:     NewAssetCode("OPRAG", 2024, "INFO", 42),
			expected: "OPRAG-2024-INFO-00042",
		},
		{
			name:     "Empty Prefix Falls Back To Default",
			code:     NewAssetCode("", 2024, "VEHI", 1),
			expected: "OPRAG-2024-VEHI-00001",
		},
		{
			name:     "Long Category Is Truncated",
			code:     NewAssetCode("OPRAG", 2023, "MOBILIER", 7),
			expected: "OPRAG-2023-MOBI-00007",
		},
		{
			name:     "Lowercase Category Is Normalized",
			code:     NewAssetCode("OPRAG", 2023, "info", 7),
			expected: "OPRAG-2023-INFO-00007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.code.String())
		})
	}
}

func TestAssetCodeSeriesPrefix(t *testing.T) {
	code := NewAssetCode("OPRAG", 2024, "INFO", 42)
	assert.Equal(t, "OPRAG-2024-INFO-", code.SeriesPrefix())
}

func TestAssetCodeNext(t *testing.T) {
	code := NewAssetCode("OPRAG", 2024, "INFO", 41)
	assert.Equal(t, "OPRAG-2024-INFO-00042", code.Next().String())
	assert.Equal(t, "OPRAG-2024-INFO-00041", code.String())
}

func TestParseAssetCode(t *testing.T) {
	code, err := ParseAssetCode("OPRAG-2024-INFO-00042")
	assert.NoError(t, err)
	assert.Equal(t, "OPRAG-2024-INFO-00042", code.String())
	assert.Equal(t, "OPRAG-2024-INFO-00043", code.Next().String())
}

func TestParseAssetCodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "Too Few Segments", code: "OPRAG-2024-00042"},
		{name: "Bad Year", code: "OPRAG-year-INFO-00042"},
		{name: "Bad Sequence", code: "OPRAG-2024-INFO-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssetCode(tt.code)
			assert.Error(t, err)
		})
	}
}
