package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// AssetCode is the unique inventory code printed on an asset's tag,
// formatted {prefix}-{year}-{categoryCode}-{sequence}. The sequence is
// monotonic per prefix+year+category.
type AssetCode struct {
	prefix   string
	year     int
	category string
	sequence int
}

const DefaultPrefix = "OPRAG"

func NewAssetCode(prefix string, year int, categoryCode string, sequence int) AssetCode {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return AssetCode{
		prefix:   prefix,
		year:     year,
		category: normalizeCategoryCode(categoryCode),
		sequence: sequence,
	}
}

func (c AssetCode) String() string {
	return fmt.Sprintf("%s-%d-%s-%05d", c.prefix, c.year, c.category, c.sequence)
}

// SeriesPrefix is the shared prefix of every code in the same
// prefix+year+category series, used to find the last issued sequence.
func (c AssetCode) SeriesPrefix() string {
	return fmt.Sprintf("%s-%d-%s-", c.prefix, c.year, c.category)
}

func (c AssetCode) Next() AssetCode {
	c.sequence++
	return c
}

// ParseAssetCode splits a stored code back into its parts. The sequence is
// the last dash-separated segment; the category may not contain dashes.
func ParseAssetCode(code string) (AssetCode, error) {
	parts := strings.Split(code, "-")
	if len(parts) != 4 {
		return AssetCode{}, fmt.Errorf("malformed asset code: %s", code)
	}

	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return AssetCode{}, fmt.Errorf("malformed year in asset code %s: %w", code, err)
	}

	sequence, err := strconv.Atoi(parts[3])
	if err != nil {
		return AssetCode{}, fmt.Errorf("malformed sequence in asset code %s: %w", code, err)
	}

	return AssetCode{
		prefix:   parts[0],
		year:     year,
		category: parts[2],
		sequence: sequence,
	}, nil
}

func normalizeCategoryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) > 4 {
		code = code[:4]
	}
	return code
}
