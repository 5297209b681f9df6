package ledger

import (
	"strconv"

	"github.com/pkg/errors"
)

// DropsPerUnit is the fixed scale between the ledger's smallest subunit
// (drops) and the native display unit.
const DropsPerUnit = 1_000_000

// UnitsFromDrops converts a drop count to native units. Exact for any value
// up to 2^53 drops, far beyond the total supply.
func UnitsFromDrops(drops int64) float64 {
	return float64(drops) / DropsPerUnit
}

// DropsFromUnits converts native units to drops, rounding half away from
// zero to the nearest drop.
func DropsFromUnits(units float64) int64 {
	if units < 0 {
		return -DropsFromUnits(-units)
	}
	return int64(units*DropsPerUnit + 0.5)
}

// ParseDrops parses a decimal drop string as returned by ledger nodes.
func ParseDrops(s string) (int64, error) {
	drops, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing drops %q", s)
	}
	if drops < 0 {
		return 0, errors.Errorf("negative drop amount %q", s)
	}
	return drops, nil
}
