// Package refdata loads the published reference tables into the canonical
// in-memory structures the engine consumes: income limit workbooks,
// designation shapefiles, county lists, award history, and the multiplier
// calibration. Load failures here are batch-fatal; nothing downstream may
// evaluate against partial reference data.
package refdata

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/fetcher"
	"github.com/sells-group/sitescore/internal/rent"
)

// limitColumn matches HUD-style income limit headers: l50_1 is the 50% AMI
// limit for a 1-person household.
var limitColumn = regexp.MustCompile(`^l(\d+)_(\d+)$`)

// LoadIncomeLimits reads an income-limit workbook into a rent table. The
// first row is the header; one column must be the geography key (fips) and
// the limit columns follow the l<tier>_<persons> convention.
func LoadIncomeLimits(path string, vintage int) (*rent.IncomeLimitTable, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read income limits")
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("refdata: income limit workbook %s has no data rows", path)
	}

	header := rows[0]
	keyIdx := -1
	type limitCol struct {
		idx     int
		tier    int
		persons int
	}
	var cols []limitCol

	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case name == "fips" || name == "geoid" || name == "cbsasub":
			if keyIdx == -1 {
				keyIdx = i
			}
		default:
			if m := limitColumn.FindStringSubmatch(name); m != nil {
				tier, _ := strconv.Atoi(m[1])
				persons, _ := strconv.Atoi(m[2])
				cols = append(cols, limitCol{idx: i, tier: tier, persons: persons})
			}
		}
	}
	if keyIdx == -1 {
		return nil, eris.Errorf("refdata: income limit workbook %s has no geography key column", path)
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("refdata: income limit workbook %s has no l<tier>_<persons> columns", path)
	}

	table := &rent.IncomeLimitTable{
		Vintage: vintage,
		Limits:  make(map[string]map[int][]float64, len(rows)-1),
	}

	var skipped int
	for _, row := range rows[1:] {
		if keyIdx >= len(row) {
			skipped++
			continue
		}
		key := strings.TrimSpace(row[keyIdx])
		if key == "" {
			skipped++
			continue
		}

		tiers := make(map[int][]float64)
		ok := true
		for _, c := range cols {
			if c.idx >= len(row) {
				ok = false
				break
			}
			v, perr := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[c.idx]), ",", ""), 64)
			if perr != nil || v <= 0 {
				ok = false
				break
			}
			limits := tiers[c.tier]
			for len(limits) < c.persons {
				limits = append(limits, 0)
			}
			limits[c.persons-1] = v
			tiers[c.tier] = limits
		}
		if !ok {
			skipped++
			continue
		}

		// Reject rows with gaps: a zero limit would corrupt interpolation.
		for tier, limits := range tiers {
			for _, v := range limits {
				if v <= 0 {
					return nil, eris.Errorf("refdata: geography %s tier %d%% has a gap in household sizes", key, tier)
				}
			}
		}
		table.Limits[key] = tiers
	}

	if skipped > 0 {
		zap.L().Warn("refdata: skipped unparseable income limit rows",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(table.Limits) == 0 {
		return nil, eris.Errorf("refdata: income limit workbook %s produced no usable geographies", path)
	}

	return table, nil
}
