package refdata

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/boundary"
	"github.com/sells-group/sitescore/internal/fetcher"
)

// LoadCountySet reads a county designation list CSV into a CountySet. The
// file carries a header with at least a "fips" column; a "name" column, when
// present, is folded and kept only for log context.
func LoadCountySet(csvPath, name string, vintage int) (*boundary.CountySet, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open county list %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: read county list %s", csvPath)
	}

	fipsIdx, nameIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(h) {
		case "fips", "county_fips", "geoid":
			fipsIdx = i
		case "name", "county", "county_name":
			nameIdx = i
		}
	}
	if fipsIdx == -1 {
		return nil, eris.Errorf("refdata: county list %s has no fips column", csvPath)
	}

	var fips []string
	var skipped int
	for _, row := range rows {
		if fipsIdx >= len(row) {
			skipped++
			continue
		}
		code := row[fipsIdx]
		if len(code) != 5 {
			skipped++
			if nameIdx != -1 && nameIdx < len(row) {
				zap.L().Debug("refdata: skipping county row with bad fips",
					zap.String("fips", code),
					zap.String("county", boundary.FoldCountyName(row[nameIdx])),
				)
			}
			continue
		}
		fips = append(fips, code)
	}

	if skipped > 0 {
		zap.L().Warn("refdata: skipped malformed county rows",
			zap.String("path", csvPath),
			zap.Int("skipped", skipped),
		)
	}
	if len(fips) == 0 {
		return nil, eris.Errorf("refdata: county list %s produced no counties", csvPath)
	}

	return boundary.NewCountySet(name, vintage, fips), nil
}
