package refdata

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/fetcher"
	"github.com/sells-group/sitescore/internal/model"
)

// coordScrubber strips the stray separator characters that have shown up in
// raw longitude fields upstream (tabs, repeated signs, unit suffixes).
var coordScrubber = strings.NewReplacer("\t", "", " ", "", " ", "", "°", "", "'", "", "\"", "")

// ParseCoordinate cleans and parses a raw coordinate field, then range
// checks it. Corrupt longitude data has historically parsed to huge values
// and silently zeroed out every proximity match, so out-of-range values are
// an error, not a skip-and-continue.
func ParseCoordinate(raw string, min, max float64) (float64, error) {
	cleaned := coordScrubber.Replace(strings.TrimSpace(raw))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "refdata: parse coordinate %q", raw)
	}
	if v < min || v > max {
		return 0, eris.Errorf("refdata: coordinate %q outside [%g, %g] after cleaning", raw, min, max)
	}
	return v, nil
}

// LoadAwards reads the prior-award history CSV. Expected header columns:
// id, project, lat, lon, year, track, county_fips, new_construction,
// family_dev, units. Rows failing the coordinate sanity check are dropped
// with a counted warning; a file where every row fails is an error.
func LoadAwards(csvPath string) ([]model.Award, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open awards %s", csvPath)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: read awards %s", csvPath)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(h)] = i
	}
	for _, required := range []string{"id", "lat", "lon", "year", "track", "county_fips"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("refdata: awards %s missing column %q", csvPath, required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	awards := make([]model.Award, 0, len(rows))
	var rejected int
	for _, row := range rows {
		lat, latErr := ParseCoordinate(field(row, "lat"), -90, 90)
		lon, lonErr := ParseCoordinate(field(row, "lon"), -180, 180)
		year, yearErr := strconv.Atoi(field(row, "year"))
		track, trackErr := model.ParseTrack(field(row, "track"))
		if latErr != nil || lonErr != nil || yearErr != nil || trackErr != nil {
			rejected++
			zap.L().Warn("refdata: rejecting corrupt award row",
				zap.String("id", field(row, "id")),
				zap.NamedError("lat", latErr),
				zap.NamedError("lon", lonErr),
				zap.NamedError("year", yearErr),
				zap.NamedError("track", trackErr),
			)
			continue
		}

		units, _ := strconv.Atoi(field(row, "units"))
		awards = append(awards, model.Award{
			ID:              field(row, "id"),
			Project:         field(row, "project"),
			Lat:             lat,
			Lon:             lon,
			Year:            year,
			Track:           track,
			CountyFIPS:      field(row, "county_fips"),
			NewConstruction: parseBool(field(row, "new_construction")),
			FamilyDev:       parseBool(field(row, "family_dev")),
			Units:           units,
		})
	}

	if rejected > 0 {
		zap.L().Warn("refdata: rejected corrupt award rows",
			zap.String("path", csvPath),
			zap.Int("rejected", rejected),
			zap.Int("loaded", len(awards)),
		)
	}
	if len(awards) == 0 && len(rows) > 0 {
		return nil, eris.Errorf("refdata: awards %s: all %d rows were corrupt", csvPath, len(rows))
	}

	return awards, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true
	default:
		return false
	}
}
