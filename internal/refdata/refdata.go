package refdata

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/sitescore/internal/boundary"
	"github.com/sells-group/sitescore/internal/competition"
	"github.com/sells-group/sitescore/internal/economics"
	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/fetcher"
	"github.com/sells-group/sitescore/internal/rent"
)

// Paths names every reference file for one program year.
type Paths struct {
	IncomeLimits    string `yaml:"income_limits" mapstructure:"income_limits"`
	MetroQCTShp     string `yaml:"metro_qct_shp" mapstructure:"metro_qct_shp"`
	NonMetroQCTShp  string `yaml:"nonmetro_qct_shp" mapstructure:"nonmetro_qct_shp"`
	MetroDDAShp     string `yaml:"metro_dda_shp" mapstructure:"metro_dda_shp"`
	NonMetroDDACSV  string `yaml:"nonmetro_dda_csv" mapstructure:"nonmetro_dda_csv"`
	MetroCountyCSV  string `yaml:"metro_county_csv" mapstructure:"metro_county_csv"`
	CountyCSV       string `yaml:"county_csv" mapstructure:"county_csv"`
	LargeCountyCSV  string `yaml:"large_county_csv" mapstructure:"large_county_csv"`
	AwardsCSV       string `yaml:"awards_csv" mapstructure:"awards_csv"`
	Multipliers     string `yaml:"multipliers" mapstructure:"multipliers"`
	QCTKeyField     string `yaml:"qct_key_field" mapstructure:"qct_key_field"`
	DDAKeyField     string `yaml:"dda_key_field" mapstructure:"dda_key_field"`
	Vintage         int    `yaml:"vintage" mapstructure:"vintage"`
}

// LoadMultipliers reads the versioned multiplier calibration from yaml.
func LoadMultipliers(path string) (economics.MultiplierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return economics.MultiplierTable{}, eris.Wrapf(err, "refdata: read multipliers %s", path)
	}
	var table economics.MultiplierTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return economics.MultiplierTable{}, eris.Wrapf(err, "refdata: parse multipliers %s", path)
	}
	if err := table.Validate(); err != nil {
		return economics.MultiplierTable{}, err
	}
	return table, nil
}

// WriteMultipliers persists a multiplier table as yaml (used by calibrate).
func WriteMultipliers(path string, table economics.MultiplierTable) error {
	data, err := yaml.Marshal(table)
	if err != nil {
		return eris.Wrap(err, "refdata: marshal multipliers")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "refdata: write multipliers %s", path)
	}
	return nil
}

// Load assembles the full engine reference set from the configured paths.
// Any individual failure aborts the load: evaluating a batch against
// partially-loaded reference data would be silently wrong everywhere.
func Load(paths Paths) (engine.Refs, error) {
	var refs engine.Refs

	qctKey := paths.QCTKeyField
	if qctKey == "" {
		qctKey = "GEOID"
	}
	ddaKey := paths.DDAKeyField
	if ddaKey == "" {
		ddaKey = "ZCTA5"
	}

	rentTable, err := LoadIncomeLimits(paths.IncomeLimits, paths.Vintage)
	if err != nil {
		return refs, err
	}

	metroQCT, err := LoadBoundarySet(paths.MetroQCTShp, qctKey, "metro_qct", paths.Vintage)
	if err != nil {
		return refs, err
	}
	nonMetroQCT, err := LoadBoundarySet(paths.NonMetroQCTShp, qctKey, "nonmetro_qct", paths.Vintage)
	if err != nil {
		return refs, err
	}
	metroDDA, err := LoadBoundarySet(paths.MetroDDAShp, ddaKey, "metro_dda", paths.Vintage)
	if err != nil {
		return refs, err
	}
	nonMetroDDA, err := LoadCountySet(paths.NonMetroDDACSV, "nonmetro_dda", paths.Vintage)
	if err != nil {
		return refs, err
	}
	metroCounties, err := LoadCountySet(paths.MetroCountyCSV, "metro_counties", paths.Vintage)
	if err != nil {
		return refs, err
	}
	universe, err := LoadCountySet(paths.CountyCSV, "county_universe", paths.Vintage)
	if err != nil {
		return refs, err
	}
	large, err := LoadCountySet(paths.LargeCountyCSV, "large_counties", paths.Vintage)
	if err != nil {
		return refs, err
	}

	awards, err := LoadAwards(paths.AwardsCSV)
	if err != nil {
		return refs, err
	}
	history, err := competition.NewHistory(awards)
	if err != nil {
		return refs, err
	}

	multipliers, err := LoadMultipliers(paths.Multipliers)
	if err != nil {
		return refs, err
	}

	refs = engine.Refs{
		Bounds: &boundary.Collection{
			MetroQCT:       metroQCT,
			NonMetroQCT:    nonMetroQCT,
			MetroDDA:       metroDDA,
			NonMetroDDA:    nonMetroDDA,
			MetroCounties:  metroCounties,
			CountyUniverse: universe,
			LargeCounties:  large,
		},
		Rents:       rent.NewResolver(rentTable),
		History:     history,
		Multipliers: multipliers,
	}

	zap.L().Info("reference data loaded",
		zap.Int("vintage", paths.Vintage),
		zap.Int("metro_qct", metroQCT.Len()),
		zap.Int("nonmetro_qct", nonMetroQCT.Len()),
		zap.Int("metro_dda", metroDDA.Len()),
		zap.Int("nonmetro_dda_counties", nonMetroDDA.Len()),
		zap.Int("income_geographies", len(rentTable.Limits)),
		zap.Int("awards", history.Len()),
	)

	return refs, nil
}

// Bundle is one downloadable reference artifact for cmd/loadref.
type Bundle struct {
	Name string
	URL  string // http(s):// or ftp://
	Dest string // file name inside the data dir
}

// FetchBundle downloads one bundle into dataDir and extracts it when it is
// a ZIP archive. Returns the paths it materialized.
func FetchBundle(ctx context.Context, httpf *fetcher.HTTPFetcher, ftpf *fetcher.FTPFetcher, b Bundle, dataDir string) ([]string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "refdata: create data dir %s", dataDir)
	}
	dest := filepath.Join(dataDir, b.Dest)

	var err error
	switch {
	case len(b.URL) >= 6 && b.URL[:6] == "ftp://":
		_, err = ftpf.DownloadToFile(b.URL, dest)
	default:
		_, err = httpf.DownloadToFile(ctx, b.URL, dest)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: fetch bundle %s", b.Name)
	}

	if filepath.Ext(dest) != ".zip" {
		return []string{dest}, nil
	}

	extractDir := filepath.Join(dataDir, b.Name)
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "refdata: create extract dir %s", extractDir)
	}
	paths, err := fetcher.ExtractZIP(dest, extractDir)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: extract bundle %s", b.Name)
	}
	return paths, nil
}
