package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/competition"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sitescore.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Engine.Concurrency)
	assert.Equal(t, 60, cfg.Engine.TierPct)
	assert.InDelta(t, 1.0, cfg.Competition.ProximityMiles, 0.001)
	assert.Equal(t, 3, cfg.Competition.LookbackYears)
	assert.InDelta(t, 2.0, cfg.Competition.SameYearMiles, 0.001)
	assert.Equal(t, competition.ScopeAll, cfg.Competition.SameYearScope)
	assert.InDelta(t, 0.045, cfg.Ranking.Thresholds.Fair, 0.0001)
	assert.InDelta(t, 0.105, cfg.Ranking.Thresholds.Exceptional, 0.0001)
	assert.InDelta(t, 110, cfg.Ranking.Floors.HighPotential, 0.001)
	assert.Equal(t, "GEOID", cfg.Data.QCTKeyField)
	assert.Equal(t, "ZCTA5", cfg.Data.DDAKeyField)
	assert.InDelta(t, 10.0, cfg.Geocode.RateLimit, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/sitescore
log:
  level: debug
  format: console
server:
  port: 9090
engine:
  concurrency: 16
competition:
  proximity_miles: 1.5
  same_year_scope: new_construction_family
data:
  income_limits: /data/income_limits.xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Engine.Concurrency)
	assert.InDelta(t, 1.5, cfg.Competition.ProximityMiles, 0.001)
	assert.Equal(t, competition.ScopeNewConstructionFamily, cfg.Competition.SameYearScope)
	assert.Equal(t, "/data/income_limits.xlsx", cfg.Data.IncomeLimits)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Competition.LookbackYears)
	assert.Equal(t, 60, cfg.Engine.TierPct)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SITESCORE_STORE_DRIVER", "postgres")
	t.Setenv("SITESCORE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("SITESCORE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestValidate_Defaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "mysql"
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "engine.concurrency")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
