// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/sitescore/internal/competition"
	"github.com/sells-group/sitescore/internal/ranking"
	"github.com/sells-group/sitescore/internal/refdata"
	"github.com/sells-group/sitescore/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Data        refdata.Paths     `yaml:"data" mapstructure:"data"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Competition competition.Rules `yaml:"competition" mapstructure:"competition"`
	Ranking     RankingConfig     `yaml:"ranking" mapstructure:"ranking"`
	Geocode     GeocodeConfig     `yaml:"geocode" mapstructure:"geocode"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// EngineConfig tunes evaluation behavior.
type EngineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	TierPct     int `yaml:"tier_pct" mapstructure:"tier_pct"`
}

// RankingConfig bundles the tier thresholds and competitive score floors.
type RankingConfig struct {
	Thresholds ranking.Thresholds  `yaml:"thresholds" mapstructure:"thresholds"`
	Floors     ranking.ScoreFloors `yaml:"floors" mapstructure:"floors"`
}

// GeocodeConfig configures the Census geocoding client.
type GeocodeConfig struct {
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sitescore.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("engine.tier_pct", 60)
	v.SetDefault("competition.proximity_miles", 1.0)
	v.SetDefault("competition.lookback_years", 3)
	v.SetDefault("competition.same_year_miles", 2.0)
	v.SetDefault("competition.same_year_scope", string(competition.ScopeAll))
	v.SetDefault("ranking.thresholds.fair", 0.045)
	v.SetDefault("ranking.thresholds.good", 0.065)
	v.SetDefault("ranking.thresholds.high", 0.085)
	v.SetDefault("ranking.thresholds.exceptional", 0.105)
	v.SetDefault("ranking.floors.high_potential", 110)
	v.SetDefault("ranking.floors.exceptional", 125)
	v.SetDefault("data.qct_key_field", "GEOID")
	v.SetDefault("data.dda_key_field", "ZCTA5")
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.concurrency", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that cannot be defaulted into sanity.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be in 1..65535")
	}
	if c.Engine.Concurrency <= 0 {
		errs = append(errs, "engine.concurrency must be positive")
	}
	if c.Engine.TierPct <= 0 || c.Engine.TierPct > 100 {
		errs = append(errs, "engine.tier_pct must be in 1..100")
	}
	if err := competition.ValidateRules(c.Competition); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
