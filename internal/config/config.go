package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reference data sources.
const (
	SourceEmbedded = "embedded"
	SourceDir      = "dir"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Crosswalk CrosswalkConfig `yaml:"crosswalk" mapstructure:"crosswalk"`
	Table     TableConfig     `yaml:"table" mapstructure:"table"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DataConfig selects where reference tables are loaded from.
type DataConfig struct {
	Source      string `yaml:"source" mapstructure:"source"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`

	// Transient load failures are retried with exponential backoff.
	RetryAttempts int           `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// CrosswalkConfig sets lookup defaults.
type CrosswalkConfig struct {
	Vintage         int  `yaml:"vintage" mapstructure:"vintage"`
	FallbackToInput bool `yaml:"fallback_to_input" mapstructure:"fallback_to_input"`
}

// TableConfig configures the tabular adapters.
type TableConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Strict      bool   `yaml:"strict" mapstructure:"strict"`
	MissingText string `yaml:"missing_text" mapstructure:"missing_text"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZCTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.source", SourceEmbedded)
	v.SetDefault("data.schema", "crosswalk")
	v.SetDefault("data.retry_attempts", 3)
	v.SetDefault("data.retry_backoff", "500ms")
	v.SetDefault("crosswalk.vintage", 2020)
	v.SetDefault("crosswalk.fallback_to_input", false)
	v.SetDefault("table.concurrency", 4)
	v.SetDefault("table.strict", false)
	v.SetDefault("table.missing_text", "")

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

// Validate checks that the selected data source has its settings and that
// numeric options are in range.
func (c *Config) Validate() error {
	var errs []string

	switch c.Data.Source {
	case SourceEmbedded:
	case SourceDir:
		if c.Data.Dir == "" {
			errs = append(errs, "data.dir is required for the dir source")
		}
	case SourceSQLite:
		if c.Data.SQLitePath == "" {
			errs = append(errs, "data.sqlite_path is required for the sqlite source")
		}
	case SourcePostgres:
		if c.Data.DatabaseURL == "" {
			errs = append(errs, "data.database_url is required for the postgres source")
		}
	default:
		errs = append(errs, "data.source must be one of embedded, dir, sqlite, postgres")
	}

	if c.Data.RetryAttempts < 0 {
		errs = append(errs, "data.retry_attempts must not be negative")
	}

	if c.Crosswalk.Vintage != 0 && c.Crosswalk.Vintage != 2010 && c.Crosswalk.Vintage != 2020 {
		errs = append(errs, "crosswalk.vintage must be 2010 or 2020")
	}
	if c.Table.Concurrency < 1 || c.Table.Concurrency > 256 {
		errs = append(errs, "table.concurrency must be between 1 and 256")
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
