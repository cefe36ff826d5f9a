// Package config loads runtime configuration from a yaml file plus
// SINIR_-prefixed environment variables, and owns logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/resilead/sinir-cli/internal/db"
)

// Config is the root configuration for every subcommand.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Harvest     HarvestConfig     `yaml:"harvest" mapstructure:"harvest"`
	Stakeholder StakeholderConfig `yaml:"stakeholder" mapstructure:"stakeholder"`
	Mtr         MtrConfig         `yaml:"mtr" mapstructure:"mtr"`
	Address     AddressConfig     `yaml:"address" mapstructure:"address"`
	RefLoad     RefLoadConfig     `yaml:"refload" mapstructure:"refload"`
	Parser      ParserConfig      `yaml:"parser" mapstructure:"parser"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig points at the Postgres warehouse.
type StoreConfig struct {
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// HTTPConfig tunes the report fetcher.
type HTTPConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	HostRate    float64 `yaml:"host_rate" mapstructure:"host_rate"`
}

// HarvestConfig tunes setup and the claim/fetch/parse/stage processor.
type HarvestConfig struct {
	BatchSize   int  `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	Drain       bool `yaml:"drain" mapstructure:"drain"`
	// StuckAfterSecs is the age past which a PROCESSING claim counts as
	// stuck in the status report. Nothing reclaims it automatically.
	StuckAfterSecs int `yaml:"stuck_after_secs" mapstructure:"stuck_after_secs"`
}

// StakeholderConfig tunes the enrichment loop. RegistryPolicy selects how a
// registry miss on a company is handled: "lenient" persists harvested data
// as-is, "strict" waits RegistryBackoffSecs and fails the record.
type StakeholderConfig struct {
	BatchSize           int    `yaml:"batch_size" mapstructure:"batch_size"`
	Drain               bool   `yaml:"drain" mapstructure:"drain"`
	RegistryPolicy      string `yaml:"registry_policy" mapstructure:"registry_policy"`
	RegistryBackoffSecs int    `yaml:"registry_backoff_secs" mapstructure:"registry_backoff_secs"`
	PauseEvery          int    `yaml:"pause_every" mapstructure:"pause_every"`
	PauseSecs           int    `yaml:"pause_secs" mapstructure:"pause_secs"`
	RegistryBaseURL     string `yaml:"registry_base_url" mapstructure:"registry_base_url"`
}

// MtrConfig tunes the normalization engine loop.
type MtrConfig struct {
	BatchSize     int  `yaml:"batch_size" mapstructure:"batch_size"`
	Drain         bool `yaml:"drain" mapstructure:"drain"`
	ProgressEvery int  `yaml:"progress_every" mapstructure:"progress_every"`
}

// AddressConfig tunes address reconciliation rounds.
type AddressConfig struct {
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// RefLoadConfig points at the seed data directory.
type RefLoadConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// ParserConfig allows overriding the column variant table per logical field.
type ParserConfig struct {
	ColumnVariants map[string][]string `yaml:"column_variants" mapstructure:"column_variants"`
}

// LogConfig controls the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory (or CONFIG_PATH dir)
// and merges SINIR_* environment variables over it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.sinir")

	v.SetEnvPrefix("SINIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)

	v.SetDefault("http.timeout_secs", 120)
	v.SetDefault("http.user_agent", "sinir-cli/1.0")
	v.SetDefault("http.host_rate", 2.0)

	v.SetDefault("harvest.batch_size", 50)
	v.SetDefault("harvest.concurrency", 4)
	v.SetDefault("harvest.drain", false)
	v.SetDefault("harvest.stuck_after_secs", 3600)

	v.SetDefault("stakeholder.batch_size", 200)
	v.SetDefault("stakeholder.drain", false)
	v.SetDefault("stakeholder.registry_policy", "lenient")
	v.SetDefault("stakeholder.registry_backoff_secs", 30)
	v.SetDefault("stakeholder.pause_every", 50)
	v.SetDefault("stakeholder.pause_secs", 10)
	v.SetDefault("stakeholder.registry_base_url", "https://brasilapi.com.br/api/cnpj/v1")

	v.SetDefault("mtr.batch_size", 500)
	v.SetDefault("mtr.drain", false)
	v.SetDefault("mtr.progress_every", 10)

	v.SetDefault("address.batch_size", 100)
	v.SetDefault("address.concurrency", 4)

	v.SetDefault("refload.data_dir", "data")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// InitLogger builds the global zap logger from LogConfig and installs it
// via zap.ReplaceGlobals.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
