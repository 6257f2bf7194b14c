// Package config provides configuration loading and validation for the fixedtree CLI.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/fixedtree/pkg/check"
	"github.com/Sumatoshi-tech/fixedtree/pkg/pool"
	"github.com/Sumatoshi-tech/fixedtree/pkg/rbtree"
)

// Sentinel validation errors.
var (
	ErrInvalidCapacity  = errors.New("tree capacity must be positive")
	ErrInvalidBenchSize = errors.New("bench sizes must be positive")
	ErrInvalidRepeat    = errors.New("bench repeat must be positive")
	ErrInvalidOrder     = errors.New("unknown bench insertion order")
	ErrInvalidLogFormat = errors.New("unknown log format")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidMaxSize   = errors.New("invalid snapshot max size")
)

// Insertion orders understood by the bench command.
const (
	OrderAscending  = "ascending"
	OrderDescending = "descending"
	OrderRandom     = "random"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration for the fixedtree CLI.
type Config struct {
	Tree      TreeConfig      `mapstructure:"tree"`
	Check     CheckConfig     `mapstructure:"check"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TreeConfig selects the container shape.
type TreeConfig struct {
	Pool     string `mapstructure:"pool"`
	Layout   string `mapstructure:"layout"`
	Capacity int    `mapstructure:"capacity"`
}

// CheckConfig selects how contract violations are reported.
type CheckConfig struct {
	Policy string `mapstructure:"policy"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BenchConfig drives the bench and plot commands.
type BenchConfig struct {
	Sizes  []int    `mapstructure:"sizes"`
	Orders []string `mapstructure:"orders"`
	Seed   int64    `mapstructure:"seed"`
	Repeat int      `mapstructure:"repeat"`
}

// SnapshotConfig holds snapshot file settings.
type SnapshotConfig struct {
	Directory string `mapstructure:"directory"`
	MaxSize   string `mapstructure:"max_size"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".fixedtree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix("FIXEDTREE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tree.capacity", DefaultTreeCapacity)
	viperCfg.SetDefault("tree.pool", DefaultTreePool)
	viperCfg.SetDefault("tree.layout", DefaultTreeLayout)

	viperCfg.SetDefault("check.policy", DefaultCheckPolicy)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("bench.sizes", DefaultBenchSizes())
	viperCfg.SetDefault("bench.orders", DefaultBenchOrders())
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
	viperCfg.SetDefault("bench.repeat", DefaultBenchRepeat)

	viperCfg.SetDefault("snapshot.directory", DefaultSnapshotDirectory)
	viperCfg.SetDefault("snapshot.max_size", DefaultSnapshotMaxSize)

	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Tree.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, config.Tree.Capacity)
	}

	if _, err := pool.ParseKind(config.Tree.Pool); err != nil {
		return err
	}

	if _, err := rbtree.ParseLayout(config.Tree.Layout); err != nil {
		return err
	}

	if _, err := check.ByName(config.Check.Policy, nil); err != nil {
		return err
	}

	if _, err := config.Logging.SlogLevel(); err != nil {
		return err
	}

	switch strings.ToLower(config.Logging.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	for _, size := range config.Bench.Sizes {
		if size <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidBenchSize, size)
		}
	}

	if config.Bench.Repeat <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRepeat, config.Bench.Repeat)
	}

	for _, order := range config.Bench.Orders {
		switch strings.ToLower(order) {
		case OrderAscending, OrderDescending, OrderRandom:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidOrder, order)
		}
	}

	if _, err := config.Snapshot.MaxBytes(); err != nil {
		return err
	}

	return nil
}

// Options translates the tree section into rbtree options.
func (tc TreeConfig) Options() ([]rbtree.Option, error) {
	kind, err := pool.ParseKind(tc.Pool)
	if err != nil {
		return nil, err
	}

	layout, err := rbtree.ParseLayout(tc.Layout)
	if err != nil {
		return nil, err
	}

	return []rbtree.Option{rbtree.WithPool(kind), rbtree.WithLayout(layout)}, nil
}

// NewPolicy builds the configured checking policy. Log and abort policies
// report through logger.
func (cc CheckConfig) NewPolicy(logger *slog.Logger) (check.Policy, error) {
	policy, err := check.ByName(cc.Policy, logger)
	if err != nil {
		return nil, fmt.Errorf("check policy: %w", err)
	}

	return policy, nil
}

// SlogLevel parses the configured level name.
func (lc LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(lc.Level))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, lc.Level)
	}

	return level, nil
}

// JSON reports whether logs are written as JSON.
func (lc LoggingConfig) JSON() bool {
	return strings.EqualFold(lc.Format, LogFormatJSON)
}

// MaxBytes parses the snapshot size limit ("64MB", "1GiB"). Zero means no limit.
func (sc SnapshotConfig) MaxBytes() (int64, error) {
	if strings.TrimSpace(sc.MaxSize) == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(sc.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, sc.MaxSize, err)
	}

	const maxInt64 = 1<<63 - 1
	if size > maxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxSize, sc.MaxSize)
	}

	return int64(size), nil
}
