// Package config provides configuration management for the FMM engine.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Partition  PartitionConfig  `mapstructure:"partition"`
	Comm       CommConfig       `mapstructure:"comm"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

// EvaluationConfig holds the parameters of a single FMM evaluation.
type EvaluationConfig struct {
	// Kernel selects the physics kernel: coulomb, laplace, helmholtz, vanderwaals.
	Kernel string `mapstructure:"kernel"`
	// Order is the expansion order P, fixed for the lifetime of a Driver.
	Order int `mapstructure:"order"`
	// NumLevels is the deepest octree level the traversal visits.
	NumLevels int `mapstructure:"num_levels"`
	// Theta is the multipole-acceptance-criterion opening angle.
	Theta float64 `mapstructure:"theta"`
	// WaveNumber is the oscillation wavenumber k for the helmholtz
	// kernel; ignored by every other kernel.
	WaveNumber float64 `mapstructure:"wave_number"`
	// Images is the number of periodic image shells (0 = free space).
	Images int `mapstructure:"images"`
	// Cycle is the periodic box period along each axis; ignored when Images==0.
	Cycle [3]float64 `mapstructure:"cycle"`
}

// PartitionConfig holds the rank/communicator sizing for one run.
type PartitionConfig struct {
	MPISize int `mapstructure:"mpi_size"`
	Rank    int `mapstructure:"rank"`
}

// CommConfig selects and configures the inter-rank communicator backend.
type CommConfig struct {
	// Backend is "local" (in-process goroutines) or "nats".
	Backend string `mapstructure:"backend"`
	// NATSURL is the broker URL used when Backend=="nats".
	NATSURL string `mapstructure:"nats_url"`
}

// SchedulerConfig configures the optional periodic re-evaluation server mode.
type SchedulerConfig struct {
	PeriodSeconds int  `mapstructure:"period_seconds"`
	Enabled       bool `mapstructure:"enabled"`
}

// TelemetryConfig holds engine-facing telemetry toggles layered over pkg/telemetry.
type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/fmm")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("evaluation.kernel", "coulomb")
	v.SetDefault("evaluation.order", 4)
	v.SetDefault("evaluation.num_levels", 4)
	v.SetDefault("evaluation.theta", 0.5)
	v.SetDefault("evaluation.images", 0)

	v.SetDefault("partition.mpi_size", 1)
	v.SetDefault("partition.rank", 0)

	v.SetDefault("comm.backend", "local")

	v.SetDefault("scheduler.period_seconds", 60)
	v.SetDefault("scheduler.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Evaluation.Order < 1 {
		return fmt.Errorf("evaluation order must be at least 1")
	}
	if c.Evaluation.NumLevels < 1 {
		return fmt.Errorf("numLevels must be at least 1")
	}
	switch c.Evaluation.Kernel {
	case "coulomb", "laplace", "helmholtz", "vanderwaals":
	default:
		return fmt.Errorf("unsupported kernel: %s", c.Evaluation.Kernel)
	}
	if c.Partition.MPISize < 1 {
		return fmt.Errorf("mpi_size must be at least 1")
	}
	if c.Partition.Rank < 0 || c.Partition.Rank >= c.Partition.MPISize {
		return fmt.Errorf("rank %d out of range [0,%d)", c.Partition.Rank, c.Partition.MPISize)
	}
	switch c.Comm.Backend {
	case "local", "nats":
	default:
		return fmt.Errorf("unsupported comm backend: %s", c.Comm.Backend)
	}
	if c.Scheduler.Enabled && c.Scheduler.PeriodSeconds < 1 {
		return fmt.Errorf("scheduler period_seconds must be at least 1 when enabled")
	}
	return nil
}
