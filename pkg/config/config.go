package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable knob of the optimization and simulation core.
// All values come from environment variables (or an optional .env file) with
// conservative defaults, so the engine runs with zero external setup.
type Config struct {
	Env string `mapstructure:"ENV"`

	// Optimization
	MaxLineups            int           `mapstructure:"MAX_LINEUPS"`
	OptimizationTimeout   time.Duration `mapstructure:"OPTIMIZATION_TIMEOUT"`
	CandidatesPerSlot     int           `mapstructure:"SOLVER_CANDIDATES_PER_SLOT"`
	MaxRejectsPerLineup   int           `mapstructure:"SOLVER_MAX_REJECTS_PER_LINEUP"`
	DuplicateRiskWeight   float64       `mapstructure:"DUPLICATE_RISK_WEIGHT"`
	LeverageWeight        float64       `mapstructure:"LEVERAGE_WEIGHT"`
	MinSalaryFraction     float64       `mapstructure:"MIN_SALARY_FRACTION"`

	// Simulation
	MaxSimulations    int           `mapstructure:"MAX_SIMULATIONS"`
	SimulationWorkers int           `mapstructure:"SIMULATION_WORKERS"`
	SimulationTimeout time.Duration `mapstructure:"SIMULATION_TIMEOUT"`
	FieldSampleSize   int           `mapstructure:"FIELD_SAMPLE_SIZE"`
	BoomFactor        float64       `mapstructure:"BOOM_FACTOR"`
	BustFactor        float64       `mapstructure:"BUST_FACTOR"`
	DefaultVariance   float64       `mapstructure:"DEFAULT_VARIANCE_FRACTION"`
}

// LoadConfig reads configuration from the environment and optional .env file
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("ENV", "development")

	// Optimization defaults
	viper.SetDefault("MAX_LINEUPS", 150)
	viper.SetDefault("OPTIMIZATION_TIMEOUT", "30s")
	viper.SetDefault("SOLVER_CANDIDATES_PER_SLOT", 12)
	viper.SetDefault("SOLVER_MAX_REJECTS_PER_LINEUP", 25)
	viper.SetDefault("DUPLICATE_RISK_WEIGHT", 2.0) // lambda in the objective blend
	viper.SetDefault("LEVERAGE_WEIGHT", 0.5)       // beta in the objective blend
	viper.SetDefault("MIN_SALARY_FRACTION", 0.0)

	// Simulation defaults
	viper.SetDefault("MAX_SIMULATIONS", 100000)
	viper.SetDefault("SIMULATION_WORKERS", runtime.NumCPU())
	viper.SetDefault("SIMULATION_TIMEOUT", "60s")
	viper.SetDefault("FIELD_SAMPLE_SIZE", 500)
	viper.SetDefault("BOOM_FACTOR", 1.25)
	viper.SetDefault("BUST_FACTOR", 0.75)
	viper.SetDefault("DEFAULT_VARIANCE_FRACTION", 0.25)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	if c.MaxLineups <= 0 {
		return fmt.Errorf("MAX_LINEUPS must be positive, got %d", c.MaxLineups)
	}
	if c.MaxSimulations <= 0 {
		return fmt.Errorf("MAX_SIMULATIONS must be positive, got %d", c.MaxSimulations)
	}
	if c.SimulationWorkers <= 0 {
		return fmt.Errorf("SIMULATION_WORKERS must be positive, got %d", c.SimulationWorkers)
	}
	if c.BoomFactor <= 1.0 {
		return fmt.Errorf("BOOM_FACTOR must exceed 1.0, got %.2f", c.BoomFactor)
	}
	if c.BustFactor <= 0 || c.BustFactor >= 1.0 {
		return fmt.Errorf("BUST_FACTOR must be in (0,1), got %.2f", c.BustFactor)
	}
	if c.DefaultVariance <= 0 {
		return fmt.Errorf("DEFAULT_VARIANCE_FRACTION must be positive, got %.2f", c.DefaultVariance)
	}
	return nil
}

// Default returns the built-in configuration without touching the
// environment, for library callers and tests that need fixed behavior.
func Default() *Config {
	return &Config{
		Env:                 "development",
		MaxLineups:          150,
		OptimizationTimeout: 30 * time.Second,
		CandidatesPerSlot:   12,
		MaxRejectsPerLineup: 25,
		DuplicateRiskWeight: 2.0,
		LeverageWeight:      0.5,
		MinSalaryFraction:   0.0,
		MaxSimulations:      100000,
		SimulationWorkers:   runtime.NumCPU(),
		SimulationTimeout:   60 * time.Second,
		FieldSampleSize:     500,
		BoomFactor:          1.25,
		BustFactor:          0.75,
		DefaultVariance:     0.25,
	}
}
