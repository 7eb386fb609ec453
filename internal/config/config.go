package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// MaintenanceWindow blocks rooms from allocation on dates matching an RRULE
type MaintenanceWindow struct {
	RRule   string `yaml:"rrule" validate:"required"`
	RoomIDs []int  `yaml:"roomIDs" validate:"required,min=1,dive,min=1"`
}

// AllocationSettings are the engine defaults used when a caller does not
// supply explicit constraint values
type AllocationSettings struct {
	IdleProbabilityThreshold float64 `yaml:"idleProbabilityThreshold" validate:"min=0,max=1"`
	StakeholderUsageCap      float64 `yaml:"stakeholderUsageCap" validate:"gt=0,max=1"`
	SolverTimeBudgetMillis   int     `yaml:"solverTimeBudgetMillis" validate:"min=1"`
	SolverNodeBudget         int     `yaml:"solverNodeBudget" validate:"min=1"`
	SolverSeed               int64   `yaml:"solverSeed"`
	SimulationSolverSeed     int64   `yaml:"simulationSolverSeed"`
	DisableExactSolver       bool    `yaml:"disableExactSolver,omitempty"`
}

// PredictionSettings configure the fallback used when no persisted
// prediction exists for a room
type PredictionSettings struct {
	DefaultOccupancyProbability float64 `yaml:"defaultOccupancyProbability" validate:"min=0,max=1"`
	DefaultConfidence           float64 `yaml:"defaultConfidence" validate:"min=0,max=1"`
}

// ScheduleSettings configure the periodic allocation runner
type ScheduleSettings struct {
	Cron      string   `yaml:"cron,omitempty"`
	TimeSlots []string `yaml:"timeSlots,omitempty"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL        string              `yaml:"databaseURL" validate:"required"`
	Allocation         AllocationSettings  `yaml:"allocation"`
	Prediction         PredictionSettings  `yaml:"prediction"`
	Schedule           ScheduleSettings    `yaml:"schedule,omitempty"`
	MaintenanceWindows []MaintenanceWindow `yaml:"maintenanceWindows,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from idlematch_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads the configuration for a specific environment, e.g.
// idlematch_config.prod.yaml for env "prod"
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule and cron syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each maintenance window
	for i, window := range cfg.MaintenanceWindows {
		if _, err := rrule.StrToRRule(window.RRule); err != nil {
			return fmt.Errorf("invalid rrule in maintenanceWindows[%d]: %w", i, err)
		}
	}

	// Validate cron syntax if a schedule is configured
	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid cron expression in schedule: %w", err)
		}
		if len(cfg.Schedule.TimeSlots) == 0 {
			return fmt.Errorf("schedule requires at least one time slot")
		}
	}

	return nil
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "idlematch_config.yaml"
	if env != "" {
		configFileName = fmt.Sprintf("idlematch_config.%s.yaml", env)
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
