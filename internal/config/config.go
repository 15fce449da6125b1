package config

import (
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Config is the runner configuration surface consumed by the core. All
// timeouts are in seconds.
type Config struct {
	DefaultDriver  string   `yaml:"default_driver,omitempty" validate:"omitempty,driver_id"`
	DriverDir      string   `yaml:"driver_dir,omitempty" validate:"required"`
	Tags           []string `yaml:"tags,omitempty"`
	Parallel       bool     `yaml:"parallel,omitempty"`
	CallTimeout    int      `yaml:"call_timeout,omitempty" validate:"omitempty,min=1,max=3600"`
	StartupTimeout int      `yaml:"startup_timeout,omitempty" validate:"omitempty,min=1,max=600"`
	ShutdownGrace  int      `yaml:"shutdown_grace,omitempty" validate:"omitempty,min=1,max=600"`
	ReportPath     string   `yaml:"report,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	// DriverConfig is passed opaquely to every driver's initialize call.
	DriverConfig map[string]any `yaml:"driver_config,omitempty"`
}

// Default returns the configuration used when no config file is supplied.
func Default() Config {
	return Config{
		DriverDir:      "drivers",
		CallTimeout:    30,
		StartupTimeout: 15,
		ShutdownGrace:  5,
		ReportPath:     "runix-report.json",
		LogLevel:       "info",
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	driverIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("driver_id", func(fl validator.FieldLevel) bool {
			return driverIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validate performs schema validation on the configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return runixerrors.NewValidationError("config", "configuration is nil", nil)
	}

	if err := validatorInstance().Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return runixerrors.NewValidationError(first.Namespace(), "failed "+first.Tag()+" validation", err)
		}
		return runixerrors.NewValidationError("config", err.Error(), err)
	}
	return nil
}

// CallTimeoutDuration returns the per-call timeout.
func (c *Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// StartupTimeoutDuration returns the driver startup timeout.
func (c *Config) StartupTimeoutDuration() time.Duration {
	return time.Duration(c.StartupTimeout) * time.Second
}

// ShutdownGraceDuration returns the stop grace period.
func (c *Config) ShutdownGraceDuration() time.Duration {
	return time.Duration(c.ShutdownGrace) * time.Second
}
