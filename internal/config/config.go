// Package config loads the checker configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CheckMode controls what an `assert` in a checked function turns into
type CheckMode string

const (
	// CheckAsserts proves every assertion
	CheckAsserts CheckMode = "check"
	// AssumeAsserts takes assertions as facts without proving them
	AssumeAsserts CheckMode = "assume"
	// IgnoreAsserts drops assertions entirely
	IgnoreAsserts CheckMode = "ignore"
)

// Config holds every tunable of a checking run. The solver executable is
// always looked up on PATH and is not configurable.
type Config struct {
	CheckAsserts     CheckMode     `yaml:"check_asserts" validate:"checkmode"`
	DeriveQualifiers bool          `yaml:"derive_qualifiers"`
	Parallelism      int           `yaml:"parallelism" validate:"gte=1,lte=64"`
	DumpConstraints  bool          `yaml:"dump_constraints"`
	DumpDir          string        `yaml:"dump_dir" validate:"required_if=DumpConstraints true"`
	Log              LogConfig     `yaml:"log"`
	Metrics          MetricsConfig `yaml:"metrics"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig configures the Prometheus textfile written after a run
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile" validate:"required_if=Enabled true"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("checkmode", validateCheckMode)
}

func validateCheckMode(fl validator.FieldLevel) bool {
	switch CheckMode(fl.Field().String()) {
	case CheckAsserts, AssumeAsserts, IgnoreAsserts:
		return true
	}
	return false
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		CheckAsserts:     CheckAsserts,
		DeriveQualifiers: true,
		Parallelism:      1,
		Log:              LogConfig{Level: "info"},
	}
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "checkmode" {
				return fmt.Errorf("invalid check_asserts %q: expected check, assume or ignore", fe.Value())
			}
			return fmt.Errorf("invalid config: %s fails %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Decode reads a YAML document over the defaults. Unknown keys are errors.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the config file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}
