// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bleepbuild/bleep/internal/typecheck"
)

const (
	// RuntimeNative runs hook commands in the host system shell.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual runs hook commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"

	// PreFailureContinue logs a failed pre-hook and bundles anyway.
	PreFailureContinue PreFailurePolicy = "continue"
	// PreFailureSkipBundle drops the bundle output when a pre-hook fails.
	PreFailureSkipBundle PreFailurePolicy = "skip-bundle"
)

var (
	// ErrInvalidConfigRuntimeMode is returned when a RuntimeMode value is not recognized.
	ErrInvalidConfigRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidPreFailurePolicy is returned when a PreFailurePolicy value is not recognized.
	ErrInvalidPreFailurePolicy = errors.New("invalid pre-hook failure policy")
	// ErrInvalidCommand is returned when a command list is empty or has a blank program.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrEmptySuccessMarker is returned when type-checking is enabled without a readiness marker.
	ErrEmptySuccessMarker = errors.New("typecheck.success_marker must not be empty")
	// ErrInvalidDuration is returned for negative durations.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RuntimeMode selects how hook commands are executed.
	RuntimeMode string

	// InvalidConfigRuntimeModeError is returned when a RuntimeMode value is not recognized.
	// It wraps ErrInvalidConfigRuntimeMode for errors.Is() compatibility.
	InvalidConfigRuntimeModeError struct {
		Value RuntimeMode
	}

	// PreFailurePolicy decides what a failing pre-hook means for its bundle.
	PreFailurePolicy string

	// InvalidPreFailurePolicyError is returned when a PreFailurePolicy value is not recognized.
	InvalidPreFailurePolicyError struct {
		Value PreFailurePolicy
	}

	// InvalidCommandError names the config key holding a bad command list.
	InvalidCommandError struct {
		Field string
	}

	// InvalidDurationError names the config key holding a negative duration.
	InvalidDurationError struct {
		Field string
		Value time.Duration
	}

	// InvalidConfigError aggregates every field error found by Config.IsValid.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete bleep configuration.
	Config struct {
		// UIDir is the front-end root holding one directory per module.
		UIDir string `json:"ui_dir" mapstructure:"ui_dir"`
		// OutDir receives <output>.js bundles.
		OutDir string `json:"out_dir" mapstructure:"out_dir"`
		// TsconfigDir receives the generated composite project file and is tsc's working directory.
		TsconfigDir string          `json:"tsconfig_dir" mapstructure:"tsconfig_dir"`
		Modules     ModulesConfig   `json:"modules" mapstructure:"modules"`
		Typecheck   TypecheckConfig `json:"typecheck" mapstructure:"typecheck"`
		CSS         CSSConfig       `json:"css" mapstructure:"css"`
		Bundler     BundlerConfig   `json:"bundler" mapstructure:"bundler"`
		Hooks       HooksConfig     `json:"hooks" mapstructure:"hooks"`
		Watch       WatchConfig     `json:"watch" mapstructure:"watch"`
		Metrics     MetricsConfig   `json:"metrics" mapstructure:"metrics"`
		UI          UIConfig        `json:"ui" mapstructure:"ui"`
	}

	// ModulesConfig controls module discovery under UIDir.
	ModulesConfig struct {
		Patterns []string `json:"patterns" mapstructure:"patterns"`
	}

	// TypecheckConfig controls the tsc watch gate.
	TypecheckConfig struct {
		Enabled       bool     `json:"enabled" mapstructure:"enabled"`
		Command       []string `json:"command" mapstructure:"command"`
		SuccessMarker string   `json:"success_marker" mapstructure:"success_marker"`
	}

	// CSSConfig controls the supervised CSS watcher.
	CSSConfig struct {
		Enabled bool     `json:"enabled" mapstructure:"enabled"`
		Command []string `json:"command" mapstructure:"command"`
		// Dir defaults to UIDir when empty.
		Dir            string        `json:"dir" mapstructure:"dir"`
		BenignExitCode int           `json:"benign_exit_code" mapstructure:"benign_exit_code"`
		MaxRetries     int           `json:"max_retries" mapstructure:"max_retries"`
		RetryDelay     time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	}

	// BundlerConfig controls the bundler subprocess.
	BundlerConfig struct {
		// Command overrides the embedded node driver when non-empty.
		Command []string `json:"command" mapstructure:"command"`
	}

	// HooksConfig controls how pre/post hooks run.
	HooksConfig struct {
		Runtime    RuntimeMode      `json:"runtime" mapstructure:"runtime"`
		PreFailure PreFailurePolicy `json:"pre_failure" mapstructure:"pre_failure"`
		// EnvFile is a dotenv file loaded into every hook; a trailing '?' makes it optional.
		EnvFile string `json:"env_file" mapstructure:"env_file"`
	}

	// WatchConfig controls manifest watching.
	WatchConfig struct {
		Manifests bool          `json:"manifests" mapstructure:"manifests"`
		Debounce  time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// MetricsConfig controls the Prometheus endpoint.
	MetricsConfig struct {
		// Listen is a host:port; empty disables the endpoint.
		Listen string `json:"listen" mapstructure:"listen"`
	}

	// UIConfig configures output.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface for InvalidConfigRuntimeModeError.
func (e *InvalidConfigRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: native, virtual)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidConfigRuntimeModeError) Unwrap() error {
	return ErrInvalidConfigRuntimeMode
}

// String returns the string representation of the RuntimeMode.
func (m RuntimeMode) String() string { return string(m) }

// IsValid returns whether the RuntimeMode is one of the defined runtime modes,
// and a list of validation errors if it is not.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeNative, RuntimeVirtual:
		return true, nil
	default:
		return false, []error{&InvalidConfigRuntimeModeError{Value: m}}
	}
}

func (e *InvalidPreFailurePolicyError) Error() string {
	return fmt.Sprintf("invalid pre-hook failure policy %q (valid: continue, skip-bundle)", e.Value)
}

func (e *InvalidPreFailurePolicyError) Unwrap() error { return ErrInvalidPreFailurePolicy }

func (p PreFailurePolicy) String() string { return string(p) }

// IsValid returns whether the policy is one of the defined policies.
func (p PreFailurePolicy) IsValid() (bool, []error) {
	switch p {
	case PreFailureContinue, PreFailureSkipBundle:
		return true, nil
	default:
		return false, []error{&InvalidPreFailurePolicyError{Value: p}}
	}
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("%s: command must name a program", e.Field)
}

func (e *InvalidCommandError) Unwrap() error { return ErrInvalidCommand }

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s: duration must not be negative (got %s)", e.Field, e.Value)
}

func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid checks the constraints the CUE schema cannot see after env overrides
// have been applied.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Hooks.Runtime.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Hooks.PreFailure.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Typecheck.Enabled && !validCommand(c.Typecheck.Command) {
		errs = append(errs, &InvalidCommandError{Field: "typecheck.command"})
	}
	if c.Typecheck.Enabled && strings.TrimSpace(c.Typecheck.SuccessMarker) == "" {
		errs = append(errs, ErrEmptySuccessMarker)
	}
	if c.CSS.Enabled && !validCommand(c.CSS.Command) {
		errs = append(errs, &InvalidCommandError{Field: "css.command"})
	}
	if len(c.Bundler.Command) > 0 && !validCommand(c.Bundler.Command) {
		errs = append(errs, &InvalidCommandError{Field: "bundler.command"})
	}
	if c.CSS.RetryDelay < 0 {
		errs = append(errs, &InvalidDurationError{Field: "css.retry_delay", Value: c.CSS.RetryDelay})
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, &InvalidDurationError{Field: "watch.debounce", Value: c.Watch.Debounce})
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func validCommand(argv []string) bool {
	return len(argv) > 0 && strings.TrimSpace(argv[0]) != ""
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		UIDir:       "ui",
		OutDir:      "public/compiled",
		TsconfigDir: "ui",
		Modules: ModulesConfig{
			Patterns: []string{"*/package.json"},
		},
		Typecheck: TypecheckConfig{
			Enabled:       true,
			Command:       []string{"tsc"},
			SuccessMarker: typecheck.DefaultSuccessMarker,
		},
		CSS: CSSConfig{
			Enabled:        true,
			Command:        []string{"yarn", "gulp", "css"},
			BenignExitCode: 1,
			MaxRetries:     3,
			RetryDelay:     0,
		},
		Hooks: HooksConfig{
			Runtime:    RuntimeNative,
			PreFailure: PreFailureContinue,
		},
		Watch: WatchConfig{
			Manifests: true,
			Debounce:  500 * time.Millisecond,
		},
	}
}
