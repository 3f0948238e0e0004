// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tsload/tsload/internal/hooks"
)

const (
	// LogLevelDebug logs everything, including every resolution fallback.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level tsload logs at.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Node     NodeConfig  `json:"node" mapstructure:"node"`
		Tsconfig string      `json:"tsconfig,omitempty" mapstructure:"tsconfig"`
		Hooks    HooksConfig `json:"hooks" mapstructure:"hooks"`
		Watch    WatchConfig `json:"watch" mapstructure:"watch"`
		Log      LogConfig   `json:"log" mapstructure:"log"`
	}

	// NodeConfig configures how node is started.
	NodeConfig struct {
		// Binary is the node executable.
		Binary string `json:"binary,omitempty" mapstructure:"binary"`
		// Options holds extra node flags as a shell-quoted string.
		Options string `json:"options,omitempty" mapstructure:"options"`
	}

	// HooksConfig configures the loader hooks.
	HooksConfig struct {
		// Generation forces a hook generation; "auto" picks it from the node
		// version.
		Generation hooks.Generation `json:"generation" mapstructure:"generation"`
		// SourceMaps inlines source maps and enables node's source map support.
		SourceMaps bool `json:"source_maps" mapstructure:"source_maps"`
	}

	// WatchConfig configures `tsload watch`.
	WatchConfig struct {
		Debounce    time.Duration `json:"debounce" mapstructure:"debounce"`
		Ignore      []string      `json:"ignore,omitempty" mapstructure:"ignore"`
		ClearScreen bool          `json:"clear_screen" mapstructure:"clear_screen"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the configuration used when no file sets a value.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{Binary: "node"},
		Hooks: HooksConfig{
			Generation: hooks.GenerationAuto,
			SourceMaps: true,
		},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
		Log:   LogConfig{Level: LogLevelInfo},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns nil if the LogLevel is recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate checks the values the schema cannot see, such as those coming
// from the environment.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Node.Binary) == "" {
		errs = append(errs, errors.New("node.binary: must not be empty"))
	}
	if err := c.Hooks.Generation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hooks.generation: %w", err))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce: must not be negative, got %s", c.Watch.Debounce))
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config (%d errors): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is()
// compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
