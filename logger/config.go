package logger

import "fmt"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`
	// Format is the output format: "json" or "console".
	Format string `yaml:"format" mapstructure:"format"`
	// Output selects the destination: "stdout" or "stderr".
	Output string `yaml:"output" mapstructure:"output"`
	// NoColor disables colored console output.
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
	// Timestamp enables timestamps on log lines.
	Timestamp bool `yaml:"timestamp" mapstructure:"timestamp"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

// Validate checks that the logger configuration is valid.
func (c *Config) Validate() error {
	switch c.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console (got: %s)", c.Format)
	}
	switch c.Output {
	case "", "stdout", "stderr":
	default:
		return fmt.Errorf("logging.output must be stdout or stderr (got: %s)", c.Output)
	}
	return nil
}
