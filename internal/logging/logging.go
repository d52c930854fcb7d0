// Package logging builds the zap logger shared by the ckptctl and ckptd commands.
package logging

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options defines logger configuration.
type Options struct {
	Level       string `json:"level" mapstructure:"level"`
	Format      string `json:"format" mapstructure:"format"`
	Development bool   `json:"development" mapstructure:"development"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Level:  "info",
		Format: "console",
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Log level (debug|info|warn|error)")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log format (json|console)")
	fs.BoolVar(&o.Development, "log.development", o.Development, "Enable development mode")
}

// Validate validates the logger options.
func (o *Options) Validate() error {
	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		return err
	}
	if o.Format != "json" && o.Format != "console" {
		return fmt.Errorf("unknown log format %q (want json|console)", o.Format)
	}
	return nil
}

// Build creates a logger writing to stderr.
func (o *Options) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(o.Level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	if o.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = o.Format
	if o.Format == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
