package logging

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=json", "--log.development"}))

	assert.Equal(t, &Options{Level: "debug", Format: "json", Development: true}, o)
	require.NoError(t, o.Validate())

	logger, err := o.Build()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Validate())

	o.Level = "loud"
	assert.Error(t, o.Validate())

	o = NewOptions()
	o.Format = "xml"
	assert.ErrorContains(t, o.Validate(), "unknown log format")
}

func TestBuildRespectsLevel(t *testing.T) {
	o := NewOptions()
	o.Level = "warn"
	logger, err := o.Build()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
