package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	level       string
	controllers []string
	timeout     time.Duration
	poolSize    int
}

func newFlagSet(o *testOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(FlagName, "", "")
	fs.StringVar(&o.level, "log.level", "info", "")
	fs.StringSliceVar(&o.controllers, "controllers", []string{"127.0.0.1:6817"}, "")
	fs.DurationVar(&o.timeout, "request-timeout", 10*time.Second, "")
	fs.IntVar(&o.poolSize, "pool-size", 2, "")
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ckpttest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
controllers:
  - 10.0.0.1:6817
  - 10.0.0.2:6817
request-timeout: 3s
pool-size: 4
`)
	t.Setenv("CKPTTEST_POOL_SIZE", "8")

	var o testOptions
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse([]string{"--request-timeout=1s"}))
	require.NoError(t, Load(fs, "ckpttest", path))

	assert.Equal(t, "warn", o.level)
	assert.Equal(t, []string{"10.0.0.1:6817", "10.0.0.2:6817"}, o.controllers)
	assert.Equal(t, time.Second, o.timeout) // flag beats file
	assert.Equal(t, 8, o.poolSize)          // env beats file
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CKPTTEST_CONTROLLERS", "a:1,b:2")

	var o testOptions
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse(nil))
	require.NoError(t, Load(fs, "ckpttest", ""))

	assert.Equal(t, "info", o.level)
	assert.Equal(t, []string{"a:1", "b:2"}, o.controllers)
}

func TestLoadInvalidValue(t *testing.T) {
	path := writeConfig(t, "pool-size: many\n")

	var o testOptions
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse(nil))
	assert.ErrorContains(t, Load(fs, "ckpttest", path), "pool-size")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	var o testOptions
	fs := newFlagSet(&o)
	require.NoError(t, fs.Parse(nil))
	assert.Error(t, Load(fs, "ckpttest", filepath.Join(t.TempDir(), "missing.yaml")))
}
