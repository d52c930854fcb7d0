// Package config feeds command flags from a YAML config file and environment
// variables. Precedence is flag, then environment, then file, then the flag's
// default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagName is the flag naming the config file. It is never read from the file.
const FlagName = "config"

// Load reads the config file (configFile, or name.yaml in the usual places when
// empty) and the NAME_* environment, and sets every flag of fs the user did not
// set on the command line. Config keys are flag names; "log.level" may also be
// written as a nested "log: {level: ...}" block. Environment keys are the flag
// names upper-cased with "." and "-" replaced by "_", e.g. CKPTCTL_LOG_LEVEL.
func Load(fs *pflag.FlagSet, name, configFile string) error {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+name))
		v.AddConfigPath("/etc/" + name)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == FlagName || !v.IsSet(f.Name) {
			return
		}
		val := v.GetString(f.Name)
		if strings.HasSuffix(f.Value.Type(), "Slice") {
			val = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := f.Value.Set(val); err != nil {
			errs = append(errs, fmt.Errorf("config %s=%q: %w", f.Name, val, err))
		}
	})
	return errors.Join(errs...)
}
