package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings configure the command itself, not the flag tree.
type settings struct {
	LogLevel  string   `mapstructure:"log-level"`
	Overrides []string `mapstructure:"overrides"`
	Format    string   `mapstructure:"format"`
	Pattern   string   `mapstructure:"pattern"`
}

// loadSettings merges, weakest first: defaults, the optional config file,
// FLAGTREE_* environment variables and command-line flags.
func loadSettings(fs *pflag.FlagSet, configFile string) (settings, error) {
	v := viper.New()
	v.SetDefault("log-level", "warning")
	v.SetDefault("format", "tree")
	v.SetEnvPrefix("FLAGTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, oops.In("config").With("file", configFile).Wrapf(err, "read config")
		}
	}
	if err := v.BindPFlags(fs); err != nil {
		return settings{}, oops.In("config").Wrapf(err, "bind flags")
	}

	var cfg settings
	if err := v.Unmarshal(&cfg); err != nil {
		return settings{}, oops.In("config").Wrapf(err, "decode settings")
	}
	return cfg, nil
}

func configureLogger(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return oops.In("config").With("log-level", level).Wrapf(err, "parse log level")
	}
	log.SetLevel(parsed)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return nil
}
