package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment variable prefix for patcher configuration.
const envPrefix = "PATCH"

// DefaultConfigFile is read from the working directory when no file is given.
const DefaultConfigFile = "patch.yaml"

var keys = []string{
	"applicationName", "output", "debugOn", "variant", "projectDir", "buildDir",
	"sdkDir", "buildToolsVersion", "converter", "marker", "workers",
}

// Loader handles loading and merging configuration from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k, envName(k))
	}
	return &Loader{v: v}
}

// envName maps "buildToolsVersion" to "PATCH_BUILD_TOOLS_VERSION".
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(FlagName(key), "-", "_"))
}

// FlagName maps "buildToolsVersion" to "build-tools-version".
func FlagName(key string) string {
	var b strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' && i > 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// BindFlags lets explicitly set flags override file and environment values.
// A key binds to the flag named FlagName(key); missing flags are skipped.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for _, k := range keys {
		f := flags.Lookup(FlagName(k))
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(k, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", k, err)
		}
	}
	return nil
}

// Load reads configFile, or DefaultConfigFile when empty. Only a missing
// default file is tolerated; environment variables and bound flags still
// apply then.
func (l *Loader) Load(configFile string) (*Config, error) {
	named := configFile != ""
	if !named {
		configFile = DefaultConfigFile
	}
	l.v.SetConfigFile(configFile)
	l.v.SetConfigType("yaml")
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if named || !missing {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads configuration and applies defaults.
func (l *Loader) LoadWithDefaults(configFile string) (*Config, error) {
	cfg, err := l.Load(configFile)
	if err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}
