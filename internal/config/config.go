// Package config provides configuration management for assetwatch using
// Viper for loading from command-line flags, environment variables and an
// optional YAML file.
//
// Precedence, highest first: flags, ASSETWATCH_* environment variables,
// the config file (.assetwatch.yml), built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ASSETWATCH"

// Viper keys.
const (
	KeyTemplates      = "templates"
	KeyStyles         = "styles"
	KeyScripts        = "scripts"
	KeyDestination    = "dest"
	KeyIncludePaths   = "include_paths"
	KeySassBinary     = "sass.binary"
	KeyReloadEnabled  = "reload.enabled"
	KeyReloadHost     = "reload.host"
	KeyReloadPort     = "reload.port"
	KeyReloadDebounce = "reload.debounce"
	KeyReloadOrigins  = "reload.allowed_origins"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
)

// Defaults.
const (
	DefaultSassBinary = "sass"
	DefaultReloadHost = "localhost"
	DefaultReloadPort = 35729
	DefaultDebounce   = 100 * time.Millisecond
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
)

// Config is the effective assetwatch configuration.
type Config struct {
	Templates    string       `yaml:"templates"`
	Styles       string       `yaml:"styles"`
	Scripts      string       `yaml:"scripts"`
	Destination  string       `yaml:"dest"`
	IncludePaths []string     `yaml:"include_paths"`
	Sass         SassConfig   `yaml:"sass"`
	Reload       ReloadConfig `yaml:"reload"`
	Log          LogConfig    `yaml:"log"`
}

type SassConfig struct {
	Binary string `yaml:"binary"`
}

type ReloadConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Debounce       time.Duration `yaml:"debounce"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// MarshalYAML writes the debounce as a duration string.
func (r ReloadConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Enabled        bool     `yaml:"enabled"`
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		Debounce       string   `yaml:"debounce"`
		AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	}{r.Enabled, r.Host, r.Port, r.Debounce.String(), r.AllowedOrigins}, nil
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyIncludePaths, []string{})
	v.SetDefault(KeySassBinary, DefaultSassBinary)
	v.SetDefault(KeyReloadEnabled, true)
	v.SetDefault(KeyReloadHost, DefaultReloadHost)
	v.SetDefault(KeyReloadPort, DefaultReloadPort)
	v.SetDefault(KeyReloadDebounce, DefaultDebounce)
	v.SetDefault(KeyReloadOrigins, []string{})
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// Init wires environment overrides and reads the config file. With an
// empty cfgFile, ASSETWATCH_CONFIG_FILE is tried and then .assetwatch.yml in
// the working directory; a missing default file is not an error. It returns
// the file used, if any.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := true
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case os.Getenv(EnvPrefix+"_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv(EnvPrefix + "_CONFIG_FILE"))
	default:
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".assetwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config file: %w", err)
	}

	return v.ConfigFileUsed(), nil
}

// Load builds a Config from v. It does not validate.
func Load(v *viper.Viper) *Config {
	return &Config{
		Templates:    strings.TrimSpace(v.GetString(KeyTemplates)),
		Styles:       strings.TrimSpace(v.GetString(KeyStyles)),
		Scripts:      strings.TrimSpace(v.GetString(KeyScripts)),
		Destination:  strings.TrimSpace(v.GetString(KeyDestination)),
		IncludePaths: nonEmpty(v.GetStringSlice(KeyIncludePaths)),
		Sass: SassConfig{
			Binary: v.GetString(KeySassBinary),
		},
		Reload: ReloadConfig{
			Enabled:        v.GetBool(KeyReloadEnabled),
			Host:           v.GetString(KeyReloadHost),
			Port:           v.GetInt(KeyReloadPort),
			Debounce:       v.GetDuration(KeyReloadDebounce),
			AllowedOrigins: nonEmpty(v.GetStringSlice(KeyReloadOrigins)),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
