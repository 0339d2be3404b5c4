package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func messages(cfg *Config) []string {
	var out []string
	for _, err := range Validate(cfg) {
		out = append(out, err.Message)
	}

	return out
}

func validConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := Load(v)
	cfg.Templates = "views/**/*.jade"
	cfg.Styles = "styles/**/*.scss"
	cfg.Destination = "build"

	return cfg
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := Load(v)

	assert.Equal(t, DefaultSassBinary, cfg.Sass.Binary)
	assert.True(t, cfg.Reload.Enabled)
	assert.Equal(t, DefaultReloadHost, cfg.Reload.Host)
	assert.Equal(t, DefaultReloadPort, cfg.Reload.Port)
	assert.Equal(t, DefaultDebounce, cfg.Reload.Debounce)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Empty(t, cfg.IncludePaths)
	assert.Empty(t, cfg.Scripts)
}

func TestValidateMissingRequired(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*Config)
		expected []string
	}{
		{
			name:     "valid",
			mutate:   func(*Config) {},
			expected: nil,
		},
		{
			name:     "scripts are optional",
			mutate:   func(c *Config) { c.Scripts = "" },
			expected: nil,
		},
		{
			name:     "missing destination",
			mutate:   func(c *Config) { c.Destination = "" },
			expected: []string{MsgNoDestination},
		},
		{
			name:     "missing styles",
			mutate:   func(c *Config) { c.Styles = "" },
			expected: []string{MsgNoStyles},
		},
		{
			name: "everything missing",
			mutate: func(c *Config) {
				c.Styles = ""
				c.Templates = ""
				c.Destination = ""
			},
			expected: []string{MsgNoStyles, MsgNoTemplates, MsgNoDestination},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Equal(t, tc.expected, messages(cfg))
		})
	}
}

func TestValidateReloadAndLog(t *testing.T) {
	cfg := validConfig()
	cfg.Reload.Port = 70000
	cfg.Reload.Debounce = -time.Second
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	errs := Validate(cfg)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Message, "70000")
	assert.Contains(t, errs[1].Message, "negative")
	assert.Contains(t, errs[2].Message, "loud")
	assert.Contains(t, errs[3].Message, "xml")
	assert.Error(t, errs.Err())

	cfg.Reload.Enabled = false
	assert.Len(t, Validate(cfg), 2)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSETWATCH_DEST", "public")
	t.Setenv("ASSETWATCH_RELOAD_PORT", "4000")
	t.Setenv("ASSETWATCH_RELOAD_DEBOUNCE", "250ms")

	v := viper.New()
	used, err := Init(v, "")
	require.NoError(t, err)
	assert.Empty(t, used)

	cfg := Load(v)
	assert.Equal(t, "public", cfg.Destination)
	assert.Equal(t, 4000, cfg.Reload.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Reload.Debounce)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := `templates: views/*.jade
styles: styles/*.scss
dest: out
include_paths:
  - node_modules/bourbon
  - node_modules/neat
reload:
  port: 9000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".assetwatch.yml"), []byte(content), 0o644))

	v := viper.New()
	used, err := Init(v, "")
	require.NoError(t, err)
	assert.Equal(t, ".assetwatch.yml", filepath.Base(used))

	cfg := Load(v)
	assert.Equal(t, "views/*.jade", cfg.Templates)
	assert.Equal(t, "out", cfg.Destination)
	assert.Equal(t, []string{"node_modules/bourbon", "node_modules/neat"}, cfg.IncludePaths)
	assert.Equal(t, 9000, cfg.Reload.Port)
	assert.Equal(t, DefaultReloadHost, cfg.Reload.Host)
	assert.Empty(t, Validate(cfg))
}

func TestExplicitConfigFileMissing(t *testing.T) {
	v := viper.New()
	_, err := Init(v, filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASSETWATCH_STYLES", "env/*.scss")

	v := viper.New()
	_, err := Init(v, "")
	require.NoError(t, err)
	v.Set(KeyStyles, "flag/*.scss")

	assert.Equal(t, "flag/*.scss", Load(v).Styles)
}

func TestMarshalYAML(t *testing.T) {
	cfg := validConfig()

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "dest: build")
	assert.Contains(t, text, "debounce: 100ms")
	assert.Contains(t, text, "port: 35729")
}
