package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gnana997/esmpack/pkg/plugin"
)

// Environment variable prefix for esmpack configuration.
const envPrefix = "ESMPACK"

// ConfigName is the base name searched for when no file is given.
const ConfigName = "esmpack.config"

// ConfigExtensions are the supported config file extensions, in search order.
var ConfigExtensions = []string{"json", "yaml", "yml"}

// ErrNoConfigFile is returned by FindConfigFile when nothing is found.
var ErrNoConfigFile = errors.New("no esmpack config file found")

// Loader handles loading and merging configuration from a file, the
// environment and an optional .env file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper knows about.
	def := Default()
	v.SetDefault("outDir", def.OutDir)
	v.SetDefault("extension", def.Extension)
	v.SetDefault("moduleResolution", def.ModuleResolution)
	v.SetDefault("baseUrl", "")
	v.SetDefault("workspaceResolution", def.WorkspaceResolution)
	v.SetDefault("prod", false)
	v.SetDefault("followDepth", 0)
	v.SetDefault("watch.debounceMs", def.Watch.DebounceMs)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	return &Loader{v: v}
}

// LoadDotEnv loads KEY=VALUE pairs from the .env file in dir into the
// process environment. Variables already set win. A missing file is not
// an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// FindConfigFile returns the first esmpack.config.{json,yaml,yml} in dir.
func FindConfigFile(dir string) (string, error) {
	for _, ext := range ConfigExtensions {
		path := filepath.Join(dir, ConfigName+"."+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfigFile, dir)
}

// Load reads configFile, or the config file found in dir when configFile
// is empty. Without any file the defaults and environment apply.
// Environment variables take precedence over file values.
func (l *Loader) Load(configFile, dir string) (*Config, error) {
	if configFile == "" {
		found, err := FindConfigFile(dir)
		if err != nil && !errors.Is(err, ErrNoConfigFile) {
			return nil, err
		}
		configFile = found
	}

	if configFile != "" {
		l.v.SetConfigFile(configFile)
		if ext := strings.TrimPrefix(filepath.Ext(configFile), "."); ext == "" {
			l.v.SetConfigType("yaml")
		}
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		pluginSpecHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads configuration, applies defaults and validates it.
func (l *Loader) LoadWithDefaults(configFile, dir string) (*Config, error) {
	cfg, err := l.Load(configFile, dir)
	if err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

var specType = reflect.TypeOf(plugin.Spec{})

// pluginSpecHook lets a plugin entry be the bare name of a built-in.
func pluginSpecHook(from, to reflect.Type, data any) (any, error) {
	if to != specType || from.Kind() != reflect.String {
		return data, nil
	}
	return plugin.Spec{Name: data.(string)}, nil
}
