// Package config provides configuration loading and management.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/esmpack/pkg/plugin"
	"github.com/gnana997/esmpack/pkg/rewrite"
	"github.com/gnana997/esmpack/pkg/source"
	"github.com/gnana997/esmpack/pkg/util"
)

// Default values.
const (
	DefaultOutDir              = "esmpack/dist"
	DefaultExtension           = ".js"
	DefaultModuleResolution    = "relative"
	DefaultWorkspaceResolution = WorkspaceAll
	DefaultDebounceMs          = 100
)

// Workspace resolution modes.
const (
	// WorkspaceAll transforms every file of the configured source set.
	WorkspaceAll = "all"
	// WorkspaceFollow transforms the workspace entry file and what it imports.
	WorkspaceFollow = "follow"
)

var (
	// ErrStaticWithoutBaseURL is fatal: static links need a base URL.
	ErrStaticWithoutBaseURL = rewrite.ErrStaticWithoutBaseURL
	// ErrBadExtension is returned for extensions other than .js and .mjs.
	ErrBadExtension = errors.New("extension must be \".js\" or \".mjs\"")
	// ErrBadResolution is returned for unknown resolution modes.
	ErrBadResolution = errors.New("invalid resolution mode")
	// ErrOutDirIsWorkspace is returned when outDir names the workspace
	// itself. Every output path would then be its input path.
	ErrOutDirIsWorkspace = errors.New("outDir must not be the workspace directory")
)

// PathMapping substitutes From with To in resource output paths. Mappings
// apply in order.
type PathMapping struct {
	From string `mapstructure:"from" json:"from" yaml:"from"`
	To   string `mapstructure:"to" json:"to" yaml:"to"`
}

// WatchConfig contains watch mode settings.
type WatchConfig struct {
	// DebounceMs coalesces bursts of events on one file.
	// Env: ESMPACK_WATCH_DEBOUNCEMS, Default: 100
	DebounceMs int `mapstructure:"debounceMs" json:"debounceMs" yaml:"debounceMs"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Env: ESMPACK_LOG_LEVEL, Default: info
	Level string `mapstructure:"level" json:"level,omitempty" yaml:"level,omitempty"`

	// Format is one of pretty, text, json.
	// Env: ESMPACK_LOG_FORMAT, Default: pretty
	Format string `mapstructure:"format" json:"format,omitempty" yaml:"format,omitempty"`
}

// Config is the build configuration.
type Config struct {
	// OutDir is the root of all generated output, relative to the workspace.
	// Env: ESMPACK_OUTDIR, Default: esmpack/dist
	OutDir string `mapstructure:"outDir" json:"outDir" yaml:"outDir"`

	// Src is the workspace's input file set.
	Src source.Input `mapstructure:"src" json:"src" yaml:"src"`

	// Resources are copied verbatim into the output before scanning.
	Resources source.Input `mapstructure:"resources" json:"resources,omitempty" yaml:"resources,omitempty"`

	// PathMap rewrites resource output paths.
	PathMap []PathMapping `mapstructure:"pathMap" json:"pathMap,omitempty" yaml:"pathMap,omitempty"`

	// Extension is appended to specifiers that lack it.
	// Env: ESMPACK_EXTENSION, Default: .js
	Extension string `mapstructure:"extension" json:"extension" yaml:"extension"`

	// ModuleResolution selects how links into dependencies are spelled:
	// relative, static or flat.
	// Env: ESMPACK_MODULERESOLUTION, Default: relative
	ModuleResolution string `mapstructure:"moduleResolution" json:"moduleResolution" yaml:"moduleResolution"`

	// BaseURL prefixes static links. Required by the static resolution.
	// Env: ESMPACK_BASEURL
	BaseURL string `mapstructure:"baseUrl" json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// WorkspaceResolution is all or follow.
	// Env: ESMPACK_WORKSPACERESOLUTION, Default: all
	WorkspaceResolution string `mapstructure:"workspaceResolution" json:"workspaceResolution" yaml:"workspaceResolution"`

	// Plugins lists asset plugins in match order. Empty means every
	// built-in.
	Plugins []plugin.Spec `mapstructure:"plugins" json:"plugins,omitempty" yaml:"plugins,omitempty"`

	// Prod disables raw file copies and selects the eager helper.
	// Env: ESMPACK_PROD
	Prod bool `mapstructure:"prod" json:"prod,omitempty" yaml:"prod,omitempty"`

	// FollowDepth bounds import hops followed inside dependencies. 0 is
	// unbounded.
	// Env: ESMPACK_FOLLOWDEPTH
	FollowDepth int `mapstructure:"followDepth" json:"followDepth,omitempty" yaml:"followDepth,omitempty"`

	Watch WatchConfig `mapstructure:"watch" json:"watch" yaml:"watch"`
	Log   LogConfig   `mapstructure:"log" json:"log,omitempty" yaml:"log,omitempty"`
}

// Default returns a Config with all default values populated.
// Used by `esmpack init` to generate the initial config file.
func Default() *Config {
	return &Config{
		OutDir:              DefaultOutDir,
		Src:                 source.DefaultInput(),
		Extension:           DefaultExtension,
		ModuleResolution:    DefaultModuleResolution,
		WorkspaceResolution: DefaultWorkspaceResolution,
		Watch:               WatchConfig{DebounceMs: DefaultDebounceMs},
		Log:                 LogConfig{Level: string(util.LevelInfo), Format: string(util.FormatPretty)},
	}
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c *Config) WithDefaults() *Config {
	out := *c
	def := Default()
	if out.OutDir == "" {
		out.OutDir = def.OutDir
	}
	if out.Src.IsEmpty() {
		exclude := out.Src.Exclude
		out.Src = def.Src
		if len(exclude) > 0 {
			out.Src.Exclude = exclude
		}
	}
	if out.Extension == "" {
		out.Extension = def.Extension
	}
	if out.ModuleResolution == "" {
		out.ModuleResolution = def.ModuleResolution
	}
	if out.WorkspaceResolution == "" {
		out.WorkspaceResolution = def.WorkspaceResolution
	}
	if out.Watch.DebounceMs <= 0 {
		out.Watch.DebounceMs = def.Watch.DebounceMs
	}
	if out.Log.Level == "" {
		out.Log.Level = def.Log.Level
	}
	if out.Log.Format == "" {
		out.Log.Format = def.Log.Format
	}
	return &out
}

// Validate checks the configuration. Errors wrapping
// ErrStaticWithoutBaseURL are fatal for a build.
func (c *Config) Validate() error {
	if c.OutDir != "" && filepath.Clean(filepath.FromSlash(c.OutDir)) == "." {
		return fmt.Errorf("%w: %q", ErrOutDirIsWorkspace, c.OutDir)
	}
	switch c.Extension {
	case ".js", ".mjs":
	default:
		return fmt.Errorf("%w, got %q", ErrBadExtension, c.Extension)
	}

	strategy, err := rewrite.ParseStrategy(c.ModuleResolution)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadResolution, err)
	}
	if strategy == rewrite.StrategyStatic && c.BaseURL == "" {
		return ErrStaticWithoutBaseURL
	}

	switch strings.ToLower(c.WorkspaceResolution) {
	case WorkspaceAll, WorkspaceFollow:
	default:
		return fmt.Errorf("%w: workspaceResolution %q (want all or follow)", ErrBadResolution, c.WorkspaceResolution)
	}

	if c.FollowDepth < 0 {
		return fmt.Errorf("followDepth must not be negative, got %d", c.FollowDepth)
	}
	if err := c.Src.Validate(); err != nil {
		return fmt.Errorf("src: %w", err)
	}
	if err := c.Resources.Validate(); err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	for i, m := range c.PathMap {
		if m.From == "" {
			return fmt.Errorf("pathMap %d: empty \"from\"", i)
		}
	}
	if _, err := plugin.FromSpecs(c.Plugins); err != nil {
		return err
	}
	if _, err := util.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := util.ParseLogFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// Strategy returns the parsed module resolution strategy.
func (c *Config) Strategy() rewrite.Strategy {
	s, err := rewrite.ParseStrategy(c.ModuleResolution)
	if err != nil {
		return rewrite.StrategyRelative
	}
	return s
}

// Follow reports whether the workspace is traversed from its entry only.
func (c *Config) Follow() bool {
	return strings.EqualFold(c.WorkspaceResolution, WorkspaceFollow)
}

// MapPath applies the path mappings to a slash separated path. Each
// mapping replaces its first occurrence only.
func (c *Config) MapPath(p string) string {
	for _, m := range c.PathMap {
		p = strings.Replace(p, m.From, m.To, 1)
	}
	return p
}

// Write saves the configuration to path, as JSON when the extension is
// .json and as YAML otherwise.
func (c *Config) Write(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
