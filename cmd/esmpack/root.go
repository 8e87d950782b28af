package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/config"
	"github.com/gnana997/esmpack/pkg/util"
)

// globals holds the flags every command shares.
type globals struct {
	dir        string
	configFile string
	debug      bool
	silent     bool
	logFormat  string

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	g := &globals{stdout: os.Stdout, stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "esmpack",
		Short:         "Convert node_modules and project sources to browser ES modules",
		Long:          "esmpack rewrites the import and export statements of a project and its npm dependencies so the result loads in a browser as native ES modules.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.stdout = cmd.OutOrStdout()
			g.stderr = cmd.ErrOrStderr()
		},
	}

	root.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "Workspace directory")
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Config file (default: esmpack.config.{json,yaml,yml} in the workspace)")
	root.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Log debug output")
	root.PersistentFlags().BoolVarP(&g.silent, "silent", "s", false, "Log errors only")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: pretty, text or json (env: ESMPACK_LOG_FORMAT)")

	root.AddCommand(
		newBuildCmd(g),
		newPackageCmd(g),
		newInitCmd(g),
		newResolveCmd(g),
		newScanCmd(g),
		newAuditCmd(g),
		newMCPCmd(g),
		newVersionCmd(g),
	)
	return root
}

// workDir returns the absolute workspace directory.
func (g *globals) workDir() (string, error) {
	return filepath.Abs(g.dir)
}

// loadConfig reads .env, then the config file and environment, and
// validates the result.
func (g *globals) loadConfig(dir, configFile string) (*config.Config, error) {
	if configFile == "" {
		configFile = g.configFile
	}
	if err := config.LoadDotEnv(dir); err != nil {
		return nil, err
	}
	return config.NewLoader().LoadWithDefaults(configFile, dir)
}

// logger builds the process logger. Flags win over the config file.
func (g *globals) logger(cfg *config.Config) *slog.Logger {
	lc := util.DefaultLoggerConfig()
	lc.Output = g.stderr
	if cfg != nil {
		lc.Level = util.LogLevel(cfg.Log.Level)
		lc.Format = util.LogFormat(cfg.Log.Format)
	}
	if g.logFormat != "" {
		if f, err := util.ParseLogFormat(g.logFormat); err == nil {
			lc.Format = f
		}
	}
	switch {
	case g.debug:
		lc.Level = util.LevelDebug
	case g.silent:
		lc.Level = util.LevelError
	}
	logger := util.NewLogger(lc)
	util.SetDefault(logger)
	return logger
}
