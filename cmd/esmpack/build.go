package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/transform"
	"github.com/gnana997/esmpack/pkg/workspace"
)

type buildOptions struct {
	prod    bool
	watch   bool
	noClean bool
}

func newBuildCmd(g *globals) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build [config]",
		Short: "Build dependencies and workspace sources",
		Long: `Build transforms every dependency reachable from package.json into
<outDir>/<package>/ and the workspace sources into <outDir>/.

The output directory is deleted first unless --no-clean is given. With
--watch the build keeps running and re-transforms files as they change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var configFile string
			if len(args) == 1 {
				configFile = args[0]
			}
			return runBuild(cmd.Context(), g, configFile, opts, workspace.Options{})
		},
	}
	cmd.Flags().BoolVar(&opts.prod, "prod", false, "Production build: no raw file copies, eager module-dir helper (env: ESMPACK_PROD)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep watching sources and resources after the build")
	cmd.Flags().BoolVar(&opts.noClean, "no-clean", false, "Keep the existing output directory")
	return cmd
}

func newPackageCmd(g *globals) *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "package [package.json]",
		Short: "Build a package and its dependencies",
		Long: `Package builds the package described by a package.json, and every
dependency it declares, as if it were a dependency of another project:
into <outDir>/<name>/. Workspace sources and resources are not processed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.dir = filepath.Dir(args[0])
			}
			return runBuild(cmd.Context(), g, "", opts, workspace.Options{PackageMode: true})
		},
	}
	cmd.Flags().BoolVar(&opts.prod, "prod", false, "Production build")
	cmd.Flags().BoolVar(&opts.noClean, "no-clean", false, "Keep the existing output directory")
	return cmd
}

func runBuild(ctx context.Context, g *globals, configFile string, opts buildOptions, wsOpts workspace.Options) error {
	dir, err := g.workDir()
	if err != nil {
		return fatal(err)
	}
	cfg, err := g.loadConfig(dir, configFile)
	if err != nil {
		return fatal(err)
	}
	if opts.prod {
		cfg.Prod = true
	}
	logger := g.logger(cfg)

	ws, err := workspace.New(cfg, dir, wsOpts, logger)
	if err != nil {
		return fatal(err)
	}
	if !opts.noClean {
		if err := ws.Clean(); err != nil {
			if !errors.Is(err, workspace.ErrUnsafeClean) {
				return fatal(err)
			}
			logger.Warn("output directory not cleaned", "error", err)
		}
	}
	if err := ws.Init(); err != nil {
		return fatal(err)
	}

	stats, err := ws.Build()
	if err != nil {
		return fatal(err)
	}
	report(logger, ws, stats)

	if !opts.watch {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info("watching for changes", "dir", dir)
	return fatal(ws.Watch(ctx))
}

func report(logger *slog.Logger, ws *workspace.Workspace, stats transform.Stats) {
	attrs := []any{
		"out_dir", ws.OutDir(),
		"files", stats.Written,
		"rewrites", stats.Rewrites,
		"assets", stats.Assets,
		"packages", ws.Packages().Len(),
	}
	if stats.Failures > 0 {
		logger.Warn(fmt.Sprintf("build finished with %d failures", stats.Failures), attrs...)
		return
	}
	logger.Info("build finished", attrs...)
}
