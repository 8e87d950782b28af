package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/config"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		asJSON bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default esmpack config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := g.workDir()
			if err != nil {
				return fatal(err)
			}
			ext := "yaml"
			if asJSON {
				ext = "json"
			}
			path := filepath.Join(dir, config.ConfigName+"."+ext)
			if !force {
				if existing, err := config.FindConfigFile(dir); err == nil {
					return &ExitError{Code: ExitUsageError, Err: fmt.Errorf("%s already exists (use --force to overwrite)", existing)}
				}
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fatal(err)
			}
			if err := config.Default().Write(path); err != nil {
				return fatal(err)
			}
			fmt.Fprintf(g.stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write esmpack.config.json instead of YAML")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	return cmd
}
