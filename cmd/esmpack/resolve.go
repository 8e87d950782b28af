package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/workspace"
)

func newResolveCmd(g *globals) *cobra.Command {
	var (
		from   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <specifier>",
		Short: "Show where a module specifier resolves and what it is rewritten to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := g.workDir()
			if err != nil {
				return fatal(err)
			}
			cfg, err := g.loadConfig(dir, "")
			if err != nil {
				return fatal(err)
			}
			ws, err := workspace.New(cfg, dir, workspace.Options{}, g.logger(cfg))
			if err != nil {
				return fatal(err)
			}
			if err := ws.Init(); err != nil {
				return fatal(err)
			}
			res, err := ws.Resolve(args[0], from)
			if err != nil {
				return fatal(err)
			}

			if asJSON {
				enc := json.NewEncoder(g.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if !res.Found {
				return &ExitError{Code: ExitNotFound, Err: fmt.Errorf("cannot resolve %q", args[0])}
			}
			tw := tabwriter.NewWriter(g.stdout, 0, 0, 2, ' ', 0)
			if res.Package != "" {
				fmt.Fprintf(tw, "package\t%s\n", res.Package)
			}
			if res.SubPath != "" {
				fmt.Fprintf(tw, "sub-path\t%s\n", res.SubPath)
			}
			fmt.Fprintf(tw, "input\t%s\n", res.Input)
			fmt.Fprintf(tw, "output\t%s\n", res.Output)
			fmt.Fprintf(tw, "link\t%s\n", res.Link)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Importing file, relative to the workspace (default: the workspace root)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
