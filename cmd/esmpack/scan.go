package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/syntax"
	"github.com/gnana997/esmpack/pkg/util"
)

func newScanCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "List the import and export statements the rewriter sees in a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := util.ReadFile(args[0])
			if err != nil {
				return fatal(err)
			}
			stmts, errs := syntax.Scan(string(src))
			if asJSON {
				enc := json.NewEncoder(g.stdout)
				enc.SetIndent("", "  ")
				if stmts == nil {
					stmts = []syntax.Statement{}
				}
				return enc.Encode(stmts)
			}

			tw := tabwriter.NewWriter(g.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LINE\tKIND\tSHAPE\tSPECIFIER")
			for i := range stmts {
				st := &stmts[i]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Line, st.Kind, st.Shape(), st.Specifier())
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, e := range errs {
				fmt.Fprintf(g.stderr, "%s: %v\n", args[0], e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
