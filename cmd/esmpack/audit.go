package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/audit"
	"github.com/gnana997/esmpack/pkg/npm"
	"github.com/gnana997/esmpack/pkg/source"
)

func newAuditCmd(g *globals) *cobra.Command {
	var (
		asJSON  bool
		workers int
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "audit <file|dir>...",
		Short: "Find CommonJS and dynamic imports that will not be rewritten",
		Long: `Audit parses scripts with tree-sitter and reports require() calls,
module.exports and exports.x assignments, and dynamic import() calls.
These survive the conversion untouched and usually break in a browser.

Directories are searched recursively, skipping node_modules.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := audit.New(audit.Options{Workers: workers}, g.logger(nil))
			defer a.Close()

			files, err := auditTargets(args, a)
			if err != nil {
				return fatal(err)
			}
			reports, err := a.Files(cmd.Context(), files)
			if err != nil {
				return fatal(err)
			}
			summary := audit.Summarize(reports)

			if asJSON {
				enc := json.NewEncoder(g.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Summary audit.Summary   `json:"summary"`
					Files   []*audit.Report `json:"files"`
				}{summary, reports})
			}
			for _, r := range reports {
				if all || r.CommonJS() || len(r.Dynamic) > 0 || !r.Consistent() {
					printReport(g, r)
				}
			}
			fmt.Fprintf(g.stdout, "%d files, %d CommonJS, %d with dynamic imports, %d scanner mismatches\n",
				summary.Files, summary.CommonJS, summary.Dynamic, summary.Inconsistent)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "Concurrent audits (default: twice the CPU count)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List clean files too")
	return cmd
}

func auditTargets(args []string, a *audit.Auditor) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := source.Enumerate(arg, source.Input{
			Include: []string{"**/*"},
			Exclude: []string{npm.LookupDirName + "/**/*", "**/" + npm.LookupDirName + "/**/*"},
		})
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if a.Supports(f) && !strings.HasSuffix(f, ".d.ts") {
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func printReport(g *globals, r *audit.Report) {
	name := r.File
	if rel, err := filepath.Rel(".", r.File); err == nil && !strings.HasPrefix(rel, "..") {
		name = rel
	}
	fmt.Fprintf(g.stdout, "%s\n", name)
	for _, ref := range r.Requires {
		fmt.Fprintf(g.stdout, "  %d:%d\trequire(%q)\n", ref.Line, ref.Column, ref.Specifier)
	}
	for _, ref := range r.Dynamic {
		fmt.Fprintf(g.stdout, "  %d:%d\timport(%q)\n", ref.Line, ref.Column, ref.Specifier)
	}
	if r.ModuleExports {
		fmt.Fprintln(g.stdout, "  module.exports assigned")
	}
	if len(r.Exports) > 0 {
		fmt.Fprintf(g.stdout, "  exports: %s\n", strings.Join(r.Exports, ", "))
	}
	for _, s := range r.Missed {
		fmt.Fprintf(g.stdout, "  scanner missed %q\n", s)
	}
	for _, s := range r.Extra {
		fmt.Fprintf(g.stdout, "  scanner found unexpected %q\n", s)
	}
}
