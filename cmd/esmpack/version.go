package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(g.stdout, "esmpack %s\n", version)
			fmt.Fprintf(g.stdout, "  Go: %s\n", runtime.Version())
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
				fmt.Fprintf(g.stdout, "  Module: %s %s\n", info.Main.Path, info.Main.Version)
			}
		},
	}
}
