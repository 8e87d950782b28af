package main

import (
	"github.com/spf13/cobra"

	"github.com/gnana997/esmpack/pkg/audit"
	mcpserver "github.com/gnana997/esmpack/pkg/mcp"
	"github.com/gnana997/esmpack/pkg/mcplog"
	"github.com/gnana997/esmpack/pkg/workspace"
)

func newMCPCmd(g *globals) *cobra.Command {
	var callLog string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the esmpack tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := g.workDir()
			if err != nil {
				return fatal(err)
			}
			cfg, err := g.loadConfig(dir, "")
			if err != nil {
				return fatal(err)
			}
			// stdout carries the protocol; logs go to stderr only.
			logger := g.logger(cfg)

			ws, err := workspace.New(cfg, dir, workspace.Options{}, logger)
			if err != nil {
				return fatal(err)
			}
			if err := ws.Init(); err != nil {
				return fatal(err)
			}
			a := audit.New(audit.Options{Extension: cfg.Extension}, logger)
			defer a.Close()

			calls, err := mcplog.Open(callLog)
			if err != nil {
				return fatal(err)
			}
			defer calls.Close()

			return mcpserver.NewServer(ws, a, calls, version).ServeStdio()
		},
	}
	cmd.Flags().StringVar(&callLog, "call-log", "", "Append a JSON line per tool call to this file")
	return cmd
}
