package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/howitworks/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes call graph
extraction as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "howitworks": {
        "command": "howitworks",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - callgraph    Call graph reachable from an entry point
  - callees      Direct callees or callers of one function
  - modules      Module records with resolution state`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts := []mcpserver.Option{mcpserver.WithConfig(cfg)}
	if cfg.Cache.Enabled {
		ch, err := openCache(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, mcpserver.WithCache(ch))
	}
	return mcpserver.NewServer(version, opts...).Run(c.Context)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}
