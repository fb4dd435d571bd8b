package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	unenkimcp "github.com/ajitpratap0/unenki/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  encode         escape control and non-ASCII characters as \uXXXX
  strip          encode raw text and drop its color codes
  strip_encoded  drop escaped color codes from encoded text`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			srv := unenkimcp.NewServer(cfg.Encode.Encoder(), cfg.Encode.Options(), logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: unenki MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
