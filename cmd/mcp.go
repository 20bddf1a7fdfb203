package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/pir/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

MCP clients can list, create, re-status, and delete issues on the backend
at api_url. Configure a client with:

  {
    "mcpServers": {
      "pir": { "command": "pir", "args": ["mcp"] }
    }
  }

Available tools: pir_list_issues, pir_create_issue,
pir_update_issue_status, pir_delete_issue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcp.NewServer(getTracker(), buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
