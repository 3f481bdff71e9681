// Command amem-mcp runs the agent memory MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/amem-mcp/amem-mcp/cmd/amem-mcp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
