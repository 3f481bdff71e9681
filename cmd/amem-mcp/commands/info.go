package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/registry"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print server capabilities and registered tools as JSON",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	tools := registry.NewToolRegistry().List()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}

	info := map[string]any{
		"server": map[string]any{
			"name":    "amem-mcp",
			"version": Version,
		},
		"protocol_version": mcptypes.ProtocolVersion,
		"capabilities":     []string{"tools", "resources", "prompts", "logging"},
		"tools":            names,
		"tool_count":       len(names),
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
