package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amem-mcp/amem-mcp/internal/config"
	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a memory file and print its summary",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	workDir, err := resolveWorkDir("")
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	path := resolveMemoryPath(cfg)

	sess, err := memsession.Open(path, graphengine.DefaultDimension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid memory file: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	g := sess.Graph()
	fmt.Printf("Valid memory file: %s\n", path)
	fmt.Printf("  Nodes: %d\n", g.NodeCount())
	fmt.Printf("  Edges: %d\n", g.EdgeCount())
	fmt.Printf("  Dimension: %d\n", g.Dimension())
	fmt.Printf("  Sessions: %d\n", g.SessionCount())
	return nil
}
