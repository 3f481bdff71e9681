package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amem-mcp/amem-mcp/internal/config"
	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/logging"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
	"github.com/amem-mcp/amem-mcp/internal/protocol"
	"github.com/amem-mcp/amem-mcp/internal/transport"
)

var serveDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stdio MCP server (default)",
	Long: `Start amem-mcp as a stdio MCP server, speaking newline-delimited
JSON-RPC on stdin/stdout. This is how MCP clients normally launch it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Project directory to load config from")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := resolveWorkDir(serveDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	path := resolveMemoryPath(cfg)
	logging.Info().Str("memory_path", path).Msg("opening memory graph")

	sess, err := memsession.Open(path, graphengine.DefaultDimension)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.StartAutoSave(ctx)

	tracker := progress.NewTracker()
	defer tracker.Close()

	server := protocol.NewServer(sess, tracker)
	io := transport.NewStdio(server, os.Stdin, os.Stdout)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- io.Serve(ctx) }()

	select {
	case err := <-done:
		return err
	case <-quit:
		logging.Info().Msg("shutting down")
		cancel()
		return nil
	}
}

func resolveWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
