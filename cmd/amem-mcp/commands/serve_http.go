package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amem-mcp/amem-mcp/internal/config"
	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/logging"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
	"github.com/amem-mcp/amem-mcp/internal/protocol"
	"github.com/amem-mcp/amem-mcp/internal/transport"
)

var (
	serveHTTPAddr string
	serveHTTPDir  string
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the HTTP MCP server",
	Long: `Start amem-mcp as an HTTP server exposing POST /mcp (one JSON-RPC
request per HTTP request) and GET /health.`,
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().StringVar(&serveHTTPAddr, "addr", "", "Listen address (overrides config, default :8751)")
	serveHTTPCmd.Flags().StringVar(&serveHTTPDir, "directory", "", "Project directory to load config from")
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	workDir, err := resolveWorkDir(serveHTTPDir)
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

	httpCfg := transport.DefaultHTTPConfig()
	if serveHTTPAddr != "" {
		httpCfg.Addr = serveHTTPAddr
	} else if cfg.HTTPAddr != "" {
		httpCfg.Addr = cfg.HTTPAddr
	}

	h := transport.NewHTTP(httpCfg, server)

	go func() {
		logging.Info().Str("addr", httpCfg.Addr).Msg("HTTP server listening")
		if err := h.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
