// Package commands provides the amem-mcp CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amem-mcp/amem-mcp/internal/config"
	"github.com/amem-mcp/amem-mcp/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs  bool
	logLevel   string
	logFile    bool
	showConfig bool
	memoryPath string
)

var rootCmd = &cobra.Command{
	Use:   "amem-mcp",
	Short: "Agent memory MCP server",
	Long: `amem-mcp exposes a persistent cognitive graph to LLM agents over the
Model Context Protocol: store facts, decisions, and corrections; query,
traverse, and resolve them across sessions.

Run 'amem-mcp serve' to start the stdio server, or 'amem-mcp serve-http'
to start the HTTP server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
				os.Exit(1)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling config: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			os.Exit(0)
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to /tmp/amem-mcp-YYYYMMDD-HHMMSS.log")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print merged configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVar(&memoryPath, "memory", "", "Path to the .amem graph file (overrides config)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("amem-mcp %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serveHTTPCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(infoCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// resolveMemoryPath applies the --memory flag over config's MemoryPath
// over the XDG default, in that precedence order.
func resolveMemoryPath(cfg *config.Config) string {
	if memoryPath != "" {
		return memoryPath
	}
	if cfg.MemoryPath != "" {
		return cfg.MemoryPath
	}
	return config.GetPaths().DefaultMemoryPath()
}
