// Package config provides configuration loading, merging, and path
// management for amem-mcp.
//
// Configuration is loaded in priority order, each source overriding the
// last:
//
//  1. Global config (~/.config/amem-mcp/config.json[c])
//  2. Project config (<directory>/.amem-mcp/config.json[c])
//  3. Any *.amem-mcp.json override file discovered via glob under <directory>
//  4. A .env file in <directory>, if present
//  5. Environment variables (AMEM_MEMORY_PATH, AMEM_LOG_LEVEL, ...)
//
// JSON and JSONC (JSON with // and /* */ comments) are both accepted.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
)

// Config holds the merged amem-mcp runtime configuration.
type Config struct {
	// MemoryPath is the .amem file the session core opens. Empty means
	// "use the caller-resolved default".
	MemoryPath string `json:"memoryPath,omitempty"`
	// LogLevel is one of debug|info|warn|error. It is loaded and merged
	// but not applied: the CLI takes its log level from --log-level.
	LogLevel string `json:"logLevel,omitempty"`
	// AutoSaveIntervalSeconds is loaded and merged but not applied: the
	// Session Core always uses its default 30s auto-save interval.
	AutoSaveIntervalSeconds int `json:"autoSaveIntervalSeconds,omitempty"`
	// HTTPAddr is the listen address used by `serve-http`.
	HTTPAddr string `json:"httpAddr,omitempty"`
}

// Load loads configuration from all sources for the given project
// directory. directory may be empty, in which case only the global config
// and environment are consulted.
func Load(directory string) (*Config, error) {
	cfg := &Config{}

	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "config.json"), cfg)
	loadConfigFile(filepath.Join(globalPath, "config.jsonc"), cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, ".amem-mcp", "config.json"), cfg)
		loadConfigFile(filepath.Join(directory, ".amem-mcp", "config.jsonc"), cfg)

		loadGlobOverrides(directory, cfg)

		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadGlobOverrides finds any *.amem-mcp.json files directly under
// directory (e.g. local.amem-mcp.json, ci.amem-mcp.json) and merges them
// in lexical match order, last one wins on conflicting keys.
func loadGlobOverrides(directory string, cfg *Config) {
	matches, err := doublestar.Glob(os.DirFS(directory), "*.amem-mcp.json")
	if err != nil {
		return
	}
	for _, name := range matches {
		loadConfigFile(filepath.Join(directory, name), cfg)
	}
}

// loadConfigFile loads and merges a single config file. A missing file is
// not an error; any other read/parse failure is silently skipped so a
// malformed override never prevents startup.
func loadConfigFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	data = stripJSONComments(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return
	}

	mergeConfig(cfg, &fileConfig)
}

var (
	singleLineComment = regexp.MustCompile(`//.*$`)
	multiLineComment  = regexp.MustCompile(`/\*[\s\S]*?\*/`)
)

// stripJSONComments removes // and /* */ comments from JSONC.
func stripJSONComments(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = singleLineComment.ReplaceAll(line, nil)
	}
	data = bytes.Join(lines, []byte("\n"))
	return multiLineComment.ReplaceAll(data, nil)
}

// mergeConfig merges source into target, scalar fields overwrite when set.
func mergeConfig(target, source *Config) {
	if source.MemoryPath != "" {
		target.MemoryPath = source.MemoryPath
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.AutoSaveIntervalSeconds != 0 {
		target.AutoSaveIntervalSeconds = source.AutoSaveIntervalSeconds
	}
	if source.HTTPAddr != "" {
		target.HTTPAddr = source.HTTPAddr
	}
}

// applyEnvOverrides applies environment variable overrides, highest
// precedence of all sources.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AMEM_MEMORY_PATH"); v != "" {
		cfg.MemoryPath = v
	}
	if v := os.Getenv("AMEM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AMEM_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
}

// Save writes cfg as indented JSON to path, creating parent directories as
// needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
