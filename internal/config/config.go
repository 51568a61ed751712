package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for one agent invocation.
type Config struct {
	// Model selects the model the runtime should use. Empty means the
	// runtime's own default.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// WorkDir is the directory the task operates in. Defaults to the
	// current working directory.
	WorkDir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// SystemPrompt overrides the built-in system prompt when set.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// ReadablePaths is the read whitelist. Empty means unrestricted reads.
	ReadablePaths []string `json:"readable_paths,omitempty" yaml:"readable_paths,omitempty"`

	// WritablePaths is the write whitelist. Empty means unrestricted writes.
	WritablePaths []string `json:"writable_paths,omitempty" yaml:"writable_paths,omitempty"`

	// AllowedTools restricts which tools the runtime may offer the model.
	AllowedTools []string `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`

	// IgnorePatterns extends the default file-watch ignore globs.
	IgnorePatterns []string `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty"`

	// MaxTurns caps the conversation length. Zero means no cap.
	MaxTurns int `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`

	// Timeout bounds one run end to end. Zero means no deadline.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// Quiet suppresses trace output except agent commentary.
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`

	// Verbose enables per-file edit lines in the trace.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Load resolves configuration from multiple sources (priority order):
// 1. Global config (~/.config/agentrun/)
// 2. Project config (agentrun.json|jsonc|yaml in the working directory)
// 3. AGENTRUN_CONFIG file
// 4. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{
		WorkDir:  directory,
		LogLevel: "info",
	}

	loaded := make(map[string]bool)

	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "agentrun.json"))
	loadOnce(filepath.Join(globalPath, "agentrun.jsonc"))
	loadOnce(filepath.Join(globalPath, "agentrun.yaml"))

	// 2. Project config
	if directory != "" {
		loadOnce(filepath.Join(directory, "agentrun.json"))
		loadOnce(filepath.Join(directory, "agentrun.jsonc"))
		loadOnce(filepath.Join(directory, "agentrun.yaml"))
	}

	// 3. AGENTRUN_CONFIG file override
	if configPath := os.Getenv("AGENTRUN_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	// 4. Environment variables (highest priority)
	applyEnvOverrides(config)

	if config.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			config.WorkDir = wd
		}
	}

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
// JSON and JSONC sources tolerate comments and trailing commas; .yaml and
// .yml sources are parsed as YAML.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data)

	var fileConfig Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		data = jsonc.ToJSON(data)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target. Scalars overwrite when set,
// path and tool lists replace rather than append so a later source can
// narrow an earlier one.
func mergeConfig(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.WorkDir != "" {
		target.WorkDir = source.WorkDir
	}
	if source.SystemPrompt != "" {
		target.SystemPrompt = source.SystemPrompt
	}
	if source.ReadablePaths != nil {
		target.ReadablePaths = source.ReadablePaths
	}
	if source.WritablePaths != nil {
		target.WritablePaths = source.WritablePaths
	}
	if source.AllowedTools != nil {
		target.AllowedTools = source.AllowedTools
	}
	if source.IgnorePatterns != nil {
		target.IgnorePatterns = append(target.IgnorePatterns, source.IgnorePatterns...)
	}
	if source.MaxTurns > 0 {
		target.MaxTurns = source.MaxTurns
	}
	if source.Timeout > 0 {
		target.Timeout = source.Timeout
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Quiet {
		target.Quiet = true
	}
	if source.Verbose {
		target.Verbose = true
	}
}

// applyEnvOverrides applies AGENTRUN_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if model := os.Getenv("AGENTRUN_MODEL"); model != "" {
		config.Model = model
	}
	if workdir := os.Getenv("AGENTRUN_WORKDIR"); workdir != "" {
		config.WorkDir = workdir
	}
	if paths := os.Getenv("AGENTRUN_READABLE_PATHS"); paths != "" {
		config.ReadablePaths = splitList(paths)
	}
	if paths := os.Getenv("AGENTRUN_WRITABLE_PATHS"); paths != "" {
		config.WritablePaths = splitList(paths)
	}
	if tools := os.Getenv("AGENTRUN_ALLOWED_TOOLS"); tools != "" {
		config.AllowedTools = splitList(tools)
	}
	if turns := os.Getenv("AGENTRUN_MAX_TURNS"); turns != "" {
		if n, err := strconv.Atoi(turns); err == nil && n > 0 {
			config.MaxTurns = n
		}
	}
	if timeout := os.Getenv("AGENTRUN_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			config.Timeout = d
		}
	}
	if level := os.Getenv("AGENTRUN_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes the configuration to a file.
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
