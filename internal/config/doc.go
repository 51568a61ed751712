// Package config provides configuration loading, merging, and path management
// for agentrun.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.config/agentrun/ - XDG compatible)
//  2. Project config (agentrun.json/agentrun.jsonc/agentrun.yaml in the
//     working directory)
//  3. AGENTRUN_CONFIG file
//  4. Environment variables
//
// Later sources override earlier ones; environment variables have the
// highest precedence.
//
// # Supported Formats
//
//   - agentrun.json - Standard JSON configuration
//   - agentrun.jsonc - JSON with comments, processed using tidwall/jsonc
//   - agentrun.yaml - YAML configuration
//
// # Variable Interpolation
//
// Configuration files support {env:VAR_NAME} placeholders, which expand to
// environment variable values before parsing:
//
//	{
//	  "model": "{env:AGENTRUN_DEFAULT_MODEL}",
//	  "writable_paths": ["./src"]
//	}
//
// # Environment Variable Overrides
//
//   - AGENTRUN_MODEL - Override the model
//   - AGENTRUN_WORKDIR - Override the working directory
//   - AGENTRUN_READABLE_PATHS - Comma-separated read whitelist
//   - AGENTRUN_WRITABLE_PATHS - Comma-separated write whitelist
//   - AGENTRUN_ALLOWED_TOOLS - Comma-separated tool names
//   - AGENTRUN_MAX_TURNS - Conversation turn cap
//   - AGENTRUN_TIMEOUT - Run deadline (Go duration syntax)
//   - AGENTRUN_LOG_LEVEL - One of debug, info, warn, error
//   - AGENTRUN_CONFIG - Path to a specific config file
//
// # Path Management
//
// The Paths type provides XDG Base Directory Specification compliant
// locations (Data, Config, Cache, State), adapted to APPDATA on Windows.
package config
