// Package runtime defines the boundary with the external agent runtime.
//
// The runtime owns the model loop and tool execution. This core only
// supplies a task, a tool whitelist, a working directory, and a permission
// callback, and consumes the ordered message stream the runtime produces.
package runtime

import (
	"context"

	"github.com/agentrun-ai/agentrun/internal/permission"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

// CanUseToolFunc is the permission capability handed to the runtime. It is
// invoked once per attempted tool call and must resolve before the tool
// executes; the runtime blocks the call on its result.
type CanUseToolFunc func(ctx context.Context, toolName string, input map[string]any) (permission.Decision, error)

// Request describes one task run.
type Request struct {
	// Task is submitted as a single user-role turn at run start.
	Task string
	// SystemPrompt replaces the runtime's default system prompt.
	SystemPrompt string
	// Model names the model to run, e.g. "claude-sonnet-4-5".
	Model string
	// WorkDir is the working directory for tool execution.
	WorkDir string
	// AllowedTools is the declared set of enabled tool names.
	AllowedTools []string
	// MaxTurns bounds the agentic loop; 0 means the runtime's default.
	MaxTurns int
	// CanUseTool gates every tool call. nil allows everything.
	CanUseTool CanUseToolFunc
}

// Runtime produces the message stream for a task run. The returned channel
// is unbuffered: the producer does not advance past a message until the
// consumer has handled it. The channel is closed when the run ends, whether
// or not a terminal result message was produced.
type Runtime interface {
	Run(ctx context.Context, req Request) (<-chan types.Message, error)
}
