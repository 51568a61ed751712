// Package permission arbitrates tool invocations against path whitelists.
//
// Every tool call attempted by the agent runtime passes through the Arbiter
// before it executes. Tools with path semantics are partitioned into a read
// category and a write category, each checked against its own scope; all
// other tools are unrestricted at this layer. A call that carries no
// recognizable path parameter is allowed unconditionally: shell execution
// and web access have no path to confine here.
package permission

import (
	"context"
	"fmt"

	"github.com/agentrun-ai/agentrun/internal/event"
	"github.com/agentrun-ai/agentrun/internal/logging"
	"github.com/agentrun-ai/agentrun/internal/scope"
)

// pathAliases are the input keys inspected for a candidate path, in order.
var pathAliases = []string{"file_path", "path"}

// readTools are gated by the readable scope.
var readTools = map[string]bool{
	"Read": true,
	"Grep": true,
	"Glob": true,
}

// writeTools are gated by the writable scope.
var writeTools = map[string]bool{
	"Write":     true,
	"Edit":      true,
	"MultiEdit": true,
}

// Decision is the outcome of arbitrating one tool invocation.
type Decision struct {
	Allowed bool
	// Message explains a denial; empty on allow.
	Message string
}

// Allow is the unconditional positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with the given reason.
func Deny(message string) Decision {
	return Decision{Allowed: false, Message: message}
}

// Arbiter decides whether tool invocations may proceed. Scopes are fixed at
// construction and never mutated, so an Arbiter is safe to call from the
// runtime's callback goroutine while the stream is being consumed.
type Arbiter struct {
	readable scope.Scope
	writable scope.Scope
	bus      *event.Bus
}

// NewArbiter creates an arbiter over the given scopes. bus may be nil when
// no observers care about denials.
func NewArbiter(readable, writable scope.Scope, bus *event.Bus) *Arbiter {
	return &Arbiter{readable: readable, writable: writable, bus: bus}
}

// Decide arbitrates a single tool invocation. It must return before the
// runtime executes the tool, and it never blocks: auxiliary work is limited
// to logging and a non-blocking event publish.
func (a *Arbiter) Decide(toolName string, input map[string]any) Decision {
	if toolName == "Bash" {
		// Observational only; shell calls are not path-gated here.
		auditBash(input)
	}

	path := candidatePath(input)
	if path == "" {
		return Allow
	}

	switch {
	case readTools[toolName]:
		return a.check(toolName, path, a.readable, "readable")
	case writeTools[toolName]:
		return a.check(toolName, path, a.writable, "writable")
	default:
		return Allow
	}
}

func (a *Arbiter) check(toolName, path string, s scope.Scope, kind string) Decision {
	if s.Allows(path) {
		return Allow
	}

	msg := fmt.Sprintf("Access denied: %s is not in the %s whitelist", path, kind)
	log := logging.Component("arbiter")
	log.Warn().
		Str("tool", toolName).
		Str("path", path).
		Str("whitelist", kind).
		Msg("tool call denied")
	if a.bus != nil {
		a.bus.Publish(event.Event{
			Type: event.PermissionDenied,
			Data: event.PermissionDeniedData{Tool: toolName, Path: path, Message: msg},
		})
	}
	return Deny(msg)
}

// candidatePath returns the first non-empty path-like input value.
func candidatePath(input map[string]any) string {
	for _, key := range pathAliases {
		if v, ok := input[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// CanUseTool adapts the arbiter to the callback shape the runtime transport
// invokes once per attempted tool call.
func (a *Arbiter) CanUseTool(ctx context.Context, toolName string, input map[string]any) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Deny("run canceled"), err
	}
	return a.Decide(toolName, input), nil
}
