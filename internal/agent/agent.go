// Package agent wires the permission arbiter, the stream dispatcher, the
// result extractor, and the file watcher around one runtime invocation.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentrun-ai/agentrun/internal/event"
	"github.com/agentrun-ai/agentrun/internal/logging"
	"github.com/agentrun-ai/agentrun/internal/permission"
	"github.com/agentrun-ai/agentrun/internal/result"
	"github.com/agentrun-ai/agentrun/internal/runtime"
	"github.com/agentrun-ai/agentrun/internal/scope"
	"github.com/agentrun-ai/agentrun/internal/stream"
	"github.com/agentrun-ai/agentrun/internal/watch"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

// BuiltinTools are the runtime tools enabled by default.
var BuiltinTools = []string{
	"Read",
	"Write",
	"Edit",
	"MultiEdit",
	"Glob",
	"Grep",
	"Bash",
	"WebSearch",
	"WebFetch",
}

// DefaultSystemPrompt steers the runtime toward tested, reviewable code and
// the JSON result contract the extractor understands.
const DefaultSystemPrompt = `You are an expert programmer who writes clean, simple, and robust code.

## Code Style Guidelines
- Write simple, readable code with minimal indirection
- Avoid unnecessary object attributes and local variables
- No redundant abstractions or duplicate code
- Each function should do one thing well
- Use clear, descriptive names

## Testing Requirements
- Generate comprehensive tests for EVERY function and feature
- Tests MUST NOT use mocks, patches, or any form of test doubles
- Test with real inputs and verify real outputs
- Test edge cases: empty inputs, missing values, boundary conditions
- Test error conditions with actual invalid inputs
- Each test should be independent and verify actual behavior

## Output Format
When the task is complete, return a JSON object by carefully and rigorously
introspecting on your work:
` + "```json" + `
{
    "status": bool,
    "summary": str,
    "insights": str
}
` + "```" + `
The insights MUST be task agnostic, generic, concise and to the point.`

// Options configures a CodingAgent.
type Options struct {
	// Runtime executes the task. Defaults to the CLI runtime.
	Runtime runtime.Runtime
	// Model overrides the runtime's default model.
	Model string
	// WorkDir is the directory the task operates in. Defaults to the
	// current working directory.
	WorkDir string
	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
	// ReadablePaths is the read whitelist. Empty means unrestricted.
	ReadablePaths []string
	// WritablePaths is the write whitelist. Empty means unrestricted.
	WritablePaths []string
	// AllowedTools overrides BuiltinTools when set.
	AllowedTools []string
	// IgnorePatterns extends the watcher's default ignore globs.
	IgnorePatterns []string
	// MaxTurns bounds the agentic loop; 0 means the runtime default.
	MaxTurns int
	// Timeout bounds one run; 0 means no deadline.
	Timeout time.Duration
	// Output receives the trace. Defaults to os.Stdout.
	Output io.Writer
	// Quiet suppresses trace output except agent commentary.
	Quiet bool
	// Verbose enables per-file edit lines in the trace.
	Verbose bool
	// Bus receives run events. A private bus is created when nil.
	Bus *event.Bus
}

// Report is the outcome of one run.
type Report struct {
	// RunID identifies the run in logs and events.
	RunID string
	// Result is the extracted task result, nil when the stream ended
	// without a terminal payload.
	Result *types.TaskResult
	// Diffs lists per-file line additions and deletions observed in the
	// working directory over the run.
	Diffs []types.FileDiff
	// Denials counts tool calls the arbiter rejected.
	Denials int
	// NumTurns and cost figures are passed through from the runtime.
	NumTurns     int
	TotalCostUSD float64
	// DurationMS is wall time for the run.
	DurationMS int64
}

// CodingAgent runs coding tasks through an external agent runtime while
// arbitrating file access and tracing progress.
type CodingAgent struct {
	opts    Options
	rt      runtime.Runtime
	bus     *event.Bus
	ownsBus bool
	arbiter *permission.Arbiter
}

// New builds an agent. Whitelist paths are canonicalized once, here, so a
// later rename of a whitelisted directory does not widen access.
func New(opts Options) (*CodingAgent, error) {
	if opts.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		opts.WorkDir = wd
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	rt := opts.Runtime
	if rt == nil {
		rt = runtime.NewCLIRuntime()
	}

	bus := opts.Bus
	ownsBus := false
	if bus == nil {
		bus = event.NewBus()
		ownsBus = true
	}

	readable, err := scope.New(opts.ReadablePaths)
	if err != nil {
		return nil, fmt.Errorf("invalid readable paths: %w", err)
	}
	writable, err := scope.New(opts.WritablePaths)
	if err != nil {
		return nil, fmt.Errorf("invalid writable paths: %w", err)
	}

	return &CodingAgent{
		opts:    opts,
		rt:      rt,
		bus:     bus,
		ownsBus: ownsBus,
		arbiter: permission.NewArbiter(readable, writable, bus),
	}, nil
}

// Run executes one task end to end:
// start the watcher, stream the runtime's messages through the dispatcher,
// extract the terminal result, and report file diffs. A nil Report.Result
// with a nil error means the run finished without a terminal payload.
func (a *CodingAgent) Run(ctx context.Context, task string) (*Report, error) {
	runID := ulid.Make().String()
	log := logging.Component("agent").With().Str("run_id", runID).Logger()
	start := time.Now()

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	var denials atomic.Int64
	canUseTool := func(ctx context.Context, toolName string, input map[string]any) (permission.Decision, error) {
		decision, err := a.arbiter.CanUseTool(ctx, toolName, input)
		if err == nil && !decision.Allowed {
			denials.Add(1)
		}
		return decision, err
	}

	printer := stream.NewPrinter(a.opts.Output, a.opts.Quiet, a.opts.Verbose)
	dispatcher := stream.NewDispatcher(printer, a.bus)

	unsubscribe := a.bus.Subscribe(event.FileEdited, func(e event.Event) {
		if data, ok := e.Data.(event.FileEditedData); ok {
			printer.FileEdited(data.File)
		}
	})
	defer unsubscribe()

	watcher, err := watch.New(a.opts.WorkDir, a.bus, a.opts.IgnorePatterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	systemPrompt := a.opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	allowedTools := a.opts.AllowedTools
	if len(allowedTools) == 0 {
		allowedTools = BuiltinTools
	}

	log.Info().Str("model", a.opts.Model).Str("workdir", a.opts.WorkDir).Msg("run started")

	messages, err := a.rt.Run(ctx, runtime.Request{
		Task:         task,
		SystemPrompt: systemPrompt,
		Model:        a.opts.Model,
		WorkDir:      a.opts.WorkDir,
		AllowedTools: allowedTools,
		MaxTurns:     a.opts.MaxTurns,
		CanUseTool:   canUseTool,
	})
	if err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("runtime failed to start: %w", err)
	}

	terminal, dispatchErr := dispatcher.Dispatch(ctx, messages)

	diffs := watcher.Stop()
	elapsed := time.Since(start).Milliseconds()

	if dispatchErr != nil {
		log.Warn().Err(dispatchErr).Msg("run aborted")
		return nil, dispatchErr
	}

	report := &Report{
		RunID:      runID,
		Diffs:      diffs,
		Denials:    int(denials.Load()),
		DurationMS: elapsed,
	}
	if terminal != nil {
		report.NumTurns = terminal.NumTurns
		report.TotalCostUSD = terminal.TotalCostUSD
		if res, ok := result.Extract(terminal); ok {
			report.Result = res
		}
	}

	a.bus.PublishSync(event.Event{
		Type: event.RunCompleted,
		Data: event.RunCompletedData{Result: report.Result, DurationMS: elapsed},
	})

	if report.Result == nil {
		log.Warn().Msg("run finished without a terminal result")
	} else {
		log.Info().Bool("status", report.Result.Status).Int("denials", report.Denials).
			Int64("duration_ms", elapsed).Msg("run finished")
	}

	return report, nil
}

// Close releases the agent's event bus when the agent owns it.
func (a *CodingAgent) Close() error {
	if a.ownsBus {
		return a.bus.Close()
	}
	return nil
}
