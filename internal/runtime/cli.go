package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/agentrun-ai/agentrun/internal/logging"
	"github.com/agentrun-ai/agentrun/internal/permission"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

const (
	// DefaultBinary is the agent CLI executable resolved from PATH.
	DefaultBinary = "claude"

	// maxLineSize bounds one stream-json line; tool results can be large.
	maxLineSize = 10 * 1024 * 1024

	defaultHandshakeTimeout = 30 * time.Second
)

// CLIRuntime runs tasks through the Claude Code CLI using its stream-json
// control protocol: NDJSON messages on stdout, control requests answered on
// stdin. Tool execution happens inside the CLI process, never here.
type CLIRuntime struct {
	// Binary is the CLI executable. Defaults to DefaultBinary.
	Binary string
	// HandshakeTimeout bounds the initialize exchange after spawn.
	HandshakeTimeout time.Duration
}

// NewCLIRuntime creates a runtime with defaults.
func NewCLIRuntime() *CLIRuntime {
	return &CLIRuntime{Binary: DefaultBinary, HandshakeTimeout: defaultHandshakeTimeout}
}

// Run spawns the CLI, completes the handshake, submits the task as one
// user-role turn, and returns the message stream. The channel is unbuffered
// and closed when the CLI's stdout is exhausted.
func (r *CLIRuntime) Run(ctx context.Context, req Request) (<-chan types.Message, error) {
	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	cmd := exec.CommandContext(ctx, binary, buildArgs(req)...)
	cmd.Dir = req.WorkDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent runtime %q: %w", binary, err)
	}

	go drainStderr(stderr)

	messages := make(chan types.Message)
	c := &conn{
		stdin:    stdin,
		canUse:   req.CanUseTool,
		ctrl:     make(chan ctrlAck, 1),
		messages: messages,
	}

	go r.pump(ctx, cmd, stdout, c)

	if err := r.handshake(ctx, c); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	if err := c.sendUserTurn(req.Task); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("failed to submit task: %w", err)
	}

	return messages, nil
}

// handshake sends the initialize control request and waits for its ack. The
// CLI may still be booting, so the send is retried with exponential backoff.
func (r *CLIRuntime) handshake(ctx context.Context, c *conn) error {
	timeout := r.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = timeout

	attempt := func() error {
		if err := c.sendInitialize(); err != nil {
			return backoff.Permanent(err)
		}
		select {
		case ack := <-c.ctrl:
			if ack.err != "" {
				return backoff.Permanent(fmt.Errorf("runtime rejected initialize: %s", ack.err))
			}
			return nil
		case <-time.After(bo.InitialInterval * 4):
			return fmt.Errorf("initialize not acknowledged")
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		}
	}

	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("runtime handshake failed: %w", err)
	}
	return nil
}

// pump reads stdout line by line, routing control traffic and forwarding
// stream messages. Sending on the unbuffered messages channel blocks until
// the dispatcher has handled the previous message.
func (r *CLIRuntime) pump(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, c *conn) {
	defer close(c.messages)
	defer func() { _ = cmd.Wait() }()

	log := logging.Component("runtime")
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := c.handleLine(ctx, line); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debug().Err(err).Msg("dropping undecodable stream line")
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("stream read error")
	}
}

func drainStderr(stderr io.Reader) {
	log := logging.Component("runtime")
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		log.Debug().Str("stderr", scanner.Text()).Msg("runtime")
	}
}

// buildArgs assembles the CLI invocation for one request.
func buildArgs(req Request) []string {
	args := []string{
		"--print",
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--verbose",
		"--permission-prompt-tool", "stdio",
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", req.MaxTurns))
	}
	return args
}

// ctrlAck is the routed acknowledgement of a control request we sent.
type ctrlAck struct {
	err string
}

// conn owns the wire protocol over the CLI's stdio.
type conn struct {
	writeMu  sync.Mutex
	stdin    io.Writer
	canUse   CanUseToolFunc
	ctrl     chan ctrlAck
	messages chan<- types.Message
}

// controlEnvelope is the inbound shape of control traffic.
type controlEnvelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Request   struct {
		Subtype  string         `json:"subtype"`
		ToolName string         `json:"tool_name"`
		Input    map[string]any `json:"input"`
	} `json:"request"`
	Response struct {
		Subtype string `json:"subtype"`
		Error   string `json:"error"`
	} `json:"response"`
}

// handleLine processes one NDJSON line from the CLI.
func (c *conn) handleLine(ctx context.Context, line []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return err
	}

	switch probe.Type {
	case "control_request":
		return c.handleControlRequest(ctx, line)
	case "control_response":
		var env controlEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return err
		}
		ack := ctrlAck{}
		if env.Response.Subtype == "error" {
			ack.err = env.Response.Error
		}
		select {
		case c.ctrl <- ack:
		default:
		}
		return nil
	default:
		msg, err := types.UnmarshalMessage(line)
		if err != nil {
			return err
		}
		if msg == nil {
			return nil
		}
		select {
		case c.messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handleControlRequest arbitrates a can_use_tool request and replies before
// the CLI executes the tool.
func (c *conn) handleControlRequest(ctx context.Context, line []byte) error {
	var env controlEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return err
	}

	if env.Request.Subtype != "can_use_tool" {
		return c.sendControlError(env.RequestID, fmt.Sprintf("unsupported control request: %s", env.Request.Subtype))
	}

	decision := permission.Allow
	if c.canUse != nil {
		var err error
		decision, err = c.canUse(ctx, env.Request.ToolName, env.Request.Input)
		if err != nil {
			decision = permission.Deny(err.Error())
		}
	}
	return c.sendDecision(env.RequestID, env.Request.Input, decision)
}

func (c *conn) sendDecision(requestID string, input map[string]any, d permission.Decision) error {
	inner := map[string]any{}
	if d.Allowed {
		inner["behavior"] = "allow"
		inner["updatedInput"] = input
	} else {
		inner["behavior"] = "deny"
		inner["message"] = d.Message
	}
	return c.writeLine(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": requestID,
			"response":   inner,
		},
	})
}

func (c *conn) sendControlError(requestID, message string) error {
	return c.writeLine(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "error",
			"request_id": requestID,
			"error":      message,
		},
	})
}

func (c *conn) sendInitialize() error {
	return c.writeLine(map[string]any{
		"type":       "control_request",
		"request_id": "init_" + ulid.Make().String(),
		"request":    map[string]any{"subtype": "initialize"},
	})
}

// sendUserTurn submits the task as a single user-role turn.
func (c *conn) sendUserTurn(task string) error {
	return c.writeLine(map[string]any{
		"type": "user",
		"message": map[string]any{
			"role":    "user",
			"content": task,
		},
	})
}

func (c *conn) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stdin.Write(data); err != nil {
		return err
	}
	_, err = c.stdin.Write([]byte("\n"))
	return err
}
