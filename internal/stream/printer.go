package stream

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const (
	// maxArgLen caps the rendering of a single tool argument value.
	maxArgLen = 50
	// maxResultLen is the threshold above which tool-result content is
	// elided to its head and tail.
	maxResultLen = 200
	resultEdge   = 100
)

// Printer renders the human-readable run trace.
type Printer struct {
	mu      sync.Mutex
	writer  io.Writer
	quiet   bool
	verbose bool
}

// NewPrinter creates a trace printer. In quiet mode only agent commentary is
// shown; verbose additionally surfaces workspace file edits.
func NewPrinter(writer io.Writer, quiet, verbose bool) *Printer {
	return &Printer{writer: writer, quiet: quiet, verbose: verbose}
}

// ToolUse renders one tool invocation with its arguments.
func (p *Printer) ToolUse(name string, input map[string]any) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "[tool] %s(%s)\n", name, formatArgs(input))
}

// AgentText renders model commentary verbatim.
func (p *Printer) AgentText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "[agent] %s\n", text)
}

// ToolResult renders the outcome of a tool call. Long content is elided to
// its first and last 100 characters; newlines are shown as the two-character
// sequence \n so each result stays on one trace line.
func (p *Printer) ToolResult(content string, isError bool) {
	if p.quiet {
		return
	}
	status := "OK"
	if isError {
		status = "ERROR"
	}

	display := content
	if runes := []rune(display); len(runes) > maxResultLen {
		display = string(runes[:resultEdge]) + "..." + string(runes[len(runes)-resultEdge:])
	}
	display = strings.ReplaceAll(display, "\n", `\n`)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "  -> [%s] %s\n", status, display)
}

// FileEdited reports a workspace file change (verbose only).
func (p *Printer) FileEdited(path string) {
	if p.quiet || !p.verbose {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "[file] %s\n", path)
}

// formatArgs renders tool input as sorted key=value pairs, each value
// representation truncated to 50 characters.
func formatArgs(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+formatValue(input[k]))
	}
	return strings.Join(pairs, ", ")
}

func formatValue(v any) string {
	var repr string
	switch val := v.(type) {
	case string:
		repr = strconv.Quote(val)
	default:
		repr = fmt.Sprintf("%v", val)
	}
	if runes := []rune(repr); len(runes) > maxArgLen {
		repr = string(runes[:maxArgLen])
	}
	return repr
}
