// Package result converts a terminal stream payload into a typed TaskResult.
//
// Extraction is an ordered fallback ladder: structured output, then a fenced
// code block in the raw text, then the raw text itself, then a synthesized
// summary. Parse failures at any stage fall through to the next stage, so a
// usable result exists whenever any textual output exists at all.
package result

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/agentrun-ai/agentrun/pkg/types"
)

// maxSummaryLen caps the synthesized summary at the final ladder stage.
const maxSummaryLen = 500

// fencedBlock matches the first fenced code block, with an optional language
// tag, capturing the inner content.
var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\\n?(.*?)\\n?```")

// Extract converts the terminal message into a TaskResult. The second return
// value is false only when the message carries neither structured output nor
// raw text, meaning the run produced no usable payload at all.
func Extract(msg *types.ResultMessage) (*types.TaskResult, bool) {
	if msg == nil {
		return nil, false
	}

	if msg.StructuredOutput != nil {
		if r, ok := fromFields(msg.StructuredOutput); ok {
			return r, true
		}
	}

	raw := msg.Result
	if raw == "" {
		return nil, false
	}

	if inner := fencedBlock.FindStringSubmatch(raw); inner != nil {
		if r, ok := parseText(inner[1]); ok {
			return r, true
		}
	}

	if r, ok := parseText(raw); ok {
		return r, true
	}

	summary := raw
	if runes := []rune(summary); len(runes) > maxSummaryLen {
		summary = string(runes[:maxSummaryLen])
	}
	return &types.TaskResult{Status: true, Summary: summary}, true
}

// parseText attempts to read s as a JSON TaskResult object. JSONC-style
// comments and trailing commas are tolerated.
func parseText(s string) (*types.TaskResult, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(s)), &fields); err != nil {
		return nil, false
	}
	return fromFields(fields)
}

// fromFields validates the TaskResult shape: status must be a boolean;
// summary and insights are taken when they are strings.
func fromFields(fields map[string]any) (*types.TaskResult, bool) {
	status, ok := fields["status"].(bool)
	if !ok {
		return nil, false
	}

	r := &types.TaskResult{Status: status}
	if s, ok := fields["summary"].(string); ok {
		r.Summary = s
	}
	if s, ok := fields["insights"].(string); ok {
		r.Insights = s
	}
	return r, true
}
