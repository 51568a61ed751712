package event

import "github.com/agentrun-ai/agentrun/pkg/types"

// ToolInvokedData is the data for tool.invoked events.
type ToolInvokedData struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolCompletedData is the data for tool.completed events.
type ToolCompletedData struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// AgentTextData is the data for agent.text events.
type AgentTextData struct {
	Text string `json:"text"`
}

// PermissionDeniedData is the data for permission.denied events.
type PermissionDeniedData struct {
	Tool    string `json:"tool"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	File string `json:"file"`
}

// RunCompletedData is the data for run.completed events. Result is nil when
// the stream ended without a terminal payload.
type RunCompletedData struct {
	Result     *types.TaskResult `json:"result,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}
