package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message represents one event in the stream produced by the agent runtime.
// The stream is ordered and single-pass; a ResultMessage terminates it.
type Message interface {
	MessageRole() string
}

// AssistantMessage carries the model's output blocks for one turn.
type AssistantMessage struct {
	Content []Block `json:"content"`
}

func (m *AssistantMessage) MessageRole() string { return "assistant" }

// UserMessage carries tool results echoed back into the conversation.
type UserMessage struct {
	Content []Block `json:"content"`
}

func (m *UserMessage) MessageRole() string { return "user" }

// ResultMessage is the terminal event of a run. StructuredOutput is set when
// the runtime produced schema-conforming output; Result holds the raw final
// text otherwise (possibly both, possibly neither).
type ResultMessage struct {
	StructuredOutput map[string]any `json:"structured_output,omitempty"`
	Result           string         `json:"result,omitempty"`
	IsError          bool           `json:"is_error,omitempty"`
	NumTurns         int            `json:"num_turns,omitempty"`
	DurationMS       int64          `json:"duration_ms,omitempty"`
	TotalCostUSD     float64        `json:"total_cost_usd,omitempty"`
}

func (m *ResultMessage) MessageRole() string { return "result" }

// Block represents a component of an assistant or user message.
type Block interface {
	BlockType() string
}

// TextBlock is plain commentary from the model.
type TextBlock struct {
	Text string `json:"text"`
}

func (b *TextBlock) BlockType() string { return "text" }

// ToolUseBlock is a request by the model to invoke a tool.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (b *ToolUseBlock) BlockType() string { return "tool_use" }

// ToolResultBlock carries the output of a completed tool invocation.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (b *ToolResultBlock) BlockType() string { return "tool_result" }

// rawBlock is used for two-phase unmarshaling of wire blocks.
type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

// UnmarshalBlock decodes a single wire block into its typed form.
// Unknown block kinds (thinking, images, ...) are skipped by returning nil.
func UnmarshalBlock(data []byte) (Block, error) {
	var raw rawBlock
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case "text":
		return &TextBlock{Text: raw.Text}, nil
	case "tool_use":
		return &ToolUseBlock{ID: raw.ID, Name: raw.Name, Input: raw.Input}, nil
	case "tool_result":
		return &ToolResultBlock{
			ToolUseID: raw.ToolUseID,
			Content:   flattenContent(raw.Content),
			IsError:   raw.IsError,
		}, nil
	default:
		return nil, nil
	}
}

// flattenContent normalizes tool_result content, which arrives either as a
// plain string or as a list of {"type":"text","text":...} parts.
func flattenContent(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				sb.WriteString(p.Text)
			}
		}
		return sb.String()
	}

	return string(data)
}

// envelope is the outer shape of one stream-json line.
type envelope struct {
	Type    string `json:"type"`
	Message struct {
		Content []json.RawMessage `json:"content"`
	} `json:"message"`

	StructuredOutput map[string]any `json:"structured_output"`
	Result           string         `json:"result"`
	IsError          bool           `json:"is_error"`
	NumTurns         int            `json:"num_turns"`
	DurationMS       int64          `json:"duration_ms"`
	TotalCostUSD     float64        `json:"total_cost_usd"`
}

// UnmarshalMessage decodes one line of the runtime's stream-json output.
// Lines of types the core does not consume (system, control traffic handled
// elsewhere) yield (nil, nil).
func UnmarshalMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed stream message: %w", err)
	}

	switch env.Type {
	case "assistant":
		blocks, err := unmarshalBlocks(env.Message.Content)
		if err != nil {
			return nil, err
		}
		return &AssistantMessage{Content: blocks}, nil
	case "user":
		blocks, err := unmarshalBlocks(env.Message.Content)
		if err != nil {
			return nil, err
		}
		return &UserMessage{Content: blocks}, nil
	case "result":
		return &ResultMessage{
			StructuredOutput: env.StructuredOutput,
			Result:           env.Result,
			IsError:          env.IsError,
			NumTurns:         env.NumTurns,
			DurationMS:       env.DurationMS,
			TotalCostUSD:     env.TotalCostUSD,
		}, nil
	default:
		return nil, nil
	}
}

func unmarshalBlocks(raw []json.RawMessage) ([]Block, error) {
	blocks := make([]Block, 0, len(raw))
	for _, r := range raw {
		b, err := UnmarshalBlock(r)
		if err != nil {
			return nil, err
		}
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}
