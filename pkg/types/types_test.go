package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalMessageAssistant(t *testing.T) {
	data := `{
		"type": "assistant",
		"message": {
			"content": [
				{"type": "text", "text": "Let me read that file."},
				{"type": "tool_use", "id": "tu_1", "name": "Read", "input": {"file_path": "/tmp/a.go"}}
			]
		}
	}`

	msg, err := UnmarshalMessage([]byte(data))
	require.NoError(t, err)

	am, ok := msg.(*AssistantMessage)
	require.True(t, ok, "expected *AssistantMessage, got %T", msg)
	require.Len(t, am.Content, 2)

	text, ok := am.Content[0].(*TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Let me read that file.", text.Text)

	use, ok := am.Content[1].(*ToolUseBlock)
	require.True(t, ok)
	assert.Equal(t, "Read", use.Name)
	assert.Equal(t, "/tmp/a.go", use.Input["file_path"])
}

func TestUnmarshalMessageUserStringContent(t *testing.T) {
	data := `{
		"type": "user",
		"message": {
			"content": [
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "package main", "is_error": false}
			]
		}
	}`

	msg, err := UnmarshalMessage([]byte(data))
	require.NoError(t, err)

	um, ok := msg.(*UserMessage)
	require.True(t, ok)
	require.Len(t, um.Content, 1)

	res, ok := um.Content[0].(*ToolResultBlock)
	require.True(t, ok)
	assert.Equal(t, "package main", res.Content)
	assert.False(t, res.IsError)
}

func TestUnmarshalMessageUserListContent(t *testing.T) {
	data := `{
		"type": "user",
		"message": {
			"content": [
				{"type": "tool_result", "tool_use_id": "tu_2", "content": [
					{"type": "text", "text": "line one\n"},
					{"type": "text", "text": "line two"}
				], "is_error": true}
			]
		}
	}`

	msg, err := UnmarshalMessage([]byte(data))
	require.NoError(t, err)

	um := msg.(*UserMessage)
	res := um.Content[0].(*ToolResultBlock)
	assert.Equal(t, "line one\nline two", res.Content)
	assert.True(t, res.IsError)
}

func TestUnmarshalMessageResult(t *testing.T) {
	data := `{
		"type": "result",
		"result": "{\"status\": true}",
		"structured_output": {"status": true, "summary": "done", "insights": ""},
		"num_turns": 7,
		"duration_ms": 12345
	}`

	msg, err := UnmarshalMessage([]byte(data))
	require.NoError(t, err)

	rm, ok := msg.(*ResultMessage)
	require.True(t, ok)
	assert.Equal(t, 7, rm.NumTurns)
	assert.Equal(t, int64(12345), rm.DurationMS)
	assert.Equal(t, true, rm.StructuredOutput["status"])
	assert.NotEmpty(t, rm.Result)
}

func TestUnmarshalMessageIgnoresUnknownTypes(t *testing.T) {
	msg, err := UnmarshalMessage([]byte(`{"type": "system", "subtype": "init"}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestUnmarshalBlockSkipsUnknownKinds(t *testing.T) {
	b, err := UnmarshalBlock([]byte(`{"type": "thinking", "thinking": "hmm"}`))
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestUnmarshalMessageMalformed(t *testing.T) {
	_, err := UnmarshalMessage([]byte(`{not json`))
	assert.Error(t, err)
}
