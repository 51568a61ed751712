package result

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-ai/agentrun/pkg/types"
)

func TestExtractStructuredOutput(t *testing.T) {
	msg := &types.ResultMessage{
		StructuredOutput: map[string]any{
			"status":   true,
			"summary":  "implemented and tested",
			"insights": "run linters early",
		},
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.True(t, r.Status)
	assert.Equal(t, "implemented and tested", r.Summary)
	assert.Equal(t, "run linters early", r.Insights)
}

func TestExtractStructuredOutputWinsOverRawText(t *testing.T) {
	msg := &types.ResultMessage{
		StructuredOutput: map[string]any{"status": false, "summary": "structured"},
		Result:           `{"status": true, "summary": "raw", "insights": ""}`,
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.False(t, r.Status)
	assert.Equal(t, "structured", r.Summary)
}

func TestExtractInvalidStructuredFallsToRaw(t *testing.T) {
	msg := &types.ResultMessage{
		StructuredOutput: map[string]any{"status": "yes"}, // wrong type
		Result:           `{"status": true, "summary": "from raw", "insights": ""}`,
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.True(t, r.Status)
	assert.Equal(t, "from raw", r.Summary)
}

func TestExtractFencedJSONBlock(t *testing.T) {
	msg := &types.ResultMessage{
		Result: "```json\n{\"status\": true, \"summary\": \"ok\", \"insights\": \"\"}\n```",
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.Equal(t, &types.TaskResult{Status: true, Summary: "ok", Insights: ""}, r)
}

func TestExtractFencedBlockWithoutTag(t *testing.T) {
	msg := &types.ResultMessage{
		Result: "Here is the final report:\n```\n{\"status\": false, \"summary\": \"tests failing\", \"insights\": \"pin deps\"}\n```\nThanks!",
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.False(t, r.Status)
	assert.Equal(t, "tests failing", r.Summary)
	assert.Equal(t, "pin deps", r.Insights)
}

func TestExtractBareJSON(t *testing.T) {
	msg := &types.ResultMessage{
		Result: "  {\"status\": true, \"summary\": \"done\", \"insights\": \"\"}  \n",
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.True(t, r.Status)
	assert.Equal(t, "done", r.Summary)
}

func TestExtractJSONCTolerated(t *testing.T) {
	msg := &types.ResultMessage{
		Result: "{\n  // final state\n  \"status\": true,\n  \"summary\": \"ok\",\n}",
	}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.True(t, r.Status)
}

func TestExtractPlainTextSynthesized(t *testing.T) {
	msg := &types.ResultMessage{Result: "plain non-json text"}

	r, ok := Extract(msg)
	require.True(t, ok)
	assert.Equal(t, &types.TaskResult{Status: true, Summary: "plain non-json text", Insights: ""}, r)
}

func TestExtractLongPlainTextTruncated(t *testing.T) {
	long := strings.Repeat("w", 800)
	r, ok := Extract(&types.ResultMessage{Result: long})
	require.True(t, ok)
	assert.Len(t, r.Summary, 500)
	assert.True(t, r.Status)
}

func TestExtractMultibyteTextTruncatedOnRunes(t *testing.T) {
	r, ok := Extract(&types.ResultMessage{Result: strings.Repeat("概", 800)})
	require.True(t, ok)
	assert.True(t, utf8.ValidString(r.Summary))
	assert.Equal(t, 500, utf8.RuneCountInString(r.Summary))
	assert.Equal(t, strings.Repeat("概", 500), r.Summary)
}

func TestExtractMalformedFencedBlockFallsThrough(t *testing.T) {
	// Broken JSON inside the fence; the whole text is not JSON either, so
	// the ladder lands on synthesis.
	raw := "```json\n{\"status\": tru\n```"
	r, ok := Extract(&types.ResultMessage{Result: raw})
	require.True(t, ok)
	assert.True(t, r.Status)
	assert.Equal(t, raw, r.Summary)
}

func TestExtractAbsent(t *testing.T) {
	r, ok := Extract(&types.ResultMessage{})
	assert.False(t, ok)
	assert.Nil(t, r)

	r, ok = Extract(nil)
	assert.False(t, ok)
	assert.Nil(t, r)
}

func TestExtractInvalidStructuredAndNoRawIsAbsent(t *testing.T) {
	r, ok := Extract(&types.ResultMessage{
		StructuredOutput: map[string]any{"unexpected": 1},
	})
	assert.False(t, ok)
	assert.Nil(t, r)
}
