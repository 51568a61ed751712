package stream

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-ai/agentrun/internal/event"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

func feed(msgs ...types.Message) <-chan types.Message {
	ch := make(chan types.Message)
	go func() {
		defer close(ch)
		for _, m := range msgs {
			ch <- m
		}
	}()
	return ch
}

func TestDispatchReturnsTerminalResult(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(NewPrinter(&buf, false, false), nil)

	result, err := d.Dispatch(context.Background(), feed(
		&types.AssistantMessage{Content: []types.Block{
			&types.TextBlock{Text: "working on it"},
			&types.ToolUseBlock{Name: "Read", Input: map[string]any{"file_path": "/tmp/a.go"}},
		}},
		&types.UserMessage{Content: []types.Block{
			&types.ToolResultBlock{Content: "package main", IsError: false},
		}},
		&types.ResultMessage{Result: "done"},
	))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "done", result.Result)

	out := buf.String()
	assert.Contains(t, out, "[agent] working on it\n")
	assert.Contains(t, out, "[tool] Read(file_path=\"/tmp/a.go\")\n")
	assert.Contains(t, out, "  -> [OK] package main\n")
}

func TestDispatchExhaustedWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(NewPrinter(&buf, false, false), nil)

	result, err := d.Dispatch(context.Background(), feed(
		&types.AssistantMessage{Content: []types.Block{&types.TextBlock{Text: "partial"}}},
	))
	require.NoError(t, err)
	assert.Nil(t, result, "no terminal payload means absent result")
}

func TestDispatchStopsAtResult(t *testing.T) {
	// The producer goroutine blocks forever after the result message; the
	// dispatcher must return without draining it.
	ch := make(chan types.Message, 1)
	ch <- &types.ResultMessage{Result: "first"}

	var buf bytes.Buffer
	d := NewDispatcher(NewPrinter(&buf, false, false), nil)

	result, err := d.Dispatch(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Result)
}

func TestDispatchContextCancel(t *testing.T) {
	ch := make(chan types.Message)
	ctx, cancel := context.WithCancel(context.Background())

	var buf bytes.Buffer
	d := NewDispatcher(NewPrinter(&buf, false, false), nil)

	errc := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, ch)
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not observe cancellation")
	}
}

func TestDispatchPublishesEventsInOrder(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var order []event.EventType
	bus.SubscribeAll(func(e event.Event) { order = append(order, e.Type) })

	var buf bytes.Buffer
	d := NewDispatcher(NewPrinter(&buf, false, false), bus)

	_, err := d.Dispatch(context.Background(), feed(
		&types.AssistantMessage{Content: []types.Block{
			&types.ToolUseBlock{Name: "Write", Input: nil},
		}},
		&types.UserMessage{Content: []types.Block{
			&types.ToolResultBlock{Content: "ok"},
		}},
		&types.AssistantMessage{Content: []types.Block{
			&types.TextBlock{Text: "finishing"},
		}},
		&types.ResultMessage{},
	))
	require.NoError(t, err)

	assert.Equal(t, []event.EventType{
		event.ToolInvoked,
		event.ToolCompleted,
		event.AgentText,
	}, order)
}
