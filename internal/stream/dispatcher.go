// Package stream consumes the ordered event stream of an agent run.
//
// The dispatcher pulls one message at a time from the runtime's output
// channel and never buffers or reorders: the producer cannot advance until
// the previous message has been fully rendered and published, which gives
// implicit backpressure without a queue.
package stream

import (
	"context"

	"github.com/agentrun-ai/agentrun/internal/event"
	"github.com/agentrun-ai/agentrun/pkg/types"
)

// Dispatcher classifies stream messages, emits the trace, and identifies the
// terminal result message.
type Dispatcher struct {
	printer *Printer
	bus     *event.Bus
}

// NewDispatcher creates a dispatcher. bus may be nil when no observers are
// attached; printer must not be nil.
func NewDispatcher(printer *Printer, bus *event.Bus) *Dispatcher {
	return &Dispatcher{printer: printer, bus: bus}
}

// Dispatch drains the message channel until it yields the terminal result
// message or is closed. A closed channel without a result returns (nil, nil):
// the run produced no terminal payload.
func (d *Dispatcher) Dispatch(ctx context.Context, messages <-chan types.Message) (*types.ResultMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil, nil
			}
			if result := d.handle(msg); result != nil {
				return result, nil
			}
		}
	}
}

// handle processes one message, returning the result message when terminal.
func (d *Dispatcher) handle(msg types.Message) *types.ResultMessage {
	switch m := msg.(type) {
	case *types.AssistantMessage:
		for _, block := range m.Content {
			d.handleAssistantBlock(block)
		}
	case *types.UserMessage:
		for _, block := range m.Content {
			d.handleUserBlock(block)
		}
	case *types.ResultMessage:
		return m
	}
	return nil
}

func (d *Dispatcher) handleAssistantBlock(block types.Block) {
	switch b := block.(type) {
	case *types.ToolUseBlock:
		d.publish(event.Event{
			Type: event.ToolInvoked,
			Data: event.ToolInvokedData{Tool: b.Name, Input: b.Input},
		})
		d.printer.ToolUse(b.Name, b.Input)
	case *types.TextBlock:
		d.publish(event.Event{
			Type: event.AgentText,
			Data: event.AgentTextData{Text: b.Text},
		})
		d.printer.AgentText(b.Text)
	case *types.ToolResultBlock:
		// Tool results never ride on assistant turns.
	}
}

func (d *Dispatcher) handleUserBlock(block types.Block) {
	switch b := block.(type) {
	case *types.ToolResultBlock:
		d.publish(event.Event{
			Type: event.ToolCompleted,
			Data: event.ToolCompletedData{Content: b.Content, IsError: b.IsError},
		})
		d.printer.ToolResult(b.Content, b.IsError)
	case *types.ToolUseBlock, *types.TextBlock:
		// User turns only echo tool results back to the model.
	}
}

// publish delivers synchronously so trace order matches stream order.
func (d *Dispatcher) publish(e event.Event) {
	if d.bus != nil {
		d.bus.PublishSync(e)
	}
}
