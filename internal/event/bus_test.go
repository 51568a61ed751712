package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []Event
	bus.Subscribe(ToolInvoked, func(e Event) { got = append(got, e) })

	bus.PublishSync(Event{Type: ToolInvoked, Data: ToolInvokedData{Tool: "Read"}})
	bus.PublishSync(Event{Type: AgentText, Data: AgentTextData{Text: "hi"}})

	require.Len(t, got, 1)
	data, ok := got[0].Data.(ToolInvokedData)
	require.True(t, ok, "Data keeps its concrete type")
	assert.Equal(t, "Read", data.Tool)
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	bus.SubscribeAll(func(Event) { count++ })

	bus.PublishSync(Event{Type: ToolInvoked})
	bus.PublishSync(Event{Type: ToolCompleted})
	bus.PublishSync(Event{Type: RunCompleted})

	assert.Equal(t, 3, count)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe(FileEdited, func(Event) { count++ })

	bus.PublishSync(Event{Type: FileEdited})
	unsub()
	bus.PublishSync(Event{Type: FileEdited})

	assert.Equal(t, 1, count)
}

func TestPublishSyncPreservesOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, string(e.Type))
	})

	bus.PublishSync(Event{Type: ToolInvoked})
	bus.PublishSync(Event{Type: ToolCompleted})
	bus.PublishSync(Event{Type: AgentText})

	assert.Equal(t, []string{"tool.invoked", "tool.completed", "agent.text"}, order)
}

func TestPublishAsyncDelivers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe(AgentText, func(Event) { wg.Done() })
	bus.Subscribe(AgentText, func(Event) { wg.Done() })

	bus.Publish(Event{Type: AgentText})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async delivery timed out")
	}
}

func TestClosedBusDropsEvents(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(ToolInvoked, func(Event) { count++ })

	require.NoError(t, bus.Close())
	bus.PublishSync(Event{Type: ToolInvoked})

	assert.Zero(t, count)
	assert.NotPanics(t, func() { _ = bus.Close() })
}
