package events

import (
	"testing"
	"time"
)

func TestBus_SubscribePublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicAgent, 4)

	bus.Publish(TopicAgent, AgentStartedEvent{
		RunID:     "run-1",
		ID:        "agent-1",
		Role:      "developer",
		Timestamp: time.Now(),
	})

	select {
	case ev := <-ch:
		if ev.EventType() != EventTypeAgentStarted {
			t.Errorf("expected %s, got %s", EventTypeAgentStarted, ev.EventType())
		}
		if ev.AgentID() != "agent-1" {
			t.Errorf("expected agent-1, got %s", ev.AgentID())
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_SubscribeAllReceivesEveryTopic(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(8)

	bus.Publish(TopicExecution, ExecutionStartedEvent{RunID: "run-1", AgentCount: 2})
	bus.Publish(TopicAgent, AgentCompletedEvent{RunID: "run-1", ID: "agent-1"})

	got := 0
	timeout := time.After(time.Second)
	for got < 2 {
		select {
		case <-all:
			got++
		case <-timeout:
			t.Fatalf("expected 2 events, got %d", got)
		}
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Buffer of one with no reader: the second publish must drop, not block.
	bus.Subscribe(TopicAgent, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(TopicAgent, AgentStartedEvent{ID: "agent-x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBus_CloseIdempotent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicExecution, 1)

	bus.Close()
	bus.Close()

	if _, open := <-ch; open {
		t.Error("subscriber channel should be closed")
	}

	// Publishing after close is a no-op.
	bus.Publish(TopicExecution, ExecutionStartedEvent{RunID: "run-2"})
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch := bus.Subscribe(TopicAgent, 1)
	if _, open := <-ch; open {
		t.Error("subscription after close should return a closed channel")
	}
}
