package event

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"go.uber.org/zap"
)

func TestBus_PublishDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got atomic.Int64
	bus.Subscribe("watch.device.offline", func(_ context.Context, e plugin.Event) {
		if e.Topic != "watch.device.offline" {
			t.Errorf("handler got topic %q", e.Topic)
		}
		got.Add(1)
	})
	bus.Subscribe("watch.device.recovered", func(_ context.Context, _ plugin.Event) {
		t.Error("handler for unrelated topic was called")
	})

	if err := bus.Publish(ctx, plugin.Event{Topic: "watch.device.offline", Source: "test"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.Load() != 1 {
		t.Errorf("handler called %d times, want 1", got.Load())
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got atomic.Int64
	bus.SubscribeAll(func(_ context.Context, _ plugin.Event) { got.Add(1) })

	bus.Publish(ctx, plugin.Event{Topic: "a"})
	bus.Publish(ctx, plugin.Event{Topic: "b"})

	if got.Load() != 2 {
		t.Errorf("wildcard handler called %d times, want 2", got.Load())
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got atomic.Int64
	unsub := bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { got.Add(1) })

	bus.Publish(ctx, plugin.Event{Topic: "t"})
	unsub()
	bus.Publish(ctx, plugin.Event{Topic: "t"})

	if got.Load() != 1 {
		t.Errorf("handler called %d times after unsubscribe, want 1", got.Load())
	}
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got atomic.Int64
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { got.Add(1) })

	if err := bus.Publish(ctx, plugin.Event{Topic: "t"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.Load() != 1 {
		t.Errorf("second handler called %d times, want 1", got.Load())
	}
}

func TestBus_PublishAsync(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	done := make(chan struct{})
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { close(done) })

	bus.PublishAsync(ctx, plugin.Event{Topic: "t"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler not called within 1s")
	}
}
