package bus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

func waitFor(t *testing.T, ch <-chan *domain.Message) *domain.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		got := make(chan *domain.Message, 1)
		_, err := bus.Subscribe(ctx, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			got <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, "test.topic", []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		msg := waitFor(t, got)
		if string(msg.Payload) != "hello" {
			t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
		}
		if msg.Topic != "test.topic" {
			t.Errorf("expected topic 'test.topic', got '%s'", msg.Topic)
		}
		if msg.ID == "" {
			t.Error("expected message ID")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		var count atomic.Int32
		_, _ = bus.Subscribe(ctx, "isolated.a", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		_ = bus.Publish(ctx, "isolated.b", []byte("x"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected no messages on isolated.a, got %d", count.Load())
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32
		sub, _ := bus.Subscribe(ctx, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}

		_ = bus.Publish(ctx, "unsub.topic", []byte("x"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("expected no messages after unsubscribe, got %d", count.Load())
		}

		bus.mu.RLock()
		remaining := len(bus.subscriptions["unsub.topic"])
		bus.mu.RUnlock()
		if remaining != 0 {
			t.Errorf("expected subscription removed, %d left", remaining)
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(3)
		for i := 0; i < 3; i++ {
			_, _ = bus.Subscribe(ctx, "fanout.topic", func(ctx context.Context, msg *domain.Message) error {
				wg.Done()
				return nil
			})
		}

		_ = bus.Publish(ctx, "fanout.topic", []byte("x"))

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("not every subscriber received the message")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, domain.TopicClaimCreated, func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if sub.Topic() != domain.TopicClaimCreated {
			t.Errorf("expected topic %s, got %s", domain.TopicClaimCreated, sub.Topic())
		}
	})
}

func TestPublishJSON(t *testing.T) {
	bus := NewChannelBus(10)
	defer bus.Close()
	ctx := context.Background()

	got := make(chan *domain.Message, 1)
	_, _ = bus.Subscribe(ctx, domain.TopicClaimFlagged, func(ctx context.Context, msg *domain.Message) error {
		got <- msg
		return nil
	})

	event := domain.ClaimEvent{
		ClaimID:   "claim-1",
		Status:    domain.StatusFlagged,
		RiskLevel: domain.RiskHigh,
	}
	if err := PublishJSON(ctx, bus, domain.TopicClaimFlagged, event); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	var decoded domain.ClaimEvent
	if err := json.Unmarshal(waitFor(t, got).Payload, &decoded); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.ClaimID != "claim-1" || decoded.RiskLevel != domain.RiskHigh {
		t.Errorf("unexpected event %+v", decoded)
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(10)
	ctx := context.Background()

	_, _ = bus.Subscribe(ctx, "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	if err := bus.Publish(ctx, "close.topic", []byte("x")); err == nil {
		t.Error("expected publish after close to fail")
	}
	if _, err := bus.Subscribe(ctx, "close.topic", nil); err == nil {
		t.Error("expected subscribe after close to fail")
	}
	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping after close to fail")
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("failed to create channel bus: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Errorf("expected *ChannelBus, got %T", b)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestChannelBusConcurrentPublishAndClose(t *testing.T) {
	bus := NewChannelBus(1)
	ctx := context.Background()

	_, _ = bus.Subscribe(ctx, "load.topic", func(ctx context.Context, msg *domain.Message) error {
		time.Sleep(time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = bus.Publish(ctx, "load.topic", []byte("x"))
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	_ = bus.Close()
	wg.Wait()
}
