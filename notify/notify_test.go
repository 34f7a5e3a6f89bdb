package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
	return Notification{}
}

func TestPublishIsScopedToOrganization(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acme := bus.Subscribe(ctx, "acme")
	globex := bus.Subscribe(ctx, "globex")

	bus.Success("acme", "Client saved", "Wayne Enterprises was created")

	n := receive(t, acme)
	assert.Equal(t, KindSuccess, n.Kind)
	assert.Equal(t, "Client saved", n.Title)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	select {
	case n := <-globex:
		t.Fatalf("unexpected notification for another organization: %+v", n)
	default:
	}
}

func TestFailureMessages(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := bus.Subscribe(ctx, "acme")

	bus.Failure("acme", "Payment failed", errors.New("payment exceeds outstanding balance"))
	assert.Equal(t, "payment exceeds outstanding balance", receive(t, ch).Message)

	bus.Failure("acme", "Payment failed", nil)
	n := receive(t, ch)
	assert.Equal(t, KindFailure, n.Kind)
	assert.Equal(t, FallbackMessage, n.Message)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx, "acme")
	assert.Equal(t, 1, bus.Subscribers("acme"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, bus.Subscribers("acme"))

	bus.Success("acme", "after", "no subscribers left")
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := bus.Subscribe(ctx, "acme")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Success("acme", "bulk", "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Len(t, ch, subscriberBuffer)
}
