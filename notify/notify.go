// Package notify carries success and failure notifications from mutations to
// subscribers of the same organization. The Bus is created once by the
// application root and injected where it is needed.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// FallbackMessage is shown when a failure carries no usable error text.
const FallbackMessage = "Something went wrong. Please try again."

type Notification struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"-"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

const subscriberBuffer = 16

type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Notification]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan Notification]struct{})}
}

// Subscribe returns a channel of the organization's notifications. The channel is
// closed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context, orgID string) <-chan Notification {
	ch := make(chan Notification, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[orgID]
	if !ok {
		set = make(map[chan Notification]struct{})
		b.subs[orgID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[orgID], ch)
		if len(b.subs[orgID]) == 0 {
			delete(b.subs, orgID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Publish delivers n to current subscribers of n.OrgID. A subscriber whose buffer
// is full misses the notification.
func (b *Bus) Publish(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[n.OrgID] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (b *Bus) Success(orgID, title, message string) {
	b.Publish(Notification{OrgID: orgID, Kind: KindSuccess, Title: title, Message: message})
}

// Failure publishes err's message, or FallbackMessage when err is nil or empty.
func (b *Bus) Failure(orgID, title string, err error) {
	msg := FallbackMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	b.Publish(Notification{OrgID: orgID, Kind: KindFailure, Title: title, Message: msg})
}

// Subscribers reports how many subscribers the organization has.
func (b *Bus) Subscribers(orgID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[orgID])
}
